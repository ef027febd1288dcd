package repository

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"context"
	"strings"

	"gorm.io/gorm"
)

// UnreadBySender 按发送方标识分组的未读数
type UnreadBySender struct {
	SenderID         *uint64
	SenderSupabaseID *string
	Total            int64
}

// ParticipantPair 出现过的一组收发标识组合
type ParticipantPair struct {
	SenderID           *uint64
	SenderSupabaseID   *string
	ReceiverID         *uint64
	ReceiverSupabaseID *string
}

type MessageRepo interface {
	Create(ctx context.Context, msg *model.ChatMessage) error
	ListBetween(ctx context.Context, a, b identity.Aliases, limit int) ([]*model.ChatMessage, error)
	ListParticipantPairs(ctx context.Context, user identity.Aliases) ([]*ParticipantPair, error)
	MarkRead(ctx context.Context, reader, other identity.Aliases) (int64, error)
	CountUnread(ctx context.Context, reader, other identity.Aliases) (int64, error)
	CountUnreadBySender(ctx context.Context, reader identity.Aliases) ([]*UnreadBySender, error)
}

type messageRepoImpl struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepoImpl{db: db}
}

// Create 写入消息，ID 由数据库自增分配
func (s *messageRepoImpl) Create(ctx context.Context, msg *model.ChatMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// ListBetween 双方之间最近 limit 条消息，按 (timestamp, id) 升序返回
func (s *messageRepoImpl) ListBetween(ctx context.Context, a, b identity.Aliases, limit int) ([]*model.ChatMessage, error) {
	if a.Empty() || b.Empty() {
		return nil, nil
	}
	cond, args := pairCondition(a, b)

	var messages []*model.ChatMessage
	tx := s.db.WithContext(ctx).Where(cond, args...).Order("timestamp DESC, id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&messages).Error; err != nil {
		return nil, err
	}

	// 倒序取最近的 limit 条，再翻转为从旧到新
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListParticipantPairs 用户参与过的所有收发组合，由数据库分组去重，不受消息条数影响
func (s *messageRepoImpl) ListParticipantPairs(ctx context.Context, user identity.Aliases) ([]*ParticipantPair, error) {
	if user.Empty() {
		return nil, nil
	}
	sc, sargs := sideCondition("sender", user)
	rc, rargs := sideCondition("receiver", user)

	var rows []*ParticipantPair
	err := s.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Select("sender_id, sender_supabase_id, receiver_id, receiver_supabase_id").
		Where(sc+" OR "+rc, append(sargs, rargs...)...).
		Group("sender_id, sender_supabase_id, receiver_id, receiver_supabase_id").
		Scan(&rows).Error
	return rows, err
}

// MarkRead 单条 UPDATE 完成标记，返回本次实际翻转的行数
func (s *messageRepoImpl) MarkRead(ctx context.Context, reader, other identity.Aliases) (int64, error) {
	if reader.Empty() || other.Empty() {
		return 0, nil
	}
	cond, args := unreadCondition(reader, other)
	res := s.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Where(cond, args...).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread 与 MarkRead 相同的条件，只读
func (s *messageRepoImpl) CountUnread(ctx context.Context, reader, other identity.Aliases) (int64, error) {
	if reader.Empty() || other.Empty() {
		return 0, nil
	}
	cond, args := unreadCondition(reader, other)
	var total int64
	err := s.db.WithContext(ctx).Model(&model.ChatMessage{}).Where(cond, args...).Count(&total).Error
	return total, err
}

// CountUnreadBySender 按发送方分组统计未读
func (s *messageRepoImpl) CountUnreadBySender(ctx context.Context, reader identity.Aliases) ([]*UnreadBySender, error) {
	if reader.Empty() {
		return nil, nil
	}
	rc, args := sideCondition("receiver", reader)
	var rows []*UnreadBySender
	err := s.db.WithContext(ctx).Model(&model.ChatMessage{}).
		Select("sender_id, sender_supabase_id, COUNT(*) AS total").
		Where(rc+" AND is_read = ?", append(args, false)...).
		Group("sender_id, sender_supabase_id").
		Scan(&rows).Error
	return rows, err
}

// sideCondition 生成 (x_id IN ? OR x_supabase_id IN ?) 条件
func sideCondition(side string, a identity.Aliases) (string, []any) {
	var parts []string
	var args []any
	if len(a.Legacy) > 0 {
		parts = append(parts, side+"_id IN ?")
		args = append(args, a.Legacy)
	}
	if len(a.External) > 0 {
		parts = append(parts, side+"_supabase_id IN ?")
		args = append(args, uuidStrings(a.External))
	}
	if len(parts) == 0 {
		return "(1 = 0)", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func pairCondition(a, b identity.Aliases) (string, []any) {
	sa, saArgs := sideCondition("sender", a)
	rb, rbArgs := sideCondition("receiver", b)
	sb, sbArgs := sideCondition("sender", b)
	ra, raArgs := sideCondition("receiver", a)

	args := make([]any, 0, len(saArgs)+len(rbArgs)+len(sbArgs)+len(raArgs))
	args = append(args, saArgs...)
	args = append(args, rbArgs...)
	args = append(args, sbArgs...)
	args = append(args, raArgs...)
	return "(" + sa + " AND " + rb + ") OR (" + sb + " AND " + ra + ")", args
}

func unreadCondition(reader, other identity.Aliases) (string, []any) {
	rc, rargs := sideCondition("receiver", reader)
	sc, sargs := sideCondition("sender", other)
	args := append(rargs, sargs...)
	args = append(args, false)
	return rc + " AND " + sc + " AND is_read = ?", args
}
