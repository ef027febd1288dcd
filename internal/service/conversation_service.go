package service

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/model"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/identity"
	"context"
	"sort"
)

// Thread 与一个对方的会话摘要
type Thread struct {
	Counterpart identity.UserID
	LastMessage *model.ChatMessage
	UnreadCount int64
}

type ConversationService interface {
	GetThreads(ctx context.Context, user *Session) ([]*Thread, error)
	GetThreadDTOs(ctx context.Context, user *Session) ([]*dto.ThreadDTO, error)
}

type conversationServiceImpl struct {
	store    StorageBackend
	resolver *identity.Resolver
}

func NewConversationService(store StorageBackend, resolver *identity.Resolver) ConversationService {
	return &conversationServiceImpl{store: store, resolver: resolver}
}

// GetThreads 每个对方一条，按最后一条消息 (timestamp, id) 倒序
// 对方集合由存储层分组得到，对方的旧 ID 与外部 ID 合并为规范形式
func (s *conversationServiceImpl) GetThreads(ctx context.Context, user *Session) ([]*Thread, error) {
	counterparts, err := s.store.Counterparts(ctx, user.User)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.UnreadCounts(ctx, user.User)
	if err != nil {
		return nil, err
	}

	threads := make([]*Thread, 0, len(counterparts))
	for _, cp := range counterparts {
		last, err := s.store.History(ctx, user.User, cp, 1)
		if err != nil {
			return nil, err
		}
		if len(last) == 0 {
			continue
		}
		threads = append(threads, &Thread{Counterpart: cp, LastMessage: last[0], UnreadCount: counts[cp]})
	}

	sort.Slice(threads, func(i, j int) bool {
		a, b := threads[i].LastMessage, threads[j].LastMessage
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
	return threads, nil
}

func (s *conversationServiceImpl) GetThreadDTOs(ctx context.Context, user *Session) ([]*dto.ThreadDTO, error) {
	threads, err := s.GetThreads(ctx, user)
	if err != nil {
		return nil, err
	}
	me := s.resolver.Canonical(ctx, user.User)
	res := make([]*dto.ThreadDTO, 0, len(threads))
	for _, t := range threads {
		m := t.LastMessage
		sender := s.resolver.Canonical(ctx, m.Sender())
		res = append(res, &dto.ThreadDTO{
			Counterpart: t.Counterpart.String(),
			UnreadCount: t.UnreadCount,
			LastMessage: &dto.MessageDTO{
				ID:         m.ID,
				SenderID:   sender.String(),
				ReceiverID: s.resolver.Canonical(ctx, m.Receiver()).String(),
				Message:    m.Message,
				Timestamp:  m.Timestamp.Format(consts.TimestampLayout),
				IsRead:     m.IsRead,
				IsMine:     sender == me,
			},
		})
	}
	return res, nil
}
