package service

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/model"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/realtime"
	"context"
	"errors"
	log "log/slog"
	"strings"
	"unicode/utf8"
)

// Session 当前连接或请求的已认证用户
type Session struct {
	User identity.UserID
	Name string
}

// ChatService 消息收发协议
type ChatService interface {
	SendMessage(ctx context.Context, sender *Session, req *dto.SendMessageReq) (*dto.MessageSentEvent, error)
	Typing(ctx context.Context, sender *Session, req *dto.TypingReq) error
	History(ctx context.Context, user *Session, counterpart string, limit int) (*dto.HistoryResp, error)
	MarkRead(ctx context.Context, user *Session, counterpart string) (int64, error)
	UnreadCounts(ctx context.Context, user *Session) (*dto.UnreadCountsResp, error)
	Presence(ctx context.Context, user string) (*dto.PresenceDTO, error)
}

type chatServiceImpl struct {
	store    StorageBackend
	fallback StorageBackend
	hub      *realtime.Hub
	resolver *identity.Resolver
	names    NameSource
}

// NameSource 发送方展示名查询，可为 nil
type NameSource interface {
	DisplayName(ctx context.Context, u identity.UserID) (string, bool)
}

func NewChatService(store StorageBackend, hub *realtime.Hub, resolver *identity.Resolver, names NameSource) ChatService {
	s := &chatServiceImpl{
		store:    store,
		hub:      hub,
		resolver: resolver,
		names:    names,
	}
	if store.Persistent() {
		s.fallback = NewEphemeralNullStore(resolver)
	}
	return s
}

// SendMessage 先存储再通知：存储 -> 判断在线 -> 推送 new_message 与 unread_message -> 返回确认
func (s *chatServiceImpl) SendMessage(ctx context.Context, sender *Session, req *dto.SendMessageReq) (*dto.MessageSentEvent, error) {
	if sender == nil || sender.User.IsZero() {
		return nil, ErrUnauthenticated
	}
	receiver, err := identity.ParseReceiver(strings.TrimSpace(req.ReceiverID))
	if err != nil {
		return nil, ErrInvalidReceiver
	}

	persisted := s.store.Persistent()
	msg, err := s.store.Send(ctx, sender.User, receiver, req.Message)
	if errors.Is(err, ErrStoreUnavailable) && s.fallback != nil {
		log.WarnContext(ctx, "Store unavailable, relaying without persistence",
			"sender", sender.User.String(), "receiver", receiver.String())
		persisted = false
		msg, err = s.fallback.Send(ctx, sender.User, receiver, req.Message)
	}
	if err != nil {
		return nil, err
	}

	timestamp := msg.Timestamp.Format(consts.TimestampLayout)
	senderID := s.resolver.Canonical(ctx, sender.User).String()
	senderName := s.senderName(ctx, sender)

	delivered := s.hub.IsOnline(ctx, receiver)
	if delivered {
		s.push(ctx, receiver, realtime.EventNewMessage, &dto.NewMessageEvent{
			ID:         msg.ID,
			SenderID:   senderID,
			SenderName: senderName,
			Message:    msg.Message,
			Timestamp:  timestamp,
			IsMine:     false,
		})
		s.push(ctx, receiver, realtime.EventUnreadMessage, &dto.UnreadMessageEvent{
			SenderID:       senderID,
			SenderName:     senderName,
			MessagePreview: Preview(msg.Message),
			Timestamp:      timestamp,
		})
	}

	log.InfoContext(ctx, "Message sent",
		"message_id", msg.ID, "sender", sender.User.String(), "receiver", receiver.String(),
		"persisted", persisted, "delivered", delivered)

	return &dto.MessageSentEvent{
		ID:         msg.ID,
		ReceiverID: req.ReceiverID,
		Message:    msg.Message,
		Timestamp:  timestamp,
		Success:    true,
		Persisted:  persisted,
		Delivered:  delivered,
	}, nil
}

// Typing 只发给在线的接收方，不存储不确认
func (s *chatServiceImpl) Typing(ctx context.Context, sender *Session, req *dto.TypingReq) error {
	if sender == nil || sender.User.IsZero() {
		return ErrUnauthenticated
	}
	receiver, err := identity.ParseReceiver(strings.TrimSpace(req.ReceiverID))
	if err != nil {
		return ErrInvalidReceiver
	}
	if !s.hub.IsOnline(ctx, receiver) {
		return nil
	}
	s.push(ctx, receiver, realtime.EventUserTyping, &dto.UserTypingEvent{
		UserID:   s.resolver.Canonical(ctx, sender.User).String(),
		IsTyping: req.IsTyping,
	})
	return nil
}

// History 拉取历史后把对方发来的消息标记为已读
func (s *chatServiceImpl) History(ctx context.Context, user *Session, counterpart string, limit int) (*dto.HistoryResp, error) {
	other, err := identity.ParseReceiver(counterpart)
	if err != nil {
		return nil, ErrInvalidReceiver
	}
	messages, err := s.store.History(ctx, user.User, other, limit)
	if err != nil {
		return nil, err
	}

	res := &dto.HistoryResp{
		Messages: make([]*dto.MessageDTO, 0, len(messages)),
		DemoMode: !s.store.Persistent(),
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, s.toMessageDTO(ctx, m, user.User))
	}

	marked, err := s.store.MarkRead(ctx, user.User, other)
	if err != nil {
		log.WarnContext(ctx, "Mark read after history failed", "user", user.User.String(), "err", err)
	} else {
		res.MarkedRead = marked
	}
	return res, nil
}

func (s *chatServiceImpl) MarkRead(ctx context.Context, user *Session, counterpart string) (int64, error) {
	other, err := identity.ParseReceiver(counterpart)
	if err != nil {
		return 0, ErrInvalidReceiver
	}
	return s.store.MarkRead(ctx, user.User, other)
}

func (s *chatServiceImpl) UnreadCounts(ctx context.Context, user *Session) (*dto.UnreadCountsResp, error) {
	counts, err := s.store.UnreadCounts(ctx, user.User)
	if err != nil {
		return nil, err
	}
	res := &dto.UnreadCountsResp{
		UnreadCounts: make(map[string]int64, len(counts)),
		DemoMode:     !s.store.Persistent(),
	}
	for u, n := range counts {
		res.UnreadCounts[u.String()] = n
	}
	return res, nil
}

func (s *chatServiceImpl) Presence(ctx context.Context, user string) (*dto.PresenceDTO, error) {
	u, err := identity.ParseReceiver(user)
	if err != nil {
		return nil, ErrInvalidReceiver
	}
	conns := s.hub.ConnectionsOf(ctx, u)
	return &dto.PresenceDTO{
		UserID:      s.resolver.Canonical(ctx, u).String(),
		Online:      s.hub.IsOnline(ctx, u),
		Connections: conns,
	}, nil
}

func (s *chatServiceImpl) push(ctx context.Context, to identity.UserID, event string, data any) {
	frame, err := realtime.Encode(event, data)
	if err != nil {
		log.ErrorContext(ctx, "Encode frame failed", "event", event, "err", err)
		return
	}
	s.hub.Deliver(ctx, to, frame)
}

// senderName 优先使用会话中的名字，其次医生档案
func (s *chatServiceImpl) senderName(ctx context.Context, sender *Session) string {
	if sender.Name != "" {
		return sender.Name
	}
	if s.names != nil {
		if name, ok := s.names.DisplayName(ctx, sender.User); ok {
			return name
		}
	}
	return consts.DefaultSenderName
}

func (s *chatServiceImpl) toMessageDTO(ctx context.Context, m *model.ChatMessage, viewer identity.UserID) *dto.MessageDTO {
	sender, receiver := m.Sender(), m.Receiver()
	return &dto.MessageDTO{
		ID:         m.ID,
		SenderID:   s.resolver.Canonical(ctx, sender).String(),
		ReceiverID: s.resolver.Canonical(ctx, receiver).String(),
		Message:    m.Message,
		Timestamp:  m.Timestamp.Format(consts.TimestampLayout),
		IsRead:     m.IsRead,
		IsMine:     s.resolver.Reconcile(ctx, sender, viewer),
	}
}

// Preview 未读提醒的消息预览
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= consts.PreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:consts.PreviewLength]) + consts.PreviewEllipsis
}
