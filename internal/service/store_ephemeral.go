package service

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/identity"
	"context"
	"strings"
	"sync/atomic"
)

// EphemeralNullStore 演示模式与降级使用：只分配 ID 与时间戳，不保存任何内容
type EphemeralNullStore struct {
	resolver *identity.Resolver
	seq      atomic.Uint64
	clock    *monotonicClock
}

func NewEphemeralNullStore(resolver *identity.Resolver) *EphemeralNullStore {
	return &EphemeralNullStore{resolver: resolver, clock: newMonotonicClock()}
}

func (s *EphemeralNullStore) Persistent() bool { return false }

func (s *EphemeralNullStore) Send(ctx context.Context, sender, receiver identity.UserID, body string) (*model.ChatMessage, error) {
	if strings.TrimSpace(body) == "" || sender.IsZero() || receiver.IsZero() {
		return nil, ErrInvalidInput
	}
	if s.resolver.Reconcile(ctx, sender, receiver) {
		return nil, ErrInvalidInput
	}
	msg := &model.ChatMessage{
		ID:           s.seq.Add(1),
		SenderType:   consts.ParticipantDoctor,
		ReceiverType: consts.ParticipantDoctor,
		Message:      body,
		Timestamp:    s.clock.Next(),
		CreatedBy:    sender.String(),
	}
	setParticipant(&msg.SenderID, &msg.SenderSupabaseID, sender)
	setParticipant(&msg.ReceiverID, &msg.ReceiverSupabaseID, receiver)
	return msg, nil
}

func (s *EphemeralNullStore) History(context.Context, identity.UserID, identity.UserID, int) ([]*model.ChatMessage, error) {
	return []*model.ChatMessage{}, nil
}

func (s *EphemeralNullStore) MarkRead(context.Context, identity.UserID, identity.UserID) (int64, error) {
	return 0, nil
}

func (s *EphemeralNullStore) UnreadCount(context.Context, identity.UserID, identity.UserID) (int64, error) {
	return 0, nil
}

func (s *EphemeralNullStore) UnreadCounts(context.Context, identity.UserID) (map[identity.UserID]int64, error) {
	return map[identity.UserID]int64{}, nil
}

func (s *EphemeralNullStore) Counterparts(context.Context, identity.UserID) ([]identity.UserID, error) {
	return nil, nil
}

func setParticipant(legacy **uint64, external **string, u identity.UserID) {
	if id, ok := u.LegacyID(); ok {
		*legacy = &id
	}
	if ext, ok := u.ExternalID(); ok {
		v := ext.String()
		*external = &v
	}
}
