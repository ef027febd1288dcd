package service

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/util"
	"MedChat/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"strings"
)

// PersistentStore 关系库存储，每条消息写入双方已知的全部标识形式
type PersistentStore struct {
	messages     repository.MessageRepo
	resolver     *identity.Resolver
	archive      MessageArchive
	locks        *util.KeyedMutex
	clock        *monotonicClock
	historyLimit int
}

// NewPersistentStore archive 可为 nil
func NewPersistentStore(messages repository.MessageRepo, resolver *identity.Resolver, archive MessageArchive, historyLimit int) *PersistentStore {
	if historyLimit <= 0 {
		historyLimit = 200
	}
	return &PersistentStore{
		messages:     messages,
		resolver:     resolver,
		archive:      archive,
		locks:        util.NewKeyedMutex(256),
		clock:        newMonotonicClock(),
		historyLimit: historyLimit,
	}
}

func (s *PersistentStore) Persistent() bool { return true }

func (s *PersistentStore) Send(ctx context.Context, sender, receiver identity.UserID, body string) (*model.ChatMessage, error) {
	if strings.TrimSpace(body) == "" || sender.IsZero() || receiver.IsZero() {
		return nil, ErrInvalidInput
	}
	if s.resolver.Reconcile(ctx, sender, receiver) {
		return nil, ErrInvalidInput
	}

	unlock := s.locks.Lock(s.resolver.Canonical(ctx, sender).String())
	defer unlock()

	msg := &model.ChatMessage{
		SenderType:   consts.ParticipantDoctor,
		ReceiverType: consts.ParticipantDoctor,
		Message:      body,
		CreatedBy:    sender.String(),
	}
	msg.SenderID, msg.SenderSupabaseID = storedForms(s.resolver.Aliases(ctx, sender))
	msg.ReceiverID, msg.ReceiverSupabaseID = storedForms(s.resolver.Aliases(ctx, receiver))
	msg.Timestamp = s.clock.Next()

	if err := s.messages.Create(ctx, msg); err != nil {
		log.ErrorContext(ctx, "Failed to persist chat message", "sender", sender.String(), "receiver", receiver.String(), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if s.archive != nil {
		s.archive.Archive(msg)
	}
	return msg, nil
}

func (s *PersistentStore) History(ctx context.Context, a, b identity.UserID, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	aa, ba := s.resolver.Aliases(ctx, a), s.resolver.Aliases(ctx, b)

	messages, err := s.messages.ListBetween(ctx, aa, ba, limit)
	if err == nil {
		return messages, nil
	}
	log.ErrorContext(ctx, "Failed to load chat history", "a", a.String(), "b", b.String(), "err", err)

	if s.archive != nil {
		archived, aerr := s.archive.History(ctx, aa, ba, limit)
		if aerr == nil {
			log.WarnContext(ctx, "Serving chat history from archive", "a", a.String(), "b", b.String())
			return archived, nil
		}
		log.ErrorContext(ctx, "Archive history fallback failed", "err", aerr)
	}
	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (s *PersistentStore) MarkRead(ctx context.Context, reader, other identity.UserID) (int64, error) {
	unlock := s.locks.Lock(s.resolver.Canonical(ctx, reader).String())
	defer unlock()

	n, err := s.messages.MarkRead(ctx, s.resolver.Aliases(ctx, reader), s.resolver.Aliases(ctx, other))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *PersistentStore) UnreadCount(ctx context.Context, reader, other identity.UserID) (int64, error) {
	n, err := s.messages.CountUnread(ctx, s.resolver.Aliases(ctx, reader), s.resolver.Aliases(ctx, other))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *PersistentStore) UnreadCounts(ctx context.Context, reader identity.UserID) (map[identity.UserID]int64, error) {
	rows, err := s.messages.CountUnreadBySender(ctx, s.resolver.Aliases(ctx, reader))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	res := make(map[identity.UserID]int64, len(rows))
	for _, row := range rows {
		sender := (&model.ChatMessage{SenderID: row.SenderID, SenderSupabaseID: row.SenderSupabaseID}).Sender()
		if sender.IsZero() {
			continue
		}
		// 同一人的不同标识组合合并到规范形式
		res[s.resolver.Canonical(ctx, sender)] += row.Total
	}
	return res, nil
}

func (s *PersistentStore) Counterparts(ctx context.Context, user identity.UserID) ([]identity.UserID, error) {
	aliases := s.resolver.Aliases(ctx, user)
	pairs, err := s.messages.ListParticipantPairs(ctx, aliases)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	me := s.resolver.Canonical(ctx, user)
	seen := make(map[identity.UserID]struct{}, len(pairs))
	var res []identity.UserID
	for _, p := range pairs {
		m := &model.ChatMessage{
			SenderID:           p.SenderID,
			SenderSupabaseID:   p.SenderSupabaseID,
			ReceiverID:         p.ReceiverID,
			ReceiverSupabaseID: p.ReceiverSupabaseID,
		}
		counterpart := m.Receiver()
		if s.resolver.Canonical(ctx, m.Sender()) != me {
			counterpart = m.Sender()
		}
		counterpart = s.resolver.Canonical(ctx, counterpart)
		if counterpart.IsZero() || counterpart == me {
			continue
		}
		if _, ok := seen[counterpart]; ok {
			continue
		}
		seen[counterpart] = struct{}{}
		res = append(res, counterpart)
	}
	return res, nil
}

// storedForms 取每种形式的第一个，Aliases 不含合成 ID
func storedForms(a identity.Aliases) (*uint64, *string) {
	var legacy *uint64
	var external *string
	if len(a.Legacy) > 0 {
		v := a.Legacy[0]
		legacy = &v
	}
	if len(a.External) > 0 {
		v := a.External[0].String()
		external = &v
	}
	return legacy, external
}
