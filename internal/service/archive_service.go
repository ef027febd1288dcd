package service

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/logger"
	"MedChat/internal/pkg/mongo"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"time"
)

// MessageArchive 已落库消息的异步归档，同时作为关系库不可用时的历史读来源
type MessageArchive interface {
	Archive(msg *model.ChatMessage)
	History(ctx context.Context, a, b identity.Aliases, limit int) ([]*model.ChatMessage, error)
	Close()
}

type mongoArchive struct {
	repo     mongo.MessageRepo
	resolver *identity.Resolver
	queue    chan *mongo.ArchivedMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMongoArchive 初始化归档并启动写入工作池
func NewMongoArchive(repo mongo.MessageRepo, resolver *identity.Resolver) MessageArchive {
	s := &mongoArchive{
		repo:     repo,
		resolver: resolver,
		queue:    make(chan *mongo.ArchivedMessage, 2048),
		stopChan: make(chan struct{}),
	}

	workerCount := 4
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.archiveWorker()
	}
	return s
}

// Archive 非阻塞，队列满时丢弃，关系库仍是唯一权威来源
func (s *mongoArchive) Archive(msg *model.ChatMessage) {
	doc := s.toArchived(msg)
	select {
	case s.queue <- doc:
	default:
		log.Warn("Archive queue full, message skipped", "message_id", msg.ID)
	}
}

func (s *mongoArchive) History(ctx context.Context, a, b identity.Aliases, limit int) ([]*model.ChatMessage, error) {
	docs, err := s.repo.GetHistory(ctx, aliasStrings(a), aliasStrings(b), limit)
	if err != nil {
		return nil, err
	}
	res := make([]*model.ChatMessage, 0, len(docs))
	for _, d := range docs {
		res = append(res, fromArchived(d))
	}
	return res, nil
}

func (s *mongoArchive) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("Message archive shut down gracefully")
}

func (s *mongoArchive) archiveWorker() {
	defer s.wg.Done()
	for {
		select {
		case doc := <-s.queue:
			s.save(doc)
		case <-s.stopChan:
			// 退出前写完队列中剩余的消息
			for {
				select {
				case doc := <-s.queue:
					s.save(doc)
				default:
					return
				}
			}
		}
	}
}

func (s *mongoArchive) save(doc *mongo.ArchivedMessage) {
	ctx := logger.WithTrace(context.Background(), "archive")
	backoff := time.Second
	for i := 0; i < 3; i++ {
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.repo.SaveMessage(saveCtx, doc)
		cancel()
		if err == nil {
			return
		}
		log.WarnContext(ctx, "Archive write failed", "message_id", doc.ID, "attempt", i+1, "err", err)
		if i < 2 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	log.ErrorContext(ctx, "Archive write gave up", "message_id", doc.ID)
}

func (s *mongoArchive) toArchived(msg *model.ChatMessage) *mongo.ArchivedMessage {
	ctx := context.Background()
	sender, receiver := msg.Sender(), msg.Receiver()
	return &mongo.ArchivedMessage{
		ID:              msg.ID,
		ConversationKey: identity.NewConversationKey(s.resolver.CorrelationID(ctx, sender), s.resolver.CorrelationID(ctx, receiver)).String(),
		SenderIDs:       storedStrings(msg.SenderID, msg.SenderSupabaseID),
		ReceiverIDs:     storedStrings(msg.ReceiverID, msg.ReceiverSupabaseID),
		Message:         msg.Message,
		IsRead:          msg.IsRead,
		Timestamp:       msg.Timestamp,
		ArchivedAt:      time.Now(),
	}
}

func fromArchived(d *mongo.ArchivedMessage) *model.ChatMessage {
	msg := &model.ChatMessage{
		ID:        d.ID,
		Message:   d.Message,
		IsRead:    d.IsRead,
		Timestamp: d.Timestamp,
	}
	for _, raw := range d.SenderIDs {
		if u, err := identity.ParseReceiver(raw); err == nil {
			setParticipant(&msg.SenderID, &msg.SenderSupabaseID, u)
		}
	}
	for _, raw := range d.ReceiverIDs {
		if u, err := identity.ParseReceiver(raw); err == nil {
			setParticipant(&msg.ReceiverID, &msg.ReceiverSupabaseID, u)
		}
	}
	return msg
}

func storedStrings(legacy *uint64, external *string) []string {
	var res []string
	if legacy != nil {
		res = append(res, strconv.FormatUint(*legacy, 10))
	}
	if external != nil {
		res = append(res, *external)
	}
	return res
}

func aliasStrings(a identity.Aliases) []string {
	res := make([]string, 0, len(a.Legacy)+len(a.External))
	for _, id := range a.Legacy {
		res = append(res, strconv.FormatUint(id, 10))
	}
	for _, id := range a.External {
		res = append(res, id.String())
	}
	return res
}
