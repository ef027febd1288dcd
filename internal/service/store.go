package service

import (
	"MedChat/internal/model"
	"MedChat/internal/pkg/identity"
	"context"
	"sync"
	"time"
)

// StorageBackend 消息存储策略，启动时按 chat.use_database 选择
type StorageBackend interface {
	// Send 存储一条消息；正文为空或收发双方为同一人返回 ErrInvalidInput，
	// 无法写入返回 ErrStoreUnavailable
	Send(ctx context.Context, sender, receiver identity.UserID, body string) (*model.ChatMessage, error)
	// History 双方之间最近 limit 条消息，从旧到新
	History(ctx context.Context, a, b identity.UserID, limit int) ([]*model.ChatMessage, error)
	// MarkRead 把 other 发给 reader 的未读消息标记为已读，返回本次翻转的条数
	MarkRead(ctx context.Context, reader, other identity.UserID) (int64, error)
	UnreadCount(ctx context.Context, reader, other identity.UserID) (int64, error)
	// UnreadCounts 按规范化后的对方分组
	UnreadCounts(ctx context.Context, reader identity.UserID) (map[identity.UserID]int64, error)
	// Counterparts 与用户交换过消息的所有对方，已规范化去重
	Counterparts(ctx context.Context, user identity.UserID) ([]identity.UserID, error)
	Persistent() bool
}

// monotonicClock 微秒精度，同一进程内严格递增
type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newMonotonicClock() *monotonicClock {
	return &monotonicClock{now: time.Now}
}

func (c *monotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
