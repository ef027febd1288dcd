package realtime

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Envelope 跨节点投递单元，用户以 CorrelationID 寻址
type Envelope struct {
	Origin string `json:"origin"`
	// Target 为 uuid.Nil 时表示广播
	Target  uuid.UUID       `json:"target"`
	Exclude uuid.UUID       `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}

// EnvelopeHandler 收到其他节点的投递
type EnvelopeHandler func(ctx context.Context, env *Envelope)

// Bus 节点间总线，每个节点只投递给自己持有的连接
type Bus interface {
	Publish(ctx context.Context, env *Envelope) error
	// Listen 阻塞到 ctx 结束
	Listen(ctx context.Context, handler EnvelopeHandler) error
}

// LocalBus 进程内总线，同步调用所有订阅者
// 单节点部署时只有一个订阅者，即本节点自身
type LocalBus struct {
	mu       sync.RWMutex
	seq      int
	handlers map[int]EnvelopeHandler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]EnvelopeHandler)}
}

func (b *LocalBus) Publish(ctx context.Context, env *Envelope) error {
	b.mu.RLock()
	handlers := make([]EnvelopeHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, env)
	}
	return nil
}

func (b *LocalBus) Listen(ctx context.Context, handler EnvelopeHandler) error {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.handlers[id] = handler
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.handlers, id)
	b.mu.Unlock()
	return nil
}

// Subscribers 当前订阅者数量
func (b *LocalBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
