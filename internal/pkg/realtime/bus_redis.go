package realtime

import (
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/logger"
	"MedChat/internal/pkg/redis"
	"context"
	"fmt"
	log "log/slog"

	"github.com/goccy/go-json"
)

// RedisBus 基于 Redis pub/sub 的多节点总线
type RedisBus struct {
	channel string
}

func NewRedisBus() *RedisBus {
	return &RedisBus{channel: consts.ChatBusChannel}
}

func (b *RedisBus) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return redis.Publish(ctx, b.channel, data)
}

func (b *RedisBus) Listen(ctx context.Context, handler EnvelopeHandler) error {
	if !redis.Enabled() {
		return fmt.Errorf("redis bus: redis is not initialized")
	}
	pubsub := redis.Subscribe(ctx, b.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	// 等待订阅确认，避免启动后的首批消息丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis bus subscribe: %w", err)
	}
	log.Info("Redis bus subscribed", "channel", b.channel)

	listenCtx := logger.WithTrace(ctx, "bus")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.WarnContext(listenCtx, "Redis bus: bad envelope", "err", err)
				continue
			}
			handler(listenCtx, &env)
		}
	}
}
