package realtime

import (
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/redis"
	"context"
	"time"

	"github.com/google/uuid"
)

// PresenceMirror Redis 中的在线镜像：chat:presence:<corr> 为持有该用户连接的节点集合
// 节点宕机后由 TTL 自然清理
type PresenceMirror struct {
	nodeID string
	ttl    time.Duration
}

func NewPresenceMirror(nodeID string, ttl time.Duration) *PresenceMirror {
	return &PresenceMirror{nodeID: nodeID, ttl: ttl}
}

func presenceKey(corr uuid.UUID) string {
	return consts.ChatPresenceKey + corr.String()
}

// Add 标记本节点持有该用户，返回当前持有节点数
func (m *PresenceMirror) Add(ctx context.Context, corr uuid.UUID) (int64, error) {
	if err := redis.AddToSetWithExpiration(ctx, presenceKey(corr), m.nodeID, m.ttl); err != nil {
		return 0, err
	}
	return redis.SetCard(ctx, presenceKey(corr))
}

// Remove 本节点不再持有该用户，返回剩余持有节点数
func (m *PresenceMirror) Remove(ctx context.Context, corr uuid.UUID) (int64, error) {
	if err := redis.RemoveFromSet(ctx, presenceKey(corr), m.nodeID); err != nil {
		return 0, err
	}
	return redis.SetCard(ctx, presenceKey(corr))
}

// Nodes 持有该用户连接的节点数
func (m *PresenceMirror) Nodes(ctx context.Context, corr uuid.UUID) (int64, error) {
	return redis.SetCard(ctx, presenceKey(corr))
}

// Refresh 续期本节点上所有在线用户
func (m *PresenceMirror) Refresh(ctx context.Context, corrs []uuid.UUID) error {
	for _, corr := range corrs {
		if err := redis.AddToSetWithExpiration(ctx, presenceKey(corr), m.nodeID, m.ttl); err != nil {
			return err
		}
	}
	return nil
}
