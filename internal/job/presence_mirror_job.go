package job

import (
	"MedChat/internal/pkg/logger"
	"MedChat/internal/pkg/realtime"
	"context"
	log "log/slog"
	"time"
)

// PresenceMirrorJob 续期本节点在 Redis 中的在线记录，节点宕机后记录随 TTL 消失
type PresenceMirrorJob struct {
	hub *realtime.Hub
}

func NewPresenceMirrorJob(hub *realtime.Hub) *PresenceMirrorJob {
	return &PresenceMirrorJob{hub: hub}
}

func (s *PresenceMirrorJob) Run() {
	ctx, cancel := context.WithTimeout(logger.WithTrace(context.Background(), "job-mirror"), 10*time.Second)
	defer cancel()
	if err := s.hub.RefreshMirror(ctx); err != nil {
		log.WarnContext(ctx, "Presence mirror refresh failed", "node_id", s.hub.NodeID(), "err", err)
	}
}
