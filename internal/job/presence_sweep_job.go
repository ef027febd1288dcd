package job

import (
	"MedChat/internal/pkg/logger"
	"MedChat/internal/pkg/realtime"
	"context"
	log "log/slog"
	"time"
)

// PresenceSweepJob 关闭超过心跳超时仍无活动的连接，兜底读超时未触发的半开连接
type PresenceSweepJob struct {
	hub     *realtime.Hub
	timeout time.Duration
}

func NewPresenceSweepJob(hub *realtime.Hub, timeout time.Duration) *PresenceSweepJob {
	return &PresenceSweepJob{hub: hub, timeout: timeout}
}

func (s *PresenceSweepJob) Run() {
	ctx := logger.WithTrace(context.Background(), "job-sweep")
	if n := s.hub.SweepIdle(ctx, s.timeout); n > 0 {
		log.InfoContext(ctx, "Idle connections swept", "count", n)
	}
}
