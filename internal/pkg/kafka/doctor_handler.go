package kafka

import (
	"MedChat/internal/pkg/identity"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// MappingCache 需要在医生档案变更后失效的映射缓存
type MappingCache interface {
	Forget(legacy uint64, external uuid.UUID)
}

// DoctorHandler 消费 doctors 表 binlog，旧 ID 与外部 ID 的绑定变化时清理 Resolver 缓存
type DoctorHandler struct {
	table string
	cache MappingCache
}

func NewDoctorHandler(table string, cache MappingCache) *DoctorHandler {
	return &DoctorHandler{table: table, cache: cache}
}

func (s *DoctorHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("doctor consumer setup")
	return nil
}

func (s *DoctorHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("doctor consumer cleanup")
	return nil
}

func (s *DoctorHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return pullMessageBatch(session, claim, s.logic)
}

func (s *DoctorHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg, s.table)
	if err != nil {
		return err
	}

	for i, row := range canalMsg.Data {
		legacy := columnUint64(row, "id")
		s.forget(legacy, row)
		// UPDATE 时 old 里是被替换掉的外部 ID
		if canalMsg.Type == CanalUpdate && i < len(canalMsg.Old) {
			s.forget(legacy, canalMsg.Old[i])
		}
		log.DebugContext(ctx, "Doctor mapping invalidated", "type", canalMsg.Type, "doctor_id", legacy)
	}
	return nil
}

func (s *DoctorHandler) forget(legacy uint64, row map[string]interface{}) {
	var external uuid.UUID
	if raw, ok := columnString(row, "supabase_id"); ok {
		if id, ok := identity.ParseExternal(raw); ok {
			external = id
		}
	}
	if legacy == 0 && external == uuid.Nil {
		return
	}
	s.cache.Forget(legacy, external)
}
