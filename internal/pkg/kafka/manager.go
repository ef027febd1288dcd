package kafka

import (
	"MedChat/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	doctorConsumer sarama.ConsumerGroup
	doctorHandler  sarama.ConsumerGroupHandler
	doctorTopic    string
}

// NewConsumerManager kafka 未启用时返回 nil
func NewConsumerManager(cfg *config.Config, cache MappingCache) (*ConsumerManager, error) {
	if !cfg.Kafka.Enable {
		return nil, nil
	}
	saramaCfg, err := newSaramaConfig(cfg.Kafka)
	if err != nil {
		return nil, err
	}

	doctorConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaDoctorConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		doctorConsumer: doctorConsumer,
		doctorHandler:  NewDoctorHandler(cfg.KafkaDoctorConsumer.Table, cache),
		doctorTopic:    cfg.KafkaDoctorConsumer.Topic,
	}, nil
}

// Start 启动所有消费者，阻塞到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	if m == nil {
		<-ctx.Done()
		return nil
	}

	go func() {
		log.Info("Doctor consumer started", "topic", m.doctorTopic)
		for {
			if err := m.doctorConsumer.Consume(ctx, []string{m.doctorTopic}, m.doctorHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range m.doctorConsumer.Errors() {
			log.Warn("Doctor consumer error", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.doctorConsumer.Close(); err != nil {
		log.Error("Failed to close doctor consumer", "err", err)
	}
	return nil
}
