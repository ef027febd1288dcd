package wire

import (
	"MedChat/internal/api"
	"MedChat/internal/api/config"
	"MedChat/internal/api/handler"
	"MedChat/internal/job"
	"MedChat/internal/model"
	"MedChat/internal/pkg/cron"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/kafka"
	mongorepo "MedChat/internal/pkg/mongo"
	"MedChat/internal/pkg/realtime"
	"MedChat/internal/pkg/redis"
	"MedChat/internal/repository"
	"MedChat/internal/service"
	"fmt"
	log "log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	Hub          *realtime.Hub
	Archive      service.MessageArchive
	KafkaManager *kafka.ConsumerManager
	CronMgr      *cron.Manager
}

// BuildApplication db 与 mongoDB 均可为 nil：没有数据库时以演示模式运行
func BuildApplication(cfg *config.Config, db *gorm.DB, mongoDB *mongo.Database) (*ApplicationContainer, error) {
	chatCfg := cfg.Chat

	if db != nil && cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&model.ChatMessage{}, &model.Doctor{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	// 身份映射
	var doctorRepo repository.DoctorRepo
	var mappingSource identity.MappingSource = identity.NoMapping{}
	if db != nil {
		doctorRepo = repository.NewDoctorRepo(db)
		mappingSource = doctorRepo
	}
	resolver := identity.NewResolver(mappingSource, seconds(chatCfg.MappingCacheTTL), identity.WithCacheSize(chatCfg.MappingCacheSize))

	// 消息存储
	var archive service.MessageArchive
	if mongoDB != nil {
		archive = service.NewMongoArchive(mongorepo.NewMessageRepo(mongoDB, cfg.Mongo.Collection), resolver)
	}
	var store service.StorageBackend
	if chatCfg.UseDatabase && db != nil {
		store = service.NewPersistentStore(repository.NewMessageRepo(db), resolver, archive, chatCfg.HistoryLimit)
	} else {
		log.Warn("Chat running in demo mode, messages are not persisted")
		store = service.NewEphemeralNullStore(resolver)
	}

	// 实时路由
	nodeID := chatCfg.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	var hubOpts []realtime.HubOption
	if redis.Enabled() {
		hubOpts = append(hubOpts,
			realtime.WithBus(realtime.NewRedisBus()),
			realtime.WithMirror(realtime.NewPresenceMirror(nodeID, seconds(chatCfg.PresenceTTL))),
		)
	}
	hub := realtime.NewHub(nodeID, resolver, chatCfg.PresenceQueue, hubOpts...)

	doctorService := service.NewDoctorService(doctorRepo, resolver)
	chatService := service.NewChatService(store, hub, resolver, doctorService)
	conversationService := service.NewConversationService(store, resolver)
	authService := service.NewAuthService(doctorService)

	connOpts := realtime.Options{
		WriteTimeout:  seconds(chatCfg.WriteTimeout),
		PingInterval:  seconds(chatCfg.PingInterval),
		PingTimeout:   seconds(chatCfg.PingTimeout),
		MaxFrameBytes: int64(chatCfg.MaxFrameBytes),
		SendBuffer:    chatCfg.SendBuffer,
	}

	handlers := &api.HandlersGroup{
		ChatHandler:    handler.NewChatHandler(chatService, conversationService, doctorService),
		AuthHandler:    handler.NewAuthHandler(authService),
		WsHandler:      handler.NewWsHandler(chatService, hub, connOpts, cfg.Server.AllowedOrigins),
		Resolver:       resolver,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	router := api.SetupRouter(handlers)

	kafkaMgr, err := kafka.NewConsumerManager(cfg, resolver)
	if err != nil {
		return nil, err
	}

	cronMgr := cron.NewCronManager(cfg.Cron,
		job.NewPresenceSweepJob(hub, connOpts.PingTimeout),
		job.NewPresenceMirrorJob(hub),
	)

	return &ApplicationContainer{
		Router:       router,
		Hub:          hub,
		Archive:      archive,
		KafkaManager: kafkaMgr,
		CronMgr:      cronMgr,
	}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
