package main

import (
	"MedChat/internal/api/config"
	"MedChat/internal/pkg/cron"
	"MedChat/internal/pkg/database"
	"MedChat/internal/pkg/logger"
	"MedChat/internal/pkg/mongo"
	"MedChat/internal/pkg/redis"
	"MedChat/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 加载配置
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	cfg := config.Cfg
	gin.SetMode(cfg.Server.Mode)

	// 初始化日志
	logger.InitLogger()

	// 数据库连接，未启用时以演示模式运行
	var db *gorm.DB
	if cfg.Chat.UseDatabase {
		dbCfg := cfg.DB
		conn, err := database.NewGormDB(&dbCfg)
		if err != nil {
			log.Error("Fatal error: failed to create database connection", "err", err)
			panic(err)
		}
		db = conn
	}

	// Redis 连接
	if cfg.Redis.Enable {
		if err := redis.InitRedis(cfg.Redis); err != nil {
			log.Error("Fatal error: failed to create redis connection", "err", err)
			panic(err)
		}
	}

	// Mongo 归档，连接失败不影响主流程
	var mongoConn *mongodriver.Database
	if cfg.Mongo.Enable {
		conn, err := mongo.InitMongo(cfg.Mongo)
		if err != nil {
			log.Warn("Mongo archive disabled: connection failed", "err", err)
		} else {
			mongoConn = conn
		}
	}

	// 依赖注入
	app, err := wire.BuildApplication(cfg, db, mongoConn)
	if err != nil {
		log.Error("Fatal error: failed to create application", "err", err)
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// 跨节点总线
	g.Go(func() error {
		log.Info("Chat hub starting...", "node_id", app.Hub.NodeID())
		if err := app.Hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// 定时任务
	if err = cron.InitCron(app.CronMgr); err != nil {
		log.Error("Fatal error: failed to start cron jobs", "err", err)
		panic(err)
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Cron Jobs stopping...")
		app.CronMgr.Stop()
		return nil
	})

	// Kafka 消费者
	g.Go(func() error {
		log.Info("Kafka Consumers starting...")
		return app.KafkaManager.Start(ctx)
	})

	// HTTP 服务器
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case sig := <-quit:
			log.Info("Received signal, shutting down...", "signal", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		// WebSocket 连接被劫持，srv.Shutdown 不会等待它们
		app.Hub.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("App exited with error", "err", err)
	}

	if app.Archive != nil {
		app.Archive.Close()
	}
	if err = mongo.Close(mongoConn); err != nil {
		log.Warn("Mongo disconnect failed", "err", err)
	}
	if err = redis.Close(); err != nil {
		log.Warn("Redis close failed", "err", err)
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Info("App exited successfully.")
}
