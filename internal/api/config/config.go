package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从 ./configs/config.yaml 与 MEDCHAT_ 前缀环境变量加载配置
func LoadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	if p := os.Getenv("MEDCHAT_CONFIG_PATH"); p != "" {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("MEDCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// 没有配置文件时只使用默认值与环境变量
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return err
	}
	Cfg = cfg
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Chat.PingTimeout <= cfg.Chat.PingInterval {
		return nil, fmt.Errorf("chat.ping_timeout (%d) must be greater than chat.ping_interval (%d)",
			cfg.Chat.PingTimeout, cfg.Chat.PingInterval)
	}
	if cfg.Chat.UseDatabase && cfg.DB.DSN == "" {
		return nil, errors.New("chat.use_database is set but database.dsn is empty")
	}
	return &cfg, nil
}

// Default 返回只包含默认值的配置，测试使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := unmarshal(v)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_lifetime", 30)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("mongo.enable", false)
	v.SetDefault("mongo.database", "medchat")
	v.SetDefault("mongo.collection", "chat_message_archive")

	v.SetDefault("logstash.index", "logstash-medchat")
	v.SetDefault("logstash.level", "info")

	v.SetDefault("jwt.secret", "medchat-dev-secret")
	v.SetDefault("jwt.issuer", "MedChat")
	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("chat.use_database", false)
	v.SetDefault("chat.node_id", "")
	v.SetDefault("chat.ping_interval", 25)
	v.SetDefault("chat.ping_timeout", 60)
	v.SetDefault("chat.write_timeout", 10)
	v.SetDefault("chat.send_buffer", 256)
	v.SetDefault("chat.max_frame_bytes", 64*1024)
	v.SetDefault("chat.history_limit", 200)
	v.SetDefault("chat.mapping_cache_size", 10000)
	v.SetDefault("chat.presence_queue", 1024)
	v.SetDefault("chat.mapping_cache_ttl", 300)
	v.SetDefault("chat.presence_ttl", 180)

	v.SetDefault("kafka.enable", false)
	v.SetDefault("kafka.consumer.session_timeout", 30)
	v.SetDefault("kafka.consumer.heartbeat_interval", 3)
	v.SetDefault("kafka.consumer.rebalance_timeout", 60)
	v.SetDefault("kafka.consumer.max_processing_time", 5)
	v.SetDefault("kafka_doctor_consumer.topic", "canal.clinic.doctors")
	v.SetDefault("kafka_doctor_consumer.group_id", "medchat-doctor-identity")
	v.SetDefault("kafka_doctor_consumer.table", "doctors")

	v.SetDefault("cron.presence_sweep", "@every 30s")
	v.SetDefault("cron.mirror_refresh", "@every 60s")
}
