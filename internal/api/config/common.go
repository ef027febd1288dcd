package config

// Config 配置主体
type Config struct {
	Server              ServerConfig        `mapstructure:"server"`
	DB                  DBConfig            `mapstructure:"database"`
	Redis               RedisConfig         `mapstructure:"redis"`
	Mongo               MongoConfig         `mapstructure:"mongo"`
	Logstash            LogstashConfig      `mapstructure:"logstash"`
	JWT                 JWTConfig           `mapstructure:"jwt"`
	Chat                ChatConfig          `mapstructure:"chat"`
	Kafka               KafkaConfig         `mapstructure:"kafka"`
	KafkaDoctorConsumer KafkaDoctorConsumer `mapstructure:"kafka_doctor_consumer"`
	Cron                CronConfig          `mapstructure:"cron"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// AllowedOrigins 为空时允许所有来源（CORS 与 WebSocket 握手）
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig 数据库配置，driver 为 mysql 或 sqlite
type DBConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MongoConfig 消息归档
type MongoConfig struct {
	Enable     bool   `mapstructure:"enable"`
	URL        string `mapstructure:"url"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
	Level   string `mapstructure:"level"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// ChatConfig 聊天核心参数
type ChatConfig struct {
	// UseDatabase=false 时以演示模式运行：消息只实时转发，不落库
	UseDatabase bool   `mapstructure:"use_database"`
	NodeID      string `mapstructure:"node_id"`
	// 秒
	PingInterval    int `mapstructure:"ping_interval"`
	PingTimeout     int `mapstructure:"ping_timeout"`
	WriteTimeout    int `mapstructure:"write_timeout"`
	SendBuffer      int `mapstructure:"send_buffer"`
	MaxFrameBytes   int `mapstructure:"max_frame_bytes"`
	HistoryLimit    int `mapstructure:"history_limit"`
	PresenceQueue   int `mapstructure:"presence_queue"`
	MappingCacheTTL int `mapstructure:"mapping_cache_ttl"`
	// MappingCacheSize 身份映射缓存的条目上限
	MappingCacheSize int `mapstructure:"mapping_cache_size"`
	// PresenceTTL 跨节点在线镜像的过期时间，需大于 cron.mirror_refresh 间隔
	PresenceTTL int `mapstructure:"presence_ttl"`
}

type KafkaConfig struct {
	Enable   bool           `mapstructure:"enable"`
	Brokers  []string       `mapstructure:"brokers"`
	// Version 形如 "3.6.0"，为空时使用 sarama 默认版本
	Version  string         `mapstructure:"version"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

// KafkaDoctorConsumer 医生档案 binlog（canal）
type KafkaDoctorConsumer struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
	Table   string `mapstructure:"table"`
}

// CronConfig robfig/cron 表达式（支持秒与 @every）
type CronConfig struct {
	PresenceSweep string `mapstructure:"presence_sweep"`
	MirrorRefresh string `mapstructure:"mirror_refresh"`
}
