package conf

import (
	"fmt"
	"time"

	"contextrelay/pkg/config"
)

// Config chat-service 配置
type Config struct {
	Server        Server        `mapstructure:"server"`
	Data          Data          `mapstructure:"data"`
	DeepSeek      DeepSeek      `mapstructure:"deepseek"`
	Kafka         Kafka         `mapstructure:"kafka"`
	Compression   Compression   `mapstructure:"compression"`
	Observability Observability `mapstructure:"observability"`
	Pricing       Pricing       `mapstructure:"pricing"`
}

// Server HTTP 服务配置
type Server struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit 按客户端 IP 限流，PerSecond 为 0 时关闭
	RateLimit RateLimit `mapstructure:"rate_limit"`
}

// RateLimit 令牌桶参数
type RateLimit struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// Data 存储配置
type Data struct {
	Database Database `mapstructure:"database"`
	Redis    Redis    `mapstructure:"redis"`
	// SessionTTL 内存存储与 Redis 快照的过期时间
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Database Postgres 配置，Host 与 Source 均为空时使用内存存储
type Database struct {
	Source   string `mapstructure:"source"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// Enabled 是否配置了数据库
func (d Database) Enabled() bool {
	return d.Source != "" || d.Host != ""
}

// Redis 配置，Addr 为空时不启用快照缓存
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DeepSeek 上游模型配置
type DeepSeek struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	// Breaker 熔断器
	Breaker Breaker `mapstructure:"breaker"`
}

// Breaker 熔断配置
type Breaker struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MinRequests      uint32        `mapstructure:"min_requests"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

// Kafka 压缩事件配置，Brokers 为空时不发布事件
type Kafka struct {
	Brokers     []string      `mapstructure:"brokers"`
	Topic       string        `mapstructure:"topic"`
	Compression string        `mapstructure:"compression"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Compression 压缩配置
type Compression struct {
	// LexiconFile 词库覆盖文件（YAML），为空时使用内置词库
	LexiconFile string `mapstructure:"lexicon_file"`
}

// Observability 日志与追踪配置
type Observability struct {
	ServiceName string  `mapstructure:"service_name"`
	Environment string  `mapstructure:"environment"`
	LogLevel    string  `mapstructure:"log_level"`
	LogFormat   string  `mapstructure:"log_format"`
	LogFile     string  `mapstructure:"log_file"`
	TraceEnable bool    `mapstructure:"trace_enable"`
	TraceProto  string  `mapstructure:"trace_protocol"`
	TraceAddr   string  `mapstructure:"trace_endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Pricing 每 token 单价（美元）
type Pricing struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 30 * time.Second,
		},
		Data: Data{
			Database:   Database{Port: 5432, SSLMode: "disable"},
			SessionTTL: 24 * time.Hour,
		},
		DeepSeek: DeepSeek{
			BaseURL:   "https://api.deepseek.com/v1",
			Model:     "deepseek-chat",
			MaxTokens: 2048,
			Breaker: Breaker{
				MaxRequests:      3,
				Interval:         10 * time.Second,
				Timeout:          30 * time.Second,
				MinRequests:      5,
				FailureThreshold: 0.6,
			},
		},
		Kafka: Kafka{
			Topic:       "chat.compression",
			Compression: "snappy",
			MaxRetries:  3,
			Timeout:     10 * time.Second,
		},
		Observability: Observability{
			ServiceName: "chat-service",
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "json",
			TraceProto:  "grpc",
			TraceAddr:   "localhost:4317",
			SampleRate:  1.0,
		},
		Pricing: Pricing{
			InputPerToken:  0.000028,
			OutputPerToken: 0.00042,
		},
	}
}

// Load 从配置管理器解析配置，环境变量优先级最高
func Load(m *config.Manager) (*Config, error) {
	c := Default()
	if m != nil {
		if err := m.Unmarshal(c); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	c.applyEnv()
	return c, nil
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv() {
	if port := config.GetEnv("PORT", ""); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Server.Mode = config.GetEnv("GIN_MODE", c.Server.Mode)
	c.Server.RateLimit.PerSecond = config.GetEnvAsFloat("RATE_LIMIT_PER_SECOND", c.Server.RateLimit.PerSecond)
	c.Server.RateLimit.Burst = config.GetEnvAsInt("RATE_LIMIT_BURST", c.Server.RateLimit.Burst)

	db := &c.Data.Database
	db.Source = config.GetEnv("DATABASE_URL", db.Source)
	db.Host = config.GetEnv("DB_HOST", db.Host)
	db.Port = config.GetEnvAsInt("DB_PORT", db.Port)
	db.User = config.GetEnv("DB_USER", db.User)
	db.Password = config.GetEnv("DB_PASSWORD", db.Password)
	db.Name = config.GetEnv("DB_NAME", db.Name)

	c.Data.Redis.Addr = config.GetEnv("REDIS_ADDR", c.Data.Redis.Addr)
	c.Data.Redis.Password = config.GetEnv("REDIS_PASSWORD", c.Data.Redis.Password)
	c.Data.SessionTTL = config.GetEnvAsDuration("SESSION_TTL", c.Data.SessionTTL)

	c.DeepSeek.APIKey = config.GetEnv("DEEPSEEK_API_KEY", c.DeepSeek.APIKey)
	c.DeepSeek.BaseURL = config.GetEnv("DEEPSEEK_BASE_URL", c.DeepSeek.BaseURL)
	c.DeepSeek.Model = config.GetEnv("DEEPSEEK_MODEL", c.DeepSeek.Model)

	c.Kafka.Brokers = config.GetEnvAsSlice("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = config.GetEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.Compression.LexiconFile = config.GetEnv("LEXICON_FILE", c.Compression.LexiconFile)

	o := &c.Observability
	o.Environment = config.GetEnv("ENVIRONMENT", o.Environment)
	o.LogLevel = config.GetEnv("LOG_LEVEL", o.LogLevel)
	o.LogFormat = config.GetEnv("LOG_FORMAT", o.LogFormat)
	o.LogFile = config.GetEnv("LOG_FILE", o.LogFile)
	o.TraceEnable = config.GetEnvAsBool("TRACE_ENABLE", o.TraceEnable)
	o.TraceAddr = config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", o.TraceAddr)

	c.Pricing.InputPerToken = config.GetEnvAsFloat("PRICE_INPUT_PER_TOKEN", c.Pricing.InputPerToken)
	c.Pricing.OutputPerToken = config.GetEnvAsFloat("PRICE_OUTPUT_PER_TOKEN", c.Pricing.OutputPerToken)
}
