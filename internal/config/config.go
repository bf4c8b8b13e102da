package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Upload    UploadConfig    `mapstructure:"upload"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Task      TaskConfig      `mapstructure:"task"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	NodeID      int64  `mapstructure:"node_id"`
	Port        int    `mapstructure:"port"`
	Mode        string `mapstructure:"mode"`
	LogLevel    string `mapstructure:"log_level"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type JWTConfig struct {
	SecretKey    string        `mapstructure:"secret_key"`
	Expire       time.Duration `mapstructure:"expire"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN 构建 PostgreSQL 连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr 获取 Redis 地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type UploadConfig struct {
	Dir           string `mapstructure:"dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxBytes      int64  `mapstructure:"max_bytes"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	SendBufferSize  int           `mapstructure:"send_buffer_size"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
}

type TaskConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
	MaxRetry    int  `mapstructure:"max_retry"`
}

// Load 从指定路径加载配置，.env 与环境变量优先级更高
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "im-chat")
	v.SetDefault("app.node_id", 1)
	v.SetDefault("app.port", 5001)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("jwt.expire", 7*24*time.Hour)
	v.SetDefault("jwt.cookie_name", "jwt")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.public_base_url", "/uploads")
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.pong_wait", 60*time.Second)
	v.SetDefault("task.concurrency", 5)
	v.SetDefault("task.max_retry", 10)
}

// applyEnv 从环境变量覆盖配置
func (c *Config) applyEnv() {
	// App
	c.App.Port = GetEnvInt("CHAT_PORT", c.App.Port)
	c.App.NodeID = int64(GetEnvInt("CHAT_NODE_ID", int(c.App.NodeID)))
	c.App.LogLevel = GetEnv("LOG_LEVEL", c.App.LogLevel)
	c.App.FrontendURL = GetEnv("FRONTEND_URL", c.App.FrontendURL)

	// JWT
	c.JWT.SecretKey = GetEnv("JWT_SECRET", c.JWT.SecretKey)
	c.JWT.Expire = GetEnvDuration("JWT_EXPIRE", c.JWT.Expire)

	// Database
	c.Database.Host = GetEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = GetEnvInt("POSTGRES_PORT", c.Database.Port)
	c.Database.User = GetEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = GetEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = GetEnv("POSTGRES_DB", c.Database.Name)

	// Redis
	c.Redis.Host = GetEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = GetEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = GetEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = GetEnvInt("REDIS_DB", c.Redis.DB)

	// NATS
	c.NATS.URL = GetEnv("NATS_URL", c.NATS.URL)
	c.NATS.Enabled = GetEnvBool("NATS_ENABLED", c.NATS.Enabled)

	// Upload
	c.Upload.Dir = GetEnv("UPLOAD_DIR", c.Upload.Dir)
	c.Upload.PublicBaseURL = GetEnv("UPLOAD_PUBLIC_BASE_URL", c.Upload.PublicBaseURL)

	// Task
	c.Task.Enabled = GetEnvBool("TASK_ENABLED", c.Task.Enabled)
}

// Validate 校验必填配置
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return errors.New("config: jwt.secret_key is required")
	}
	if c.App.Port <= 0 {
		return fmt.Errorf("config: invalid app.port %d", c.App.Port)
	}
	if c.JWT.Expire <= 0 {
		return fmt.Errorf("config: invalid jwt.expire %s", c.JWT.Expire)
	}
	return nil
}
