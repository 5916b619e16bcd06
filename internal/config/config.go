package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	Cookie    CookieConfig    `mapstructure:"cookie"`
	Copyright CopyrightConfig `mapstructure:"copyright"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Issuer    IssuerConfig    `mapstructure:"issuer"`
	Authoring AuthoringConfig `mapstructure:"authoring"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig max_requests 按 IP，authoring_max_requests 按登录用户；<= 0 不限流
type RateLimitConfig struct {
	MaxRequests          int `mapstructure:"max_requests"`
	AuthoringMaxRequests int `mapstructure:"authoring_max_requests"`
	WindowMinutes        int `mapstructure:"window_minutes"`
}

func (r RateLimitConfig) Window() time.Duration {
	if r.WindowMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowMinutes) * time.Minute
}

type ServerConfig struct {
	Port    string
	Mode    string
	LogFile string `mapstructure:"log_file"`
}

// BackendConfig 无头 CMS 连接配置，type: http | memory | local
type BackendConfig struct {
	Type     string `mapstructure:"type"`
	BaseURL  string `mapstructure:"base_url"`
	APIToken string `mapstructure:"api_token"`
	PageSize int    `mapstructure:"page_size"`
	// ForwardUserToken 为 true 时用登录用户的 token 访问 CMS，否则使用 APIToken
	ForwardUserToken bool `mapstructure:"forward_user_token"`
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CookieConfig 登录凭证 cookie
type CookieConfig struct {
	TokenName        string `mapstructure:"token_name"`
	TTLDays          int    `mapstructure:"ttl_days"`
	PendingEmailName string `mapstructure:"pending_email_name"`
}

type CopyrightConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout_seconds"`
}

// MetadataConfig 链接元数据抓取，cache: memory | redis
type MetadataConfig struct {
	Cache        string        `mapstructure:"cache"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout_seconds"`
	ProbeMedia   bool          `mapstructure:"probe_media"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl_hours"`
}

type MessagingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Queue   string `mapstructure:"queue"`
}

type IssuerConfig struct {
	Name       string `mapstructure:"name"`
	SealPrefix string `mapstructure:"seal_prefix"`
}

// AuthoringConfig 编辑会话存储，store: memory | redis
type AuthoringConfig struct {
	Store      string        `mapstructure:"store"`
	SessionTTL time.Duration `mapstructure:"session_ttl_hours"`
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.log_file", "logs/app.log")
	viper.SetDefault("backend.type", "http")
	viper.SetDefault("backend.page_size", 100)
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")
	viper.SetDefault("cookie.token_name", "cs_token")
	viper.SetDefault("cookie.ttl_days", 7)
	viper.SetDefault("cookie.pending_email_name", "cs_pending_email")
	viper.SetDefault("copyright.timeout_seconds", 30)
	viper.SetDefault("metadata.cache", "memory")
	viper.SetDefault("metadata.fetch_timeout_seconds", 8)
	viper.SetDefault("metadata.cache_ttl_hours", 24)
	viper.SetDefault("messaging.queue", "certificate.issued")
	viper.SetDefault("issuer.name", "Course Studio")
	viper.SetDefault("issuer.seal_prefix", "CS")
	viper.SetDefault("authoring.store", "memory")
	viper.SetDefault("authoring.session_ttl_hours", 12)
	viper.SetDefault("rate_limit.max_requests", 6000)
	viper.SetDefault("rate_limit.authoring_max_requests", 600)
	viper.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("COURSE_STUDIO")
	viper.AutomaticEnv()
	setDefaults()

	// Backend
	viper.BindEnv("backend.type", "BACKEND_TYPE")
	viper.BindEnv("backend.base_url", "CMS_BASE_URL")
	viper.BindEnv("backend.api_token", "CMS_API_TOKEN")

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Copyright
	viper.BindEnv("copyright.endpoint", "COPYRIGHT_ENDPOINT")
	viper.BindEnv("copyright.api_key", "COPYRIGHT_API_KEY")

	// Messaging
	viper.BindEnv("messaging.url", "RABBITMQ_URL")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Copyright.Timeout = cfg.Copyright.Timeout * time.Second
	cfg.Metadata.FetchTimeout = cfg.Metadata.FetchTimeout * time.Second
	cfg.Metadata.CacheTTL = cfg.Metadata.CacheTTL * time.Hour
	cfg.Authoring.SessionTTL = cfg.Authoring.SessionTTL * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend.Type {
	case "http":
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required when backend.type is http")
		}
	case "memory", "local":
	default:
		return fmt.Errorf("unknown backend.type %q", c.Backend.Type)
	}

	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	if c.Cookie.TTLDays <= 0 {
		c.Cookie.TTLDays = 7
	}
	return nil
}
