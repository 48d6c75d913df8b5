package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Provider ProviderConfig `mapstructure:"provider"`
	Roast    RoastConfig    `mapstructure:"roast"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Ops      OpsConfig      `mapstructure:"ops"`
}

// TelegramConfig contains the bot credential.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// ProviderConfig contains connection options for the chat-completion provider.
// APIKey may be empty at startup; roast jobs then fail with a configuration
// error instead of blocking the whole process.
type ProviderConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RoastConfig tunes the user-facing roast behaviour.
type RoastConfig struct {
	Prompt string `mapstructure:"prompt"`
	// AttachmentThreshold is the result length (in characters) above which the
	// roast is delivered as a roast.txt attachment instead of an inline reply.
	AttachmentThreshold int `mapstructure:"attachment_threshold"`
	// DailyLimit caps accepted submissions per user per day. 0 disables the cap.
	DailyLimit int `mapstructure:"daily_limit"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig contains connection options for Redis (task queue and counters).
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// ClamdConfig points at an optional clamd daemon for scanning uploads.
// An empty address disables scanning.
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// WorkerConfig tunes the task consumer pool.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// OpsConfig contains the health/metrics HTTP server settings.
type OpsConfig struct {
	Port int `mapstructure:"port"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr returns the host:port pair for Redis clients.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DefaultRoastPrompt is used when ROAST_PROMPT is not set.
const DefaultRoastPrompt = "Roast this resume. Be harsh but fair: point out weak wording, " +
	"vague achievements, filler buzzwords and missing specifics, then finish with the three " +
	"most important fixes."

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("provider.model", "gpt-4o-mini")
	v.SetDefault("provider.request_timeout", 60*time.Second)
	v.SetDefault("roast.prompt", DefaultRoastPrompt)
	v.SetDefault("roast.attachment_threshold", 3500)
	v.SetDefault("roast.daily_limit", 0)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "roastbot")
	v.SetDefault("database.user", "roastbot")
	v.SetDefault("database.password", "roastbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resume-originals")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("ops.port", 8080)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"telegram.bot_token":         "TELEGRAM_BOT_TOKEN",
		"provider.api_key":           "OPENROUTER_API_KEY",
		"provider.base_url":          "OPENROUTER_API_BASE",
		"provider.model":             "ROAST_MODEL",
		"provider.request_timeout":   "ROAST_REQUEST_TIMEOUT",
		"roast.prompt":               "ROAST_PROMPT",
		"roast.attachment_threshold": "ROAST_ATTACHMENT_THRESHOLD",
		"roast.daily_limit":          "ROAST_DAILY_LIMIT",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.bucket":               "MINIO_BUCKET",
		"clamd.addr":                 "CLAMD_ADDR",
		"worker.concurrency":         "WORKER_CONCURRENCY",
		"ops.port":                   "OPS_PORT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required")
	}
	if cfg.Provider.BaseURL == "" {
		return errors.New("provider base url is required")
	}
	if cfg.Provider.Model == "" {
		return errors.New("provider model is required")
	}
	if cfg.Provider.RequestTimeout <= 0 {
		return errors.New("provider request timeout must be positive")
	}
	if cfg.Roast.AttachmentThreshold <= 0 {
		return errors.New("roast attachment threshold must be positive")
	}
	if cfg.Roast.DailyLimit < 0 {
		return errors.New("roast daily limit must not be negative")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	if cfg.Ops.Port <= 0 {
		return errors.New("ops port must be positive")
	}
	return nil
}
