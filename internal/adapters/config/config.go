package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"finsight/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	AI            AIConfig
	Quota         QuotaConfig
	Redis         RedisConfig
	FiMCP         FiMCPConfig
	Scheduler     SchedulerConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"finsight"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"8081"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AIConfig struct {
	GeminiKey       string        `envconfig:"GEMINI_API_KEY"`
	Model           string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	Temperature     float32       `envconfig:"AI_TEMPERATURE" default:"0.3"`
	TopP            float32       `envconfig:"AI_TOP_P" default:"0.8"`
	MaxOutputTokens int32         `envconfig:"AI_MAX_OUTPUT_TOKENS" default:"2048"`
	RequestTimeout  time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"60s"`

	// Per-minute smoothing on top of the hour/day quota windows.
	ReqPerMinute float64 `envconfig:"AI_REQ_PER_MINUTE" default:"60"`
	Burst        int     `envconfig:"AI_BURST" default:"10"`
}

type QuotaConfig struct {
	MaxDailyRequests  int    `envconfig:"MAX_DAILY_AI_REQUESTS" default:"30"`
	MaxHourlyRequests int    `envconfig:"MAX_HOURLY_AI_REQUESTS" default:"5"`
	StorePath         string `envconfig:"QUOTA_STORE_PATH" default:"ai_quota_usage.json"`
	UseRedis          bool   `envconfig:"QUOTA_USE_REDIS" default:"false"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type FiMCPConfig struct {
	BaseURL         string        `envconfig:"FI_MCP_URL" default:"http://localhost:8080"`
	Timeout         time.Duration `envconfig:"FI_MCP_TIMEOUT" default:"10s"`
	DefaultIdentity string        `envconfig:"FI_MCP_DEFAULT_IDENTITY" default:"2222222222"`
}

type SchedulerConfig struct {
	Enabled          bool          `envconfig:"SCHEDULER_ENABLED" default:"false"`
	AnalysisInterval time.Duration `envconfig:"SCHEDULER_ANALYSIS_INTERVAL" default:"6h"`
	OnDemandOnly     bool          `envconfig:"AI_INSIGHTS_ON_DEMAND_ONLY" default:"true"`
	Identities       []string      `envconfig:"SCHEDULER_IDENTITIES"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from the environment, with .env as a fallback for
// local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Quota.MaxDailyRequests < 0 || c.Quota.MaxHourlyRequests < 0 {
		return errors.Wrap(errors.ErrInvalidInput, "quota limits must be non-negative")
	}
	if c.Quota.UseRedis && c.Redis.Host == "" {
		return errors.Wrap(errors.ErrInvalidInput, "QUOTA_USE_REDIS requires REDIS_HOST")
	}
	return nil
}
