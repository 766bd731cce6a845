// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"MINDFULBOT_SERVER_HOST"`
	Port            int           `yaml:"port" env:"MINDFULBOT_SERVER_PORT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"MINDFULBOT_SERVER_REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"MINDFULBOT_SERVER_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"MINDFULBOT_SERVER_ALLOWED_ORIGINS"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type LogConfig struct {
	Level    string `yaml:"level" env:"MINDFULBOT_LOG_LEVEL"`       // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"MINDFULBOT_LOG_FORMAT"`     // json|console
	Sampling bool   `yaml:"sampling" env:"MINDFULBOT_LOG_SAMPLING"` // enable sampling in prod
}

type ChatConfig struct {
	ReplyDelayMin time.Duration `yaml:"reply_delay_min" env:"MINDFULBOT_CHAT_REPLY_DELAY_MIN"`
	ReplyDelayMax time.Duration `yaml:"reply_delay_max" env:"MINDFULBOT_CHAT_REPLY_DELAY_MAX"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"MINDFULBOT_CHAT_SESSION_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"MINDFULBOT_CHAT_SWEEP_INTERVAL"`
	RateLimit     int           `yaml:"rate_limit" env:"MINDFULBOT_CHAT_RATE_LIMIT"` // submissions per window
	RateWindow    time.Duration `yaml:"rate_window" env:"MINDFULBOT_CHAT_RATE_WINDOW"`
	Locale        string        `yaml:"locale" env:"MINDFULBOT_CHAT_LOCALE"`
	// ResponsesFile optionally replaces the built-in response table.
	ResponsesFile string `yaml:"responses_file" env:"MINDFULBOT_CHAT_RESPONSES_FILE"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"MINDFULBOT_AUTH_SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"MINDFULBOT_AUTH_TOKEN_TTL"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled" env:"MINDFULBOT_REDIS_ENABLED"`
	Addr      string `yaml:"addr" env:"MINDFULBOT_REDIS_ADDR"`
	Password  string `yaml:"password" env:"MINDFULBOT_REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"MINDFULBOT_REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" env:"MINDFULBOT_REDIS_KEY_PREFIX"`
	// EncryptionKey seals stored conversations when set.
	EncryptionKey string `yaml:"encryption_key" env:"MINDFULBOT_REDIS_ENCRYPTION_KEY"`
	// LockTTL bounds how long one replica holds a conversation lock.
	LockTTL  time.Duration `yaml:"lock_ttl" env:"MINDFULBOT_REDIS_LOCK_TTL"`
	LockWait time.Duration `yaml:"lock_wait" env:"MINDFULBOT_REDIS_LOCK_WAIT"`
}

type BotConfig struct {
	Token   string `yaml:"token" env:"MINDFULBOT_BOT_TOKEN"`
	Workers int    `yaml:"workers" env:"MINDFULBOT_BOT_WORKERS"` // polling workers
	Debug   bool   `yaml:"debug" env:"MINDFULBOT_BOT_DEBUG"`
}

func (b BotConfig) Enabled() bool { return b.Token != "" }

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"MINDFULBOT_METRICS_ENABLED"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Chat    ChatConfig    `yaml:"chat"`
	Auth    AuthConfig    `yaml:"auth"`
	Redis   RedisConfig   `yaml:"redis"`
	Bot     BotConfig     `yaml:"bot"`
	Metrics MetricsConfig `yaml:"metrics"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Default returns a config that runs locally with no external services.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Chat: ChatConfig{
			ReplyDelayMin: time.Second,
			ReplyDelayMax: 3 * time.Second,
			SessionTTL:    time.Hour,
			SweepInterval: 5 * time.Minute,
			RateLimit:     30,
			RateWindow:    time.Minute,
			Locale:        "en",
		},
		Auth:    AuthConfig{TokenTTL: 24 * time.Hour},
		Redis:   RedisConfig{Addr: "127.0.0.1:6379", KeyPrefix: "mindfulbot:", LockTTL: 5 * time.Second, LockWait: 2 * time.Second},
		Bot:     BotConfig{Workers: 4},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadConfig reads the YAML file at path (a missing file is not an error),
// applies MINDFULBOT_* environment overrides, fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = d.Server.RequestTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	c.Chat.SessionTTL = normalizeTTL(c.Chat.SessionTTL)
	if c.Chat.SweepInterval <= 0 {
		c.Chat.SweepInterval = d.Chat.SweepInterval
	}
	if c.Chat.RateWindow <= 0 {
		c.Chat.RateWindow = d.Chat.RateWindow
	}
	if c.Chat.Locale == "" {
		c.Chat.Locale = d.Chat.Locale
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = d.Auth.TokenTTL
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = d.Redis.KeyPrefix
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = d.Redis.LockTTL
	}
	if c.Redis.LockWait <= 0 {
		c.Redis.LockWait = d.Redis.LockWait
	}
	if c.Bot.Workers <= 0 {
		c.Bot.Workers = d.Bot.Workers
	}
}

// Validate checks invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Chat.ReplyDelayMin <= 0 {
		return errors.New("chat.reply_delay_min must be positive")
	}
	if c.Chat.ReplyDelayMin >= c.Chat.ReplyDelayMax {
		return fmt.Errorf("chat.reply_delay_min (%s) must be below chat.reply_delay_max (%s)", c.Chat.ReplyDelayMin, c.Chat.ReplyDelayMax)
	}
	if c.Chat.RateLimit < 0 {
		return errors.New("chat.rate_limit must not be negative")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
