package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Server struct {
		Port        string   `env:"SERVER_PORT" envDefault:"8080"`
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Database struct {
		// sqlite, postgres or mysql
		Driver   string `env:"DB_DRIVER" envDefault:"sqlite"`
		DSN      string `env:"DB_DSN" envDefault:"database/immo.db"`
		LogLevel string `env:"DB_LOG_LEVEL" envDefault:"warn"`
	}

	Auth struct {
		JWTSecret   string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
		JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"24"`
	}

	Log struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
	}

	Uploads struct {
		Dir              string `env:"UPLOAD_DIR" envDefault:"media"`
		MaxBytes         int64  `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`
		ProfilePhotoSize int    `env:"PROFILE_PHOTO_SIZE" envDefault:"512"`
	}

	LatePayments struct {
		// The current month is only checked from this day on
		GraceDay         int  `env:"LATE_PAYMENT_GRACE_DAY" envDefault:"10"`
		Hour             int  `env:"LATE_PAYMENT_HOUR" envDefault:"6"`
		SchedulerEnabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`
	}

	// Notification batches produced by the late payment scan
	Notifications struct {
		BatchSize  int `env:"NOTIFY_BATCH_SIZE" envDefault:"100"`
		MaxRetries int `env:"NOTIFY_MAX_RETRIES" envDefault:"3"`
		// Delay between retries in seconds
		RetryDelay int `env:"NOTIFY_RETRY_DELAY" envDefault:"1"`
		QueueSize  int `env:"NOTIFY_QUEUE_SIZE" envDefault:"64"`
	}

	Cache struct {
		RedisAddr string `env:"REDIS_ADDR"`
		RedisDB   int    `env:"REDIS_DB" envDefault:"0"`
		// Report cache lifetime in seconds
		TTL int `env:"REPORT_CACHE_TTL" envDefault:"300"`
	}

	Telegram struct {
		Enabled  bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
		BotToken string `env:"TELEGRAM_BOT_TOKEN"`
		APIURL   string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	}

	Geocoding struct {
		Enabled  bool   `env:"GEOCODING_ENABLED" envDefault:"false"`
		URL      string `env:"GEOCODING_URL" envDefault:"https://nominatim.openstreetmap.org/search"`
		CacheDir string `env:"GEOCODING_CACHE_DIR"`
		Country  string `env:"GEOCODING_COUNTRY"`
	}

	CatalogPath string `env:"CATALOG_PATH"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.LatePayments.GraceDay < 1 || c.LatePayments.GraceDay > 28 {
		return fmt.Errorf("LATE_PAYMENT_GRACE_DAY must be between 1 and 28, got %d", c.LatePayments.GraceDay)
	}
	if c.LatePayments.Hour < 0 || c.LatePayments.Hour > 23 {
		return fmt.Errorf("LATE_PAYMENT_HOUR must be between 0 and 23, got %d", c.LatePayments.Hour)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when TELEGRAM_ENABLED is set")
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.JWTTTLHours) * time.Hour
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// Default returns the configuration obtained with an empty environment.
func Default() *Config {
	cfg := &Config{}
	_ = env.Parse(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}
