// Package config loads papertrade settings from the environment and an
// optional app.env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	NatsURL           string        `mapstructure:"NATS_URL"`
	PriceTickInterval time.Duration `mapstructure:"PRICE_TICK_INTERVAL"`
	InitialCapitalRaw string        `mapstructure:"INITIAL_CAPITAL"`
	PlayerHeader      string        `mapstructure:"PLAYER_HEADER"`
	LockTTL           time.Duration `mapstructure:"LOCK_TTL"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	SeedStocks        bool          `mapstructure:"SEED_STOCKS"`

	// InitialCapital is InitialCapitalRaw parsed by Load.
	InitialCapital decimal.Decimal `mapstructure:"-"`
}

// Load reads app.env from dir when present, then the environment, which
// wins. An empty dir means the working directory.
func Load(dir string) (Config, error) {
	v := viper.New()
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("PRICE_TICK_INTERVAL", "5s")
	v.SetDefault("INITIAL_CAPITAL", "100000")
	v.SetDefault("PLAYER_HEADER", "X-Player-ID")
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEED_STOCKS", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; everything can come from the environment.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PriceTickInterval <= 0 {
		return fmt.Errorf("PRICE_TICK_INTERVAL must be positive, got %s", c.PriceTickInterval)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	capital, err := decimal.NewFromString(strings.TrimSpace(c.InitialCapitalRaw))
	if err != nil {
		return fmt.Errorf("INITIAL_CAPITAL: %w", err)
	}
	if !capital.IsPositive() {
		return fmt.Errorf("INITIAL_CAPITAL must be positive, got %s", capital)
	}
	c.InitialCapital = capital
	if c.Port == "" {
		return errors.New("PORT must be set")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
