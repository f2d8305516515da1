package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// Websocket connection limits.
	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"1000"`
	ConnectsPerSecond       float64 `env:"WS_CONNECTS_PER_SECOND" default:"10"`
	ConnectsBurst           int     `env:"WS_CONNECTS_BURST" default:"10"`

	// Directory served for non-API paths; empty disables static serving.
	StaticDir string `env:"STATIC_DIR"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.MaxWebSocketConnections <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be positive, got %d", cfg.MaxWebSocketConnections)
	}
	if cfg.ConnectsPerSecond <= 0 {
		return fmt.Errorf("WS_CONNECTS_PER_SECOND must be positive, got %v", cfg.ConnectsPerSecond)
	}
	if cfg.ConnectsBurst <= 0 {
		return fmt.Errorf("WS_CONNECTS_BURST must be positive, got %d", cfg.ConnectsBurst)
	}
	return nil
}
