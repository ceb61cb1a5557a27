package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// GeminiAPIKey authenticates against the generative content service.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	// TextModel is the high-quality tier; FallbackTextModel is the
	// fast/cheap tier tried when the first fails.
	TextModel         string `env:"TEXT_MODEL" envDefault:"gemini-2.5-pro"`
	FallbackTextModel string `env:"FALLBACK_TEXT_MODEL" envDefault:"gemini-2.5-flash"`
	ImageModel        string `env:"IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`

	// RedisURL selects the session store; empty means in-memory.
	RedisURL string `env:"REDIS_URL"`

	MaxRetries        int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialRetryDelay time.Duration `env:"INITIAL_RETRY_DELAY" envDefault:"2s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level string to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
