// Package config centralises configuration parsing for the activity sync binaries.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures runtime configuration for the sync client.
type Config struct {
	APIURL          string        `env:"ACTIVITYSYNC_API_URL" envDefault:"http://localhost:8080"`
	Token           string        `env:"ACTIVITYSYNC_TOKEN"`
	PageSize        int           `env:"ACTIVITYSYNC_PAGE_SIZE" envDefault:"2"`
	HTTPTimeout     time.Duration `env:"ACTIVITYSYNC_HTTP_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"ACTIVITYSYNC_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"ACTIVITYSYNC_LOG_FORMAT" envDefault:"text"`
	KafkaBrokers    []string      `env:"ACTIVITYSYNC_KAFKA_BROKERS" envSeparator:","`
	ChangefeedTopic string        `env:"ACTIVITYSYNC_CHANGEFEED_TOPIC" envDefault:"activity_cache_changes"`
	MetricsAddress  string        `env:"ACTIVITYSYNC_METRICS_ADDRESS"`
}

// DevAPIConfig captures runtime configuration for the development API server.
type DevAPIConfig struct {
	HTTPAddress string `env:"DEVAPI_HTTP_ADDRESS" envDefault:":8080"`
	JWTSecret   string `env:"DEVAPI_JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer   string `env:"DEVAPI_JWT_ISSUER" envDefault:"activitysync.devapi"`
	CORSOrigin  string `env:"DEVAPI_CORS_ORIGIN" envDefault:"http://localhost:3000"`
	Seed        bool   `env:"DEVAPI_SEED" envDefault:"true"`
	LogLevel    string `env:"DEVAPI_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"DEVAPI_LOG_FORMAT" envDefault:"text"`
}

// Load reads the sync client configuration, applying defaults for local dev.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = trimEmpty(cfg.KafkaBrokers)
	if cfg.PageSize <= 0 {
		return Config{}, fmt.Errorf("ACTIVITYSYNC_PAGE_SIZE must be positive, got %d", cfg.PageSize)
	}
	return cfg, nil
}

// LoadDevAPI reads the development server configuration.
func LoadDevAPI() (DevAPIConfig, error) {
	var cfg DevAPIConfig
	if err := env.Parse(&cfg); err != nil {
		return DevAPIConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ChangefeedEnabled reports whether Kafka brokers were configured.
func (c Config) ChangefeedEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func trimEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
