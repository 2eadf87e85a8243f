// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the service's configuration.
type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Session SessionConfig
	FlowDir string
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// RedisConfig describes the session/flow backend. An empty Addr selects the
// in-memory stores (local development only; state dies with the process).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig describes dialog lifecycle tuning.
type SessionConfig struct {
	Timeout       time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080"},
		Session: SessionConfig{
			Timeout:       120 * time.Second,
			SweepInterval: 30 * time.Second,
		},
		FlowDir: os.Getenv("USSDFLOW_FLOW_DIR"),
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if strings.Contains(port, ":") {
			cfg.Server.Addr = port
		} else {
			cfg.Server.Addr = ":" + port
		}
	}

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if db := strings.TrimSpace(os.Getenv("REDIS_DB")); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value %q", db)
		}
		cfg.Redis.DB = n
	}

	var err error
	if cfg.Session.Timeout, err = durationEnv("USSDFLOW_SESSION_TIMEOUT", cfg.Session.Timeout); err != nil {
		return nil, err
	}
	if cfg.Session.SweepInterval, err = durationEnv("USSDFLOW_SWEEP_INTERVAL", cfg.Session.SweepInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, raw)
	}
	return d, nil
}
