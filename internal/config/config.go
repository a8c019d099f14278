// Package config loads the router's process configuration from the
// environment. There is no config file: every setting here is a
// deployment-time knob (connection parameters, log verbosity), never a
// per-tenant business rule — those live in the store (queues, agents).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds connection parameters for the media-server control
// interface and the shared store, plus process-wide logging verbosity.
type Config struct {
	ARIHost     string
	ARIPort     int
	ARIUsername string
	ARIPassword string
	ARIAppName  string

	RedisHost     string
	RedisPort     int
	RedisPassword string

	LogLevel string
}

// Load reads Config from the environment, applying the documented
// defaults (ARI_APP_NAME=dialer) and failing on malformed numeric fields.
func Load() (*Config, error) {
	cfg := &Config{
		ARIHost:     os.Getenv("ARI_HOST"),
		ARIUsername: os.Getenv("ARI_USERNAME"),
		ARIPassword: os.Getenv("ARI_PASSWORD"),
		ARIAppName:  envOrDefault("ARI_APP_NAME", "dialer"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		LogLevel: envOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ARIPort, err = envIntOrDefault("ARI_PORT", 8088); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.RedisPort, err = envIntOrDefault("REDIS_PORT", 6379); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

// RedisAddr formats the host:port pair go-redis expects.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ARIAddr formats the host:port pair the ARI websocket client dials.
func (c *Config) ARIAddr() string {
	return fmt.Sprintf("%s:%d", c.ARIHost, c.ARIPort)
}
