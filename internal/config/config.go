// Package config binds a pipeline configuration document (spec §6.1) to
// live component instances, and separately holds the process-level knobs
// (HTTP port, worker count) that don't belong in that document.
package config

import (
	"os"
	"strconv"
	"time"
)

// ProcessConfig holds the env-derived knobs cmd/docweave needs before it
// even knows which pipeline document it's running, adapted from the
// teacher's config.Config almost verbatim in shape.
type ProcessConfig struct {
	Port string

	WorkerCount  int
	MaxQueueSize int

	RunTTL time.Duration

	APIKey string
}

// Load reads ProcessConfig from the environment, matching the teacher's
// envOr/envInt/envDuration convention.
func Load() ProcessConfig {
	cfg := ProcessConfig{
		Port:         envOr("PORT", "8090"),
		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		RunTTL:       envDuration("RUN_TTL", 1*time.Hour),
		APIKey:       os.Getenv("DOCWEAVE_API_KEY"),
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = time.Hour
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
