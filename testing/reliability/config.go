// Package reliability stresses otlpz against slow, failing and saturated
// collectors. Tests only run when OTLPZ_RELIABILITY_LEVEL is set.
package reliability

import (
	"os"
	"strconv"
	"time"
)

// Config holds settings for reliability runs.
type Config struct {
	Level         string        // "basic" or "stress"
	Duration      time.Duration // how long sustained tests run
	MaxGoroutines int           // concurrency for load tests
	ExecutorLimit int           // cap passed to otlpz.NewExecutor
}

// getConfig reads configuration from environment variables.
func getConfig() Config {
	return Config{
		Level:         os.Getenv("OTLPZ_RELIABILITY_LEVEL"),
		Duration:      parseDuration(os.Getenv("OTLPZ_RELIABILITY_DURATION"), 5*time.Second),
		MaxGoroutines: parseInt(os.Getenv("OTLPZ_RELIABILITY_MAX_GOROUTINES"), 100),
		ExecutorLimit: parseInt(os.Getenv("OTLPZ_RELIABILITY_EXECUTOR_LIMIT"), 8),
	}
}

func parseInt(s string, fallback int) int {
	if value, err := strconv.Atoi(s); err == nil {
		return value
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}
