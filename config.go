package otlpz

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by LoadConfig.
const (
	EnvEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvTracesEndpoint  = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	EnvMetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
	EnvHeaders         = "OTEL_EXPORTER_OTLP_HEADERS"
	EnvServiceName     = "OTEL_SERVICE_NAME"
	EnvLog             = "OTLPZ_LOG"
)

// DefaultEndpoint is the collector base URL used when none is configured.
const DefaultEndpoint = "http://localhost:4318"

// Config holds tracer settings read from the environment.
type Config struct {
	TracesEndpoint  string
	MetricsEndpoint string
	ServiceName     string
	Headers         string // k1=v1,k2=v2
	LogDirectives   string // module=level,...,level
}

// LoadConfig reads configuration from environment variables with sensible
// defaults. Signal-specific endpoints win over the base endpoint, which gets
// /v1/traces and /v1/metrics appended.
func LoadConfig() (Config, error) {
	base := strings.TrimRight(envStr(EnvEndpoint, DefaultEndpoint), "/")
	cfg := Config{
		TracesEndpoint:  envStr(EnvTracesEndpoint, base+"/v1/traces"),
		MetricsEndpoint: envStr(EnvMetricsEndpoint, base+"/v1/metrics"),
		ServiceName:     envStr(EnvServiceName, "unknown_service"),
		Headers:         envStr(EnvHeaders, ""),
		LogDirectives:   envStr(EnvLog, "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks endpoints, headers and log directives without touching the
// network.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("config: %s must not be empty", EnvServiceName)
	}
	if _, err := parseEndpoint("traces endpoint", c.TracesEndpoint); err != nil {
		return err
	}
	if _, err := parseEndpoint("metrics endpoint", c.MetricsEndpoint); err != nil {
		return err
	}
	if _, err := ParseHeaders(c.Headers); err != nil {
		return err
	}
	if _, err := ParseLevelDirectives(c.LogDirectives); err != nil {
		return err
	}
	return nil
}

// NewTracer builds a tracer from the configuration. opts are applied after
// the configured headers.
func (c Config) NewTracer(opts ...Option) (*Tracer, error) {
	opts = append([]Option{WithHeaders(c.Headers)}, opts...)
	return NewTracer(c.TracesEndpoint, c.MetricsEndpoint, c.ServiceName, opts...)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
