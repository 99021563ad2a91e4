package otlpz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearOTLPEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvEndpoint, EnvTracesEndpoint, EnvMetricsEndpoint, EnvHeaders, EnvServiceName, EnvLog} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearOTLPEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4318/v1/traces", cfg.TracesEndpoint)
	assert.Equal(t, "http://localhost:4318/v1/metrics", cfg.MetricsEndpoint)
	assert.Equal(t, "unknown_service", cfg.ServiceName)
	assert.Equal(t, "", cfg.Headers)
	assert.Equal(t, "info", cfg.LogDirectives)
}

func TestLoadConfigBaseEndpoint(t *testing.T) {
	clearOTLPEnv(t)
	t.Setenv(EnvEndpoint, "https://collector.internal:4318/")
	t.Setenv(EnvServiceName, "checkout")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://collector.internal:4318/v1/traces", cfg.TracesEndpoint)
	assert.Equal(t, "https://collector.internal:4318/v1/metrics", cfg.MetricsEndpoint)
	assert.Equal(t, "checkout", cfg.ServiceName)
}

func TestLoadConfigSignalEndpointsWin(t *testing.T) {
	clearOTLPEnv(t)
	t.Setenv(EnvEndpoint, "http://base:4318")
	t.Setenv(EnvTracesEndpoint, "http://traces:4318/custom/traces")
	t.Setenv(EnvMetricsEndpoint, "http://metrics:4318/custom/metrics")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://traces:4318/custom/traces", cfg.TracesEndpoint)
	assert.Equal(t, "http://metrics:4318/custom/metrics", cfg.MetricsEndpoint)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad traces endpoint", EnvTracesEndpoint, "not a url"},
		{"bad metrics endpoint", EnvMetricsEndpoint, "ftp://collector"},
		{"bad headers", EnvHeaders, "missing-equals"},
		{"bad log directives", EnvLog, "app=chatty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOTLPEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestConfigValidateServiceName(t *testing.T) {
	cfg := Config{
		TracesEndpoint:  "http://localhost:4318/v1/traces",
		MetricsEndpoint: "http://localhost:4318/v1/metrics",
	}
	assert.Error(t, cfg.Validate())

	cfg.ServiceName = "svc"
	assert.NoError(t, cfg.Validate())
}

func TestConfigNewTracerAppliesHeaders(t *testing.T) {
	collector := newFakeCollector(t)
	cfg := Config{
		TracesEndpoint:  collector.tracesURL(),
		MetricsEndpoint: collector.metricsURL(),
		ServiceName:     "from-config",
		Headers:         "x-api-key=abc123",
	}

	tracer, err := cfg.NewTracer(WithIDPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Close(context.Background()) })
	assert.Equal(t, "from-config", tracer.ServiceName())

	_, span := tracer.Start(context.Background(), "configured")
	require.NoError(t, span.EndAndWait(waitCtx(t)))

	reqs := collector.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "abc123", reqs[0].Header.Get("X-Api-Key"))
}
