package otlpz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Signal names used in errors and logs.
const (
	SignalTraces  = "traces"
	SignalMetrics = "metrics"
)

// maxResponseBody caps how much of a collector reply is kept in errors.
const maxResponseBody = 64 << 10

// Exporter posts OTLP/JSON documents to a collector. Every upload is one
// request on a fresh connection. Safe for concurrent use.
type Exporter struct {
	tracesURL  *url.URL
	metricsURL *url.URL
	headers    http.Header
	client     *http.Client
}

// NewExporter validates both endpoints and returns an exporter. A nil client
// selects one that never reuses connections.
func NewExporter(tracesEndpoint, metricsEndpoint string, headers http.Header, client *http.Client) (*Exporter, error) {
	tracesURL, err := parseEndpoint("traces endpoint", tracesEndpoint)
	if err != nil {
		return nil, err
	}
	metricsURL, err := parseEndpoint("metrics endpoint", metricsEndpoint)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}

	return &Exporter{
		tracesURL:  tracesURL,
		metricsURL: metricsURL,
		headers:    headers.Clone(),
		client:     client,
	}, nil
}

// ParseHeaders parses "k1=v1,k2=v2" into a header set, the format of
// OTEL_EXPORTER_OTLP_HEADERS. Empty items are skipped; the first '=' splits
// key from value.
func ParseHeaders(s string) (http.Header, error) {
	headers := make(http.Header)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &ConfigError{Field: "headers", Value: s, Err: fmt.Errorf("item %q is not key=value", item)}
		}
		if decoded, err := url.PathUnescape(strings.TrimSpace(value)); err == nil {
			value = decoded
		}
		headers.Set(key, strings.TrimSpace(value))
	}
	return headers, nil
}

// TracesEndpoint returns the traces URL.
func (e *Exporter) TracesEndpoint() string { return e.tracesURL.String() }

// MetricsEndpoint returns the metrics URL.
func (e *Exporter) MetricsEndpoint() string { return e.metricsURL.String() }

// UploadTraces sends one traces document.
func (e *Exporter) UploadTraces(ctx context.Context, data TracesData) error {
	return e.post(ctx, SignalTraces, e.tracesURL, data)
}

// UploadMetrics sends one metrics document.
func (e *Exporter) UploadMetrics(ctx context.Context, data MetricsData) error {
	return e.post(ctx, SignalMetrics, e.metricsURL, data)
}

func (e *Exporter) post(ctx context.Context, signal string, u *url.URL, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return &EncodingError{Signal: signal, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return &TransportError{Signal: signal, Endpoint: u.String(), Err: err}
	}
	for key, values := range e.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(body))
	req.Host = u.Host

	resp, err := e.client.Do(req)
	if err != nil {
		return &TransportError{Signal: signal, Endpoint: u.String(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &TransportError{Signal: signal, Endpoint: u.String(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &ProtocolError{Signal: signal, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func parseEndpoint(field, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigError{Field: field, Value: raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigError{Field: field, Value: raw, Err: errors.New("scheme must be http or https")}
	}
	if u.Host == "" {
		return nil, &ConfigError{Field: field, Value: raw, Err: errors.New("missing host")}
	}
	return u, nil
}
