package otlpz

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrConfig    = errors.New("otlpz: invalid configuration")
	ErrTransport = errors.New("otlpz: transport failure")
	ErrProtocol  = errors.New("otlpz: unexpected collector response")
	ErrEncoding  = errors.New("otlpz: encoding failure")
)

// Executor refusals, reported through a span's Completion.
var (
	ErrExecutorClosed    = errors.New("otlpz: executor closed")
	ErrExecutorSaturated = errors.New("otlpz: executor saturated")
)

// ConfigError reports a malformed endpoint or header string. It is returned
// before any network activity takes place.
type ConfigError struct {
	Err   error
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("otlpz: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfig.
func (*ConfigError) Is(target error) bool { return target == ErrConfig }

// TransportError wraps a connect, send or receive failure.
type TransportError struct {
	Err      error
	Signal   string
	Endpoint string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("otlpz: failed to upload %s to %s: %v", e.Signal, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (*TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError is returned when the collector answers with anything but 200.
type ProtocolError struct {
	Signal     string
	Body       string
	StatusCode int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("otlpz: failed to upload %s: %d %s %s",
		e.Signal, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Is reports whether target is ErrProtocol.
func (*ProtocolError) Is(target error) bool { return target == ErrProtocol }

// EncodingError wraps a JSON serialization failure. Well-formed documents
// never produce one.
type EncodingError struct {
	Err    error
	Signal string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("otlpz: failed to encode %s: %v", e.Signal, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEncoding.
func (*EncodingError) Is(target error) bool { return target == ErrEncoding }
