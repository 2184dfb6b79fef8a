package oauth

import (
	"net/http"
	"time"

	"github.com/helmgrove/integration-oauth/instrumentation"
)

const (
	// defaultHTTPTimeout bounds every outbound token endpoint call.
	defaultHTTPTimeout = 30 * time.Second

	// defaultRequestsPerSecond and defaultBurst shape the per-provider
	// outbound rate limit.
	defaultRequestsPerSecond = 5
	defaultBurst             = 10
)

// Config holds engine configuration. The zero value is usable; defaults are
// applied in New.
type Config struct {
	// HTTPTimeout bounds outbound token endpoint calls when the caller's
	// context carries no deadline. Default: 30s.
	HTTPTimeout time.Duration

	// HTTPClient is an optional custom HTTP client for token endpoint
	// calls. Its own timeout, if set, applies in addition to HTTPTimeout.
	HTTPClient *http.Client

	// RequestsPerSecond and Burst shape the per-provider rate limit on
	// outbound token endpoint calls. Defaults: 5 rps, burst 10.
	RequestsPerSecond float64
	Burst             int

	// Instrumentation is optional OpenTelemetry instrumentation. Nil
	// disables metrics and tracing.
	Instrumentation *instrumentation.Instrumentation
}

// withDefaults returns a copy of the config with defaults applied.
func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = defaultHTTPTimeout
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{}
	}
	if out.RequestsPerSecond <= 0 {
		out.RequestsPerSecond = defaultRequestsPerSecond
	}
	if out.Burst <= 0 {
		out.Burst = defaultBurst
	}
	return &out
}
