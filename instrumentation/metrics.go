package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments for the token lifecycle engine.
type Metrics struct {
	// Exchange flow
	CodeExchanged  metric.Int64Counter
	TokenRefreshed metric.Int64Counter

	// Outbound provider calls
	ProviderCallsTotal   metric.Int64Counter
	ProviderCallDuration metric.Float64Histogram
	ProviderCallErrors   metric.Int64Counter

	// Credential storage
	StorageOperationTotal metric.Int64Counter

	// Encryption
	EncryptionOperationsTotal metric.Int64Counter
}

// newMetrics creates and registers all metric instruments.
func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error
	m.CodeExchanged, err = meter.Int64Counter(
		"oauth.code.exchanged",
		metric.WithDescription("Number of authorization codes exchanged for tokens"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.exchanged counter: %w", err)
	}

	m.TokenRefreshed, err = meter.Int64Counter(
		"oauth.token.refreshed",
		metric.WithDescription("Number of access tokens refreshed"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshed counter: %w", err)
	}

	m.ProviderCallsTotal, err = meter.Int64Counter(
		"oauth.provider.calls.total",
		metric.WithDescription("Total number of token endpoint calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.calls.total counter: %w", err)
	}

	m.ProviderCallDuration, err = meter.Float64Histogram(
		"oauth.provider.call.duration",
		metric.WithDescription("Token endpoint call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.call.duration histogram: %w", err)
	}

	m.ProviderCallErrors, err = meter.Int64Counter(
		"oauth.provider.call.errors",
		metric.WithDescription("Total number of failed token endpoint calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.call.errors counter: %w", err)
	}

	m.StorageOperationTotal, err = meter.Int64Counter(
		"oauth.storage.operation.total",
		metric.WithDescription("Total number of integration store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	m.EncryptionOperationsTotal, err = meter.Int64Counter(
		"oauth.encryption.operations.total",
		metric.WithDescription("Total number of credential encryption/decryption operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption.operations.total counter: %w", err)
	}

	return m, nil
}

// RecordCodeExchange records a completed authorization-code exchange.
func (m *Metrics) RecordCodeExchange(ctx context.Context, provider string) {
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
	))
}

// RecordTokenRefresh records a completed refresh. rotated reports whether the
// provider issued a new refresh token.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, provider string, rotated bool) {
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("rotated", rotated),
	))
}

// RecordProviderCall records an outbound token endpoint call.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, operation string, statusCode int, durationMs float64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.Int("status", statusCode),
	}

	m.ProviderCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ProviderCallDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
	))

	if err != nil {
		errorType := "network"
		if statusCode >= 400 && statusCode < 500 {
			errorType = "client_error"
		} else if statusCode >= 500 {
			errorType = "server_error"
		}
		m.ProviderCallErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("operation", operation),
			attribute.String("error_type", errorType),
		))
	}
}

// RecordStorageOperation records an integration store operation.
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

// RecordEncryptionOperation records a credential encryption or decryption.
func (m *Metrics) RecordEncryptionOperation(ctx context.Context, operation string) {
	m.EncryptionOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}
