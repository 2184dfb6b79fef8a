package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/helmgrove/integration-oauth/instrumentation"
	"github.com/helmgrove/integration-oauth/providers"
	"github.com/helmgrove/integration-oauth/security"
)

// User-facing messages for failures whose raw details must stay server-side.
const (
	msgConnectionFailed = "Connection hit a wall. Try reconnecting."
	msgNetworkFailed    = "Network error during token exchange. Check your connection and try again?"
)

// maxResponseBytes caps token endpoint response bodies.
const maxResponseBytes = 1 << 20

// standardTokenFields are the response fields that belong to the standard
// OAuth token shape. Everything else lands in TokenSet.ProviderMetadata.
var standardTokenFields = map[string]struct{}{
	"access_token":      {},
	"refresh_token":     {},
	"token_type":        {},
	"expires_in":        {},
	"scope":             {},
	"error":             {},
	"error_description": {},
}

// ExchangeResult is the outcome of a successful code exchange or refresh.
type ExchangeResult struct {
	Tokens  *providers.TokenSet
	Account providers.AccountInfo
}

// Exchanger performs authorization-code and refresh-token exchanges against
// provider token endpoints, applying per-provider request shaping and
// normalizing responses into TokenSets. It performs no retries; the error
// taxonomy tells callers what is retryable.
type Exchanger struct {
	registry   *providers.Registry
	httpClient *http.Client
	timeout    time.Duration
	limiter    *security.RateLimiter
	logger     *slog.Logger
	inst       *instrumentation.Instrumentation
	now        func() time.Time
}

// NewExchanger creates an exchanger over the given registry.
func NewExchanger(registry *providers.Registry, config *Config, logger *slog.Logger) *Exchanger {
	cfg := config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchanger{
		registry:   registry,
		httpClient: cfg.HTTPClient,
		timeout:    cfg.HTTPTimeout,
		limiter:    security.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:     logger,
		inst:       cfg.Instrumentation,
		now:        time.Now,
	}
}

// ExchangeCode exchanges an authorization code for tokens. codeVerifier is
// the PKCE verifier and may be empty for providers that do not use PKCE.
func (e *Exchanger) ExchangeCode(ctx context.Context, providerID, code, redirectURI, codeVerifier string) (*ExchangeResult, error) {
	if code == "" {
		return nil, NewValidationError("authorization code is required")
	}
	if redirectURI == "" {
		return nil, NewValidationError("redirect URI is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	result, err := e.exchange(ctx, providerID, "exchange_code", form)
	if err != nil {
		return nil, err
	}
	if e.inst != nil {
		e.inst.Metrics().RecordCodeExchange(ctx, providerID)
	}
	return result, nil
}

// Refresh exchanges a refresh token for a fresh token set. The returned set
// replaces the stored one wholesale; when the provider rotates the refresh
// token, the new one is included.
func (e *Exchanger) Refresh(ctx context.Context, providerID, refreshToken string) (*ExchangeResult, error) {
	if refreshToken == "" {
		return nil, NewValidationError("refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	result, err := e.exchange(ctx, providerID, "refresh", form)
	if err != nil {
		return nil, err
	}
	if e.inst != nil {
		rotated := result.Tokens.RefreshToken != "" && result.Tokens.RefreshToken != refreshToken
		e.inst.Metrics().RecordTokenRefresh(ctx, providerID, rotated)
	}
	return result, nil
}

// exchange performs a single token endpoint call: shape the request per the
// provider config, classify any failure, normalize the response.
func (e *Exchanger) exchange(ctx context.Context, providerID, operation string, form url.Values) (*ExchangeResult, error) {
	cfg, err := e.registry.Get(providerID)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("unknown provider %q", providerID))
	}

	var span trace.Span
	if e.inst != nil {
		ctx, span = e.inst.Tracer().Start(ctx, "oauth.token_exchange",
			trace.WithAttributes(
				instrumentation.SpanProvider(cfg.ID),
				instrumentation.SpanOperation(operation),
			))
		defer span.End()
	}

	result, err := e.doExchange(ctx, cfg, operation, form)
	if err != nil && span != nil {
		instrumentation.RecordSpanError(span, err)
	}
	return result, err
}

func (e *Exchanger) doExchange(ctx context.Context, cfg *providers.Config, operation string, form url.Values) (*ExchangeResult, error) {
	for k, v := range cfg.AdditionalTokenParams {
		form.Set(k, v)
	}

	secret, err := e.registry.ResolveSecret(cfg.ID)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}
	if !cfg.UseBasicAuth {
		form.Set("client_id", cfg.ClientID)
		form.Set("client_secret", secret)
	}

	if err := e.limiter.Wait(ctx, cfg.ID); err != nil {
		return nil, NewNetworkError(msgNetworkFailed, err)
	}

	ctx, cancel := e.ensureContextTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("provider %s: invalid token URL: %v", cfg.ID, err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if cfg.UseBasicAuth {
		req.SetBasicAuth(cfg.ClientID, secret)
	}

	start := e.now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		if e.inst != nil {
			e.inst.Metrics().RecordProviderCall(ctx, cfg.ID, operation, 0, e.sinceMs(start), err)
		}
		return nil, NewNetworkError(msgNetworkFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewNetworkError(msgNetworkFailed, err)
	}

	var raw map[string]any
	parseErr := json.Unmarshal(body, &raw)

	if e.inst != nil {
		e.inst.Metrics().RecordProviderCall(ctx, cfg.ID, operation, resp.StatusCode, e.sinceMs(start), classificationErr(resp.StatusCode, raw, parseErr))
	}

	// Some providers violate RFC 6749 and answer 200 with an error body;
	// an OAuth-shaped error wins over the status code either way.
	if parseErr == nil {
		if code, ok := raw["error"].(string); ok && code != "" {
			desc, _ := raw["error_description"].(string)
			return nil, NewOAuthError(code, desc)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || parseErr != nil {
		// Raw status and body are logged server-side only, never surfaced.
		e.logger.Debug("token endpoint returned a non-OAuth failure",
			"provider", cfg.ID,
			"operation", operation,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, NewConnectionError(msgConnectionFailed, nil)
	}

	return e.normalize(cfg, raw, operation)
}

// normalize maps a decoded token response onto a TokenSet per the provider's
// extraction strategy.
func (e *Exchanger) normalize(cfg *providers.Config, raw map[string]any, operation string) (*ExchangeResult, error) {
	fields := providers.ExtractTokenFields(cfg.TokenExtraction, raw)

	tokens := &providers.TokenSet{
		AccessToken:  asString(fields["access_token"]),
		RefreshToken: asString(fields["refresh_token"]),
		TokenType:    asString(fields["token_type"]),
	}
	if tokens.AccessToken == "" {
		e.logger.Debug("token endpoint response carried no access token",
			"provider", cfg.ID, "operation", operation)
		return nil, NewConnectionError(msgConnectionFailed, nil)
	}

	// expires_in = 0 is treated as "never expires", matching how existing
	// integrations were stored. A provider that means "already expired"
	// would break its own refresh contract anyway.
	if expiresIn := asInt64(fields["expires_in"]); expiresIn > 0 {
		tokens.ExpiresAt = e.now().Unix() + expiresIn
	}

	scope := asString(fields["scope"])
	if scope == "" {
		scope = asString(raw["scope"])
	}
	tokens.Scope = scope

	if meta := providerMetadata(raw); len(meta) > 0 {
		tokens.ProviderMetadata = meta
	}

	e.warnDroppedScopes(cfg, scope)

	return &ExchangeResult{
		Tokens:  tokens,
		Account: providers.ExtractAccountInfo(cfg.AccountExtraction, raw),
	}, nil
}

// warnDroppedScopes compares granted scopes against the requested ones and
// warns about the difference. An absent scope field means all requested
// scopes were granted (RFC 6749 §5.1) and produces no warning.
func (e *Exchanger) warnDroppedScopes(cfg *providers.Config, scope string) {
	if scope == "" || len(cfg.Scopes) == 0 {
		return
	}

	granted := make(map[string]struct{})
	for _, s := range strings.Fields(scope) {
		granted[s] = struct{}{}
	}

	var missing []string
	for _, want := range cfg.Scopes {
		if _, ok := granted[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		e.logger.Warn("provider granted fewer scopes than requested",
			"provider", cfg.ID,
			"missing_scopes", missing,
		)
	}
}

// ensureContextTimeout ensures the context has a deadline, adding one if
// needed.
func (e *Exchanger) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Exchanger) sinceMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// providerMetadata collects every top-level response field outside the
// standard OAuth set. Returns nil when there are none.
func providerMetadata(raw map[string]any) map[string]any {
	var meta map[string]any
	for k, v := range raw {
		if _, standard := standardTokenFields[k]; standard {
			continue
		}
		if meta == nil {
			meta = make(map[string]any)
		}
		meta[k] = v
	}
	return meta
}

// classificationErr mirrors the exchange failure decision for metrics: it
// returns a non-nil error marker when the response will be classified as a
// failure.
func classificationErr(status int, raw map[string]any, parseErr error) error {
	if parseErr != nil {
		return parseErr
	}
	if code, ok := raw["error"].(string); ok && code != "" {
		return fmt.Errorf("oauth error: %s", code)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("http status %d", status)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt64 reads a JSON number that some providers send as a string.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
