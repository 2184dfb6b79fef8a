package providers

import (
	"fmt"
)

// DefaultScopeParamName is the query parameter used for scopes unless a
// provider overrides it (Slack user tokens use "user_scope").
const DefaultScopeParamName = "scope"

// TokenExtraction selects how token fields are read out of a provider's
// token-endpoint response.
type TokenExtraction int

const (
	// TokenExtractionStandard reads the RFC 6749 top-level fields
	// (access_token, refresh_token, token_type, expires_in, scope).
	TokenExtractionStandard TokenExtraction = iota

	// TokenExtractionNestedUser reads token fields from the "authed_user"
	// sub-object when it carries an access token (Slack user tokens).
	// When the sub-object is absent or incomplete, extraction falls back
	// to the standard top-level fields.
	TokenExtractionNestedUser
)

// AccountExtraction selects how account identity (workspace, team) is read
// out of a provider's token-endpoint response.
type AccountExtraction int

const (
	// AccountExtractionNone produces an empty AccountInfo.
	AccountExtractionNone AccountExtraction = iota

	// AccountExtractionTeam reads the {"team": {"id", "name"}} sub-object
	// (Slack).
	AccountExtractionTeam

	// AccountExtractionWorkspace reads the top-level workspace_id and
	// workspace_name fields (Notion).
	AccountExtractionWorkspace
)

// SecretSource is a reference to a client secret. Resolution is deferred to
// first use by Registry.ResolveSecret so configuring a provider never fails
// merely because its secret is not present yet.
type SecretSource struct {
	// Env names the environment variable holding the secret.
	Env string

	// Value is a literal secret. When set it takes precedence over Env.
	// Intended for tests and for deployments that inject secrets directly.
	Value string
}

// IsZero reports whether the source references no secret at all.
func (s SecretSource) IsZero() bool {
	return s.Env == "" && s.Value == ""
}

// Config describes a single OAuth provider. Configurations are immutable
// after registration; quirks are expressed through the closed extraction and
// auth switches rather than per-provider callbacks.
type Config struct {
	// ID uniquely identifies the provider (e.g. "google", "slack").
	ID string

	// ClientID is the OAuth client id issued by the provider.
	ClientID string

	// ClientSecret references the client secret. It is resolved lazily on
	// first token exchange, never at registration time.
	ClientSecret SecretSource

	// AuthorizationURL is the provider's authorization endpoint.
	AuthorizationURL string

	// TokenURL is the provider's token endpoint.
	TokenURL string

	// Scopes are the scopes requested from the provider, in order. May be
	// empty for providers that grant a fixed scope set.
	Scopes []string

	// UseBasicAuth sends client credentials in an Authorization: Basic
	// header instead of the form body.
	UseBasicAuth bool

	// ScopeParamName overrides the scope query parameter name in
	// authorization URLs. Empty means DefaultScopeParamName.
	ScopeParamName string

	// AdditionalAuthParams are merged into authorization URLs.
	AdditionalAuthParams map[string]string

	// AdditionalTokenParams are merged into token-endpoint request bodies.
	AdditionalTokenParams map[string]string

	// TokenExtraction selects the token response reading strategy.
	TokenExtraction TokenExtraction

	// AccountExtraction selects the account identity reading strategy.
	AccountExtraction AccountExtraction
}

// Validate checks the fields required for a config to be registrable.
// The client secret is deliberately not resolved here.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("provider id is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("provider %s: client id is required", c.ID)
	}
	if c.TokenURL == "" {
		return fmt.Errorf("provider %s: token URL is required", c.ID)
	}
	if c.ClientSecret.IsZero() {
		return fmt.Errorf("provider %s: client secret source is required", c.ID)
	}
	return nil
}

// ScopeParam returns the scope parameter name, defaulting when unset.
func (c *Config) ScopeParam() string {
	if c.ScopeParamName != "" {
		return c.ScopeParamName
	}
	return DefaultScopeParamName
}
