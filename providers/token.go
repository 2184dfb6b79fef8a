package providers

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenSet is the normalized result of a token exchange. It is persisted
// encrypted as a whole and replaced wholesale on refresh, never field-patched.
type TokenSet struct {
	// AccessToken is the bearer token. Always present in a valid TokenSet.
	AccessToken string `json:"access_token"`

	// RefreshToken is empty for providers that do not issue one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is the token type as reported by the provider ("Bearer"
	// for every provider currently supported).
	TokenType string `json:"token_type,omitempty"`

	// ExpiresAt is the absolute expiry in unix seconds. Zero means the
	// token never expires and no refresh is ever attempted for it.
	// Providers answering expires_in=0 are normalized to zero as well;
	// existing stored credentials rely on that reading.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// Scope is the granted scope string exactly as received
	// (space-delimited).
	Scope string `json:"scope,omitempty"`

	// ProviderMetadata holds every response field outside the standard
	// OAuth set. Nil, not empty, when the provider returned none.
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}

// ExpiresWithin reports whether the token expires within the given window of
// now. Tokens without an expiry never report true.
func (t *TokenSet) ExpiresWithin(window time.Duration, now time.Time) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return t.ExpiresAt-now.Unix() <= int64(window/time.Second)
}

// OAuth2Token converts the TokenSet into a golang.org/x/oauth2 token for
// callers that feed it into oauth2-aware HTTP clients.
func (t *TokenSet) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiresAt != 0 {
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	}
	return tok
}

// AccountInfo identifies the provider-side account an integration is bound
// to, e.g. a Slack team or a Notion workspace.
type AccountInfo struct {
	// ID is the provider-specific unique account identifier.
	ID string

	// DisplayName is the human-readable account name, when the provider
	// reports one.
	DisplayName string
}
