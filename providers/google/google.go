// Package google provides the Google OAuth provider configuration.
//
// Google follows the standard OAuth 2.0 token shape. Offline access and the
// consent prompt are requested so refresh tokens are actually issued.
package google

import (
	"fmt"

	"github.com/helmgrove/integration-oauth/providers"
)

// providerID is the registry id for this provider.
const providerID = "google"

// Google OAuth endpoints.
const (
	authorizationURL = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL         = "https://oauth2.googleapis.com/token"
)

// Config holds Google OAuth configuration.
type Config struct {
	// ClientID is the Google OAuth client ID.
	ClientID string

	// ClientSecret references the Google OAuth client secret.
	ClientSecret providers.SecretSource

	// Scopes are optional custom scopes (defaults to userinfo email and
	// profile).
	Scopes []string
}

// New builds the provider configuration for Google.
func New(cfg *Config) (*providers.Config, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		}
	}
	scopesCopy := make([]string, len(scopes))
	copy(scopesCopy, scopes)

	return &providers.Config{
		ID:               providerID,
		ClientID:         cfg.ClientID,
		ClientSecret:     cfg.ClientSecret,
		AuthorizationURL: authorizationURL,
		TokenURL:         tokenURL,
		Scopes:           scopesCopy,
		// Without these Google omits the refresh token on repeat consent.
		AdditionalAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	}, nil
}
