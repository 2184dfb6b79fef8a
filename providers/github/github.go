// Package github provides the GitHub OAuth provider configuration.
//
// GitHub OAuth Apps issue non-expiring access tokens: the token response
// carries no expires_in and no refresh token, so stored credentials are
// returned as-is forever and a refresh is never attempted.
package github

import (
	"fmt"

	"github.com/helmgrove/integration-oauth/providers"
)

const providerID = "github"

// GitHub OAuth endpoints.
const (
	authorizationURL = "https://github.com/login/oauth/authorize"
	tokenURL         = "https://github.com/login/oauth/access_token"
)

// Config holds GitHub OAuth configuration.
type Config struct {
	// ClientID is the GitHub OAuth App client ID.
	ClientID string

	// ClientSecret references the GitHub OAuth App client secret.
	ClientSecret providers.SecretSource

	// Scopes are optional custom scopes (defaults to ["read:user",
	// "user:email"]).
	Scopes []string
}

// New builds the provider configuration for GitHub.
func New(cfg *Config) (*providers.Config, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
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
	}, nil
}
