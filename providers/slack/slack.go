// Package slack provides the Slack OAuth provider configuration.
//
// Slack's v2 flow diverges from the standard shape in two ways: user tokens
// are nested under the authed_user sub-object, and account identity comes
// from the team sub-object. Slack also answers errors with HTTP 200 and an
// error field in the body; the exchanger classifies that shape regardless of
// status code.
package slack

import (
	"fmt"

	"github.com/helmgrove/integration-oauth/providers"
)

const providerID = "slack"

// Slack OAuth endpoints.
const (
	authorizationURL = "https://slack.com/oauth/v2/authorize"
	tokenURL         = "https://slack.com/api/oauth.v2.access"
)

// Config holds Slack OAuth configuration.
type Config struct {
	// ClientID is the Slack app client ID.
	ClientID string

	// ClientSecret references the Slack app client secret.
	ClientSecret providers.SecretSource

	// UserScopes are the user-token scopes to request. Slack passes them
	// under user_scope, not scope.
	UserScopes []string
}

// New builds the provider configuration for Slack user tokens.
func New(cfg *Config) (*providers.Config, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	scopes := cfg.UserScopes
	if len(scopes) == 0 {
		scopes = []string{"channels:read", "chat:write"}
	}
	scopesCopy := make([]string, len(scopes))
	copy(scopesCopy, scopes)

	return &providers.Config{
		ID:                providerID,
		ClientID:          cfg.ClientID,
		ClientSecret:      cfg.ClientSecret,
		AuthorizationURL:  authorizationURL,
		TokenURL:          tokenURL,
		Scopes:            scopesCopy,
		ScopeParamName:    "user_scope",
		TokenExtraction:   providers.TokenExtractionNestedUser,
		AccountExtraction: providers.AccountExtractionTeam,
	}, nil
}
