// Package notion provides the Notion OAuth provider configuration.
//
// Notion's token endpoint requires client credentials in an Authorization:
// Basic header rather than the form body, and reports account identity as
// top-level workspace_id/workspace_name fields. Notion tokens do not expire
// and no refresh token is issued.
package notion

import (
	"fmt"

	"github.com/helmgrove/integration-oauth/providers"
)

const providerID = "notion"

// Notion OAuth endpoints.
const (
	authorizationURL = "https://api.notion.com/v1/oauth/authorize"
	tokenURL         = "https://api.notion.com/v1/oauth/token"
)

// Config holds Notion OAuth configuration.
type Config struct {
	// ClientID is the Notion public integration client ID.
	ClientID string

	// ClientSecret references the Notion integration secret.
	ClientSecret providers.SecretSource
}

// New builds the provider configuration for Notion.
func New(cfg *Config) (*providers.Config, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	return &providers.Config{
		ID:               providerID,
		ClientID:         cfg.ClientID,
		ClientSecret:     cfg.ClientSecret,
		AuthorizationURL: authorizationURL,
		TokenURL:         tokenURL,
		// Notion grants a fixed capability set; no scopes are requested.
		UseBasicAuth:      true,
		AccountExtraction: providers.AccountExtractionWorkspace,
		AdditionalAuthParams: map[string]string{
			"owner": "user",
		},
	}, nil
}
