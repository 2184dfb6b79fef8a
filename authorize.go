package oauth

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// AuthorizationRequest is a prepared authorization redirect. The caller sends
// the user to URL and holds on to CodeVerifier until the provider calls back
// with the authorization code.
type AuthorizationRequest struct {
	// URL is the provider authorization URL the user is redirected to.
	URL string

	// CodeVerifier is the PKCE verifier matching the code_challenge
	// embedded in URL. It must be supplied to ExchangeCode.
	CodeVerifier string
}

// AuthorizationURL builds the authorization redirect for a provider,
// including scopes (under the provider's scope parameter name), any
// additional authorization parameters, the CSRF state, and an S256 PKCE
// challenge. It performs no redirect itself.
func (s *Service) AuthorizationURL(providerID, redirectURI, state string) (*AuthorizationRequest, error) {
	cfg, err := s.registry.Get(providerID)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("unknown provider %q", providerID))
	}
	if cfg.AuthorizationURL == "" {
		return nil, NewValidationError(fmt.Sprintf("provider %s has no authorization URL configured", providerID))
	}
	if state == "" {
		return nil, NewValidationError("state parameter is required for CSRF protection")
	}

	base, err := url.Parse(cfg.AuthorizationURL)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("provider %s: invalid authorization URL: %v", providerID, err))
	}

	verifier := oauth2.GenerateVerifier()

	q := base.Query()
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	q.Set("code_challenge_method", "S256")
	if len(cfg.Scopes) > 0 {
		q.Set(cfg.ScopeParam(), strings.Join(cfg.Scopes, " "))
	}
	for k, v := range cfg.AdditionalAuthParams {
		q.Set(k, v)
	}
	base.RawQuery = q.Encode()

	return &AuthorizationRequest{
		URL:          base.String(),
		CodeVerifier: verifier,
	}, nil
}
