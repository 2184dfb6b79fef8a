package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/helmgrove/integration-oauth/internal/testutil"
	"github.com/helmgrove/integration-oauth/providers"
	"github.com/helmgrove/integration-oauth/security"
	"github.com/helmgrove/integration-oauth/storage/memory"
)

func newTestService(t *testing.T, cfg *providers.Config) *Service {
	t.Helper()

	registry, err := providers.NewRegistry(cfg)
	testutil.AssertNoError(t, err)

	key, err := security.GenerateKey()
	testutil.AssertNoError(t, err)
	encryptor, err := security.NewEncryptor(key)
	testutil.AssertNoError(t, err)

	logger, _ := testutil.NewLogger()
	svc, err := New(registry, memory.New(), encryptor, nil, logger)
	testutil.AssertNoError(t, err)
	return svc
}

func TestAuthorizationURL(t *testing.T) {
	cfg := testProviderConfig("https://acme.example.com/token")
	cfg.AdditionalAuthParams = map[string]string{"access_type": "offline"}
	svc := newTestService(t, cfg)

	req, err := svc.AuthorizationURL("acme", "https://app.example.com/cb", "state-123")
	testutil.AssertNoError(t, err)

	parsed, err := url.Parse(req.URL)
	testutil.AssertNoError(t, err)
	if parsed.Host != "acme.example.com" {
		t.Errorf("host = %q, want acme.example.com", parsed.Host)
	}

	q := parsed.Query()
	testutil.AssertEqual(t, q.Get("client_id"), "acme-client")
	testutil.AssertEqual(t, q.Get("redirect_uri"), "https://app.example.com/cb")
	testutil.AssertEqual(t, q.Get("response_type"), "code")
	testutil.AssertEqual(t, q.Get("state"), "state-123")
	testutil.AssertEqual(t, q.Get("scope"), "read write")
	testutil.AssertEqual(t, q.Get("access_type"), "offline")
	testutil.AssertEqual(t, q.Get("code_challenge_method"), "S256")

	// The embedded challenge must match the returned verifier.
	if req.CodeVerifier == "" {
		t.Fatal("CodeVerifier should be returned")
	}
	sum := sha256.Sum256([]byte(req.CodeVerifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	testutil.AssertEqual(t, q.Get("code_challenge"), want)
}

func TestAuthorizationURL_CustomScopeParam(t *testing.T) {
	cfg := testProviderConfig("https://acme.example.com/token")
	cfg.ScopeParamName = "user_scope"
	svc := newTestService(t, cfg)

	req, err := svc.AuthorizationURL("acme", "https://app.example.com/cb", "state-123")
	testutil.AssertNoError(t, err)

	parsed, _ := url.Parse(req.URL)
	q := parsed.Query()
	testutil.AssertEqual(t, q.Get("user_scope"), "read write")
	if q.Has("scope") {
		t.Error("scope param must not be set when the provider overrides the name")
	}
}

func TestAuthorizationURL_NoScopes(t *testing.T) {
	cfg := testProviderConfig("https://acme.example.com/token")
	cfg.Scopes = nil
	svc := newTestService(t, cfg)

	req, err := svc.AuthorizationURL("acme", "https://app.example.com/cb", "state-123")
	testutil.AssertNoError(t, err)

	parsed, _ := url.Parse(req.URL)
	if parsed.Query().Has("scope") {
		t.Error("scope param must be absent when no scopes are configured")
	}
}

func TestAuthorizationURL_FreshVerifierPerCall(t *testing.T) {
	svc := newTestService(t, testProviderConfig("https://acme.example.com/token"))

	a, err := svc.AuthorizationURL("acme", "https://app.example.com/cb", "state-1")
	testutil.AssertNoError(t, err)
	b, err := svc.AuthorizationURL("acme", "https://app.example.com/cb", "state-2")
	testutil.AssertNoError(t, err)
	if a.CodeVerifier == b.CodeVerifier {
		t.Error("each authorization request should carry a fresh PKCE verifier")
	}
}

func TestAuthorizationURL_Errors(t *testing.T) {
	svc := newTestService(t, testProviderConfig("https://acme.example.com/token"))

	_, err := svc.AuthorizationURL("ghost", "https://app.example.com/cb", "state-123")
	testutil.AssertEqual(t, KindOf(err), KindNotFound)

	_, err = svc.AuthorizationURL("acme", "https://app.example.com/cb", "")
	testutil.AssertEqual(t, KindOf(err), KindValidation)
	testutil.AssertStringContains(t, err.Error(), "state")
}

func TestAuthorizationURL_MissingAuthorizationEndpoint(t *testing.T) {
	cfg := testProviderConfig("https://acme.example.com/token")
	cfg.AuthorizationURL = ""
	svc := newTestService(t, cfg)

	_, err := svc.AuthorizationURL("acme", "https://app.example.com/cb", "state-123")
	testutil.AssertEqual(t, KindOf(err), KindValidation)
}
