package oauth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/helmgrove/integration-oauth/internal/testutil"
	"github.com/helmgrove/integration-oauth/providers"
	"github.com/helmgrove/integration-oauth/security"
	"github.com/helmgrove/integration-oauth/storage"
	"github.com/helmgrove/integration-oauth/storage/memory"
)

const (
	testUser    = "user@example.com"
	testService = "acme"
)

type serviceFixture struct {
	svc       *Service
	store     *memory.Store
	encryptor *security.Encryptor
	endpoint  *testutil.TokenEndpoint
	clock     *testutil.MockTime
}

// newServiceFixture wires a full service against a fake token endpoint with a
// frozen clock shared by the service, the exchanger, and the store. Mutators
// adjust the provider config before registration.
func newServiceFixture(t *testing.T, mutators ...func(*providers.Config)) *serviceFixture {
	t.Helper()

	endpoint := testutil.NewTokenEndpoint(200, `{"access_token":"fresh-tok","expires_in":3600}`)
	t.Cleanup(endpoint.Close)

	clock := testutil.NewMockTime(time.Unix(1_700_000_000, 0))
	store := memory.New(memory.WithClock(clock.Now))

	cfg := testProviderConfig(endpoint.URL())
	for _, mutate := range mutators {
		mutate(cfg)
	}
	registry, err := providers.NewRegistry(cfg)
	testutil.AssertNoError(t, err)

	key, err := security.GenerateKey()
	testutil.AssertNoError(t, err)
	encryptor, err := security.NewEncryptor(key)
	testutil.AssertNoError(t, err)

	logger, _ := testutil.NewLogger()
	svc, err := New(registry, store, encryptor, nil, logger)
	testutil.AssertNoError(t, err)
	svc.now = clock.Now
	svc.exchanger.now = clock.Now

	return &serviceFixture{
		svc:       svc,
		store:     store,
		encryptor: encryptor,
		endpoint:  endpoint,
		clock:     clock,
	}
}

// seed stores an encrypted token set for the test user.
func (f *serviceFixture) seed(t *testing.T, tokens *providers.TokenSet) *storage.Integration {
	t.Helper()

	plaintext, err := json.Marshal(tokens)
	testutil.AssertNoError(t, err)
	blob, err := f.encryptor.Encrypt(plaintext)
	testutil.AssertNoError(t, err)

	integration, err := f.store.Upsert(context.Background(), storage.UpsertParams{
		UserEmail:            testUser,
		Service:              testService,
		AccountID:            "A1",
		DisplayName:          "Acme Corp",
		EncryptedCredentials: blob,
	})
	testutil.AssertNoError(t, err)
	return integration
}

// storedTokens decrypts the currently persisted token set for the test user.
func (f *serviceFixture) storedTokens(t *testing.T) *providers.TokenSet {
	t.Helper()

	integration, err := f.store.Get(context.Background(), testUser, testService)
	testutil.AssertNoError(t, err)
	plaintext, err := f.encryptor.Decrypt(integration.EncryptedCredentials)
	testutil.AssertNoError(t, err)

	var tokens providers.TokenSet
	testutil.AssertNoError(t, json.Unmarshal(plaintext, &tokens))
	return &tokens
}

func TestNew_RequiresDependencies(t *testing.T) {
	registry, _ := providers.NewRegistry()
	key, _ := security.GenerateKey()
	encryptor, _ := security.NewEncryptor(key)
	store := memory.New()

	if _, err := New(nil, store, encryptor, nil, nil); err == nil {
		t.Error("New() without registry should fail")
	}
	if _, err := New(registry, nil, encryptor, nil, nil); err == nil {
		t.Error("New() without store should fail")
	}
	if _, err := New(registry, store, nil, nil, nil); err == nil {
		t.Error("New() without encryptor should fail")
	}
}

func TestConnect(t *testing.T) {
	f := newServiceFixture(t, func(cfg *providers.Config) {
		cfg.AccountExtraction = providers.AccountExtractionTeam
	})
	f.endpoint.Respond(200, `{
		"access_token": "tok-1",
		"refresh_token": "refresh-1",
		"token_type": "Bearer",
		"expires_in": 3600,
		"team": {"id": "T0123", "name": "Acme Corp"}
	}`)

	integration, err := f.svc.Connect(context.Background(), testUser, testService, "auth-code", "https://app.example.com/cb", "verifier")
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, integration.AccountID, "T0123")
	testutil.AssertEqual(t, integration.DisplayName, "Acme Corp")
	testutil.AssertEqual(t, integration.Status, storage.StatusConnected)
	if integration.EncryptedCredentials == "tok-1" {
		t.Error("credentials must be stored encrypted, not in the clear")
	}

	tokens := f.storedTokens(t)
	testutil.AssertEqual(t, tokens.AccessToken, "tok-1")
	testutil.AssertEqual(t, tokens.RefreshToken, "refresh-1")
	testutil.AssertEqual(t, tokens.ExpiresAt, f.clock.Now().Unix()+3600)
}

func TestConnect_RequiresUserEmail(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.Connect(context.Background(), "", testService, "auth-code", "https://app.example.com/cb", "")
	testutil.AssertEqual(t, KindOf(err), KindValidation)
	testutil.AssertEqual(t, f.endpoint.Calls(), 0)
}

func TestGetAccessToken_NotConnected(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindNotFound)
	testutil.AssertStringContains(t, err.Error(), "No connected acme integration found for user@example.com")
}

func TestGetAccessToken_NonExpiringTokenNeverRefreshes(t *testing.T) {
	f := newServiceFixture(t)
	f.seed(t, &providers.TokenSet{AccessToken: "eternal-tok"})

	// Even far in the future a token without expiry is returned as-is.
	f.clock.Advance(365 * 24 * time.Hour)

	token, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token, "eternal-tok")
	testutil.AssertEqual(t, f.endpoint.Calls(), 0)
}

func TestGetAccessToken_FreshTokenReturnedAsIs(t *testing.T) {
	f := newServiceFixture(t)
	f.seed(t, &providers.TokenSet{
		AccessToken:  "fresh",
		RefreshToken: "refresh-1",
		ExpiresAt:    f.clock.Now().Unix() + 3600,
	})

	token, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token, "fresh")
	testutil.AssertEqual(t, f.endpoint.Calls(), 0)
}

func TestGetAccessToken_RefreshesWithinWindow(t *testing.T) {
	f := newServiceFixture(t)
	f.endpoint.Respond(200, `{"access_token":"rotated-tok","refresh_token":"refresh-2","expires_in":3600}`)
	f.seed(t, &providers.TokenSet{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    f.clock.Now().Unix() + 100, // inside the 300s window
	})

	token, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token, "rotated-tok")
	testutil.AssertEqual(t, f.endpoint.Calls(), 1)
	testutil.AssertEqual(t, f.endpoint.LastForm().Get("grant_type"), "refresh_token")
	testutil.AssertEqual(t, f.endpoint.LastForm().Get("refresh_token"), "refresh-1")

	// The rotated refresh token replaces the stored one.
	stored := f.storedTokens(t)
	testutil.AssertEqual(t, stored.AccessToken, "rotated-tok")
	testutil.AssertEqual(t, stored.RefreshToken, "refresh-2")
	testutil.AssertEqual(t, stored.ExpiresAt, f.clock.Now().Unix()+3600)
}

func TestGetAccessToken_RefreshReplacesExistingRow(t *testing.T) {
	f := newServiceFixture(t)
	f.endpoint.Respond(200, `{"access_token":"new-tok","expires_in":3600}`)
	// Refresh responses carry no account info; the upsert must still land
	// on the row keyed by the account the tokens were loaded from.
	seeded := f.seed(t, &providers.TokenSet{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    f.clock.Now().Unix() + 100,
	})

	_, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertNoError(t, err)

	rows, err := f.store.List(context.Background(), testUser)
	testutil.AssertNoError(t, err)
	if len(rows) != 1 {
		t.Fatalf("refresh created %d rows, want 1", len(rows))
	}
	testutil.AssertEqual(t, rows[0].ID, seeded.ID)
	testutil.AssertEqual(t, rows[0].AccountID, "A1")

	stored := f.storedTokens(t)
	testutil.AssertEqual(t, stored.AccessToken, "new-tok")
}

func TestGetAccessToken_RefreshesExpiredToken(t *testing.T) {
	f := newServiceFixture(t)
	f.endpoint.Respond(200, `{"access_token":"new-tok","expires_in":3600}`)
	f.seed(t, &providers.TokenSet{
		AccessToken:  "long-gone",
		RefreshToken: "refresh-1",
		ExpiresAt:    f.clock.Now().Unix() - 1000,
	})

	token, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, token, "new-tok")
}

func TestGetAccessToken_CarriesOverUnrotatedRefreshToken(t *testing.T) {
	f := newServiceFixture(t)
	// Provider does not rotate: the response omits refresh_token.
	f.endpoint.Respond(200, `{"access_token":"new-tok","expires_in":3600}`)
	f.seed(t, &providers.TokenSet{
		AccessToken:  "stale",
		RefreshToken: "keep-me",
		ExpiresAt:    f.clock.Now().Unix() + 100,
	})

	_, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertNoError(t, err)

	stored := f.storedTokens(t)
	testutil.AssertEqual(t, stored.RefreshToken, "keep-me")
}

func TestGetAccessToken_ExpiredWithoutRefreshToken(t *testing.T) {
	f := newServiceFixture(t)
	f.seed(t, &providers.TokenSet{
		AccessToken: "stale",
		ExpiresAt:   f.clock.Now().Unix() + 100,
	})

	_, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindPermanent)
	testutil.AssertStringContains(t, err.Error(), "no refresh token available")
	testutil.AssertEqual(t, f.endpoint.Calls(), 0)
}

func TestGetAccessToken_RefreshFailurePropagates(t *testing.T) {
	f := newServiceFixture(t)
	f.endpoint.Respond(400, `{"error":"invalid_grant","error_description":"refresh token revoked"}`)
	f.seed(t, &providers.TokenSet{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    f.clock.Now().Unix() + 100,
	})

	_, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindOAuth)

	// The stored set is untouched on failure.
	stored := f.storedTokens(t)
	testutil.AssertEqual(t, stored.AccessToken, "stale")
}

func TestGetAccessToken_CorruptedCredentials(t *testing.T) {
	f := newServiceFixture(t)

	// A blob encrypted under a different key cannot be decrypted.
	otherKey, _ := security.GenerateKey()
	other, _ := security.NewEncryptor(otherKey)
	blob, err := other.Encrypt([]byte(`{"access_token":"tok"}`))
	testutil.AssertNoError(t, err)

	_, err = f.store.Upsert(context.Background(), storage.UpsertParams{
		UserEmail:            testUser,
		Service:              testService,
		EncryptedCredentials: blob,
	})
	testutil.AssertNoError(t, err)

	_, err = f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindCorruptedCredential)
	testutil.AssertStringContains(t, err.Error(), "reconnect")
}

func TestGetAccessToken_UndecodableCredentials(t *testing.T) {
	f := newServiceFixture(t)

	blob, err := f.encryptor.Encrypt([]byte("not json"))
	testutil.AssertNoError(t, err)
	_, err = f.store.Upsert(context.Background(), storage.UpsertParams{
		UserEmail:            testUser,
		Service:              testService,
		EncryptedCredentials: blob,
	})
	testutil.AssertNoError(t, err)

	_, err = f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindCorruptedCredential)
}

func TestGetAccessToken_IncompleteCredentials(t *testing.T) {
	f := newServiceFixture(t)
	f.seed(t, &providers.TokenSet{RefreshToken: "only-refresh"})

	_, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindCorruptedCredential)
}

func TestDisconnect(t *testing.T) {
	f := newServiceFixture(t)
	f.seed(t, &providers.TokenSet{AccessToken: "tok"})

	testutil.AssertNoError(t, f.svc.Disconnect(context.Background(), testUser, testService))

	// A disconnected integration no longer resolves tokens.
	_, err := f.svc.GetAccessToken(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindNotFound)

	// The credential blob is retained for audit.
	row, err := f.store.GetByAccount(context.Background(), testUser, testService, "A1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, row.Status, storage.StatusDisconnected)
	if row.EncryptedCredentials == "" {
		t.Error("credentials should be retained on disconnect")
	}
}

func TestDisconnect_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	err := f.svc.Disconnect(context.Background(), testUser, testService)
	testutil.AssertEqual(t, KindOf(err), KindNotFound)
}
