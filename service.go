package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helmgrove/integration-oauth/instrumentation"
	"github.com/helmgrove/integration-oauth/providers"
	"github.com/helmgrove/integration-oauth/security"
	"github.com/helmgrove/integration-oauth/storage"
)

// refreshWindow is the margin before expiry inside which tokens are
// proactively refreshed. Fixed, not configurable per provider.
const refreshWindow = 300 * time.Second

// Service is the facade callers use for the OAuth token lifecycle: connect an
// integration from a callback code, resolve a usable access token, refresh
// behind the scenes.
type Service struct {
	registry  *providers.Registry
	store     storage.IntegrationStore
	encryptor *security.Encryptor
	exchanger *Exchanger
	logger    *slog.Logger
	inst      *instrumentation.Instrumentation
	now       func() time.Time
}

// New creates a Service. Registry, store, and encryptor are required; config
// and logger may be nil.
func New(registry *providers.Registry, store storage.IntegrationStore, encryptor *security.Encryptor, config *Config, logger *slog.Logger) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("integration store is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := config.withDefaults()
	return &Service{
		registry:  registry,
		store:     store,
		encryptor: encryptor,
		exchanger: NewExchanger(registry, cfg, logger),
		logger:    logger,
		inst:      cfg.Instrumentation,
		now:       time.Now,
	}, nil
}

// Exchanger returns the underlying token exchanger for callers that need raw
// exchanges without persistence.
func (s *Service) Exchanger() *Exchanger {
	return s.exchanger
}

// Connect completes the post-callback half of connecting an integration:
// exchange the authorization code, encrypt the token set, and upsert the
// integration record. The redirect callback handler only hands over the code
// and PKCE verifier.
func (s *Service) Connect(ctx context.Context, userEmail, service, code, redirectURI, codeVerifier string) (*storage.Integration, error) {
	if userEmail == "" {
		return nil, NewValidationError("user email is required")
	}

	result, err := s.exchanger.ExchangeCode(ctx, service, code, redirectURI, codeVerifier)
	if err != nil {
		return nil, err
	}

	integration, err := s.persist(ctx, userEmail, service, result, "")
	if err != nil {
		return nil, err
	}

	s.logger.Info("integration connected",
		"service", service,
		"account_id", integration.AccountID,
	)
	return integration, nil
}

// RefreshAccessToken performs a raw refresh-token exchange without touching
// stored state. Most callers want GetAccessToken instead.
func (s *Service) RefreshAccessToken(ctx context.Context, providerID, refreshToken string) (*ExchangeResult, error) {
	return s.exchanger.Refresh(ctx, providerID, refreshToken)
}

// GetAccessToken returns a usable access token for the user's integration
// with the given service, refreshing proactively when the stored token is
// within the refresh window of its expiry. Tokens without an expiry are
// returned as-is and never trigger a network call.
//
// Concurrent callers may race into the refresh branch; that is tolerated.
// Both obtain valid tokens and the store's upsert is last-writer-wins.
func (s *Service) GetAccessToken(ctx context.Context, userEmail, service string) (string, error) {
	integration, err := s.store.Get(ctx, userEmail, service)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", NewNotFoundError(fmt.Sprintf("No connected %s integration found for %s", service, userEmail))
		}
		return "", fmt.Errorf("failed to load %s integration: %w", service, err)
	}

	if integration.EncryptedCredentials == "" {
		return "", NewNotFoundError(fmt.Sprintf("%s integration missing credentials - please reconnect", service))
	}

	tokens, err := s.decryptCredentials(ctx, integration.EncryptedCredentials)
	if err != nil {
		return "", err
	}

	if !tokens.ExpiresWithin(refreshWindow, s.now()) {
		return tokens.AccessToken, nil
	}

	if tokens.RefreshToken == "" {
		return "", NewPermanentError(fmt.Sprintf("%s token expired and no refresh token available - please reconnect", service))
	}

	result, err := s.exchanger.Refresh(ctx, integration.Service, tokens.RefreshToken)
	if err != nil {
		return "", err
	}

	// The stored set is replaced wholesale. Providers that do not rotate
	// refresh tokens omit the field; carry the old one over.
	if result.Tokens.RefreshToken == "" {
		result.Tokens.RefreshToken = tokens.RefreshToken
	}

	// Refresh responses rarely carry account info. Keep the upsert keyed to
	// the loaded row so the refresh replaces it instead of creating a
	// second integration.
	if result.Account.ID == "" {
		result.Account.ID = integration.AccountID
	}

	if _, err := s.persist(ctx, userEmail, service, result, integration.DisplayName); err != nil {
		return "", err
	}

	s.logger.Info("access token refreshed",
		"service", service,
		"account_id", integration.AccountID,
		"has_expiry", result.Tokens.ExpiresAt != 0,
	)
	return result.Tokens.AccessToken, nil
}

// Disconnect marks the user's integration with the service as disconnected.
// The credential blob is retained so history stays auditable; it is replaced
// on the next connect.
func (s *Service) Disconnect(ctx context.Context, userEmail, service string) error {
	integration, err := s.store.Get(ctx, userEmail, service)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewNotFoundError(fmt.Sprintf("No connected %s integration found for %s", service, userEmail))
		}
		return fmt.Errorf("failed to load %s integration: %w", service, err)
	}
	if err := s.store.SetStatus(ctx, integration.ID, storage.StatusDisconnected); err != nil {
		return fmt.Errorf("failed to disconnect %s integration: %w", service, err)
	}
	return nil
}

// persist encrypts the token set and upserts the integration record.
// fallbackDisplayName is used when the exchange carried no account info (the
// refresh path, where providers usually omit it).
func (s *Service) persist(ctx context.Context, userEmail, service string, result *ExchangeResult, fallbackDisplayName string) (*storage.Integration, error) {
	blob, err := s.encryptCredentials(ctx, result.Tokens)
	if err != nil {
		return nil, err
	}

	displayName := result.Account.DisplayName
	if displayName == "" {
		displayName = fallbackDisplayName
	}

	integration, err := s.store.Upsert(ctx, storage.UpsertParams{
		UserEmail:            userEmail,
		Service:              service,
		AccountID:            result.Account.ID,
		DisplayName:          displayName,
		EncryptedCredentials: blob,
	})
	if s.inst != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.inst.Metrics().RecordStorageOperation(ctx, "upsert", outcome)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist %s credentials: %w", service, err)
	}
	return integration, nil
}

func (s *Service) encryptCredentials(ctx context.Context, tokens *providers.TokenSet) (string, error) {
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}
	blob, err := s.encryptor.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	if s.inst != nil {
		s.inst.Metrics().RecordEncryptionOperation(ctx, "encrypt")
	}
	return blob, nil
}

// decryptCredentials decrypts a stored blob back into a TokenSet. Any
// failure (undecryptable blob, invalid JSON, missing access token) is a
// corrupted-credential error, kept distinct from provider rejections.
func (s *Service) decryptCredentials(ctx context.Context, blob string) (*providers.TokenSet, error) {
	plaintext, err := s.encryptor.Decrypt(blob)
	if err != nil {
		return nil, NewCorruptedCredentialError("stored credentials could not be decrypted - please reconnect", err)
	}
	if s.inst != nil {
		s.inst.Metrics().RecordEncryptionOperation(ctx, "decrypt")
	}

	var tokens providers.TokenSet
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		return nil, NewCorruptedCredentialError("stored credentials could not be decoded - please reconnect", err)
	}
	if tokens.AccessToken == "" {
		return nil, NewCorruptedCredentialError("stored credentials are incomplete - please reconnect", nil)
	}
	return &tokens, nil
}
