// Package memory provides an in-process implementation of the integration
// store. It is suitable for development, testing, and single-instance
// deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helmgrove/integration-oauth/storage"
)

// AuditFunc is invoked for every upsert before the write is published. A
// non-nil error aborts the write, keeping the audit trail consistent with
// stored credentials.
type AuditFunc func(ctx context.Context, integration *storage.Integration, event string) error

// Store is an in-memory implementation of storage.IntegrationStore.
type Store struct {
	mu    sync.RWMutex
	rows  map[string]*storage.Integration // composite key -> row
	audit AuditFunc
	now   func() time.Time
}

// Compile-time check that Store implements the store interface.
var _ storage.IntegrationStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithAudit installs an audit hook run atomically with every upsert.
func WithAudit(fn AuditFunc) Option {
	return func(s *Store) { s.audit = fn }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		rows: make(map[string]*storage.Integration),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(userEmail, service, accountID string) string {
	return userEmail + "\x00" + service + "\x00" + accountID
}

// Get returns the default connected integration for (userEmail, service),
// falling back to the most recently connected one.
func (s *Store) Get(_ context.Context, userEmail, service string) (*storage.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *storage.Integration
	for _, row := range s.rows {
		if row.UserEmail != userEmail || row.Service != service || row.Status != storage.StatusConnected {
			continue
		}
		if best == nil || (row.IsDefault && !best.IsDefault) ||
			(row.IsDefault == best.IsDefault && row.ConnectedAt.After(best.ConnectedAt)) {
			best = row
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	return best.Clone(), nil
}

// GetByAccount returns the integration for an exact tuple regardless of
// status.
func (s *Store) GetByAccount(_ context.Context, userEmail, service, accountID string) (*storage.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key(userEmail, service, accountID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return row.Clone(), nil
}

// List returns all integrations for a user, most recent first.
func (s *Store) List(_ context.Context, userEmail string) ([]*storage.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Integration
	for _, row := range s.rows {
		if row.UserEmail == userEmail {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.After(out[j].ConnectedAt)
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	return out, nil
}

// Upsert creates or replaces the row for the params' tuple. Row identity
// (id, connection time) is preserved on replace; last writer wins.
func (s *Store) Upsert(ctx context.Context, params storage.UpsertParams) (*storage.Integration, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upsert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(params.UserEmail, params.Service, params.AccountID)
	row, exists := s.rows[k]
	if exists {
		row = row.Clone()
		row.EncryptedCredentials = params.EncryptedCredentials
		row.DisplayName = params.DisplayName
		row.Status = storage.StatusConnected
		if params.MakeDefault {
			row.IsDefault = true
		}
	} else {
		row = &storage.Integration{
			ID:                   uuid.NewString(),
			UserEmail:            params.UserEmail,
			Service:              params.Service,
			AccountID:            params.AccountID,
			DisplayName:          params.DisplayName,
			EncryptedCredentials: params.EncryptedCredentials,
			Status:               storage.StatusConnected,
			IsDefault:            params.MakeDefault || !s.hasAnyLocked(params.UserEmail, params.Service),
			ConnectedAt:          s.now().UTC(),
		}
	}

	if s.audit != nil {
		if err := s.audit(ctx, row.Clone(), "credentials_upserted"); err != nil {
			return nil, fmt.Errorf("audit hook failed, write aborted: %w", err)
		}
	}

	s.rows[k] = row
	return row.Clone(), nil
}

// SetStatus updates the status of the integration with the given id.
func (s *Store) SetStatus(_ context.Context, id string, status storage.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, row := range s.rows {
		if row.ID == id {
			updated := row.Clone()
			updated.Status = status
			s.rows[k] = updated
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) hasAnyLocked(userEmail, service string) bool {
	for _, row := range s.rows {
		if row.UserEmail == userEmail && row.Service == service {
			return true
		}
	}
	return false
}
