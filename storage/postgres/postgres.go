// Package postgres provides a PostgreSQL-backed integration store built on
// pgx. Upserts run in a transaction together with an optional audit hook, so
// audit rows and credential writes commit or roll back as a unit.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helmgrove/integration-oauth/storage"
)

// AuditFunc is invoked inside the upsert transaction. Writing the audit row
// through tx makes it atomic with the credential write.
type AuditFunc func(ctx context.Context, tx pgx.Tx, integration *storage.Integration, event string) error

// Store is a PostgreSQL implementation of storage.IntegrationStore.
type Store struct {
	pool  *pgxpool.Pool
	audit AuditFunc
}

var _ storage.IntegrationStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithAudit installs an audit hook run inside every upsert transaction.
func WithAudit(fn AuditFunc) Option {
	return func(s *Store) { s.audit = fn }
}

// New creates a store on the given pool and applies the schema migration.
func New(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}

	s := &Store{pool: pool}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate integrations schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS integrations (
			id UUID PRIMARY KEY,
			user_email TEXT NOT NULL,
			service TEXT NOT NULL,
			account_id TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			encrypted_credentials TEXT NOT NULL,
			status TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			connected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_email, service, account_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_integrations_user_service
			ON integrations (user_email, service)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

const integrationColumns = `id, user_email, service, account_id, display_name,
	encrypted_credentials, status, is_default, connected_at`

func scanIntegration(row pgx.Row) (*storage.Integration, error) {
	var i storage.Integration
	err := row.Scan(&i.ID, &i.UserEmail, &i.Service, &i.AccountID, &i.DisplayName,
		&i.EncryptedCredentials, &i.Status, &i.IsDefault, &i.ConnectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan integration: %w", err)
	}
	return &i, nil
}

// Get returns the default connected integration for (userEmail, service),
// falling back to the most recently connected one.
func (s *Store) Get(ctx context.Context, userEmail, service string) (*storage.Integration, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+integrationColumns+`
		FROM integrations
		WHERE user_email = $1 AND service = $2 AND status = $3
		ORDER BY is_default DESC, connected_at DESC
		LIMIT 1`, userEmail, service, storage.StatusConnected)
	return scanIntegration(row)
}

// GetByAccount returns the integration for an exact tuple regardless of
// status.
func (s *Store) GetByAccount(ctx context.Context, userEmail, service, accountID string) (*storage.Integration, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+integrationColumns+`
		FROM integrations
		WHERE user_email = $1 AND service = $2 AND account_id = $3`,
		userEmail, service, accountID)
	return scanIntegration(row)
}

// List returns all integrations for a user, most recent first.
func (s *Store) List(ctx context.Context, userEmail string) ([]*storage.Integration, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+integrationColumns+`
		FROM integrations
		WHERE user_email = $1
		ORDER BY connected_at DESC`, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var out []*storage.Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read integrations: %w", err)
	}
	return out, nil
}

// Upsert creates or replaces the row for the params' tuple inside a
// transaction, preserving id and connected_at on conflict. The audit hook,
// when configured, runs in the same transaction.
func (s *Store) Upsert(ctx context.Context, params storage.UpsertParams) (*storage.Integration, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upsert: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The first integration for a (user, service) pair becomes the default.
	makeDefault := params.MakeDefault
	if !makeDefault {
		var count int
		err := tx.QueryRow(ctx, `SELECT count(*) FROM integrations
			WHERE user_email = $1 AND service = $2`,
			params.UserEmail, params.Service).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("failed to count integrations: %w", err)
		}
		makeDefault = count == 0
	}

	row := tx.QueryRow(ctx, `INSERT INTO integrations
		(id, user_email, service, account_id, display_name, encrypted_credentials, status, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_email, service, account_id) DO UPDATE SET
			encrypted_credentials = EXCLUDED.encrypted_credentials,
			display_name = EXCLUDED.display_name,
			status = EXCLUDED.status,
			is_default = integrations.is_default OR EXCLUDED.is_default
		RETURNING `+integrationColumns,
		uuid.NewString(), params.UserEmail, params.Service, params.AccountID,
		params.DisplayName, params.EncryptedCredentials, storage.StatusConnected, makeDefault)

	integration, err := scanIntegration(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert integration: %w", err)
	}

	if s.audit != nil {
		if err := s.audit(ctx, tx, integration.Clone(), "credentials_upserted"); err != nil {
			return nil, fmt.Errorf("audit hook failed, write aborted: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return integration, nil
}

// SetStatus updates the status of the integration with the given id.
func (s *Store) SetStatus(ctx context.Context, id string, status storage.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE integrations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
