package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no integration matches a lookup. Callers
// match it with errors.Is.
var ErrNotFound = errors.New("integration not found")

// Status is the lifecycle state of an integration.
type Status string

const (
	// StatusConnected marks a usable integration with valid credentials.
	StatusConnected Status = "connected"

	// StatusDisconnected marks an integration the user disconnected.
	StatusDisconnected Status = "disconnected"

	// StatusError marks an integration whose credentials were rejected
	// permanently and needs re-authentication.
	StatusError Status = "error"
)

// Integration is the persisted record binding a user to a provider account.
type Integration struct {
	ID                   string
	UserEmail            string
	Service              string
	AccountID            string
	DisplayName          string
	EncryptedCredentials string
	Status               Status
	IsDefault            bool
	ConnectedAt          time.Time
}

// Clone returns a copy of the integration so callers cannot mutate stored
// state through a returned pointer.
func (i *Integration) Clone() *Integration {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// UpsertParams carries the fields of a create-or-replace write. Upsert sets
// status to connected; it never transitions status any other way.
type UpsertParams struct {
	UserEmail            string
	Service              string
	AccountID            string
	DisplayName          string
	EncryptedCredentials string

	// MakeDefault marks the row as the user's default integration for the
	// service. The first integration for a (user, service) pair becomes
	// the default regardless.
	MakeDefault bool
}

// Validate checks the fields every store requires.
func (p *UpsertParams) Validate() error {
	if p.UserEmail == "" {
		return fmt.Errorf("user email is required")
	}
	if p.Service == "" {
		return fmt.Errorf("service is required")
	}
	if p.EncryptedCredentials == "" {
		return fmt.Errorf("encrypted credentials are required")
	}
	return nil
}

// IntegrationStore persists integrations. Upsert is last-writer-wins:
// concurrent refreshes of the same integration may both write, and either
// result is a valid credential set until its own expiry.
type IntegrationStore interface {
	// Get returns the integration used for (userEmail, service): the
	// default connected row if one is flagged, otherwise the most
	// recently connected one. Returns ErrNotFound when none exists.
	Get(ctx context.Context, userEmail, service string) (*Integration, error)

	// GetByAccount returns the integration for an exact
	// (userEmail, service, accountID) tuple regardless of status.
	GetByAccount(ctx context.Context, userEmail, service, accountID string) (*Integration, error)

	// List returns all integrations for a user, most recent first.
	List(ctx context.Context, userEmail string) ([]*Integration, error)

	// Upsert creates the row if absent, otherwise replaces its
	// credentials and display name and sets status to connected,
	// preserving id and connection time. Implementations run any
	// configured audit hook atomically with the write.
	Upsert(ctx context.Context, params UpsertParams) (*Integration, error)

	// SetStatus updates the status of the integration with the given id.
	// Returns ErrNotFound when the id is unknown.
	SetStatus(ctx context.Context, id string, status Status) error
}
