// Package storage defines the persisted integration record and the store
// interface for integration credentials.
//
// An Integration row binds a user to a provider-side account and carries the
// encrypted credential blob. At most one active row exists per
// (userEmail, service, accountId); Upsert preserves row identity when the
// tuple already exists, so reconnecting or refreshing never changes a row's
// id or connection time.
//
// Implementations are provided in subpackages:
//   - storage/memory:   in-process store for development and testing
//   - storage/postgres: PostgreSQL store built on pgx
package storage
