// Package storage defines the persistence contracts for whale profiles and
// the classified-event archive.
package storage

import (
	"context"

	"stacks-whale-intel/internal/domain"
)

// ProfileStore persists whale profiles keyed by address.
//
// Upsert is idempotent per address: a full replace of all mutable fields.
// Concurrent writers to the same address resolve last-writer-wins on the
// whole document, which both refresh loops rely on.
type ProfileStore interface {
	// Upsert inserts or fully replaces the profile for profile.Address.
	Upsert(ctx context.Context, profile *domain.WhaleProfile) error

	// GetByAddress retrieves one profile. Returns ErrNotFound if absent.
	GetByAddress(ctx context.Context, address string) (*domain.WhaleProfile, error)

	// TopByScore returns up to limit profiles ordered by composite score
	// descending. The default leaderboard read path.
	TopByScore(ctx context.Context, limit int) ([]*domain.WhaleProfile, error)

	// TopByBalance returns up to limit profiles ordered by STX balance
	// descending. The alternate leaderboard view.
	TopByBalance(ctx context.Context, limit int) ([]*domain.WhaleProfile, error)

	// ListAddresses returns every tracked address. The live monitor reads
	// this at startup to build its subscription set.
	ListAddresses(ctx context.Context) ([]string, error)

	// Count returns the number of tracked profiles.
	Count(ctx context.Context) (int, error)
}

// EventArchive is an append-only analytics log of classified whale events.
// Best-effort: a failed append is logged by the caller and never blocks the
// live pipeline.
type EventArchive interface {
	// Append stores one classified event.
	Append(ctx context.Context, event *domain.TrackedTransactionEvent) error

	// GetByAddress retrieves up to limit most recent events for an address.
	GetByAddress(ctx context.Context, address string, limit int) ([]*domain.TrackedTransactionEvent, error)

	// GetByTimeRange retrieves events with timestamp in [start, end],
	// oldest first.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TrackedTransactionEvent, error)
}
