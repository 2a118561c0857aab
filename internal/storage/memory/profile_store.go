// Package memory provides in-memory storage implementations used by tests
// and the --use-memory server mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/storage"
)

// ProfileStore is an in-memory implementation of storage.ProfileStore with
// the same semantics as the postgres implementation: idempotent upsert per
// address, last-writer-wins.
type ProfileStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WhaleProfile // keyed by address
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{data: make(map[string]*domain.WhaleProfile)}
}

// Compile-time interface check.
var _ storage.ProfileStore = (*ProfileStore)(nil)

// Upsert inserts or fully replaces the profile for profile.Address.
// created_at of an existing record is preserved.
func (s *ProfileStore) Upsert(_ context.Context, p *domain.WhaleProfile) error {
	if p == nil || p.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	cp := *p
	if existing, ok := s.data[p.Address]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.data[p.Address] = &cp
	return nil
}

// GetByAddress retrieves one profile. Returns ErrNotFound if absent.
func (s *ProfileStore) GetByAddress(_ context.Context, address string) (*domain.WhaleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// TopByScore returns up to limit profiles ordered by composite score desc,
// ties broken by balance desc.
func (s *ProfileStore) TopByScore(_ context.Context, limit int) ([]*domain.WhaleProfile, error) {
	return s.sorted(limit, func(a, b *domain.WhaleProfile) bool {
		if a.Scores.Composite != b.Scores.Composite {
			return a.Scores.Composite > b.Scores.Composite
		}
		if a.Portfolio.STXBalance != b.Portfolio.STXBalance {
			return a.Portfolio.STXBalance > b.Portfolio.STXBalance
		}
		return a.Address < b.Address
	}), nil
}

// TopByBalance returns up to limit profiles ordered by STX balance desc.
func (s *ProfileStore) TopByBalance(_ context.Context, limit int) ([]*domain.WhaleProfile, error) {
	return s.sorted(limit, func(a, b *domain.WhaleProfile) bool {
		if a.Portfolio.STXBalance != b.Portfolio.STXBalance {
			return a.Portfolio.STXBalance > b.Portfolio.STXBalance
		}
		if a.Scores.Composite != b.Scores.Composite {
			return a.Scores.Composite > b.Scores.Composite
		}
		return a.Address < b.Address
	}), nil
}

// ListAddresses returns every tracked address in lexical order.
func (s *ProfileStore) ListAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addresses := make([]string, 0, len(s.data))
	for a := range s.data {
		addresses = append(addresses, a)
	}
	sort.Strings(addresses)
	return addresses, nil
}

// Count returns the number of tracked profiles.
func (s *ProfileStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

func (s *ProfileStore) sorted(limit int, less func(a, b *domain.WhaleProfile) bool) []*domain.WhaleProfile {
	s.mu.RLock()
	result := make([]*domain.WhaleProfile, 0, len(s.data))
	for _, p := range s.data {
		cp := *p
		result = append(result, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return less(result[i], result[j]) })

	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
