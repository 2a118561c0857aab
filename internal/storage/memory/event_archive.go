package memory

import (
	"context"
	"sort"
	"sync"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/storage"
)

// EventArchive is an in-memory implementation of storage.EventArchive.
type EventArchive struct {
	mu     sync.RWMutex
	events []*domain.TrackedTransactionEvent
}

// NewEventArchive creates a new in-memory event archive.
func NewEventArchive() *EventArchive {
	return &EventArchive{}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchive)(nil)

// Append stores one classified event.
func (a *EventArchive) Append(_ context.Context, e *domain.TrackedTransactionEvent) error {
	if e == nil || e.Address == "" || e.TxID == "" {
		return storage.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cp := *e
	a.events = append(a.events, &cp)
	return nil
}

// GetByAddress retrieves up to limit most recent events for an address.
func (a *EventArchive) GetByAddress(_ context.Context, address string, limit int) ([]*domain.TrackedTransactionEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []*domain.TrackedTransactionEvent
	for _, e := range a.events {
		if e.Address == address {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp > result[j].Timestamp })

	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByTimeRange retrieves events with timestamp in [start, end], oldest first.
func (a *EventArchive) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.TrackedTransactionEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []*domain.TrackedTransactionEvent
	for _, e := range a.events {
		if e.Timestamp >= start && e.Timestamp <= end {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp < result[j].Timestamp })
	return result, nil
}
