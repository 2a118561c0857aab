package clickhouse

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/storage"
)

func testEvent(address, txID string, ts int64) *domain.TrackedTransactionEvent {
	return &domain.TrackedTransactionEvent{
		Address: address,
		TxID:    txID,
		Classification: domain.Classification{
			Type:     domain.TxContractCall,
			Intent:   domain.IntentBullish,
			Action:   "Stacked STX via StackingDAO",
			Protocol: "StackingDAO",
		},
		ValueSTX:      30_000,
		ValueUSD:      60_000,
		BlockHeight:   150_000,
		Timestamp:     ts,
		IsSignificant: true,
	}
}

func TestEventArchive_AppendAndGetByAddress(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := NewEventArchive(conn)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ev := testEvent("SP1WHALE", fmt.Sprintf("0x%d", i), 1700000000000+int64(i)*1000)
		require.NoError(t, archive.Append(ctx, ev))
	}
	require.NoError(t, archive.Append(ctx, testEvent("SP2OTHER", "0xother", 1700000000000)))

	events, err := archive.GetByAddress(ctx, "SP1WHALE", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Most recent first, other addresses excluded.
	assert.Equal(t, "0x4", events[0].TxID)
	assert.Equal(t, "0x3", events[1].TxID)
	assert.Equal(t, "0x2", events[2].TxID)
	for _, ev := range events {
		assert.Equal(t, "SP1WHALE", ev.Address)
	}
}

func TestEventArchive_RoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := NewEventArchive(conn)
	ctx := context.Background()

	ev := testEvent("SP3ROUND", "0xabc", 1700000123000)
	require.NoError(t, archive.Append(ctx, ev))

	events, err := archive.GetByAddress(ctx, "SP3ROUND", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, ev.Address, got.Address)
	assert.Equal(t, ev.TxID, got.TxID)
	assert.Equal(t, ev.Classification, got.Classification)
	assert.Equal(t, ev.ValueSTX, got.ValueSTX)
	assert.Equal(t, ev.ValueUSD, got.ValueUSD)
	assert.Equal(t, ev.BlockHeight, got.BlockHeight)
	assert.Equal(t, ev.Timestamp, got.Timestamp)
	assert.Equal(t, ev.IsSignificant, got.IsSignificant)
}

func TestEventArchive_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := NewEventArchive(conn)
	ctx := context.Background()

	base := int64(1700000000000)
	for i := 0; i < 5; i++ {
		ev := testEvent("SP4RANGE", fmt.Sprintf("0x%d", i), base+int64(i)*1000)
		require.NoError(t, archive.Append(ctx, ev))
	}

	// Inclusive bounds, oldest first.
	events, err := archive.GetByTimeRange(ctx, base+1000, base+3000)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "0x1", events[0].TxID)
	assert.Equal(t, "0x2", events[1].TxID)
	assert.Equal(t, "0x3", events[2].TxID)
}

func TestEventArchive_AppendInvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := NewEventArchive(conn)
	ctx := context.Background()

	assert.ErrorIs(t, archive.Append(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, archive.Append(ctx, &domain.TrackedTransactionEvent{TxID: "0x1"}), storage.ErrInvalidInput)
	assert.ErrorIs(t, archive.Append(ctx, &domain.TrackedTransactionEvent{Address: "SP1"}), storage.ErrInvalidInput)
}
