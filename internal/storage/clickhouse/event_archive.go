package clickhouse

import (
	"context"
	"fmt"
	"time"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/observability"
	"stacks-whale-intel/internal/storage"
)

// EventArchive implements storage.EventArchive using ClickHouse. The table
// is append-only MergeTree; whale events are analytics data, not state, so
// no uniqueness is enforced.
type EventArchive struct {
	conn *Conn
}

// NewEventArchive creates a new EventArchive.
func NewEventArchive(conn *Conn) *EventArchive {
	return &EventArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchive)(nil)

// Append stores one classified event.
func (a *EventArchive) Append(ctx context.Context, e *domain.TrackedTransactionEvent) error {
	if e == nil || e.Address == "" || e.TxID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO whale_events (
			address, tx_id, tx_type, intent, action, protocol,
			value_stx, value_usd, block_height, is_significant, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.Address, e.TxID,
		string(e.Classification.Type), string(e.Classification.Intent),
		e.Classification.Action, e.Classification.Protocol,
		e.ValueSTX, e.ValueUSD, uint64(e.BlockHeight), e.IsSignificant, uint64(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	start := time.Now()
	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_event", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAddress retrieves up to limit most recent events for an address.
func (a *EventArchive) GetByAddress(ctx context.Context, address string, limit int) ([]*domain.TrackedTransactionEvent, error) {
	query := `
		SELECT address, tx_id, tx_type, intent, action, protocol,
		       value_stx, value_usd, block_height, is_significant, timestamp_ms
		FROM whale_events
		WHERE address = ?
		ORDER BY timestamp_ms DESC
		LIMIT ?
	`
	return a.queryEvents(ctx, query, address, limit)
}

// GetByTimeRange retrieves events with timestamp in [start, end], oldest first.
func (a *EventArchive) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TrackedTransactionEvent, error) {
	query := `
		SELECT address, tx_id, tx_type, intent, action, protocol,
		       value_stx, value_usd, block_height, is_significant, timestamp_ms
		FROM whale_events
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`
	return a.queryEvents(ctx, query, uint64(start), uint64(end))
}

func (a *EventArchive) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*domain.TrackedTransactionEvent, error) {
	start := time.Now()
	rows, err := a.conn.Query(ctx, query, args...)
	observability.RecordDBQuery("clickhouse", "select_events", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query whale events: %w", err)
	}
	defer rows.Close()

	var events []*domain.TrackedTransactionEvent
	for rows.Next() {
		var (
			e           domain.TrackedTransactionEvent
			txType      string
			intent      string
			blockHeight uint64
			timestamp   uint64
		)
		err := rows.Scan(
			&e.Address, &e.TxID, &txType, &intent,
			&e.Classification.Action, &e.Classification.Protocol,
			&e.ValueSTX, &e.ValueUSD, &blockHeight, &e.IsSignificant, &timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan whale event: %w", err)
		}
		e.Classification.Type = domain.TxKind(txType)
		e.Classification.Intent = domain.Intent(intent)
		e.BlockHeight = int64(blockHeight)
		e.Timestamp = int64(timestamp)
		events = append(events, &e)
	}
	return events, rows.Err()
}
