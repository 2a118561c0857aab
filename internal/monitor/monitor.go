// Package monitor maintains the live connection to the chain's transaction
// feed and turns raw pushes into classified, valued, persisted whale events.
package monitor

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"stacks-whale-intel/internal/chain"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/observability"
	"stacks-whale-intel/internal/pricing"
	"stacks-whale-intel/internal/profile"
	"stacks-whale-intel/internal/storage"
)

// State names the monitor's connection lifecycle. Disconnects are a
// transition, not an error path: the monitor reconnects forever until its
// context is cancelled.
type State string

const (
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateStreaming    State = "streaming"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
)

// Publisher receives every classified event. The broadcast hub implements
// this; tests substitute a recorder.
type Publisher interface {
	Publish(event domain.TrackedTransactionEvent)
}

// Config tunes the monitor.
type Config struct {
	// AlertThresholdUSD marks events strictly above this value significant.
	AlertThresholdUSD float64
	// ReconnectDelay is the initial backoff after a transport error.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff.
	MaxReconnectDelay time.Duration
}

// DefaultConfig returns production monitor settings.
func DefaultConfig() Config {
	return Config{
		AlertThresholdUSD: 50_000,
		ReconnectDelay:    2 * time.Second,
		MaxReconnectDelay: 120 * time.Second,
	}
}

// Health is the liveness view exposed on /health.
type Health struct {
	State         State `json:"state"`
	Connected     bool  `json:"connected"`
	LastHeartbeat int64 `json:"last_heartbeat"` // Unix ms, 0 before first block
	BlockHeight   int64 `json:"block_height"`
	TrackedCount  int   `json:"tracked_count"`
	Reconnects    int   `json:"reconnects"`
}

// Monitor is one monitoring session over the live feed.
type Monitor struct {
	cfg      Config
	dialer   chain.FeedDialer
	store    storage.ProfileStore
	archive  storage.EventArchive // may be nil
	oracle   pricing.Oracle
	registry *profile.Registry
	pub      Publisher
	logger   *log.Logger

	mu            sync.RWMutex
	state         State
	tracked       []string
	lastHeartbeat int64
	blockHeight   int64
	reconnects    int
}

// New creates a monitor. archive may be nil to disable event archiving.
func New(cfg Config, dialer chain.FeedDialer, store storage.ProfileStore, archive storage.EventArchive,
	oracle pricing.Oracle, registry *profile.Registry, pub Publisher, logger *log.Logger) *Monitor {
	if registry == nil {
		registry = profile.DefaultRegistry()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = DefaultConfig().MaxReconnectDelay
	}
	return &Monitor{
		cfg:      cfg,
		dialer:   dialer,
		store:    store,
		archive:  archive,
		oracle:   oracle,
		registry: registry,
		pub:      pub,
		logger:   logger,
		state:    StateConnecting,
	}
}

// Run loads the tracked-address set and drives the connection state machine
// until ctx is cancelled. Failure to read the tracked set is fatal — the
// monitor cannot start without knowing what to subscribe to. Everything
// after that is recoverable.
func (m *Monitor) Run(ctx context.Context) error {
	addresses, err := m.store.ListAddresses(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.tracked = addresses
	m.mu.Unlock()
	m.logger.Printf("monitoring %d tracked addresses", len(addresses))

	delay := m.cfg.ReconnectDelay

	for {
		if ctx.Err() != nil {
			m.setState(StateStopped)
			return ctx.Err()
		}

		m.setState(StateConnecting)
		conn, err := m.dialer.Dial(ctx)
		if err != nil {
			m.logger.Printf("feed dial failed: %v", err)
			if err := m.waitReconnect(ctx, &delay); err != nil {
				return err
			}
			continue
		}

		if err := m.subscribe(conn); err != nil {
			m.logger.Printf("feed subscribe failed: %v", err)
			conn.Close()
			if err := m.waitReconnect(ctx, &delay); err != nil {
				return err
			}
			continue
		}

		m.setState(StateStreaming)
		delay = m.cfg.ReconnectDelay // healthy connection resets backoff

		// Next has no context; close the connection when ctx ends so an
		// idle read unblocks instead of waiting out its deadline.
		stopWatch := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stopWatch:
			}
		}()

		err = m.stream(ctx, conn)
		close(stopWatch)
		conn.Close()
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			m.setState(StateStopped)
			return ctx.Err()
		}

		m.logger.Printf("feed stream ended: %v", err)
		if err := m.waitReconnect(ctx, &delay); err != nil {
			return err
		}
	}
}

// subscribe requests the block heartbeat channel, then one subscription per
// tracked address. After a reconnect this re-subscribes exactly the same
// address set.
func (m *Monitor) subscribe(conn chain.FeedConn) error {
	if err := conn.SubscribeBlocks(); err != nil {
		return err
	}
	m.setState(StateSubscribed)

	m.mu.RLock()
	addresses := append([]string(nil), m.tracked...)
	m.mu.RUnlock()

	for _, addr := range addresses {
		if err := conn.SubscribeAddress(addr); err != nil {
			return err
		}
	}
	return nil
}

// stream consumes feed events until the transport fails or ctx ends.
// Events for one address are classified, persisted, archived, and
// broadcast strictly in receipt order: this is the single consumer.
func (m *Monitor) stream(ctx context.Context, conn chain.FeedConn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ev, err := conn.Next()
		if err != nil {
			return err
		}

		observability.RecordFeedEvent(string(ev.Kind))

		switch ev.Kind {
		case chain.FeedBlock:
			m.mu.Lock()
			m.lastHeartbeat = time.Now().UnixMilli()
			m.blockHeight = ev.Height
			m.mu.Unlock()
			observability.DefaultMetrics.FeedBlockHeight.Set(float64(ev.Height))
			observability.DefaultMetrics.LastFeedHeartbeat.Set(float64(time.Now().Unix()))
		case chain.FeedAddressTx:
			m.handleTransaction(ctx, ev.Address, &ev.Tx)
		case chain.FeedMicroblock:
			// Not business input; nothing to do.
		}
	}
}

// handleTransaction classifies, values, merges, archives, and publishes one
// transaction for a tracked address. Store failures are logged and skipped;
// the event is still broadcast so subscribers never miss a move because a
// write failed.
func (m *Monitor) handleTransaction(ctx context.Context, address string, tx *domain.Transaction) {
	classification := Classify(tx, m.registry)

	valueSTX := ValueSTX(tx)
	price, err := m.oracle.GetPrice(ctx, pricing.NativeSymbol)
	if err != nil {
		m.logger.Printf("price lookup failed, valuing %s at zero: %v", tx.TxID, err)
		price = 0
	}
	valueUSD := valueSTX * price

	event := domain.TrackedTransactionEvent{
		Address:        address,
		TxID:           tx.TxID,
		Classification: classification,
		ValueSTX:       valueSTX,
		ValueUSD:       valueUSD,
		BlockHeight:    tx.BlockHeight,
		Timestamp:      tx.Timestamp,
		IsSignificant:  m.cfg.AlertThresholdUSD > 0 && valueUSD > m.cfg.AlertThresholdUSD,
	}

	if alias := m.mergeProfile(ctx, address, tx, &event); alias != nil {
		event.Alias = alias
	}

	if m.archive != nil {
		if err := m.archive.Append(ctx, &event); err != nil {
			m.logger.Printf("archive append failed for %s: %v", tx.TxID, err)
		}
	}

	if m.pub != nil {
		m.pub.Publish(event)
		observability.RecordEventPublished(event.IsSignificant)
	}
}

// mergeProfile applies the incremental per-transaction update to the stored
// profile: bump 30d counters, replace the last-transaction summary, refresh
// the recent-activity cache. Returns the profile alias for event labeling.
func (m *Monitor) mergeProfile(ctx context.Context, address string, tx *domain.Transaction, event *domain.TrackedTransactionEvent) *string {
	p, err := m.store.GetByAddress(ctx, address)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Printf("profile load failed for %s: %v", address, err)
		}
		return nil
	}

	summary := domain.TxSummary{
		TxID:      tx.TxID,
		Action:    event.Classification.Action,
		ValueUSD:  event.ValueUSD,
		Timestamp: tx.Timestamp,
	}

	p.Activity.TxCount30d++
	p.Activity.ActivityLevel = domain.ActivityLevelFor(p.Activity.TxCount30d)
	p.Activity.Volume30dSTX += event.ValueSTX
	if tx.Timestamp > p.Activity.LastActiveAt {
		p.Activity.LastActiveAt = tx.Timestamp
	}
	p.LastTransaction = &summary
	p.PushRecentTransaction(summary)
	p.UpdatedAt = time.Now().UnixMilli()

	if err := m.store.Upsert(ctx, p); err != nil {
		m.logger.Printf("profile merge failed for %s: %v", address, err)
	}
	return p.Alias
}

// waitReconnect sleeps the current backoff and doubles it up to the cap.
func (m *Monitor) waitReconnect(ctx context.Context, delay *time.Duration) error {
	m.setState(StateReconnecting)
	m.mu.Lock()
	m.reconnects++
	m.mu.Unlock()
	observability.RecordFeedReconnect()

	t := time.NewTimer(*delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		m.setState(StateStopped)
		return ctx.Err()
	case <-t.C:
	}

	*delay *= 2
	if *delay > m.cfg.MaxReconnectDelay {
		*delay = m.cfg.MaxReconnectDelay
	}
	return nil
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Tracked returns the subscribed address set.
func (m *Monitor) Tracked() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.tracked...)
}

// Health reports the liveness view.
func (m *Monitor) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Health{
		State:         m.state,
		Connected:     m.state == StateStreaming || m.state == StateSubscribed,
		LastHeartbeat: m.lastHeartbeat,
		BlockHeight:   m.blockHeight,
		TrackedCount:  len(m.tracked),
		Reconnects:    m.reconnects,
	}
}
