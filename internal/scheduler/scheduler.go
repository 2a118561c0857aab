// Package scheduler drives the two periodic refresh loops: slow discovery
// of new whales and fast metric updates for already-tracked ones.
package scheduler

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"stacks-whale-intel/internal/discovery"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/observability"
	"stacks-whale-intel/internal/profile"
	"stacks-whale-intel/internal/storage"
)

// Config holds the two loop intervals and the discovery size.
type Config struct {
	DiscoveryInterval time.Duration
	UpdateInterval    time.Duration
	TopN              int
	// RunDiscoveryAtStart runs one discovery cycle immediately instead of
	// waiting for the first tick. The server enables this so a fresh
	// deployment has whales to monitor.
	RunDiscoveryAtStart bool
}

// DefaultConfig returns production intervals.
func DefaultConfig() Config {
	return Config{
		DiscoveryInterval: 1 * time.Hour,
		UpdateInterval:    15 * time.Minute,
		TopN:              20,
	}
}

// Scheduler owns the two timers. Both loops share the store and the chain
// client's rate limiter; per-address upserts are idempotent, so the loops
// deliberately run without mutual exclusion and overlapping writers to one
// address resolve last-writer-wins.
type Scheduler struct {
	cfg     Config
	engine  *discovery.Engine
	builder *profile.Builder
	store   storage.ProfileStore
	logger  *log.Logger

	mu               sync.Mutex
	discoveryRunning bool
	updateRunning    bool
	lastDiscovery    time.Time
	lastUpdate       time.Time
	discoveryRuns    int
	updateRuns       int
}

// New creates a scheduler.
func New(cfg Config, engine *discovery.Engine, builder *profile.Builder, store storage.ProfileStore, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = DefaultConfig().DiscoveryInterval
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultConfig().UpdateInterval
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultConfig().TopN
	}
	return &Scheduler{cfg: cfg, engine: engine, builder: builder, store: store, logger: logger}
}

// Run starts both loops and blocks until ctx is cancelled. In-flight cycles
// are abandoned mid-batch on shutdown; discovery is idempotent and re-runs
// next cycle, so partial completion is acceptable.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.runDiscoveryLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runUpdateLoop(ctx)
	}()

	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) runDiscoveryLoop(ctx context.Context) {
	s.logger.Printf("discovery loop every %v", s.cfg.DiscoveryInterval)

	if s.cfg.RunDiscoveryAtStart {
		s.RunDiscoveryCycle(ctx)
	}

	ticker := time.NewTicker(s.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunDiscoveryCycle(ctx)
		}
	}
}

func (s *Scheduler) runUpdateLoop(ctx context.Context) {
	s.logger.Printf("update loop every %v", s.cfg.UpdateInterval)

	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunUpdateCycle(ctx)
		}
	}
}

// RunDiscoveryCycle executes one discovery pass and upserts the results.
// A cycle still in flight is not queued behind.
func (s *Scheduler) RunDiscoveryCycle(ctx context.Context) {
	s.mu.Lock()
	if s.discoveryRunning {
		s.mu.Unlock()
		s.logger.Println("discovery already running, skipping")
		return
	}
	s.discoveryRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.discoveryRunning = false
		s.lastDiscovery = time.Now()
		s.discoveryRuns++
		s.mu.Unlock()
	}()

	start := time.Now()
	profiles, err := s.engine.DiscoverTop(ctx, s.cfg.TopN)
	if err != nil {
		s.logger.Printf("discovery failed: %v", err)
		observability.RecordDiscoveryCycle("error", time.Since(start).Seconds())
		return
	}

	stored := 0
	for _, p := range profiles {
		if err := s.store.Upsert(ctx, p); err != nil {
			// Mid-run store failure is non-fatal; next cycle retries.
			s.logger.Printf("upsert %s failed: %v", p.Address, err)
			continue
		}
		stored++
	}

	observability.RecordDiscoveryCycle("success", time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulDiscovery.Set(float64(time.Now().Unix()))
	if n, err := s.store.Count(ctx); err == nil {
		observability.DefaultMetrics.WhalesTracked.Set(float64(n))
	}

	s.logger.Printf("discovery cycle done in %v: %d whales, %d stored", time.Since(start), len(profiles), stored)
}

// RunUpdateCycle refreshes balance/activity/scores for every tracked
// profile. Failed refreshes are skipped, not fatal.
func (s *Scheduler) RunUpdateCycle(ctx context.Context) {
	s.mu.Lock()
	if s.updateRunning {
		s.mu.Unlock()
		s.logger.Println("update already running, skipping")
		return
	}
	s.updateRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.updateRunning = false
		s.lastUpdate = time.Now()
		s.updateRuns++
		s.mu.Unlock()
	}()

	start := time.Now()
	profiles, err := s.store.TopByScore(ctx, -1)
	if err != nil {
		s.logger.Printf("update cycle: load profiles failed: %v", err)
		observability.RecordUpdateCycle("error", time.Since(start).Seconds())
		return
	}

	refreshed := 0
	for _, p := range profiles {
		if ctx.Err() != nil {
			return
		}
		updated, err := s.refresh(ctx, p)
		if err != nil {
			s.logger.Printf("refresh %s failed: %v", p.Address, err)
			continue
		}
		if updated {
			refreshed++
			observability.DefaultMetrics.ProfilesRefreshed.Inc()
		}
	}

	observability.RecordUpdateCycle("success", time.Since(start).Seconds())
	s.logger.Printf("update cycle done in %v: %d/%d refreshed", time.Since(start), refreshed, len(profiles))
}

func (s *Scheduler) refresh(ctx context.Context, p *domain.WhaleProfile) (bool, error) {
	updated, err := s.builder.Refresh(ctx, p)
	if err != nil {
		return false, err
	}
	if updated == nil {
		// Balance fetch failed; keep the stale profile until next cycle.
		return false, nil
	}
	if err := s.store.Upsert(ctx, updated); err != nil {
		return false, err
	}
	return true, nil
}

// Status is the scheduler's view for the /status endpoint.
type Status struct {
	DiscoveryRunning bool      `json:"discovery_running"`
	UpdateRunning    bool      `json:"update_running"`
	LastDiscovery    time.Time `json:"last_discovery,omitempty"`
	LastUpdate       time.Time `json:"last_update,omitempty"`
	DiscoveryRuns    int       `json:"discovery_runs"`
	UpdateRuns       int       `json:"update_runs"`
}

// Status returns a snapshot of loop state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		DiscoveryRunning: s.discoveryRunning,
		UpdateRunning:    s.updateRunning,
		LastDiscovery:    s.lastDiscovery,
		LastUpdate:       s.lastUpdate,
		DiscoveryRuns:    s.discoveryRuns,
		UpdateRuns:       s.updateRuns,
	}
}
