// Package discovery finds new high-value wallets by sampling recent
// chain-wide activity.
package discovery

import (
	"context"
	"io"
	"log"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/observability"
	"stacks-whale-intel/internal/profile"
)

// Config bounds the discovery heuristic.
type Config struct {
	// ScanWindow is how many recent chain-wide transactions to sample.
	ScanWindow int
	// MinBalanceSTX drops candidates below this liquid balance.
	MinBalanceSTX float64
	// MinTxCount30d drops candidates below this 30-day activity floor.
	MinTxCount30d int
	// MaxConcurrentBuilds caps in-flight profile builds. Outbound HTTP
	// still serializes through the shared rate limiter, so this bounds
	// memory, not call rate.
	MaxConcurrentBuilds int
}

// DefaultConfig returns production discovery settings.
func DefaultConfig() Config {
	return Config{
		ScanWindow:          200,
		MinBalanceSTX:       100_000,
		MinTxCount30d:       5,
		MaxConcurrentBuilds: 8,
	}
}

// RecentTxSource is the slice of the chain client discovery needs.
type RecentTxSource interface {
	GetRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// Engine samples recent global transactions, extracts candidate senders,
// builds profiles, and ranks survivors by composite score.
//
// This is deliberately a heuristic: the chain exposes no top-balances
// endpoint, so the candidate set depends on which transactions happened to
// be recent, and whales that are temporarily inactive are missed until they
// move again.
type Engine struct {
	cfg      Config
	source   RecentTxSource
	builder  *profile.Builder
	registry *profile.Registry
	logger   *log.Logger
}

// NewEngine creates a discovery engine.
func NewEngine(cfg Config, source RecentTxSource, builder *profile.Builder, registry *profile.Registry, logger *log.Logger) *Engine {
	if registry == nil {
		registry = profile.DefaultRegistry()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = DefaultConfig().ScanWindow
	}
	if cfg.MaxConcurrentBuilds <= 0 {
		cfg.MaxConcurrentBuilds = DefaultConfig().MaxConcurrentBuilds
	}
	return &Engine{cfg: cfg, source: source, builder: builder, registry: registry, logger: logger}
}

// DiscoverTop returns the top n whale profiles found in the current sample,
// sorted by composite score descending (ties broken by higher balance),
// with percentiles assigned. Candidates whose balance fetch fails are
// skipped; a failure never aborts the batch.
func (e *Engine) DiscoverTop(ctx context.Context, n int) ([]*domain.WhaleProfile, error) {
	txs, err := e.source.GetRecentTransactions(ctx, e.cfg.ScanWindow)
	if err != nil {
		return nil, err
	}

	candidates := e.extractCandidates(txs)
	e.logger.Printf("scanned %d transactions, %d candidate addresses", len(txs), len(candidates))
	observability.DefaultMetrics.CandidatesExtracted.Add(float64(len(candidates)))

	var (
		mu       sync.Mutex
		profiles []*domain.WhaleProfile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrentBuilds)

	for _, address := range candidates {
		address := address
		g.Go(func() error {
			p, err := e.builder.Build(gctx, address, nil)
			if err != nil {
				// Builder soft-skips fetch failures itself; an error here
				// is cancellation.
				return err
			}
			if p == nil {
				return nil
			}
			if p.Portfolio.STXBalance < e.cfg.MinBalanceSTX || p.Activity.TxCount30d < e.cfg.MinTxCount30d {
				return nil
			}
			mu.Lock()
			profiles = append(profiles, p)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rankProfiles(profiles)

	if len(profiles) > n {
		profiles = profiles[:n]
	}
	assignPercentiles(profiles)

	return profiles, nil
}

// extractCandidates returns unique sender addresses from the sample, minus
// known infrastructure, in first-seen order.
func (e *Engine) extractCandidates(txs []domain.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	var out []string
	for i := range txs {
		sender := txs[i].Sender
		if sender == "" {
			continue
		}
		if _, dup := seen[sender]; dup {
			continue
		}
		seen[sender] = struct{}{}
		if e.registry.IsExcluded(sender) {
			continue
		}
		out = append(out, sender)
	}
	return out
}

// rankProfiles sorts by composite score desc, ties broken by balance desc,
// then address for determinism.
func rankProfiles(profiles []*domain.WhaleProfile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Scores.Composite != profiles[j].Scores.Composite {
			return profiles[i].Scores.Composite > profiles[j].Scores.Composite
		}
		if profiles[i].Portfolio.STXBalance != profiles[j].Portfolio.STXBalance {
			return profiles[i].Portfolio.STXBalance > profiles[j].Portfolio.STXBalance
		}
		return profiles[i].Address < profiles[j].Address
	})
}

// assignPercentiles sets percentile = round(((n - rank) / n) * 100) with
// rank 0-indexed from the top.
func assignPercentiles(profiles []*domain.WhaleProfile) {
	n := len(profiles)
	if n == 0 {
		return
	}
	for rank, p := range profiles {
		p.Percentile = int(math.Round(float64(n-rank) / float64(n) * 100))
	}
}
