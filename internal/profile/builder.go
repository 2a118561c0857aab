// Package profile builds and scores whale wallet profiles from chain data.
package profile

import (
	"context"
	"io"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"stacks-whale-intel/internal/chain"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/pricing"
)

// TxFetchLimit is how many recent transactions feed a profile build.
const TxFetchLimit = 50

// ChainReader is the slice of the chain client the builder needs.
type ChainReader interface {
	GetAccountBalances(ctx context.Context, address string) (*chain.AccountBalances, error)
	GetAddressTransactions(ctx context.Context, address string, limit int) ([]domain.Transaction, error)
}

// Builder constructs WhaleProfiles from balance, transaction history, and
// current prices.
type Builder struct {
	reader   ChainReader
	oracle   pricing.Oracle
	registry *Registry
	logger   *log.Logger

	// Now is injectable for tests exercising the 30/90-day windows.
	Now func() time.Time
}

// NewBuilder creates a profile builder.
func NewBuilder(reader ChainReader, oracle pricing.Oracle, registry *Registry, logger *log.Logger) *Builder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Builder{
		reader:   reader,
		oracle:   oracle,
		registry: registry,
		logger:   logger,
		Now:      time.Now,
	}
}

// Build fetches balance, recent transactions, and the native price
// concurrently, then derives portfolio, activity, and scores. A failed
// balance fetch returns (nil, nil): the caller soft-skips the address and
// continues its batch. Transaction and price failures degrade the profile
// (empty history, zero USD valuation) instead of failing it.
//
// When prior is non-nil its identity fields (alias, category, verified,
// source, createdAt, percentile, recent-activity cache) carry over and only
// portfolio/activity/scores are rebuilt.
func (b *Builder) Build(ctx context.Context, address string, prior *domain.WhaleProfile) (*domain.WhaleProfile, error) {
	var (
		wg       sync.WaitGroup
		balances *chain.AccountBalances
		balErr   error
		txs      []domain.Transaction
		txErr    error
		price    float64
		priceErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		balances, balErr = b.reader.GetAccountBalances(ctx, address)
	}()
	go func() {
		defer wg.Done()
		txs, txErr = b.reader.GetAddressTransactions(ctx, address, TxFetchLimit)
	}()
	go func() {
		defer wg.Done()
		price, priceErr = b.oracle.GetPrice(ctx, pricing.NativeSymbol)
	}()
	wg.Wait()

	if balErr != nil {
		b.logger.Printf("skip %s: balance fetch failed: %v", address, balErr)
		return nil, nil
	}
	if txErr != nil {
		b.logger.Printf("%s: transaction fetch failed, building with empty history: %v", address, txErr)
		txs = nil
	}
	if priceErr != nil {
		b.logger.Printf("%s: price fetch failed, valuing at zero: %v", address, priceErr)
		price = 0
	}

	now := b.Now().UnixMilli()
	activity := b.deriveActivity(txs, now)
	portfolio := b.derivePortfolio(ctx, balances, price)
	scores := ComputeScores(portfolio.STXBalance, activity.TxCount30d, len(activity.Protocols))

	p := &domain.WhaleProfile{
		Address:   address,
		Category:  inferCategory(activity.Protocols),
		Source:    domain.SourceAIDiscovered,
		Portfolio: portfolio,
		Activity:  activity,
		Scores:    scores,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if prior != nil {
		p.Alias = prior.Alias
		p.Category = prior.Category
		p.Verified = prior.Verified
		p.Source = prior.Source
		p.Percentile = prior.Percentile
		p.RecentTransactions = prior.RecentTransactions
		p.LastTransaction = prior.LastTransaction
		p.CreatedAt = prior.CreatedAt
	}

	return p, nil
}

// Refresh rebuilds the balance/activity portion of an existing profile.
// Used by the scheduler's fast update loop.
func (b *Builder) Refresh(ctx context.Context, profile *domain.WhaleProfile) (*domain.WhaleProfile, error) {
	return b.Build(ctx, profile.Address, profile)
}

// deriveActivity computes transaction-derived stats over the fetched window.
func (b *Builder) deriveActivity(txs []domain.Transaction, nowMs int64) domain.ActivityStats {
	cutoff30 := nowMs - 30*24*int64(time.Hour/time.Millisecond)
	cutoff90 := nowMs - 90*24*int64(time.Hour/time.Millisecond)

	stats := domain.ActivityStats{}
	protocols := make(map[string]struct{})

	for i := range txs {
		tx := &txs[i]
		if tx.Timestamp > stats.LastActiveAt {
			stats.LastActiveAt = tx.Timestamp
		}
		if tx.Timestamp >= cutoff90 {
			stats.TxCount90d++
		}
		if tx.Timestamp >= cutoff30 {
			stats.TxCount30d++
			stats.Volume30dSTX += txVolumeSTX(tx)
		}
		if tx.Kind == domain.TxContractCall {
			if label, ok := b.registry.ProtocolFor(tx.ContractCall.ContractID); ok {
				protocols[label] = struct{}{}
			}
		}
	}

	stats.Protocols = make([]string, 0, len(protocols))
	for p := range protocols {
		stats.Protocols = append(stats.Protocols, p)
	}
	sort.Strings(stats.Protocols)

	stats.ActivityLevel = domain.ActivityLevelFor(stats.TxCount30d)
	return stats
}

// txVolumeSTX returns the STX moved by a transaction: the transferred
// amount when available, otherwise the fee.
func txVolumeSTX(tx *domain.Transaction) float64 {
	if tx.Transfer != nil {
		return float64(tx.Transfer.AmountMicro) / chain.MicroSTX
	}
	return float64(tx.FeeMicro) / chain.MicroSTX
}

// derivePortfolio values the account. Untracked tokens keep their amount
// with zero USD value; that is deliberate, not an error.
func (b *Builder) derivePortfolio(ctx context.Context, balances *chain.AccountBalances, nativePrice float64) domain.Portfolio {
	p := domain.Portfolio{
		STXBalance: balances.STX(),
		STXLocked:  balances.LockedSTX(),
	}

	total := (p.STXBalance + p.STXLocked) * nativePrice

	assetIDs := make([]string, 0, len(balances.Tokens))
	for assetID := range balances.Tokens {
		assetIDs = append(assetIDs, assetID)
	}
	sort.Strings(assetIDs)

	for _, assetID := range assetIDs {
		raw := balances.Tokens[assetID]
		if raw == 0 {
			continue
		}

		holding := domain.TokenHolding{Symbol: assetSymbol(assetID), Amount: float64(raw)}
		if info, ok := b.registry.TokenFor(assetID); ok {
			holding.Symbol = info.Symbol
			holding.Amount = float64(raw) / math.Pow10(info.Decimals)
			if tokenPrice, err := b.oracle.GetPrice(ctx, info.Symbol); err == nil {
				holding.ValueUSD = holding.Amount * tokenPrice
			}
		}

		total += holding.ValueUSD
		p.Tokens = append(p.Tokens, holding)
	}

	p.TotalValueUSD = total
	return p
}

// assetSymbol falls back to the asset-name suffix of an untracked asset ID.
func assetSymbol(assetID string) string {
	for i := len(assetID) - 1; i > 0; i-- {
		if assetID[i] == ':' {
			return assetID[i+1:]
		}
	}
	return assetID
}

// inferCategory is a coarse heuristic over the protocol set.
func inferCategory(protocols []string) domain.Category {
	for _, p := range protocols {
		switch p {
		case "PoX", "StackingDAO":
			return domain.CategoryValidator
		}
	}
	if len(protocols) >= 2 {
		return domain.CategoryDefi
	}
	return domain.CategoryTrader
}
