package domain

// Category is the inferred role of a whale wallet. It is heuristic,
// not authoritative.
type Category string

const (
	CategoryDefi           Category = "defi"
	CategoryValidator      Category = "validator"
	CategoryNFT            Category = "nft"
	CategoryDAO            Category = "dao"
	CategoryTrader         Category = "trader"
	CategoryInfrastructure Category = "infrastructure"
)

// Source records how a profile entered the system.
type Source string

const (
	SourceCurated      Source = "curated"
	SourceAIDiscovered Source = "ai_discovered"
	SourceManual       Source = "manual"
	SourceIndexed      Source = "indexed"
)

// ActivityLevel buckets a wallet by its 30-day transaction count.
type ActivityLevel string

const (
	ActivityHigh   ActivityLevel = "high"
	ActivityMedium ActivityLevel = "medium"
	ActivityLow    ActivityLevel = "low"
)

// ActivityLevelFor is the canonical mapping from 30-day tx count to level.
// It is a total function of the count and nothing else.
func ActivityLevelFor(txCount30d int) ActivityLevel {
	switch {
	case txCount30d >= 50:
		return ActivityHigh
	case txCount30d >= 20:
		return ActivityMedium
	default:
		return ActivityLow
	}
}

// TokenHolding is one fungible-token position inside a portfolio.
type TokenHolding struct {
	Symbol   string  `json:"symbol"`
	Amount   float64 `json:"amount"`
	ValueUSD float64 `json:"value_usd"`
}

// Portfolio holds the balance side of a whale profile. STX amounts are in
// whole STX, already converted from micro-units.
type Portfolio struct {
	STXBalance    float64        `json:"stx_balance"`
	STXLocked     float64        `json:"stx_locked"`
	TotalValueUSD float64        `json:"total_value_usd"`
	Tokens        []TokenHolding `json:"tokens"`
}

// ActivityStats holds the behavioral side of a whale profile.
type ActivityStats struct {
	Protocols     []string      `json:"protocols"`
	TxCount30d    int           `json:"tx_count_30d"`
	TxCount90d    int           `json:"tx_count_90d"`
	Volume30dSTX  float64       `json:"volume_30d_stx"`
	LastActiveAt  int64         `json:"last_active_at"` // Unix ms, 0 if never seen active
	ActivityLevel ActivityLevel `json:"activity_level"`
}

// Scores holds the 0-100 score components. Composite is always recomputed
// from the others, never hand-edited.
type Scores struct {
	Composite int `json:"composite"`
	Balance   int `json:"balance"`
	Activity  int `json:"activity"`
	Diversity int `json:"diversity"`
}

// TxSummary is a compact record of a single transaction kept on the profile.
type TxSummary struct {
	TxID      string  `json:"tx_id"`
	Action    string  `json:"action"`
	ValueUSD  float64 `json:"value_usd"`
	Timestamp int64   `json:"timestamp"` // Unix ms
}

// MaxRecentTransactions caps the per-profile recent-activity cache.
const MaxRecentTransactions = 20

// WhaleProfile is the central persisted entity: a scored, tracked
// high-value wallet. Address is immutable and globally unique.
type WhaleProfile struct {
	Address  string   `json:"address"`
	Alias    *string  `json:"alias,omitempty"`
	Category Category `json:"category"`
	Verified bool     `json:"verified"`
	Source   Source   `json:"source"`

	Portfolio Portfolio     `json:"portfolio"`
	Activity  ActivityStats `json:"activity"`
	Scores    Scores        `json:"scores"`

	// Percentile within the most recent discovery ranking, 0-100.
	Percentile int `json:"percentile"`

	// RecentTransactions is a bounded most-recent-first cache.
	RecentTransactions []TxSummary `json:"recent_transactions"`

	// LastTransaction is the single latest classified transaction summary,
	// replaced on every live-monitor merge.
	LastTransaction *TxSummary `json:"last_transaction,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix ms
	UpdatedAt int64 `json:"updated_at"` // Unix ms
}

// PushRecentTransaction prepends a summary to the recent-activity cache,
// trimming to MaxRecentTransactions.
func (p *WhaleProfile) PushRecentTransaction(s TxSummary) {
	p.RecentTransactions = append([]TxSummary{s}, p.RecentTransactions...)
	if len(p.RecentTransactions) > MaxRecentTransactions {
		p.RecentTransactions = p.RecentTransactions[:MaxRecentTransactions]
	}
}
