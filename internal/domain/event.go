package domain

// Intent is the directional read of a classified transaction.
type Intent string

const (
	IntentBullish Intent = "bullish"
	IntentBearish Intent = "bearish"
	IntentNeutral Intent = "neutral"
)

// Classification is the deterministic interpretation of a transaction
// payload: what kind of move it is, which protocol it touched, and a
// human-readable action line.
type Classification struct {
	Type     TxKind `json:"type"`
	Intent   Intent `json:"intent"`
	Action   string `json:"action"`
	Protocol string `json:"protocol,omitempty"`
}

// TrackedTransactionEvent is the unit the live monitor produces and the
// broadcast hub relays. It is ephemeral: archived for analytics but never
// part of the profile document itself.
type TrackedTransactionEvent struct {
	Address        string         `json:"address"`
	Alias          *string        `json:"alias,omitempty"`
	TxID           string         `json:"tx_id"`
	Classification Classification `json:"classification"`
	ValueSTX       float64        `json:"value_stx"`
	ValueUSD       float64        `json:"value_usd"`
	BlockHeight    int64          `json:"block_height"`
	Timestamp      int64          `json:"timestamp"` // Unix ms
	IsSignificant  bool           `json:"is_significant"`
}
