package chain

// MicroSTX is the number of micro-units in one STX.
const MicroSTX = 1_000_000

// AccountBalances is the normalized balance view for one principal.
// Amounts are in micro-STX; token balances are in the token's base units.
type AccountBalances struct {
	BalanceMicro uint64
	LockedMicro  uint64
	// Tokens maps fully-qualified asset identifiers
	// ("{contract_id}::{asset_name}") to base-unit balances.
	Tokens map[string]uint64
}

// STX returns the liquid balance in whole STX.
func (b *AccountBalances) STX() float64 { return float64(b.BalanceMicro) / MicroSTX }

// LockedSTX returns the locked/stacked balance in whole STX.
func (b *AccountBalances) LockedSTX() float64 { return float64(b.LockedMicro) / MicroSTX }

// Raw API payloads. These mirror the chain's extended HTTP API and exist
// only to be decoded and normalized; nothing outside this package sees them.

type rawBalancesResponse struct {
	STX struct {
		Balance string `json:"balance"`
		Locked  string `json:"locked"`
	} `json:"stx"`
	FungibleTokens map[string]struct {
		Balance string `json:"balance"`
	} `json:"fungible_tokens"`
}

type rawTransactionList struct {
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	Total   int              `json:"total"`
	Results []rawTransaction `json:"results"`
}

type rawTransaction struct {
	TxID          string `json:"tx_id"`
	TxType        string `json:"tx_type"`
	TxStatus      string `json:"tx_status"`
	SenderAddress string `json:"sender_address"`
	FeeRate       string `json:"fee_rate"`
	BlockHeight   int64  `json:"block_height"`
	BlockTime     int64  `json:"block_time"` // Unix seconds

	TokenTransfer *struct {
		RecipientAddress string `json:"recipient_address"`
		Amount           string `json:"amount"`
		Memo             string `json:"memo"`
	} `json:"token_transfer"`

	ContractCall *struct {
		ContractID   string `json:"contract_id"`
		FunctionName string `json:"function_name"`
	} `json:"contract_call"`
}
