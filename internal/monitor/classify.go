package monitor

import (
	"fmt"
	"strings"

	"stacks-whale-intel/internal/chain"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/profile"
)

// Classify interprets a normalized transaction deterministically: same
// payload, same classification, every time. Unclassifiable transactions
// land in the neutral "Unknown transaction" bucket rather than being
// dropped.
func Classify(tx *domain.Transaction, registry *profile.Registry) domain.Classification {
	switch tx.Kind {
	case domain.TxTransfer:
		return domain.Classification{
			Type:   domain.TxTransfer,
			Intent: domain.IntentNeutral,
			Action: "Transferred STX",
		}
	case domain.TxContractCall:
		return classifyContractCall(tx, registry)
	default:
		return domain.Classification{
			Type:   domain.TxOther,
			Intent: domain.IntentNeutral,
			Action: "Unknown transaction",
		}
	}
}

// classifyContractCall resolves the protocol label and reads intent from
// the called function name. Substring checks run in priority order; the
// first match wins.
func classifyContractCall(tx *domain.Transaction, registry *profile.Registry) domain.Classification {
	c := domain.Classification{
		Type:   domain.TxContractCall,
		Intent: domain.IntentNeutral,
	}

	display := contractName(tx.ContractCall.ContractID)
	if label, ok := registry.ProtocolFor(tx.ContractCall.ContractID); ok {
		c.Protocol = label
		display = label
	}

	fn := strings.ToLower(tx.ContractCall.FunctionName)
	switch {
	case strings.Contains(fn, "stack"):
		c.Intent = domain.IntentBullish
		c.Action = fmt.Sprintf("Stacked STX via %s", display)
	case strings.Contains(fn, "swap"):
		c.Intent = domain.IntentNeutral
		c.Action = fmt.Sprintf("Swapped on %s", display)
	case strings.Contains(fn, "mint"):
		c.Intent = domain.IntentBullish
		c.Action = fmt.Sprintf("Minted on %s", display)
	case strings.Contains(fn, "burn"):
		c.Intent = domain.IntentBearish
		c.Action = fmt.Sprintf("Burned on %s", display)
	case strings.Contains(fn, "lp"), strings.Contains(fn, "liquidity"):
		c.Intent = domain.IntentBullish
		c.Action = fmt.Sprintf("Provided liquidity on %s", display)
	default:
		c.Action = fmt.Sprintf("Called %s on %s", tx.ContractCall.FunctionName, display)
	}

	return c
}

// contractName returns the name part of "{address}.{name}" for display
// when no protocol label is known.
func contractName(contractID string) string {
	if i := strings.IndexByte(contractID, '.'); i >= 0 && i+1 < len(contractID) {
		return contractID[i+1:]
	}
	return contractID
}

// ValueSTX is the event valuation rule: transfers are valued at the
// transferred amount; contract calls (and everything else) at the
// transaction fee. The fee is a proxy for significance, not true economic
// value — a known approximation carried over deliberately.
func ValueSTX(tx *domain.Transaction) float64 {
	if tx.Kind == domain.TxTransfer && tx.Transfer != nil {
		return float64(tx.Transfer.AmountMicro) / chain.MicroSTX
	}
	return float64(tx.FeeMicro) / chain.MicroSTX
}
