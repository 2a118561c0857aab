package monitor

import (
	"testing"

	"stacks-whale-intel/internal/chain"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/profile"
)

func callTx(contractID, fn string) *domain.Transaction {
	return &domain.Transaction{
		TxID:         "0xcall",
		Kind:         domain.TxContractCall,
		FeeMicro:     300,
		Success:      true,
		ContractCall: &domain.ContractCallDetail{ContractID: contractID, FunctionName: fn},
	}
}

func TestClassify_Transfer(t *testing.T) {
	tx := &domain.Transaction{
		TxID:     "0xtransfer",
		Kind:     domain.TxTransfer,
		Transfer: &domain.TransferDetail{Recipient: "SP000OTHER", AmountMicro: 5_000 * chain.MicroSTX},
	}

	c := Classify(tx, profile.DefaultRegistry())
	if c.Type != domain.TxTransfer {
		t.Errorf("Type = %s", c.Type)
	}
	if c.Intent != domain.IntentNeutral {
		t.Errorf("Intent = %s, want neutral", c.Intent)
	}
	if c.Action != "Transferred STX" {
		t.Errorf("Action = %q", c.Action)
	}
}

func TestClassify_ContractCalls(t *testing.T) {
	registry := profile.DefaultRegistry()

	tests := []struct {
		name         string
		contractID   string
		fn           string
		wantIntent   domain.Intent
		wantAction   string
		wantProtocol string
	}{
		{
			name:         "stacking via known protocol",
			contractID:   "SP4SZE494VC2YC5JYG7AYFQ44F5Q4PYV7DVMDPBG.stacking-dao-core-v1",
			fn:           "delegate-stack-stx",
			wantIntent:   domain.IntentBullish,
			wantAction:   "Stacked STX via StackingDAO",
			wantProtocol: "StackingDAO",
		},
		{
			name:         "swap",
			contractID:   "SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM.arkadiko-swap-v2-1",
			fn:           "swap-x-for-y",
			wantIntent:   domain.IntentNeutral,
			wantAction:   "Swapped on Arkadiko",
			wantProtocol: "Arkadiko",
		},
		{
			name:         "mint",
			contractID:   "SP2C2YFP12AJZB4MABJBAJ55XECVS7E4PMMZ89YZR.alex-launchpad-v1-1",
			fn:           "mint-fixed",
			wantIntent:   domain.IntentBullish,
			wantAction:   "Minted on ALEX",
			wantProtocol: "ALEX",
		},
		{
			name:         "burn",
			contractID:   "SP2C2YFP12AJZB4MABJBAJ55XECVS7E4PMMZ89YZR.token-pool",
			fn:           "burn-tokens",
			wantIntent:   domain.IntentBearish,
			wantAction:   "Burned on ALEX",
			wantProtocol: "ALEX",
		},
		{
			name:         "liquidity",
			contractID:   "SP2XD7417HGPRTREMKF748VNEQPDRR0RMANB7X1NK.univ2-router",
			fn:           "add-liquidity",
			wantIntent:   domain.IntentBullish,
			wantAction:   "Provided liquidity on Velar",
			wantProtocol: "Velar",
		},
		{
			name:       "stack beats swap in priority order",
			contractID: "SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM.arkadiko-stacker-v1",
			fn:         "stack-and-swap",
			wantIntent: domain.IntentBullish, wantAction: "Stacked STX via Arkadiko",
			wantProtocol: "Arkadiko",
		},
		{
			name:       "unknown contract falls back to contract name",
			contractID: "SPUNKNOWN.cool-dapp-v3",
			fn:         "swap-exact-tokens",
			wantIntent: domain.IntentNeutral,
			wantAction: "Swapped on cool-dapp-v3",
		},
		{
			name:         "unmatched function name",
			contractID:   "SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM.arkadiko-governance-v4-3",
			fn:           "cast-vote",
			wantIntent:   domain.IntentNeutral,
			wantAction:   "Called cast-vote on Arkadiko",
			wantProtocol: "Arkadiko",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(callTx(tt.contractID, tt.fn), registry)
			if c.Type != domain.TxContractCall {
				t.Errorf("Type = %s", c.Type)
			}
			if c.Intent != tt.wantIntent {
				t.Errorf("Intent = %s, want %s", c.Intent, tt.wantIntent)
			}
			if c.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", c.Action, tt.wantAction)
			}
			if c.Protocol != tt.wantProtocol {
				t.Errorf("Protocol = %q, want %q", c.Protocol, tt.wantProtocol)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	registry := profile.DefaultRegistry()
	tx := callTx("SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM.arkadiko-swap-v2-1", "swap-x-for-y")

	first := Classify(tx, registry)
	for i := 0; i < 100; i++ {
		if got := Classify(tx, registry); got != first {
			t.Fatalf("classification changed on iteration %d: %+v vs %+v", i, got, first)
		}
	}
}

func TestClassify_OtherKind(t *testing.T) {
	tx := &domain.Transaction{TxID: "0xcoinbase", Kind: domain.TxOther}

	c := Classify(tx, profile.DefaultRegistry())
	if c.Action != "Unknown transaction" || c.Intent != domain.IntentNeutral {
		t.Errorf("other kind classified as %+v", c)
	}
}

func TestValueSTX(t *testing.T) {
	transfer := &domain.Transaction{
		Kind:     domain.TxTransfer,
		FeeMicro: 180,
		Transfer: &domain.TransferDetail{AmountMicro: 25_000 * chain.MicroSTX},
	}
	if got := ValueSTX(transfer); got != 25_000 {
		t.Errorf("transfer value = %f, want 25000", got)
	}

	call := callTx("SPX.contract", "do-thing")
	call.FeeMicro = 500_000
	if got := ValueSTX(call); got != 0.5 {
		t.Errorf("call value = %f, want 0.5 (fee proxy)", got)
	}

	other := &domain.Transaction{Kind: domain.TxOther, FeeMicro: 100}
	if got := ValueSTX(other); got != 0.0001 {
		t.Errorf("other value = %f, want 0.0001", got)
	}
}
