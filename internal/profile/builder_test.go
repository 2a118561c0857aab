package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"stacks-whale-intel/internal/chain"
	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/pricing"
)

// fakeReader serves canned chain data per address.
type fakeReader struct {
	balances map[string]*chain.AccountBalances
	txs      map[string][]domain.Transaction
	balErr   error
	txErr    error
}

func (f *fakeReader) GetAccountBalances(_ context.Context, address string) (*chain.AccountBalances, error) {
	if f.balErr != nil {
		return nil, f.balErr
	}
	b, ok := f.balances[address]
	if !ok {
		b = &chain.AccountBalances{}
	}
	return b, nil
}

func (f *fakeReader) GetAddressTransactions(_ context.Context, address string, _ int) ([]domain.Transaction, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	return f.txs[address], nil
}

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestBuilder(reader *fakeReader, oracle pricing.Oracle) *Builder {
	if oracle == nil {
		oracle = &pricing.StaticOracle{Prices: map[string]float64{"STX": 2.0}}
	}
	b := NewBuilder(reader, oracle, DefaultRegistry(), nil)
	b.Now = func() time.Time { return testNow }
	return b
}

func daysAgo(n int) int64 {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour).UnixMilli()
}

func transferTx(id string, ts int64, amountMicro uint64) domain.Transaction {
	return domain.Transaction{
		TxID:      id,
		Kind:      domain.TxTransfer,
		Sender:    "SP000WHALE",
		FeeMicro:  180,
		Timestamp: ts,
		Success:   true,
		Transfer:  &domain.TransferDetail{Recipient: "SP000OTHER", AmountMicro: amountMicro},
	}
}

func callTx(id string, ts int64, contractID, fn string) domain.Transaction {
	return domain.Transaction{
		TxID:         id,
		Kind:         domain.TxContractCall,
		Sender:       "SP000WHALE",
		FeeMicro:     300,
		Timestamp:    ts,
		Success:      true,
		ContractCall: &domain.ContractCallDetail{ContractID: contractID, FunctionName: fn},
	}
}

func TestBuilder_Build(t *testing.T) {
	reader := &fakeReader{
		balances: map[string]*chain.AccountBalances{
			"SP000WHALE": {
				BalanceMicro: 2_000_000 * chain.MicroSTX,
				LockedMicro:  500_000 * chain.MicroSTX,
				Tokens: map[string]uint64{
					"SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM.arkadiko-token::diko": 3_000_000_000, // 3000 DIKO
					"SPUNKNOWN.mystery-token::myst":                                  42,
				},
			},
		},
		txs: map[string][]domain.Transaction{
			"SP000WHALE": {
				transferTx("0x1", daysAgo(1), 100_000*chain.MicroSTX),
				callTx("0x2", daysAgo(5), "SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM.arkadiko-swap-v2-1", "swap-x-for-y"),
				callTx("0x3", daysAgo(10), "SP2C2YFP12AJZB4MABJBAJ55XECVS7E4PMMZ89YZR.amm-pool-v2-01", "swap-helper"),
				transferTx("0x4", daysAgo(60), 50_000*chain.MicroSTX), // 90d window only
				callTx("0x5", daysAgo(200), "SPUNKNOWN.some-contract", "do-thing"),
			},
		},
	}
	oracle := &pricing.StaticOracle{Prices: map[string]float64{"STX": 2.0, "DIKO": 0.1}}

	p, err := newTestBuilder(reader, oracle).Build(context.Background(), "SP000WHALE", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p == nil {
		t.Fatal("expected profile, got nil")
	}

	if p.Portfolio.STXBalance != 2_000_000 {
		t.Errorf("STXBalance = %f, want 2000000", p.Portfolio.STXBalance)
	}
	if p.Portfolio.STXLocked != 500_000 {
		t.Errorf("STXLocked = %f, want 500000", p.Portfolio.STXLocked)
	}
	// (2M + 500k) STX at $2 plus 3000 DIKO at $0.10; unknown token adds 0.
	wantTotal := 2_500_000*2.0 + 3000*0.1
	if p.Portfolio.TotalValueUSD != wantTotal {
		t.Errorf("TotalValueUSD = %f, want %f", p.Portfolio.TotalValueUSD, wantTotal)
	}
	if len(p.Portfolio.Tokens) != 2 {
		t.Fatalf("expected 2 token holdings, got %d", len(p.Portfolio.Tokens))
	}

	if p.Activity.TxCount30d != 3 {
		t.Errorf("TxCount30d = %d, want 3", p.Activity.TxCount30d)
	}
	if p.Activity.TxCount90d != 4 {
		t.Errorf("TxCount90d = %d, want 4", p.Activity.TxCount90d)
	}
	if p.Activity.LastActiveAt != daysAgo(1) {
		t.Errorf("LastActiveAt = %d, want %d", p.Activity.LastActiveAt, daysAgo(1))
	}
	if p.Activity.ActivityLevel != domain.ActivityLow {
		t.Errorf("ActivityLevel = %s, want low", p.Activity.ActivityLevel)
	}

	// Two known protocols, sorted; the unknown contract is dropped.
	want := []string{"ALEX", "Arkadiko"}
	if len(p.Activity.Protocols) != len(want) {
		t.Fatalf("Protocols = %v, want %v", p.Activity.Protocols, want)
	}
	for i, label := range want {
		if p.Activity.Protocols[i] != label {
			t.Errorf("Protocols[%d] = %s, want %s", i, p.Activity.Protocols[i], label)
		}
	}

	// Two protocols and no stacking → defi.
	if p.Category != domain.CategoryDefi {
		t.Errorf("Category = %s, want defi", p.Category)
	}
	if p.Source != domain.SourceAIDiscovered {
		t.Errorf("Source = %s, want ai_discovered", p.Source)
	}
}

func TestBuilder_BalanceFailureSkips(t *testing.T) {
	reader := &fakeReader{balErr: errors.New("boom")}

	p, err := newTestBuilder(reader, nil).Build(context.Background(), "SP000WHALE", nil)
	if err != nil {
		t.Fatalf("Build should soft-skip, got error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil profile on balance failure, got %+v", p)
	}
}

func TestBuilder_TxFailureDegradesToEmptyHistory(t *testing.T) {
	reader := &fakeReader{
		balances: map[string]*chain.AccountBalances{
			"SP000WHALE": {BalanceMicro: 1_000_000 * chain.MicroSTX},
		},
		txErr: errors.New("timeout"),
	}

	p, err := newTestBuilder(reader, nil).Build(context.Background(), "SP000WHALE", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p == nil {
		t.Fatal("expected profile with empty history")
	}
	if p.Activity.TxCount30d != 0 || p.Activity.LastActiveAt != 0 {
		t.Errorf("expected empty activity, got %+v", p.Activity)
	}
	if p.Portfolio.STXBalance != 1_000_000 {
		t.Errorf("balance should still populate: %f", p.Portfolio.STXBalance)
	}
}

func TestBuilder_PriceFailureValuesAtZero(t *testing.T) {
	reader := &fakeReader{
		balances: map[string]*chain.AccountBalances{
			"SP000WHALE": {BalanceMicro: 1_000_000 * chain.MicroSTX},
		},
	}
	oracle := &failingOracle{}

	p, err := newTestBuilder(reader, oracle).Build(context.Background(), "SP000WHALE", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Portfolio.TotalValueUSD != 0 {
		t.Errorf("TotalValueUSD = %f, want 0 when oracle is down", p.Portfolio.TotalValueUSD)
	}
	if p.Portfolio.STXBalance != 1_000_000 {
		t.Errorf("native amounts still populate: %f", p.Portfolio.STXBalance)
	}
}

type failingOracle struct{}

func (failingOracle) GetPrice(context.Context, string) (float64, error) {
	return 0, errors.New("oracle unavailable")
}

func TestBuilder_RefreshPreservesIdentity(t *testing.T) {
	reader := &fakeReader{
		balances: map[string]*chain.AccountBalances{
			"SP000WHALE": {BalanceMicro: 3_000_000 * chain.MicroSTX},
		},
	}

	alias := "known-whale"
	prior := &domain.WhaleProfile{
		Address:            "SP000WHALE",
		Alias:              &alias,
		Category:           domain.CategoryValidator,
		Verified:           true,
		Source:             domain.SourceManual,
		Percentile:         95,
		CreatedAt:          daysAgo(100),
		RecentTransactions: []domain.TxSummary{{TxID: "0xold"}},
		LastTransaction:    &domain.TxSummary{TxID: "0xold"},
	}

	p, err := newTestBuilder(reader, nil).Refresh(context.Background(), prior)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if p.Alias == nil || *p.Alias != alias {
		t.Errorf("alias not preserved: %v", p.Alias)
	}
	if p.Category != domain.CategoryValidator {
		t.Errorf("Category = %s, want validator", p.Category)
	}
	if !p.Verified {
		t.Error("Verified flag lost")
	}
	if p.Source != domain.SourceManual {
		t.Errorf("Source = %s, want manual", p.Source)
	}
	if p.Percentile != 95 {
		t.Errorf("Percentile = %d, want 95", p.Percentile)
	}
	if p.CreatedAt != prior.CreatedAt {
		t.Errorf("CreatedAt = %d, want %d", p.CreatedAt, prior.CreatedAt)
	}
	if len(p.RecentTransactions) != 1 || p.RecentTransactions[0].TxID != "0xold" {
		t.Errorf("recent transactions cache lost: %+v", p.RecentTransactions)
	}

	// Portfolio rebuilt from fresh chain data.
	if p.Portfolio.STXBalance != 3_000_000 {
		t.Errorf("STXBalance = %f, want 3000000", p.Portfolio.STXBalance)
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		protocols []string
		want      domain.Category
	}{
		{nil, domain.CategoryTrader},
		{[]string{"ALEX"}, domain.CategoryTrader},
		{[]string{"ALEX", "Velar"}, domain.CategoryDefi},
		{[]string{"PoX"}, domain.CategoryValidator},
		{[]string{"ALEX", "StackingDAO", "Velar"}, domain.CategoryValidator},
	}
	for _, tt := range tests {
		if got := inferCategory(tt.protocols); got != tt.want {
			t.Errorf("inferCategory(%v) = %s, want %s", tt.protocols, got, tt.want)
		}
	}
}
