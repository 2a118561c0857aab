package domain

import (
	"fmt"
	"testing"
)

func TestActivityLevelFor(t *testing.T) {
	tests := []struct {
		txCount int
		want    ActivityLevel
	}{
		{-1, ActivityLow},
		{0, ActivityLow},
		{19, ActivityLow},
		{20, ActivityMedium},
		{49, ActivityMedium},
		{50, ActivityHigh},
		{10000, ActivityHigh},
	}

	for _, tt := range tests {
		if got := ActivityLevelFor(tt.txCount); got != tt.want {
			t.Errorf("ActivityLevelFor(%d) = %s, want %s", tt.txCount, got, tt.want)
		}
	}
}

func TestPushRecentTransaction_CapsAtLimit(t *testing.T) {
	p := &WhaleProfile{}

	for i := 0; i < MaxRecentTransactions+10; i++ {
		p.PushRecentTransaction(TxSummary{TxID: fmt.Sprintf("0x%d", i)})
	}

	if len(p.RecentTransactions) != MaxRecentTransactions {
		t.Fatalf("cache length = %d, want %d", len(p.RecentTransactions), MaxRecentTransactions)
	}

	// Newest first; the oldest ten were evicted.
	if p.RecentTransactions[0].TxID != fmt.Sprintf("0x%d", MaxRecentTransactions+9) {
		t.Errorf("newest entry = %s", p.RecentTransactions[0].TxID)
	}
	last := p.RecentTransactions[len(p.RecentTransactions)-1].TxID
	if last != "0x10" {
		t.Errorf("oldest kept entry = %s, want 0x10", last)
	}
}
