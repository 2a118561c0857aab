package profile

import (
	"testing"
)

func TestComputeScores_Components(t *testing.T) {
	tests := []struct {
		name          string
		stxBalance    float64
		txCount30d    int
		protocolCount int
		wantBalance   int
		wantActivity  int
		wantDiversity int
		wantComposite int
	}{
		{
			name:          "empty wallet",
			wantBalance:   0,
			wantActivity:  0,
			wantDiversity: 0,
			wantComposite: 0,
		},
		{
			name:          "mid-size whale",
			stxBalance:    2_500_000,
			txCount30d:    30,
			protocolCount: 2,
			wantBalance:   25,
			wantActivity:  60,
			wantDiversity: 40,
			wantComposite: 39, // 25*0.5 + 60*0.3 + 40*0.2 = 38.5, rounds up
		},
		{
			name:          "everything saturated",
			stxBalance:    50_000_000,
			txCount30d:    500,
			protocolCount: 10,
			wantBalance:   100,
			wantActivity:  100,
			wantDiversity: 100,
			wantComposite: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeScores(tt.stxBalance, tt.txCount30d, tt.protocolCount)
			if got.Balance != tt.wantBalance {
				t.Errorf("Balance = %d, want %d", got.Balance, tt.wantBalance)
			}
			if got.Activity != tt.wantActivity {
				t.Errorf("Activity = %d, want %d", got.Activity, tt.wantActivity)
			}
			if got.Diversity != tt.wantDiversity {
				t.Errorf("Diversity = %d, want %d", got.Diversity, tt.wantDiversity)
			}
			if got.Composite != tt.wantComposite {
				t.Errorf("Composite = %d, want %d", got.Composite, tt.wantComposite)
			}
		})
	}
}

func TestComputeScores_Bounds(t *testing.T) {
	// Extreme and adversarial inputs must stay inside [0, 100].
	inputs := []struct {
		balance   float64
		txCount   int
		protocols int
	}{
		{-5000, -10, -1},
		{0, 0, 0},
		{1e18, 1 << 30, 1000},
	}

	for _, in := range inputs {
		s := ComputeScores(in.balance, in.txCount, in.protocols)
		for name, v := range map[string]int{
			"Composite": s.Composite,
			"Balance":   s.Balance,
			"Activity":  s.Activity,
			"Diversity": s.Diversity,
		} {
			if v < 0 || v > 100 {
				t.Errorf("%s = %d out of [0,100] for input %+v", name, v, in)
			}
		}
	}
}

func TestComputeScores_MonotoneInBalance(t *testing.T) {
	prev := -1
	for _, balance := range []float64{0, 1000, 100_000, 1_000_000, 10_000_000, 100_000_000} {
		s := ComputeScores(balance, 10, 1)
		if s.Composite < prev {
			t.Errorf("composite decreased at balance %f: %d < %d", balance, s.Composite, prev)
		}
		prev = s.Composite
	}
}

func TestComputeScores_MonotoneInActivity(t *testing.T) {
	prev := -1
	for txCount := 0; txCount <= 80; txCount += 10 {
		s := ComputeScores(500_000, txCount, 1)
		if s.Composite < prev {
			t.Errorf("composite decreased at txCount %d: %d < %d", txCount, s.Composite, prev)
		}
		prev = s.Composite
	}
}

func TestComputeScores_MonotoneInDiversity(t *testing.T) {
	prev := -1
	for protocols := 0; protocols <= 8; protocols++ {
		s := ComputeScores(500_000, 10, protocols)
		if s.Composite < prev {
			t.Errorf("composite decreased at %d protocols: %d < %d", protocols, s.Composite, prev)
		}
		prev = s.Composite
	}
}
