package profile

import (
	"math"

	"stacks-whale-intel/internal/domain"
)

// Composite blend weights. The canonical blend is the 3-factor
// balance/activity/diversity split; see DESIGN.md for the choice.
const (
	weightBalance   = 0.50
	weightActivity  = 0.30
	weightDiversity = 0.20
)

// ComputeScores derives the 0-100 score components from a profile's
// portfolio and activity. Each component is monotonically non-decreasing in
// its input, so the composite is monotone in balance, tx count, and
// protocol-set size.
func ComputeScores(stxBalance float64, txCount30d, protocolCount int) domain.Scores {
	balance := clampScore(stxBalance / 1_000_000 * 10)
	activity := clampScore(float64(txCount30d) * 2)
	diversity := clampScore(float64(protocolCount) * 20)

	composite := int(math.Round(
		float64(balance)*weightBalance +
			float64(activity)*weightActivity +
			float64(diversity)*weightDiversity))

	return domain.Scores{
		Composite: composite,
		Balance:   balance,
		Activity:  activity,
		Diversity: diversity,
	}
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
