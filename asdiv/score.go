package asdiv

import (
	"errors"
	"fmt"
)

// ErrNoAnalyzablePeers signals that a poll carried no operator data at
// all, either because there were no peers or because every peer sits
// on a private network. Callers render a neutral state for it. The
// condition is distinct from a score of zero, which means every peer
// connects through a single operator.
var ErrNoAnalyzablePeers = errors.New("no analyzable peers")

// ScoreTier grades the overall diversity score.
type ScoreTier uint8

const (
	// TierCritical covers scores below 2.
	TierCritical ScoreTier = iota

	// TierPoor covers scores from 2 up to 4.
	TierPoor

	// TierModerate covers scores from 4 up to 6.
	TierModerate

	// TierGood covers scores from 6 up to 8.
	TierGood

	// TierExcellent covers scores of 8 and above.
	TierExcellent
)

// String returns a human readable score tier name.
func (t ScoreTier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierPoor:
		return "poor"
	case TierModerate:
		return "moderate"
	case TierGood:
		return "good"
	case TierExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// scoreTier maps a score value to its tier.
func scoreTier(value float64) ScoreTier {
	switch {
	case value >= 8:
		return TierExcellent
	case value >= 6:
		return TierGood
	case value >= 4:
		return TierModerate
	case value >= 2:
		return TierPoor
	default:
		return TierCritical
	}
}

// Score is the diversity grade of one poll cycle.
type Score struct {
	// Value is the diversity score in [0, 10], 10 meaning the peers
	// spread evenly over many operators.
	Value float64

	// Tier buckets Value for display.
	Tier ScoreTier

	// HHI is the Herfindahl-Hirschman concentration index the score
	// derives from, the sum of squared per-operator shares.
	HHI float64

	// PeerCount is the number of analyzable peers graded.
	PeerCount int
}

// String returns the score in "4.2 (moderate) over 10 peers" form.
func (s Score) String() string {
	return fmt.Sprintf("%.1f (%v) over %d peers", s.Value, s.Tier,
		s.PeerCount)
}

// ScoreAnalysis computes the diversity score of an aggregation pass.
// The concentration index sums the squared true per-operator shares:
// folding small operators into the Others bucket is presentation only
// and cannot move the score. A pass without analyzable peers returns
// ErrNoAnalyzablePeers.
func ScoreAnalysis(a *Analysis) (Score, error) {
	if a == nil || a.AnalyzableCount == 0 {
		return Score{}, ErrNoAnalyzablePeers
	}

	var hhi float64
	total := float64(a.AnalyzableCount)
	for _, agg := range a.Operators {
		share := float64(agg.PeerCount) / total
		hhi += share * share
	}

	value := (1 - hhi) * 10
	switch {
	case value < 0:
		value = 0
	case value > 10:
		value = 10
	}

	score := Score{
		Value:     value,
		Tier:      scoreTier(value),
		HHI:       hhi,
		PeerCount: a.AnalyzableCount,
	}

	log.Debugf("Diversity score %v, HHI %.4f", score, hhi)

	return score, nil
}
