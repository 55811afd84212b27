package camp

import (
	"fmt"
	"math"
)

// Verdict labels of the default bands.
const (
	VerdictPass            = "PASS"
	VerdictConditionalPass = "CONDITIONAL PASS"
	VerdictFail            = "FAIL"
)

// ProbabilityDecimals is the precision probabilities are reported and classified at.
const ProbabilityDecimals = 4

// RoundProbability rounds p to ProbabilityDecimals places.
func RoundProbability(p float64) float64 {
	scale := math.Pow(10, ProbabilityDecimals)
	return math.Round(p*scale) / scale
}

// VerdictBand maps probabilities >= Min (and below the previous band's Min) to Label.
type VerdictBand struct {
	Label string  `json:"label" yaml:"label"`
	Min   float64 `json:"min" yaml:"min"`
}

// VerdictBands is ordered from the highest Min to the lowest.
type VerdictBands []VerdictBand

// DefaultVerdictBands returns PASS >= 0.70, CONDITIONAL PASS >= 0.40, FAIL >= 0.
func DefaultVerdictBands() VerdictBands {
	return VerdictBands{
		{Label: VerdictPass, Min: 0.70},
		{Label: VerdictConditionalPass, Min: 0.40},
		{Label: VerdictFail, Min: 0},
	}
}

// Validate checks the bands form a total, non-overlapping partition of [0,1]:
// strictly decreasing minimums within [0,1], the last one exactly 0, unique non-empty labels.
func (b VerdictBands) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("verdict bands: at least one band is required")
	}
	seen := make(map[string]bool, len(b))
	for i, band := range b {
		if band.Label == "" {
			return fmt.Errorf("verdict band %d: label is required", i)
		}
		if seen[band.Label] {
			return fmt.Errorf("verdict band %q appears more than once", band.Label)
		}
		seen[band.Label] = true
		if math.IsNaN(band.Min) || band.Min < 0 || band.Min > 1 {
			return fmt.Errorf("verdict band %q: min must be in [0, 1], got %v", band.Label, band.Min)
		}
		if i > 0 && band.Min >= b[i-1].Min {
			return fmt.Errorf("verdict band %q: min %v must be below %q min %v", band.Label, band.Min, b[i-1].Label, b[i-1].Min)
		}
	}
	if last := b[len(b)-1]; last.Min != 0 {
		return fmt.Errorf("verdict band %q: the lowest band must start at 0, got %v", last.Label, last.Min)
	}
	return nil
}

// Classify returns the label of the band containing p. p is clamped to [0,1] and rounded
// with RoundProbability, so the verdict always agrees with the reported probability.
func (b VerdictBands) Classify(p float64) string {
	p = RoundProbability(clamp01(p))
	for _, band := range b {
		if p >= band.Min {
			return band.Label
		}
	}
	return b[len(b)-1].Label
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
