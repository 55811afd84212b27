package camp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVerdictBands_Classify(t *testing.T) {
	bands := DefaultVerdictBands()
	require.NoError(t, bands.Validate())

	tests := []struct {
		p    float64
		want string
	}{
		{1.0, VerdictPass},
		{0.70, VerdictPass},
		{0.6999, VerdictConditionalPass},
		{0.40, VerdictConditionalPass},
		{0.3999, VerdictFail},
		{0, VerdictFail},
		{-0.2, VerdictFail},
		{1.5, VerdictPass},
		{math.NaN(), VerdictFail},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bands.Classify(tt.p), "p=%v", tt.p)
	}
}

func TestVerdictBands_EveryProbabilityHasExactlyOneBand(t *testing.T) {
	bands := DefaultVerdictBands()
	for i := 0; i <= 1000; i++ {
		p := float64(i) / 1000
		matches := 0
		for j, band := range bands {
			upper := math.Inf(1)
			if j > 0 {
				upper = bands[j-1].Min
			}
			if p >= band.Min && p < upper {
				matches++
				assert.Equal(t, band.Label, bands.Classify(p))
			}
		}
		assert.Equal(t, 1, matches, "p=%v", p)
	}
}

func TestVerdictBands_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bands   VerdictBands
		wantErr string
	}{
		{"empty", VerdictBands{}, "at least one band"},
		{"empty label", VerdictBands{{Label: "", Min: 0}}, "label is required"},
		{"duplicate label", VerdictBands{{Label: "A", Min: 0.5}, {Label: "A", Min: 0}}, "more than once"},
		{"min above one", VerdictBands{{Label: "A", Min: 1.5}, {Label: "B", Min: 0}}, "must be in [0, 1]"},
		{"NaN min", VerdictBands{{Label: "A", Min: math.NaN()}, {Label: "B", Min: 0}}, "must be in [0, 1]"},
		{"not decreasing", VerdictBands{{Label: "A", Min: 0.4}, {Label: "B", Min: 0.4}, {Label: "C", Min: 0}}, "must be below"},
		{"gap at zero", VerdictBands{{Label: "A", Min: 0.7}, {Label: "B", Min: 0.1}}, "must start at 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bands.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVerdictBands_SingleBand(t *testing.T) {
	bands := VerdictBands{{Label: "ANY", Min: 0}}
	require.NoError(t, bands.Validate())
	assert.Equal(t, "ANY", bands.Classify(0.99))
}

func TestClassify_FloatNoiseBelowEdge_UsesReportedValue(t *testing.T) {
	bands := DefaultVerdictBands()

	// one ulp below an edge is reported as the edge and classified with it
	below := math.Nextafter(0.4, 0)
	assert.Equal(t, 0.4, RoundProbability(below))
	assert.Equal(t, VerdictConditionalPass, bands.Classify(below))
	assert.Equal(t, VerdictPass, bands.Classify(math.Nextafter(0.7, 0)))
	assert.Equal(t, VerdictConditionalPass, bands.Classify(0.69994))
	assert.Equal(t, VerdictPass, bands.Classify(0.69996))
}
