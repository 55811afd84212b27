package report

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/synth"
)

// record returns a valid synthetic record with the given overrides applied.
func record(t *testing.T, overrides map[string]any) *camp.MetricsRecord {
	t.Helper()
	raws, err := synth.Generate(synth.Options{Count: 1, Seed: 11, IDPrefix: "rep"})
	require.NoError(t, err)
	raw := raws[0]
	raw["company_name"] = "Orbit Labs"
	for k, v := range overrides {
		raw[k] = v
	}
	rec, err := camp.Normalize(raw)
	require.NoError(t, err)
	return rec
}

func pillars(capital, advantage, market, people float64) map[camp.Pillar]float64 {
	return map[camp.Pillar]float64{
		camp.PillarCapital: capital, camp.PillarAdvantage: advantage,
		camp.PillarMarket: market, camp.PillarPeople: people,
	}
}

func sources(src camp.PillarSource) map[camp.Pillar]camp.PillarSource {
	out := make(map[camp.Pillar]camp.PillarSource, 4)
	for _, p := range camp.Pillars() {
		out[p] = src
	}
	return out
}

func fullResult(id string) *camp.AggregateResult {
	return &camp.AggregateResult{
		RecordID:      id,
		Probability:   0.791234567,
		Verdict:       camp.VerdictPass,
		Confidence:    0.95432,
		Pillars:       pillars(0.81, 0.77, 0.84, 0.62),
		PillarSources: sources(camp.PillarFromEnsemble),
		Succeeded:     5,
		Attempted:     5,
		Contributions: []camp.Contribution{
			{Adapter: camp.AdapterStage, Status: camp.StatusOK, Weight: 0.3, Probability: 0.8, Label: "series_a", ModelVersion: "v1"},
			{Adapter: camp.AdapterPattern, Status: camp.StatusOK, Weight: 0.2, Probability: 0.75, Label: "efficient_grower", ModelVersion: "v1"},
			{Adapter: camp.AdapterTemporal, Status: camp.StatusOK, Weight: 0.2, Probability: 0.82, ModelVersion: "v1",
				Horizons: map[camp.Horizon]float64{camp.HorizonShort: 0.9, camp.HorizonMedium: 0.8, camp.HorizonLong: 0.123456}},
			{Adapter: camp.AdapterIndustry, Status: camp.StatusOK, Weight: 0.15, Probability: 0.79, Label: "saas", ModelVersion: "v1"},
			{Adapter: camp.AdapterBaseline, Status: camp.StatusOK, Weight: 0.15, Probability: 0.79, ModelVersion: "v1"},
		},
	}
}

func TestAssemble_FullResult(t *testing.T) {
	// GIVEN a result where every adapter succeeded
	rec := record(t, map[string]any{"runway_months": 30.0, "burn_multiple": 0.8, "net_dollar_retention_percent": 130})
	res := fullResult(rec.ID())

	// WHEN assembled
	out := Assemble(res, rec)

	// THEN the documented fields are populated and rounded
	assert.Equal(t, "rep-11-0000", out.RecordID)
	assert.Equal(t, "Orbit Labs", out.CompanyName)
	assert.Equal(t, 0.7912, out.SuccessProbability)
	assert.Equal(t, 0.9543, out.Confidence)
	assert.Equal(t, camp.VerdictPass, out.Verdict)
	assert.Equal(t, PillarScores{Capital: 0.81, Advantage: 0.77, Market: 0.84, People: 0.62}, out.PillarScores)
	assert.Equal(t, "efficient_grower", out.Archetype)
	assert.Equal(t, 0.1235, out.Horizons["long"])
	assert.Equal(t, "v1", out.ModelVersion)
	assert.Equal(t, 5, out.ModelsUsed)
	assert.Equal(t, 5, out.ModelsAttempted)
	require.Len(t, out.Breakdown, 5)
	assert.Equal(t, "stage", out.Breakdown[0].Adapter)
	require.NotNil(t, out.Breakdown[0].Probability)
	assert.Equal(t, 0.8, *out.Breakdown[0].Probability)

	// AND insights name the strongest and weakest pillars and the record's signals
	assert.Contains(t, out.Insights, "Strongest pillar: market (0.84)")
	assert.Contains(t, out.Insights, "Weakest pillar: people (0.62)")
	assert.Contains(t, out.Insights, "Runway of 30.0 months gives room to execute")
	assert.Contains(t, out.Insights, "Burn multiple of 0.8 indicates capital-efficient growth")
	assert.Contains(t, out.Insights, "Net dollar retention of 130% signals strong expansion revenue")
	assert.Contains(t, out.Insights, "Closest archetype: efficient grower")
	for _, line := range out.Insights {
		assert.NotContains(t, line, "treat the score with caution")
	}

	// AND next steps target the weakest pillar
	require.Len(t, out.NextSteps, 3)
	assert.Equal(t, pillarNextSteps[camp.PillarPeople][0], out.NextSteps[0])
	assert.Equal(t, "Prepare the data room and begin investor conversations", out.NextSteps[2])
}

func TestAssemble_DegradedResult(t *testing.T) {
	// GIVEN only the baseline succeeded
	rec := record(t, map[string]any{"runway_months": 4.0, "burn_multiple": 3.5, "net_dollar_retention_percent": 85})
	res := &camp.AggregateResult{
		RecordID:      rec.ID(),
		Probability:   0.55,
		Verdict:       camp.VerdictConditionalPass,
		Confidence:    0.4472,
		Pillars:       pillars(0.3, 0.6, 0.6, 0.6),
		PillarSources: sources(camp.PillarFromBaseline),
		Succeeded:     1,
		Attempted:     2,
		Contributions: []camp.Contribution{
			{Adapter: camp.AdapterStage, Status: camp.StatusFailed, Err: errors.New("model \"stage\" unavailable")},
			{Adapter: camp.AdapterBaseline, Status: camp.StatusOK, Weight: 1, Probability: 0.55, ModelVersion: "v2"},
		},
	}

	// WHEN assembled
	out := Assemble(res, rec)

	// THEN the failure is explained and coverage is called out
	assert.Nil(t, out.Breakdown[0].Probability)
	assert.Equal(t, "failed", out.Breakdown[0].Status)
	assert.Equal(t, `model "stage" unavailable`, out.Breakdown[0].Error)
	assert.Empty(t, out.Archetype)
	assert.Nil(t, out.Horizons)
	assert.Equal(t, "v2", out.ModelVersion)
	assert.Equal(t, "baseline", out.PillarSources["capital"])
	assert.Contains(t, out.Insights, "Only 1 of 2 models contributed; treat the score with caution")
	assert.Contains(t, out.Insights, "The capital score is a baseline estimate")
	assert.Contains(t, out.Insights, "Runway of 4.0 months is critically short")
	assert.Contains(t, out.Insights, "Burn multiple of 3.5 indicates inefficient growth")
	assert.Contains(t, out.Insights, "Net dollar retention of 85% means the customer base is shrinking")
	assert.Equal(t, "Address the capital pillar before the next fundraise", out.NextSteps[len(out.NextSteps)-1])
}

func TestAssemble_DoesNotMutateResult(t *testing.T) {
	rec := record(t, nil)
	res := fullResult(rec.ID())
	before := fullResult(rec.ID())

	_ = Assemble(res, rec)
	_ = Assemble(res, rec)

	if diff := cmp.Diff(before, res); diff != "" {
		t.Errorf("result mutated (-before +after):\n%s", diff)
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "", versionString(map[string]bool{}))
	assert.Equal(t, "v1", versionString(map[string]bool{"stage@v1": true, "baseline@v1": true}))
	assert.Equal(t, "baseline@v2,stage@v1", versionString(map[string]bool{"stage@v1": true, "baseline@v2": true}))
}

func TestPillarScores_Get(t *testing.T) {
	s := PillarScores{Capital: 0.1, Advantage: 0.2, Market: 0.3, People: 0.4}
	for i, p := range camp.Pillars() {
		assert.InDelta(t, 0.1*float64(i+1), s.Get(p), 1e-12)
	}
}

// constAdapter always returns p.
type constAdapter struct {
	kind camp.AdapterKind
	p    float64
}

func (c constAdapter) Kind() camp.AdapterKind { return c.kind }

func (c constAdapter) Predict(context.Context, *camp.MetricsRecord) (*camp.PartialResult, error) {
	return &camp.PartialResult{Adapter: c.kind, Probability: c.p, ModelVersion: "t1"}, nil
}

func TestAssemble_BandEdges_VerdictMatchesReportedProbability(t *testing.T) {
	rec := record(t, nil)
	for _, band := range camp.DefaultVerdictBands() {
		if band.Min == 0 {
			continue
		}
		t.Run(band.Label, func(t *testing.T) {
			// GIVEN stage and pattern results whose 0.6/0.4 weighted mean is the band edge on paper
			ens, err := camp.NewEnsemble([]camp.Adapter{
				constAdapter{kind: camp.AdapterStage, p: band.Min - 0.2},
				constAdapter{kind: camp.AdapterPattern, p: band.Min + 0.3},
			}, camp.EnsembleConfig{})
			require.NoError(t, err)

			// WHEN predicted and assembled
			res, err := ens.Predict(context.Background(), rec)
			require.NoError(t, err)
			out := Assemble(res, rec)

			// THEN the response shows the edge and the verdict of the band it opens
			assert.Equal(t, band.Min, out.SuccessProbability)
			assert.Equal(t, band.Label, out.Verdict)
		})
	}
}
