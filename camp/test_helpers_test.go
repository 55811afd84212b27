package camp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashcamp/camp-ensemble/camp/model"
)

// validRaw returns a complete input as a client submits it: human labels, scalability on
// 0..1, concentration and diversity as percentages.
func validRaw() map[string]any {
	return map[string]any{
		"startup_id":                     "acme-001",
		"company_name":                   "Acme Analytics",
		"funding_stage":                  "Series A",
		"total_capital_raised_usd":       12_000_000,
		"cash_on_hand_usd":               7_500_000.0,
		"monthly_burn_usd":               350_000,
		"runway_months":                  21.4,
		"burn_multiple":                  1.6,
		"investor_tier_primary":          "Angel",
		"has_debt":                       false,
		"patent_count":                   3,
		"network_effects_present":        true,
		"has_data_moat":                  1,
		"regulatory_advantage_present":   0,
		"tech_differentiation_score":     4,
		"switching_cost_score":           3,
		"brand_strength_score":           3,
		"scalability_score":              0.8,
		"product_stage":                  "Launched",
		"sector":                         "SaaS",
		"tam_size_usd":                   25_000_000_000.0,
		"market_growth_rate_percent":     22.5,
		"customer_count":                 340,
		"customer_concentration":         18,
		"user_growth_rate_percent":       85,
		"net_dollar_retention_percent":   118,
		"competition_intensity":          3,
		"annual_revenue_run_rate":        4_200_000,
		"revenue_growth_rate_percent":    140,
		"gross_margin_percent":           72,
		"ltv_cac_ratio":                  3.4,
		"founders_count":                 2,
		"team_size_full_time":            38,
		"years_experience_avg":           11.5,
		"domain_expertise_years_avg":     7,
		"prior_startup_experience_count": 1,
		"prior_successful_exits_count":   0,
		"board_advisor_experience_score": 4,
		"advisors_count":                 3,
		"team_diversity":                 40,
		"key_person_dependency":          false,
	}
}

func mustNormalize(t *testing.T, raw map[string]any) *MetricsRecord {
	t.Helper()
	rec, err := Normalize(raw)
	require.NoError(t, err)
	return rec
}

// fakeAdapter returns a fixed result or error. If block is set it waits on it first,
// ignoring its context.
type fakeAdapter struct {
	kind    AdapterKind
	prob    float64
	pillars map[Pillar]float64
	err     error
	block   chan struct{}
	panics  bool
	calls   atomic.Int32
}

func (f *fakeAdapter) Kind() AdapterKind { return f.kind }

func (f *fakeAdapter) Predict(_ context.Context, _ *MetricsRecord) (*PartialResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &PartialResult{Adapter: f.kind, Probability: f.prob, Pillars: f.pillars, ModelVersion: "test"}, nil
}

// ctxAdapter blocks until its context is done.
type ctxAdapter struct{ kind AdapterKind }

func (c *ctxAdapter) Kind() AdapterKind { return c.kind }

func (c *ctxAdapter) Predict(ctx context.Context, _ *MetricsRecord) (*PartialResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func fixed(kind AdapterKind, p float64) *fakeAdapter {
	return &fakeAdapter{kind: kind, prob: p}
}

func unavailable(kind AdapterKind) *fakeAdapter {
	return &fakeAdapter{kind: kind, err: &ModelUnavailableError{Adapter: kind, Cause: errors.New("artifact failed to load")}}
}

func mustEnsemble(t *testing.T, adapters ...Adapter) *Ensemble {
	t.Helper()
	ens, err := NewEnsemble(adapters, EnsembleConfig{})
	require.NoError(t, err)
	return ens
}

// uniformPillars sets every pillar to v.
func uniformPillars(v float64) map[Pillar]float64 {
	out := make(map[Pillar]float64, 4)
	for _, p := range Pillars() {
		out[p] = v
	}
	return out
}

func logistic(intercept float64, coef map[string]float64) model.Logistic {
	return model.Logistic{Intercept: intercept, Coefficients: coef}
}

func pillarLogits(intercept float64) map[string]model.Logistic {
	out := make(map[string]model.Logistic, 4)
	for _, p := range Pillars() {
		out[string(p)] = logistic(intercept, nil)
	}
	return out
}

func pillarWeights() map[string]float64 {
	return map[string]float64{"capital": 1, "advantage": 1, "market": 1, "people": 1}
}
