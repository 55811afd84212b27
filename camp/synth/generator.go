// Package synth generates deterministic synthetic startup inputs for demos, load tests and
// property tests. Output uses the human-entered spellings clients submit ("Series A",
// "Angel", scalability on 0..1, percentages) so it exercises the full normalizer.
package synth

import (
	"fmt"
	"math"
	"math/rand"
)

// Options configures a generation run.
type Options struct {
	Count    int
	Seed     int64
	IDPrefix string // default "synth"
}

// label is one canonical enum value with the spellings clients are known to submit.
type label struct {
	spellings []string
}

var fundingStages = []label{
	{[]string{"Pre-Seed", "pre_seed", "preseed"}},
	{[]string{"Seed", "seed"}},
	{[]string{"Series A", "series_a", "Series-A"}},
	{[]string{"Series B", "series_b"}},
	{[]string{"Series C", "Series C+", "series_c"}},
	{[]string{"Growth", "Series D+", "growth"}},
}

var productStages = []label{
	{[]string{"Concept", "Idea"}},
	{[]string{"MVP", "mvp"}},
	{[]string{"Beta"}},
	{[]string{"Launched", "Live"}},
	{[]string{"Mature", "Scaling"}},
}

var sectors = []label{
	{[]string{"SaaS", "Software"}},
	{[]string{"Fintech", "FinTech"}},
	{[]string{"HealthTech", "Healthcare"}},
	{[]string{"E-commerce", "ecommerce"}},
	{[]string{"AI/ML", "AI"}},
	{[]string{"Marketplace"}},
	{[]string{"EdTech"}},
	{[]string{"DeepTech", "Deep Tech"}},
	{[]string{"Biotech"}},
	{[]string{"Other"}},
}

var investorTiers = []label{
	{[]string{"Tier 1", "tier_1"}},
	{[]string{"Tier 2", "tier_2"}},
	{[]string{"Tier 3", "University"}},
	{[]string{"Angel", "None", "Bootstrap"}},
}

var (
	nameAdjectives = []string{"Bright", "Quantum", "Blue", "Nimble", "Silver", "North", "Open", "Clear"}
	nameNouns      = []string{"Harbor", "Labs", "Signal", "Forge", "Cloud", "Pulse", "Orbit", "Ledger"}
)

// Generate returns opts.Count raw inputs. Deterministic given the same options.
func Generate(opts Options) ([]map[string]any, error) {
	if opts.Count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", opts.Count)
	}
	prefix := opts.IDPrefix
	if prefix == "" {
		prefix = "synth"
	}
	rng := NewPartitionedRNG(NewGenerationKey(opts.Seed))
	out := make([]map[string]any, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		out = append(out, generateOne(rng, fmt.Sprintf("%s-%d-%04d", prefix, opts.Seed, i)))
	}
	return out, nil
}

func generateOne(rng *PartitionedRNG, id string) map[string]any {
	profile := rng.ForSubsystem(SubsystemProfile)
	labels := rng.ForSubsystem(SubsystemLabels)
	q := profile.Float64()
	stage := clampInt(int(noisy(profile, q, 0.2)*float64(len(fundingStages))), 0, len(fundingStages)-1)

	raw := map[string]any{
		"startup_id":   id,
		"company_name": pick(labels, nameAdjectives) + " " + pick(labels, nameNouns),
	}

	c := rng.ForSubsystem(SubsystemPillar("capital"))
	raised := math.Round(math.Min(math.Exp(11+1.2*float64(stage)+0.5*c.NormFloat64()), 1e12))
	runway := round2(clamp(6+30*q+6*c.NormFloat64(), 1, 120))
	cash := math.Round(raised * (0.1 + 0.5*c.Float64()))
	raw["funding_stage"] = spell(labels, fundingStages[stage])
	raw["total_capital_raised_usd"] = raised
	raw["cash_on_hand_usd"] = cash
	raw["monthly_burn_usd"] = math.Round(cash / runway)
	raw["runway_months"] = runway
	raw["burn_multiple"] = round2(clamp(4-3*q+0.5*c.NormFloat64(), 0.2, 100))
	raw["investor_tier_primary"] = spell(labels, investorTiers[tierIndex(q)])
	raw["has_debt"] = boolish(labels, c.Float64() < 0.2)

	a := rng.ForSubsystem(SubsystemPillar("advantage"))
	raw["patent_count"] = int(a.ExpFloat64() * 5 * q)
	raw["network_effects_present"] = boolish(labels, a.Float64() < 0.2+0.5*q)
	raw["has_data_moat"] = boolish(labels, a.Float64() < 0.2+0.5*q)
	raw["regulatory_advantage_present"] = boolish(labels, a.Float64() < 0.15)
	raw["tech_differentiation_score"] = score(a, q)
	raw["switching_cost_score"] = score(a, q)
	raw["brand_strength_score"] = score(a, q)
	raw["scalability_score"] = round2(noisy(a, q, 0.15))
	raw["product_stage"] = spell(labels, productStages[clampInt(stage+a.Intn(2)-1, 0, len(productStages)-1)])

	m := rng.ForSubsystem(SubsystemPillar("market"))
	raw["sector"] = spell(labels, sectors[m.Intn(len(sectors))])
	raw["tam_size_usd"] = math.Round(math.Min(math.Exp(20+2*q+m.NormFloat64()), 1e13))
	raw["market_growth_rate_percent"] = round2(clamp(5+30*q+10*m.NormFloat64(), -100, 1000))
	raw["customer_count"] = clampInt(int(math.Exp(2+6*q+m.NormFloat64())), 0, 1e9)
	raw["customer_concentration"] = round2(clamp(60-50*q+10*m.NormFloat64(), 0, 100))
	raw["user_growth_rate_percent"] = round2(clamp(20+150*q+40*m.NormFloat64(), -100, 10000))
	raw["net_dollar_retention_percent"] = round2(clamp(80+50*q+10*m.NormFloat64(), 0, 300))
	raw["competition_intensity"] = score(m, 1-q)
	raw["annual_revenue_run_rate"] = math.Round(math.Min(math.Exp(10+1.3*float64(stage)+0.7*m.NormFloat64()), 1e12))
	raw["revenue_growth_rate_percent"] = round2(clamp(10+200*q+50*m.NormFloat64(), -100, 10000))
	raw["gross_margin_percent"] = round2(clamp(30+50*q+10*m.NormFloat64(), -100, 100))
	raw["ltv_cac_ratio"] = round2(clamp(0.5+4*q+0.5*m.NormFloat64(), 0, 100))

	p := rng.ForSubsystem(SubsystemPillar("people"))
	raw["founders_count"] = 1 + p.Intn(4)
	raw["team_size_full_time"] = clampInt(int(math.Exp(1+0.8*float64(stage)+0.5*p.NormFloat64())), 1, 100000)
	raw["years_experience_avg"] = round2(clamp(4+12*q+3*p.NormFloat64(), 0, 60))
	raw["domain_expertise_years_avg"] = round2(clamp(2+10*q+2*p.NormFloat64(), 0, 60))
	raw["prior_startup_experience_count"] = p.Intn(4)
	exits := 0
	if q > 0.6 && p.Float64() < q-0.4 {
		exits = 1
	}
	raw["prior_successful_exits_count"] = exits
	raw["board_advisor_experience_score"] = score(p, q)
	raw["advisors_count"] = p.Intn(8)
	raw["team_diversity"] = round2(clamp(35+15*p.NormFloat64(), 0, 100))
	raw["key_person_dependency"] = boolish(labels, p.Float64() < 0.5-0.3*q)
	return raw
}

func tierIndex(q float64) int {
	switch {
	case q > 0.75:
		return 0
	case q > 0.5:
		return 1
	case q > 0.3:
		return 2
	default:
		return 3
	}
}

// score draws a 1..5 integer score centred on 1+4q.
func score(r *rand.Rand, q float64) int {
	return int(math.Round(1 + 4*noisy(r, q, 0.2)))
}

// noisy returns q plus gaussian noise, clamped to [0,1].
func noisy(r *rand.Rand, q, sd float64) float64 {
	return clamp(q+sd*r.NormFloat64(), 0, 1)
}

// boolish returns b as a bool or, half the time, as the integer 0/1 clients also send.
func boolish(r *rand.Rand, b bool) any {
	if r.Intn(2) == 0 {
		return b
	}
	if b {
		return 1
	}
	return 0
}

func spell(r *rand.Rand, l label) string { return l.spellings[r.Intn(len(l.spellings))] }

func pick(r *rand.Rand, s []string) string { return s[r.Intn(len(s))] }

func clamp(x, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, x)) }

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
