package camp

import (
	"sort"
	"strings"
)

// Pillar is one of the four CAMP scoring buckets.
type Pillar string

const (
	PillarCapital   Pillar = "capital"
	PillarAdvantage Pillar = "advantage"
	PillarMarket    Pillar = "market"
	PillarPeople    Pillar = "people"
)

// Pillars returns the pillars in reporting order.
func Pillars() []Pillar {
	return []Pillar{PillarCapital, PillarAdvantage, PillarMarket, PillarPeople}
}

// FieldKind determines how a field is coerced, range-checked and featurized.
type FieldKind string

const (
	KindEnum   FieldKind = "enum"
	KindBool   FieldKind = "bool"
	KindScore  FieldKind = "score"  // 1..5
	KindRatio  FieldKind = "ratio"  // 0..1
	KindAmount FieldKind = "amount" // USD
	KindCount  FieldKind = "count"  // whole numbers
	KindNumber FieldKind = "number"
)

// InputScale declares how a submitted value maps onto the canonical scale.
type InputScale string

const (
	ScaleCanonical InputScale = "canonical"
	ScaleUnit      InputScale = "unit"    // submitted 0..1, canonical 1..5
	ScalePercent   InputScale = "percent" // submitted 0..100, canonical 0..1
)

// Transform maps a canonical numeric value onto the feature scale the models use.
type Transform string

const (
	TransformIdentity Transform = "identity"
	TransformLog1p    Transform = "log1p"
	TransformScore    Transform = "score"   // (x-1)/4
	TransformPercent  Transform = "percent" // x/100
)

// FieldSpec is one row of the field contract.
type FieldSpec struct {
	Name        string     `json:"name" yaml:"name"`
	Pillar      Pillar     `json:"pillar" yaml:"pillar"`
	Kind        FieldKind  `json:"kind" yaml:"kind"`
	Min         float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max         float64    `json:"max,omitempty" yaml:"max,omitempty"`
	Scale       InputScale `json:"input_scale" yaml:"input_scale"`
	Transform   Transform  `json:"transform,omitempty" yaml:"transform,omitempty"`
	Values      []string   `json:"values,omitempty" yaml:"values,omitempty"`
	Description string     `json:"description" yaml:"description"`
}

// Metadata keys accepted alongside the metrics. They identify the record in logs
// and responses and never reach a model.
const (
	MetaStartupID   = "startup_id"
	MetaCompanyName = "company_name"
)

const maxAmountUSD = 1e13

// Enum field names used directly by adapters.
const (
	FieldFundingStage = "funding_stage"
	FieldInvestorTier = "investor_tier_primary"
	FieldProductStage = "product_stage"
	FieldSector       = "sector"
)

var fieldSpecs = []FieldSpec{
	// Capital
	{Name: FieldFundingStage, Pillar: PillarCapital, Kind: KindEnum,
		Values:      []string{"pre_seed", "seed", "series_a", "series_b", "series_c", "growth"},
		Description: "Most recent priced round"},
	{Name: "total_capital_raised_usd", Pillar: PillarCapital, Kind: KindAmount, Max: maxAmountUSD, Transform: TransformLog1p,
		Description: "Total equity and debt raised to date"},
	{Name: "cash_on_hand_usd", Pillar: PillarCapital, Kind: KindAmount, Max: maxAmountUSD, Transform: TransformLog1p,
		Description: "Cash in the bank"},
	{Name: "monthly_burn_usd", Pillar: PillarCapital, Kind: KindAmount, Max: maxAmountUSD, Transform: TransformLog1p,
		Description: "Net monthly cash burn"},
	{Name: "runway_months", Pillar: PillarCapital, Kind: KindNumber, Max: 120,
		Description: "Months of runway at current burn"},
	{Name: "burn_multiple", Pillar: PillarCapital, Kind: KindNumber, Max: 100,
		Description: "Net burn divided by net new ARR"},
	{Name: FieldInvestorTier, Pillar: PillarCapital, Kind: KindEnum,
		Values:      []string{"tier_1", "tier_2", "tier_3", "none"},
		Description: "Tier of the lead investor"},
	{Name: "has_debt", Pillar: PillarCapital, Kind: KindBool,
		Description: "Company carries venture or bank debt"},

	// Advantage
	{Name: "patent_count", Pillar: PillarAdvantage, Kind: KindCount, Max: 10000, Transform: TransformLog1p,
		Description: "Granted and pending patents"},
	{Name: "network_effects_present", Pillar: PillarAdvantage, Kind: KindBool,
		Description: "Product value grows with usage"},
	{Name: "has_data_moat", Pillar: PillarAdvantage, Kind: KindBool,
		Description: "Proprietary data competitors cannot easily obtain"},
	{Name: "regulatory_advantage_present", Pillar: PillarAdvantage, Kind: KindBool,
		Description: "Licenses or approvals that gate competitors"},
	{Name: "tech_differentiation_score", Pillar: PillarAdvantage, Kind: KindScore, Min: 1, Max: 5, Transform: TransformScore,
		Description: "Technology differentiation, 1 to 5"},
	{Name: "switching_cost_score", Pillar: PillarAdvantage, Kind: KindScore, Min: 1, Max: 5, Transform: TransformScore,
		Description: "Customer switching cost, 1 to 5"},
	{Name: "brand_strength_score", Pillar: PillarAdvantage, Kind: KindScore, Min: 1, Max: 5, Transform: TransformScore,
		Description: "Brand strength, 1 to 5"},
	{Name: "scalability_score", Pillar: PillarAdvantage, Kind: KindScore, Min: 1, Max: 5, Scale: ScaleUnit, Transform: TransformScore,
		Description: "Scalability, submitted 0 to 1 and stored 1 to 5"},
	{Name: FieldProductStage, Pillar: PillarAdvantage, Kind: KindEnum,
		Values:      []string{"concept", "mvp", "beta", "launched", "mature"},
		Description: "Product maturity"},

	// Market
	{Name: FieldSector, Pillar: PillarMarket, Kind: KindEnum,
		Values:      []string{"saas", "fintech", "healthtech", "ecommerce", "ai_ml", "marketplace", "edtech", "deeptech", "biotech", "other"},
		Description: "Primary industry"},
	{Name: "tam_size_usd", Pillar: PillarMarket, Kind: KindAmount, Max: maxAmountUSD, Transform: TransformLog1p,
		Description: "Total addressable market"},
	{Name: "market_growth_rate_percent", Pillar: PillarMarket, Kind: KindNumber, Min: -100, Max: 1000, Transform: TransformPercent,
		Description: "Annual market growth"},
	{Name: "customer_count", Pillar: PillarMarket, Kind: KindCount, Max: 1e9, Transform: TransformLog1p,
		Description: "Paying customers"},
	{Name: "customer_concentration", Pillar: PillarMarket, Kind: KindRatio, Max: 1, Scale: ScalePercent,
		Description: "Revenue share of the largest customer, submitted as a percent"},
	{Name: "user_growth_rate_percent", Pillar: PillarMarket, Kind: KindNumber, Min: -100, Max: 10000, Transform: TransformPercent,
		Description: "Annual user growth"},
	{Name: "net_dollar_retention_percent", Pillar: PillarMarket, Kind: KindNumber, Max: 300, Transform: TransformPercent,
		Description: "Net dollar retention"},
	{Name: "competition_intensity", Pillar: PillarMarket, Kind: KindScore, Min: 1, Max: 5, Transform: TransformScore,
		Description: "Competitive pressure, 1 to 5"},
	{Name: "annual_revenue_run_rate", Pillar: PillarMarket, Kind: KindAmount, Max: maxAmountUSD, Transform: TransformLog1p,
		Description: "Annualized revenue"},
	{Name: "revenue_growth_rate_percent", Pillar: PillarMarket, Kind: KindNumber, Min: -100, Max: 10000, Transform: TransformPercent,
		Description: "Annual revenue growth"},
	{Name: "gross_margin_percent", Pillar: PillarMarket, Kind: KindNumber, Min: -100, Max: 100, Transform: TransformPercent,
		Description: "Gross margin"},
	{Name: "ltv_cac_ratio", Pillar: PillarMarket, Kind: KindNumber, Max: 100,
		Description: "Customer lifetime value over acquisition cost"},

	// People
	{Name: "founders_count", Pillar: PillarPeople, Kind: KindCount, Min: 1, Max: 20,
		Description: "Number of founders"},
	{Name: "team_size_full_time", Pillar: PillarPeople, Kind: KindCount, Min: 1, Max: 100000, Transform: TransformLog1p,
		Description: "Full-time employees"},
	{Name: "years_experience_avg", Pillar: PillarPeople, Kind: KindNumber, Max: 60,
		Description: "Average years of industry experience"},
	{Name: "domain_expertise_years_avg", Pillar: PillarPeople, Kind: KindNumber, Max: 60,
		Description: "Average years in the company's domain"},
	{Name: "prior_startup_experience_count", Pillar: PillarPeople, Kind: KindCount, Max: 50, Transform: TransformLog1p,
		Description: "Startups previously founded or joined early"},
	{Name: "prior_successful_exits_count", Pillar: PillarPeople, Kind: KindCount, Max: 50, Transform: TransformLog1p,
		Description: "Prior acquisitions or IPOs"},
	{Name: "board_advisor_experience_score", Pillar: PillarPeople, Kind: KindScore, Min: 1, Max: 5, Transform: TransformScore,
		Description: "Board and advisor strength, 1 to 5"},
	{Name: "advisors_count", Pillar: PillarPeople, Kind: KindCount, Max: 100, Transform: TransformLog1p,
		Description: "Formal advisors"},
	{Name: "team_diversity", Pillar: PillarPeople, Kind: KindRatio, Max: 1, Scale: ScalePercent,
		Description: "Share of team from under-represented groups, submitted as a percent"},
	{Name: "key_person_dependency", Pillar: PillarPeople, Kind: KindBool,
		Description: "Company depends on a single individual"},
}

// enumLabels maps human-entered labels (lowercased, trimmed) to canonical enum values.
// Canonical values are accepted as themselves and are not listed here.
var enumLabels = map[string]map[string]string{
	FieldFundingStage: {
		"pre-seed":   "pre_seed",
		"pre seed":   "pre_seed",
		"preseed":    "pre_seed",
		"seed":       "seed",
		"series a":   "series_a",
		"series-a":   "series_a",
		"series b":   "series_b",
		"series-b":   "series_b",
		"series c":   "series_c",
		"series-c":   "series_c",
		"series c+":  "series_c",
		"series d":   "growth",
		"series d+":  "growth",
		"growth":     "growth",
		"late stage": "growth",
	},
	FieldInvestorTier: {
		"tier 1":     "tier_1",
		"tier-1":     "tier_1",
		"tier 2":     "tier_2",
		"tier-2":     "tier_2",
		"tier 3":     "tier_3",
		"tier-3":     "tier_3",
		"angel":      "none",
		"none":       "none",
		"bootstrap":  "none",
		"university": "tier_3",
	},
	FieldProductStage: {
		"concept":  "concept",
		"idea":     "concept",
		"mvp":      "mvp",
		"beta":     "beta",
		"launched": "launched",
		"ga":       "launched",
		"live":     "launched",
		"growth":   "mature",
		"mature":   "mature",
		"scaling":  "mature",
	},
	FieldSector: {
		"saas":        "saas",
		"software":    "saas",
		"fintech":     "fintech",
		"healthtech":  "healthtech",
		"healthcare":  "healthtech",
		"e-commerce":  "ecommerce",
		"ecommerce":   "ecommerce",
		"ai/ml":       "ai_ml",
		"ai":          "ai_ml",
		"marketplace": "marketplace",
		"edtech":      "edtech",
		"deeptech":    "deeptech",
		"deep tech":   "deeptech",
		"biotech":     "biotech",
		"other":       "other",
	},
}

var fieldIndex = buildFieldIndex()

func buildFieldIndex() map[string]int {
	idx := make(map[string]int, len(fieldSpecs))
	for i, f := range fieldSpecs {
		idx[f.Name] = i
	}
	return idx
}

// Fields returns a copy of the field contract in declaration order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fieldSpecs))
	for i, f := range fieldSpecs {
		f.Values = append([]string(nil), f.Values...)
		if f.Scale == "" {
			f.Scale = ScaleCanonical
		}
		if f.Transform == "" {
			f.Transform = TransformIdentity
		}
		out[i] = f
	}
	return out
}

// LookupField returns the contract row for name.
func LookupField(name string) (FieldSpec, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return FieldSpec{}, false
	}
	return fieldSpecs[i], true
}

// FieldNamesFor returns the sorted field names that belong to pillar p.
func FieldNamesFor(p Pillar) []string {
	var names []string
	for _, f := range fieldSpecs {
		if f.Pillar == p {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}

// canonicalEnum resolves a submitted label for an enum field.
func canonicalEnum(spec FieldSpec, label string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	for _, v := range spec.Values {
		if key == v {
			return v, true
		}
	}
	v, ok := enumLabels[spec.Name][key]
	return v, ok
}
