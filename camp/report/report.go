// Package report shapes an ensemble result into the documented response contract.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/flashcamp/camp-ensemble/camp"
)

// PillarScores always carries all four CAMP pillars.
type PillarScores struct {
	Capital   float64 `json:"capital" yaml:"capital"`
	Advantage float64 `json:"advantage" yaml:"advantage"`
	Market    float64 `json:"market" yaml:"market"`
	People    float64 `json:"people" yaml:"people"`
}

// Get returns the score of pillar p.
func (s PillarScores) Get(p camp.Pillar) float64 {
	switch p {
	case camp.PillarCapital:
		return s.Capital
	case camp.PillarAdvantage:
		return s.Advantage
	case camp.PillarMarket:
		return s.Market
	default:
		return s.People
	}
}

// AdapterBreakdown is one adapter's entry in the response.
type AdapterBreakdown struct {
	Adapter      string             `json:"adapter" yaml:"adapter"`
	Status       string             `json:"status" yaml:"status"`
	Weight       float64            `json:"weight" yaml:"weight"`
	Probability  *float64           `json:"probability,omitempty" yaml:"probability,omitempty"`
	Label        string             `json:"label,omitempty" yaml:"label,omitempty"`
	Horizons     map[string]float64 `json:"horizons,omitempty" yaml:"horizons,omitempty"`
	ModelVersion string             `json:"model_version,omitempty" yaml:"model_version,omitempty"`
	Error        string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Response is the externally documented prediction response.
type Response struct {
	RecordID           string             `json:"record_id" yaml:"record_id"`
	CompanyName        string             `json:"company_name,omitempty" yaml:"company_name,omitempty"`
	SuccessProbability float64            `json:"success_probability" yaml:"success_probability"`
	Verdict            string             `json:"verdict" yaml:"verdict"`
	Confidence         float64            `json:"confidence" yaml:"confidence"`
	PillarScores       PillarScores       `json:"pillar_scores" yaml:"pillar_scores"`
	PillarSources      map[string]string  `json:"pillar_sources" yaml:"pillar_sources"`
	Breakdown          []AdapterBreakdown `json:"breakdown" yaml:"breakdown"`
	Archetype          string             `json:"archetype,omitempty" yaml:"archetype,omitempty"`
	Horizons           map[string]float64 `json:"horizons,omitempty" yaml:"horizons,omitempty"`
	Insights           []string           `json:"insights" yaml:"insights"`
	NextSteps          []string           `json:"next_steps" yaml:"next_steps"`
	ModelsUsed         int                `json:"models_used" yaml:"models_used"`
	ModelsAttempted    int                `json:"models_attempted" yaml:"models_attempted"`
	ModelVersion       string             `json:"model_version" yaml:"model_version"`
}

// Assemble maps res (and the record it was computed from) to a Response.
// It never fails and never mutates its inputs.
func Assemble(res *camp.AggregateResult, rec *camp.MetricsRecord) *Response {
	out := &Response{
		RecordID:           res.RecordID,
		CompanyName:        rec.CompanyName(),
		SuccessProbability: camp.RoundProbability(res.Probability),
		Verdict:            res.Verdict,
		Confidence:         toFixed(res.Confidence, 4),
		PillarSources:      make(map[string]string, 4),
		Breakdown:          make([]AdapterBreakdown, 0, len(res.Contributions)),
		ModelsUsed:         res.Succeeded,
		ModelsAttempted:    res.Attempted,
	}
	out.PillarScores = PillarScores{
		Capital:   toFixed(res.Pillars[camp.PillarCapital], 4),
		Advantage: toFixed(res.Pillars[camp.PillarAdvantage], 4),
		Market:    toFixed(res.Pillars[camp.PillarMarket], 4),
		People:    toFixed(res.Pillars[camp.PillarPeople], 4),
	}
	for p, src := range res.PillarSources {
		out.PillarSources[string(p)] = string(src)
	}

	versions := make(map[string]bool)
	for _, c := range res.Contributions {
		b := AdapterBreakdown{
			Adapter: string(c.Adapter),
			Status:  string(c.Status),
			Weight:  toFixed(c.Weight, 4),
		}
		if c.Status == camp.StatusOK {
			p := toFixed(c.Probability, 4)
			b.Probability = &p
			b.Label = c.Label
			b.Horizons = horizonMap(c.Horizons)
			b.ModelVersion = c.ModelVersion
			if c.ModelVersion != "" {
				versions[string(c.Adapter)+"@"+c.ModelVersion] = true
			}
			switch c.Adapter {
			case camp.AdapterPattern:
				out.Archetype = c.Label
			case camp.AdapterTemporal:
				out.Horizons = horizonMap(c.Horizons)
			}
		} else if c.Err != nil {
			b.Error = c.Err.Error()
		}
		out.Breakdown = append(out.Breakdown, b)
	}
	out.ModelVersion = versionString(versions)
	out.Insights = insights(res, rec, out)
	out.NextSteps = nextSteps(res, out.PillarScores)
	return out
}

func horizonMap(h map[camp.Horizon]float64) map[string]float64 {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]float64, len(h))
	for k, v := range h {
		out[string(k)] = toFixed(v, 4)
	}
	return out
}

// versionString is "<version>" when every model shares one, else "adapter@version,..." sorted.
func versionString(versions map[string]bool) string {
	keys := make([]string, 0, len(versions))
	distinct := make(map[string]bool)
	for k := range versions {
		keys = append(keys, k)
		distinct[k[strings.Index(k, "@")+1:]] = true
	}
	sort.Strings(keys)
	if len(distinct) == 1 {
		for v := range distinct {
			return v
		}
	}
	return strings.Join(keys, ",")
}

// strongestWeakest returns the highest and lowest scoring pillars; ties keep pillar order.
func strongestWeakest(s PillarScores) (camp.Pillar, camp.Pillar) {
	pillars := camp.Pillars()
	best, worst := pillars[0], pillars[0]
	for _, p := range pillars[1:] {
		if s.Get(p) > s.Get(best) {
			best = p
		}
		if s.Get(p) < s.Get(worst) {
			worst = p
		}
	}
	return best, worst
}

func insights(res *camp.AggregateResult, rec *camp.MetricsRecord, out *Response) []string {
	var lines []string
	best, worst := strongestWeakest(out.PillarScores)
	lines = append(lines,
		fmt.Sprintf("Strongest pillar: %s (%.2f)", best, out.PillarScores.Get(best)),
		fmt.Sprintf("Weakest pillar: %s (%.2f)", worst, out.PillarScores.Get(worst)))

	if runway, ok := rec.Number("runway_months"); ok {
		switch {
		case runway < 6:
			lines = append(lines, fmt.Sprintf("Runway of %.1f months is critically short", runway))
		case runway < 12:
			lines = append(lines, fmt.Sprintf("Runway of %.1f months is below the 12-month comfort threshold", runway))
		case runway >= 24:
			lines = append(lines, fmt.Sprintf("Runway of %.1f months gives room to execute", runway))
		}
	}
	if bm, ok := rec.Number("burn_multiple"); ok {
		switch {
		case bm > 2:
			lines = append(lines, fmt.Sprintf("Burn multiple of %.1f indicates inefficient growth", bm))
		case bm < 1:
			lines = append(lines, fmt.Sprintf("Burn multiple of %.1f indicates capital-efficient growth", bm))
		}
	}
	if ndr, ok := rec.Number("net_dollar_retention_percent"); ok {
		switch {
		case ndr >= 120:
			lines = append(lines, fmt.Sprintf("Net dollar retention of %.0f%% signals strong expansion revenue", ndr))
		case ndr < 100:
			lines = append(lines, fmt.Sprintf("Net dollar retention of %.0f%% means the customer base is shrinking", ndr))
		}
	}
	if out.Archetype != "" {
		lines = append(lines, fmt.Sprintf("Closest archetype: %s", strings.ReplaceAll(out.Archetype, "_", " ")))
	}
	if res.Succeeded < res.Attempted {
		lines = append(lines, fmt.Sprintf("Only %d of %d models contributed; treat the score with caution", res.Succeeded, res.Attempted))
	}
	for _, p := range camp.Pillars() {
		if src := res.PillarSources[p]; src != camp.PillarFromEnsemble && src != "" {
			lines = append(lines, fmt.Sprintf("The %s score is a %s estimate", p, src))
		}
	}
	return lines
}

var pillarNextSteps = map[camp.Pillar][]string{
	camp.PillarCapital: {
		"Extend runway to at least 18 months before the next raise",
		"Bring the burn multiple under 1.5 by tying spend to net new ARR",
	},
	camp.PillarAdvantage: {
		"Document the technical moat and protect it with patents or proprietary data",
		"Increase switching costs through integrations and workflow lock-in",
	},
	camp.PillarMarket: {
		"Improve net dollar retention with expansion pricing and customer success",
		"Reduce dependence on the largest customers",
	},
	camp.PillarPeople: {
		"Add experienced advisors or board members in the core domain",
		"Reduce key-person dependency by hiring senior leaders",
	},
}

func nextSteps(res *camp.AggregateResult, scores PillarScores) []string {
	_, worst := strongestWeakest(scores)
	steps := append([]string(nil), pillarNextSteps[worst]...)
	switch res.Verdict {
	case camp.VerdictPass:
		steps = append(steps, "Prepare the data room and begin investor conversations")
	case camp.VerdictConditionalPass:
		steps = append(steps, fmt.Sprintf("Address the %s pillar before the next fundraise", worst))
	case camp.VerdictFail:
		steps = append(steps, "Revisit the fundamentals of the business model before raising")
	}
	return steps
}

// toFixed rounds num to precision decimal places.
func toFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Round(num*output) / output
}
