package trace

// TraceSummary aggregates statistics from a BatchTrace.
type TraceSummary struct {
	TotalInputs         int            `json:"total_inputs" yaml:"total_inputs"`
	AcceptedCount       int            `json:"accepted" yaml:"accepted"`
	RejectedCount       int            `json:"rejected" yaml:"rejected"`
	PredictedCount      int            `json:"predicted" yaml:"predicted"`
	FailedCount         int            `json:"failed" yaml:"failed"`
	DegradedCount       int            `json:"degraded" yaml:"degraded"`
	MeanProbability     float64        `json:"mean_probability" yaml:"mean_probability"`
	MeanConfidence      float64        `json:"mean_confidence" yaml:"mean_confidence"`
	MaxSpread           float64        `json:"max_spread" yaml:"max_spread"`
	VerdictDistribution map[string]int `json:"verdicts" yaml:"verdicts"`
	AdapterFailures     map[string]int `json:"adapter_failures" yaml:"adapter_failures"`
	RejectedFields      map[string]int `json:"rejected_fields" yaml:"rejected_fields"`
}

// Summarize computes aggregate statistics from a BatchTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(bt *BatchTrace) *TraceSummary {
	summary := &TraceSummary{
		VerdictDistribution: make(map[string]int),
		AdapterFailures:     make(map[string]int),
		RejectedFields:      make(map[string]int),
	}
	if bt == nil {
		return summary
	}

	summary.TotalInputs = len(bt.Validations)
	for _, v := range bt.Validations {
		if v.Accepted {
			summary.AcceptedCount++
			continue
		}
		summary.RejectedCount++
		for _, f := range v.Fields {
			summary.RejectedFields[f]++
		}
	}

	totalProbability, totalConfidence := 0.0, 0.0
	for _, p := range bt.Predictions {
		for _, a := range p.FailedAdapters {
			summary.AdapterFailures[a]++
		}
		if p.Error != "" {
			summary.FailedCount++
			continue
		}
		summary.PredictedCount++
		if p.Degraded() {
			summary.DegradedCount++
		}
		summary.VerdictDistribution[p.Verdict]++
		totalProbability += p.Probability
		totalConfidence += p.Confidence
		if p.Spread > summary.MaxSpread {
			summary.MaxSpread = p.Spread
		}
	}
	if summary.PredictedCount > 0 {
		summary.MeanProbability = totalProbability / float64(summary.PredictedCount)
		summary.MeanConfidence = totalConfidence / float64(summary.PredictedCount)
	}

	return summary
}
