// Package trace provides per-prediction decision records and batch summaries.
// This package has no dependencies on camp/: it stores pure data types.
package trace

// ValidationRecord captures the normalizer's decision for one submitted input.
type ValidationRecord struct {
	RecordID string
	Accepted bool
	Fields   []string // offending fields when rejected
}

// PredictionRecord captures one ensemble prediction.
type PredictionRecord struct {
	RecordID       string
	Probability    float64
	Confidence     float64
	Verdict        string
	Succeeded      int
	Attempted      int
	FailedAdapters []string
	Spread         float64 // max - min of successful adapter probabilities
	Error          string  // set when no response could be produced
}

// Degraded reports whether at least one adapter failed.
func (r PredictionRecord) Degraded() bool {
	return r.Error == "" && r.Succeeded < r.Attempted
}
