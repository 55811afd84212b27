package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures all validation and prediction decisions.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// BatchTrace collects decision records while a batch of inputs is scored.
// Not safe for concurrent use.
type BatchTrace struct {
	Config      TraceConfig
	Validations []ValidationRecord
	Predictions []PredictionRecord
}

// NewBatchTrace creates a BatchTrace ready for recording.
func NewBatchTrace(config TraceConfig) *BatchTrace {
	return &BatchTrace{
		Config:      config,
		Validations: make([]ValidationRecord, 0),
		Predictions: make([]PredictionRecord, 0),
	}
}

// Enabled reports whether records are kept.
func (bt *BatchTrace) Enabled() bool {
	return bt != nil && bt.Config.Level == TraceLevelDecisions
}

// RecordValidation appends a validation decision record.
func (bt *BatchTrace) RecordValidation(record ValidationRecord) {
	if !bt.Enabled() {
		return
	}
	bt.Validations = append(bt.Validations, record)
}

// RecordPrediction appends a prediction record.
func (bt *BatchTrace) RecordPrediction(record PredictionRecord) {
	if !bt.Enabled() {
		return
	}
	bt.Predictions = append(bt.Predictions, record)
}
