package camp

import (
	"fmt"
	"strings"
)

// FieldError describes one offending input field.
type FieldError struct {
	Field  string `json:"field" yaml:"field"`
	Reason string `json:"reason" yaml:"reason"`
}

// ValidationError is returned by the normalizer. It lists every offending field,
// sorted by field name. User-correctable.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Reason)
	}
	return fmt.Sprintf("invalid metrics (%d fields): %s", len(e.Fields), strings.Join(parts, "; "))
}

// FieldNames returns the offending field names in order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

// ModelUnavailableError reports an adapter whose artifact failed to load at startup.
type ModelUnavailableError struct {
	Adapter AdapterKind
	Cause   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %q unavailable: %v", e.Adapter, e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Cause }

// InferenceError reports that one adapter failed for one record. Request-local;
// absorbed by the aggregator.
type InferenceError struct {
	Adapter  AdapterKind
	RecordID string
	Cause    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed for adapter %q on record %s: %v", e.Adapter, e.RecordID, e.Cause)
}

func (e *InferenceError) Unwrap() error { return e.Cause }

// AdapterFailure pairs an adapter with the error it produced during one prediction.
type AdapterFailure struct {
	Adapter AdapterKind
	Err     error
}

// AggregationError means no adapter produced a usable result. It is the only error
// that prevents a response.
type AggregationError struct {
	RecordID string
	Failures []AdapterFailure
}

func (e *AggregationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Adapter, f.Err)
	}
	return fmt.Sprintf("no adapter produced a result for record %s (%s)", e.RecordID, strings.Join(parts, "; "))
}
