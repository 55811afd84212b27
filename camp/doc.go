// Package camp provides the prediction core of the CAMP startup assessment service.
//
// # Reading Guide
//
// Start with these files to understand the pipeline:
//   - fields.go: the declarative field contract (pillar, kind, range, input scale, labels)
//   - normalize.go: raw input -> MetricsRecord, collecting every offending field
//   - adapters.go: the five model adapters behind the Adapter interface
//   - ensemble.go: concurrent fan-out, weighted combination, confidence and pillars
//
// # Architecture
//
// The camp package defines the record, the adapter contract and the aggregator;
// supporting code lives in sub-packages:
//   - camp/model/: YAML model artifacts and the read-only Registry loaded at startup
//   - camp/report/: the externally documented response shape
//   - camp/trace/: per-prediction decision records and batch summaries
//   - camp/synth/: deterministic synthetic input generation
//   - camp/server/: HTTP API over the pipeline
//   - camp/client/: HTTP client for the API
//
// # Key Interfaces
//
//   - Adapter: one trained model family, Predict(ctx, record) -> PartialResult
//
// Everything created per prediction (records, partial and aggregate results) is
// immutable after construction and never shared across requests.
package camp
