package camp

import (
	"context"
	"fmt"
	"math"

	"github.com/flashcamp/camp-ensemble/camp/model"
)

// AdapterKind identifies one model family. The set is closed.
type AdapterKind string

const (
	AdapterStage    AdapterKind = model.NameStage
	AdapterPattern  AdapterKind = model.NamePattern
	AdapterTemporal AdapterKind = model.NameTemporal
	AdapterIndustry AdapterKind = model.NameIndustry
	AdapterBaseline AdapterKind = model.NameBaseline
)

// validAdapterKinds maps adapter names to validity. Unexported to prevent mutation.
var validAdapterKinds = map[AdapterKind]bool{
	AdapterStage:    true,
	AdapterPattern:  true,
	AdapterTemporal: true,
	AdapterIndustry: true,
	AdapterBaseline: true,
}

// IsValidAdapter returns true if name is a recognized adapter kind.
func IsValidAdapter(name string) bool { return validAdapterKinds[AdapterKind(name)] }

// AdapterKinds returns every adapter kind in reporting order.
func AdapterKinds() []AdapterKind {
	return []AdapterKind{AdapterStage, AdapterPattern, AdapterTemporal, AdapterIndustry, AdapterBaseline}
}

// Horizon is a temporal bucket: short 0-6mo, medium 6-18mo, long 18mo+.
type Horizon string

const (
	HorizonShort  Horizon = model.HorizonShort
	HorizonMedium Horizon = model.HorizonMedium
	HorizonLong   Horizon = model.HorizonLong
)

// Horizons returns the buckets in chronological order.
func Horizons() []Horizon { return []Horizon{HorizonShort, HorizonMedium, HorizonLong} }

// PartialResult is the output of one adapter for one record.
type PartialResult struct {
	Adapter      AdapterKind
	Probability  float64
	Label        string              // archetype or industry sub-model; "" when not applicable
	Horizons     map[Horizon]float64 // temporal only
	Pillars      map[Pillar]float64  // adapters with pillar-level detail only
	ModelVersion string
}

// Adapter wraps one trained model artifact behind a single prediction call.
// Implementations are stateless and safe for concurrent use.
type Adapter interface {
	Kind() AdapterKind
	// Predict returns *ModelUnavailableError when the artifact failed to load and
	// *InferenceError when this record cannot be scored.
	Predict(ctx context.Context, rec *MetricsRecord) (*PartialResult, error)
}

// NewAdapters returns one adapter per kind, in reporting order, bound to reg.
// An artifact that failed to load yields an adapter that always reports it unavailable.
func NewAdapters(reg *model.Registry) []Adapter {
	adapters := make([]Adapter, 0, len(AdapterKinds()))
	for _, kind := range AdapterKinds() {
		adapters = append(adapters, NewAdapter(kind, reg))
	}
	return adapters
}

// NewAdapter returns the adapter for kind. Panics on unknown kind
// (validation should catch this before reaching here).
func NewAdapter(kind AdapterKind, reg *model.Registry) Adapter {
	a, err := reg.Get(string(kind))
	ref := artifactRef{kind: kind, artifact: a, err: err}
	switch kind {
	case AdapterBaseline:
		return &baselineAdapter{ref}
	case AdapterStage:
		return &stageAdapter{ref}
	case AdapterPattern:
		return &patternAdapter{ref}
	case AdapterTemporal:
		return &temporalAdapter{ref}
	case AdapterIndustry:
		return &industryAdapter{ref}
	default:
		panic(fmt.Sprintf("unknown adapter %q", kind))
	}
}

// artifactRef is the shared part of every adapter: its kind and its immutable artifact.
type artifactRef struct {
	kind     AdapterKind
	artifact *model.Artifact
	err      error
}

func (r artifactRef) Kind() AdapterKind { return r.kind }

func (r artifactRef) ready(ctx context.Context) (*model.Artifact, error) {
	if r.err != nil {
		return nil, &ModelUnavailableError{Adapter: r.kind, Cause: r.err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.artifact, nil
}

func (r artifactRef) inferenceError(rec *MetricsRecord, format string, args ...any) error {
	return &InferenceError{Adapter: r.kind, RecordID: rec.ID(), Cause: fmt.Errorf(format, args...)}
}

// checkProbability rejects NaN, Inf and values outside [0,1].
func (r artifactRef) checkProbability(rec *MetricsRecord, what string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return r.inferenceError(rec, "%s probability %v outside [0, 1]", what, p)
	}
	return nil
}

// === baseline ===

type baselineAdapter struct{ artifactRef }

func (a *baselineAdapter) Predict(ctx context.Context, rec *MetricsRecord) (*PartialResult, error) {
	art, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	features := rec.Features()
	p := art.Baseline.Overall.Probability(features)
	if err := a.checkProbability(rec, "overall", p); err != nil {
		return nil, err
	}
	pillars, err := a.scorePillars(rec, art.Baseline.Pillars, features)
	if err != nil {
		return nil, err
	}
	return &PartialResult{Adapter: a.kind, Probability: p, Pillars: pillars, ModelVersion: art.Version}, nil
}

func (r artifactRef) scorePillars(rec *MetricsRecord, logits map[string]model.Logistic, features map[string]float64) (map[Pillar]float64, error) {
	out := make(map[Pillar]float64, len(logits))
	for _, p := range Pillars() {
		l, ok := logits[string(p)]
		if !ok {
			return nil, r.inferenceError(rec, "no %s pillar model", p)
		}
		v := l.Probability(features)
		if err := r.checkProbability(rec, string(p), v); err != nil {
			return nil, err
		}
		out[p] = v
	}
	return out, nil
}

// === stage ===

type stageAdapter struct{ artifactRef }

func (a *stageAdapter) Predict(ctx context.Context, rec *MetricsRecord) (*PartialResult, error) {
	art, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	stage, _ := rec.Enum(FieldFundingStage)
	sub, ok := art.Stage.Stages[stage]
	if !ok {
		return nil, a.inferenceError(rec, "no sub-model for funding stage %q", stage)
	}
	pillars, err := a.scorePillars(rec, sub.Pillars, rec.Features())
	if err != nil {
		return nil, err
	}
	var num, den float64
	for _, p := range Pillars() {
		w := sub.Weights[string(p)]
		num += w * pillars[p]
		den += w
	}
	if den <= 0 {
		return nil, a.inferenceError(rec, "stage %q pillar weights sum to %v", stage, den)
	}
	prob := num / den
	if err := a.checkProbability(rec, "stage", prob); err != nil {
		return nil, err
	}
	return &PartialResult{Adapter: a.kind, Probability: prob, Label: stage, Pillars: pillars, ModelVersion: art.Version}, nil
}

// === pattern ===

// archetypeTieTolerance is the class-probability gap below which two archetypes tie.
const archetypeTieTolerance = 1e-9

type patternAdapter struct{ artifactRef }

func (a *patternAdapter) Predict(ctx context.Context, rec *MetricsRecord) (*PartialResult, error) {
	art, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	features := rec.Features()
	archetypes := art.Pattern.Archetypes
	logits := make([]float64, len(archetypes))
	for i, arch := range archetypes {
		logits[i] = arch.Logit.Logit(features)
	}
	probs := model.Softmax(logits)

	var prob float64
	best := 0
	for i, arch := range archetypes {
		prob += probs[i] * arch.SuccessRate
		if i > 0 && archetypeBetter(probs[i], arch, probs[best], archetypes[best]) {
			best = i
		}
	}
	if err := a.checkProbability(rec, "pattern", prob); err != nil {
		return nil, err
	}
	return &PartialResult{Adapter: a.kind, Probability: prob, Label: archetypes[best].Name, ModelVersion: art.Version}, nil
}

// archetypeBetter orders candidates by class probability; ties within tolerance go to the
// higher prior frequency, then to the lexicographically smaller name.
func archetypeBetter(p float64, arch model.Archetype, bestP float64, best model.Archetype) bool {
	if math.Abs(p-bestP) > archetypeTieTolerance {
		return p > bestP
	}
	if arch.Prior != best.Prior {
		return arch.Prior > best.Prior
	}
	return arch.Name < best.Name
}

// === temporal ===

type temporalAdapter struct{ artifactRef }

func (a *temporalAdapter) Predict(ctx context.Context, rec *MetricsRecord) (*PartialResult, error) {
	art, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	features := rec.Features()
	horizons := make(map[Horizon]float64, 3)
	var num, den float64
	for _, h := range Horizons() {
		l, ok := art.Temporal.Horizons[string(h)]
		if !ok {
			return nil, a.inferenceError(rec, "no %s horizon model", h)
		}
		v := l.Probability(features)
		if err := a.checkProbability(rec, string(h)+" horizon", v); err != nil {
			return nil, err
		}
		horizons[h] = v
		w := art.Temporal.Weights[string(h)]
		num += w * v
		den += w
	}
	if den <= 0 {
		return nil, a.inferenceError(rec, "horizon weights sum to %v", den)
	}
	prob := num / den
	if err := a.checkProbability(rec, "temporal", prob); err != nil {
		return nil, err
	}
	return &PartialResult{Adapter: a.kind, Probability: prob, Horizons: horizons, ModelVersion: art.Version}, nil
}

// === industry ===

// GenericIndustryModel is the Label reported when a sector has no dedicated sub-model.
const GenericIndustryModel = "generic"

type industryAdapter struct{ artifactRef }

func (a *industryAdapter) Predict(ctx context.Context, rec *MetricsRecord) (*PartialResult, error) {
	art, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}
	sector, _ := rec.Enum(FieldSector)
	sub, label := art.Industry.Generic, GenericIndustryModel
	if l, ok := art.Industry.Sectors[sector]; ok {
		sub, label = l, sector
	}
	prob := sub.Probability(rec.Features())
	if err := a.checkProbability(rec, "industry", prob); err != nil {
		return nil, err
	}
	return &PartialResult{Adapter: a.kind, Probability: prob, Label: label, ModelVersion: art.Version}, nil
}
