package camp

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// DefaultAdapterTimeout bounds a single adapter call when no timeout is configured.
const DefaultAdapterTimeout = 2 * time.Second

// disagreementScale is the population standard deviation at which agreement reaches 0.
// 0.5 is the largest possible deviation of values confined to [0,1].
const disagreementScale = 0.5

// ContributionStatus is the outcome of one adapter in one prediction.
type ContributionStatus string

const (
	StatusOK     ContributionStatus = "ok"
	StatusFailed ContributionStatus = "failed"
)

// PillarSource records where a pillar sub-score came from.
type PillarSource string

const (
	PillarFromEnsemble PillarSource = "ensemble" // weighted mean of non-baseline adapters
	PillarFromBaseline PillarSource = "baseline"
	PillarFromOverall  PillarSource = "overall" // final probability
)

// Contribution is one adapter's part in an AggregateResult.
type Contribution struct {
	Adapter      AdapterKind
	Status       ContributionStatus
	Weight       float64 // renormalized weight actually applied; 0 when failed
	Probability  float64
	Label        string
	Horizons     map[Horizon]float64
	Pillars      map[Pillar]float64
	ModelVersion string
	Err          error
}

// AggregateResult is the combined verdict for one record.
type AggregateResult struct {
	RecordID      string
	Probability   float64
	Verdict       string
	Confidence    float64
	Pillars       map[Pillar]float64
	PillarSources map[Pillar]PillarSource
	Contributions []Contribution // in adapter order
	Succeeded     int
	Attempted     int
}

// Contribution returns the entry for kind.
func (r *AggregateResult) Contribution(kind AdapterKind) (Contribution, bool) {
	for _, c := range r.Contributions {
		if c.Adapter == kind {
			return c, true
		}
	}
	return Contribution{}, false
}

// EnsembleConfig holds the combination policy. Zero values select the defaults.
type EnsembleConfig struct {
	Weights        Weights
	Bands          VerdictBands
	AdapterTimeout time.Duration
}

// Ensemble fans a record out to every adapter and combines the results.
// It holds no per-request state and is safe for concurrent use.
type Ensemble struct {
	adapters []Adapter
	weights  Weights
	bands    VerdictBands
	timeout  time.Duration
}

// NewEnsemble validates cfg and binds it to adapters. Each adapter kind may appear once.
func NewEnsemble(adapters []Adapter, cfg EnsembleConfig) (*Ensemble, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("ensemble: at least one adapter is required")
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("ensemble: %w", err)
	}
	if cfg.Bands == nil {
		cfg.Bands = DefaultVerdictBands()
	}
	if err := cfg.Bands.Validate(); err != nil {
		return nil, fmt.Errorf("ensemble: %w", err)
	}
	if cfg.AdapterTimeout < 0 {
		return nil, fmt.Errorf("ensemble: adapter timeout must not be negative, got %v", cfg.AdapterTimeout)
	}
	if cfg.AdapterTimeout == 0 {
		cfg.AdapterTimeout = DefaultAdapterTimeout
	}
	seen := make(map[AdapterKind]bool, len(adapters))
	for _, a := range adapters {
		if seen[a.Kind()] {
			return nil, fmt.Errorf("ensemble: adapter %q registered twice", a.Kind())
		}
		seen[a.Kind()] = true
	}
	weights := make(Weights, len(cfg.Weights))
	for k, v := range cfg.Weights {
		weights[k] = v
	}
	return &Ensemble{
		adapters: append([]Adapter(nil), adapters...),
		weights:  weights,
		bands:    append(VerdictBands(nil), cfg.Bands...),
		timeout:  cfg.AdapterTimeout,
	}, nil
}

// Bands returns the verdict bands in use.
func (e *Ensemble) Bands() VerdictBands { return append(VerdictBands(nil), e.bands...) }

// Weights returns a copy of the adapter weights in use.
func (e *Ensemble) Weights() Weights {
	w := make(Weights, len(e.weights))
	for k, v := range e.weights {
		w[k] = v
	}
	return w
}

type outcome struct {
	res *PartialResult
	err error
}

// Predict runs every adapter concurrently and combines the successes.
// Adapter failures are logged and absorbed; *AggregationError is returned only when no
// adapter succeeds. If ctx is cancelled the prediction is abandoned and ctx.Err() returned.
func (e *Ensemble) Predict(ctx context.Context, rec *MetricsRecord) (*AggregateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcomes := make([]outcome, len(e.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range e.adapters {
		i, a := i, a
		g.Go(func() error {
			res, err := e.invoke(gctx, a, rec)
			outcomes[i] = outcome{res: res, err: err}
			return nil // don't fail the group on an adapter error
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		logrus.WithField("record", rec.ID()).Debugf("Prediction abandoned: %v", err)
		return nil, err
	}
	return e.combine(rec, outcomes)
}

// invoke runs one adapter under its own timeout. An adapter that ignores its context is
// abandoned when the timeout fires; its goroutine finishes into a buffered channel.
func (e *Ensemble) invoke(ctx context.Context, a Adapter, rec *MetricsRecord) (*PartialResult, error) {
	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &InferenceError{Adapter: a.Kind(), RecordID: rec.ID(), Cause: fmt.Errorf("panic: %v", r)}}
			}
		}()
		res, err := a.Predict(actx, rec)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return checkPartial(a.Kind(), rec, o.res)
	case <-actx.Done():
		return nil, &InferenceError{Adapter: a.Kind(), RecordID: rec.ID(), Cause: fmt.Errorf("no result within %v: %w", e.timeout, actx.Err())}
	}
}

// checkPartial rejects results the aggregator cannot use.
func checkPartial(kind AdapterKind, rec *MetricsRecord, res *PartialResult) (*PartialResult, error) {
	fail := func(format string, args ...any) error {
		return &InferenceError{Adapter: kind, RecordID: rec.ID(), Cause: fmt.Errorf(format, args...)}
	}
	if res == nil {
		return nil, fail("adapter returned no result")
	}
	if res.Adapter != kind {
		return nil, fail("result reports adapter %q", res.Adapter)
	}
	if math.IsNaN(res.Probability) || res.Probability < 0 || res.Probability > 1 {
		return nil, fail("probability %v outside [0, 1]", res.Probability)
	}
	for p, v := range res.Pillars {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, fail("%s pillar %v outside [0, 1]", p, v)
		}
	}
	return res, nil
}

func (e *Ensemble) combine(rec *MetricsRecord, outcomes []outcome) (*AggregateResult, error) {
	result := &AggregateResult{
		RecordID:      rec.ID(),
		Attempted:     len(outcomes),
		Pillars:       make(map[Pillar]float64, 4),
		PillarSources: make(map[Pillar]PillarSource, 4),
		Contributions: make([]Contribution, len(outcomes)),
	}
	var (
		okKinds  []AdapterKind
		failures []AdapterFailure
	)
	for i, o := range outcomes {
		kind := e.adapters[i].Kind()
		if o.err != nil {
			logrus.WithFields(logrus.Fields{"adapter": kind, "record": rec.ID()}).Warnf("Adapter failed: %v", o.err)
			failures = append(failures, AdapterFailure{Adapter: kind, Err: o.err})
			result.Contributions[i] = Contribution{Adapter: kind, Status: StatusFailed, Err: o.err}
			continue
		}
		okKinds = append(okKinds, kind)
		result.Contributions[i] = Contribution{
			Adapter:      kind,
			Status:       StatusOK,
			Probability:  o.res.Probability,
			Label:        o.res.Label,
			Horizons:     o.res.Horizons,
			Pillars:      o.res.Pillars,
			ModelVersion: o.res.ModelVersion,
		}
	}
	result.Succeeded = len(okKinds)
	if result.Succeeded == 0 {
		logrus.WithField("record", rec.ID()).Error("No adapter produced a result")
		return nil, &AggregationError{RecordID: rec.ID(), Failures: failures}
	}

	norm := e.weights.Renormalize(okKinds)
	probs := make([]float64, 0, len(okKinds))
	weights := make([]float64, 0, len(okKinds))
	for i := range result.Contributions {
		c := &result.Contributions[i]
		if c.Status != StatusOK {
			continue
		}
		c.Weight = norm[c.Adapter]
		probs = append(probs, c.Probability)
		weights = append(weights, c.Weight)
	}

	result.Probability = clamp01(stat.Mean(probs, weights))
	result.Confidence = confidence(probs, result.Succeeded, result.Attempted)
	result.Verdict = e.bands.Classify(result.Probability)
	e.pillarScores(result)

	logrus.WithFields(logrus.Fields{
		"record":      rec.ID(),
		"probability": result.Probability,
		"confidence":  result.Confidence,
		"succeeded":   result.Succeeded,
	}).Debug("Prediction combined")
	return result, nil
}

// confidence is agreement x coverage:
// agreement = 1 - min(1, popstd(probs)/0.5), coverage = sqrt(succeeded/attempted).
// With agreement fixed it strictly decreases as successes decrease.
func confidence(probs []float64, succeeded, attempted int) float64 {
	if succeeded == 0 || attempted == 0 {
		return 0
	}
	agreement := 1 - math.Min(1, stat.PopStdDev(probs, nil)/disagreementScale)
	coverage := math.Sqrt(float64(succeeded) / float64(attempted))
	return clamp01(agreement * coverage)
}

// pillarScores fills every pillar: weighted mean of successful non-baseline adapters that
// report it, else the baseline estimate, else the final probability.
func (e *Ensemble) pillarScores(result *AggregateResult) {
	for _, p := range Pillars() {
		var values, weights []float64
		baseline, haveBaseline := 0.0, false
		for _, c := range result.Contributions {
			if c.Status != StatusOK {
				continue
			}
			v, ok := c.Pillars[p]
			if !ok {
				continue
			}
			if c.Adapter == AdapterBaseline {
				baseline, haveBaseline = v, true
				continue
			}
			values = append(values, v)
			weights = append(weights, c.Weight)
		}
		switch {
		case len(values) > 0:
			result.Pillars[p] = clamp01(stat.Mean(values, weights))
			result.PillarSources[p] = PillarFromEnsemble
		case haveBaseline:
			result.Pillars[p] = baseline
			result.PillarSources[p] = PillarFromBaseline
		default:
			result.Pillars[p] = result.Probability
			result.PillarSources[p] = PillarFromOverall
		}
	}
}
