package camp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Weights holds the fixed combination weight of each adapter kind. Weights are relative;
// they are renormalized over the adapters that succeed for a given record.
type Weights map[AdapterKind]float64

// DefaultWeights returns the default profile: stage 0.30, pattern 0.20, temporal 0.20,
// industry 0.15, baseline 0.15. Baseline is nonzero so a degraded ensemble still scores.
func DefaultWeights() Weights {
	return Weights{
		AdapterStage:    0.30,
		AdapterPattern:  0.20,
		AdapterTemporal: 0.20,
		AdapterIndustry: 0.15,
		AdapterBaseline: 0.15,
	}
}

// ParseWeights parses a comma-separated string of "adapter:weight" pairs.
// Adapters not named keep their default weight. Returns DefaultWeights for empty input.
// Returns error for invalid names, duplicates, non-positive weights, NaN, Inf or malformed input.
func ParseWeights(s string) (Weights, error) {
	w := DefaultWeights()
	if strings.TrimSpace(s) == "" {
		return w, nil
	}
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid weight %q (expected adapter:weight)", strings.TrimSpace(part))
		}
		name := strings.TrimSpace(kv[0])
		if seen[name] {
			return nil, fmt.Errorf("duplicate adapter %q; each adapter may appear at most once", name)
		}
		seen[name] = true
		weight, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for adapter %q: %w", name, err)
		}
		w[AdapterKind(name)] = weight
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// WeightsFromMap converts a name->weight map (e.g. from YAML) onto the defaults.
func WeightsFromMap(m map[string]float64) (Weights, error) {
	w := DefaultWeights()
	for name, v := range m {
		w[AdapterKind(name)] = v
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate checks every key is a known adapter and every weight is finite and positive.
func (w Weights) Validate() error {
	for _, kind := range w.kinds() {
		if !validAdapterKinds[kind] {
			return fmt.Errorf("unknown adapter %q; valid: %s", kind, validAdapterList())
		}
		v := w[kind]
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("adapter %q weight must be a finite positive number, got %v", kind, v)
		}
	}
	for _, kind := range AdapterKinds() {
		if _, ok := w[kind]; !ok {
			return fmt.Errorf("missing weight for adapter %q", kind)
		}
	}
	return nil
}

// Renormalize returns the weights of the given kinds scaled to sum to 1.0.
// Panics if total weight is zero (should be prevented by validation).
func (w Weights) Renormalize(kinds []AdapterKind) map[AdapterKind]float64 {
	total := 0.0
	for _, k := range kinds {
		total += w[k]
	}
	if total <= 0 {
		panic(fmt.Sprintf("adapter weights sum to %f; must be positive", total))
	}
	out := make(map[AdapterKind]float64, len(kinds))
	for _, k := range kinds {
		out[k] = w[k] / total
	}
	return out
}

// String renders the weights in the ParseWeights syntax, in reporting order.
func (w Weights) String() string {
	parts := make([]string, 0, len(w))
	for _, k := range AdapterKinds() {
		if v, ok := w[k]; ok {
			parts = append(parts, fmt.Sprintf("%s:%s", k, strconv.FormatFloat(v, 'g', -1, 64)))
		}
	}
	return strings.Join(parts, ",")
}

func (w Weights) kinds() []AdapterKind {
	kinds := make([]AdapterKind, 0, len(w))
	for k := range w {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func validAdapterList() string {
	names := make([]string, 0, len(validAdapterKinds))
	for k := range validAdapterKinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
