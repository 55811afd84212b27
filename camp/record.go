package camp

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
)

// MetricsRecord is the canonical, validated representation of one startup.
// It is only constructed by Normalize or FromCanonical and is immutable afterwards:
// state is unexported and accessors return copies.
type MetricsRecord struct {
	id         string
	explicitID bool
	name       string
	numbers    map[string]float64
	flags      map[string]bool
	enums      map[string]string
}

// ID returns the record identifier used in logs and responses.
func (r *MetricsRecord) ID() string { return r.id }

// CompanyName returns the optional company name, or "".
func (r *MetricsRecord) CompanyName() string { return r.name }

// Number returns the canonical value of a numeric field (score, ratio, amount, count, number).
func (r *MetricsRecord) Number(field string) (float64, bool) {
	v, ok := r.numbers[field]
	return v, ok
}

// Flag returns the value of a bool field.
func (r *MetricsRecord) Flag(field string) (bool, bool) {
	v, ok := r.flags[field]
	return v, ok
}

// Enum returns the canonical value of an enum field.
func (r *MetricsRecord) Enum(field string) (string, bool) {
	v, ok := r.enums[field]
	return v, ok
}

// Canonical returns every field on its canonical scale, plus the metadata keys that were
// supplied. The result is a fresh map and is accepted by FromCanonical.
func (r *MetricsRecord) Canonical() map[string]any {
	out := make(map[string]any, len(fieldSpecs)+2)
	for k, v := range r.numbers {
		out[k] = v
	}
	for k, v := range r.flags {
		out[k] = v
	}
	for k, v := range r.enums {
		out[k] = v
	}
	if r.explicitID {
		out[MetaStartupID] = r.id
	}
	if r.name != "" {
		out[MetaCompanyName] = r.name
	}
	return out
}

// Features returns the model feature vector. Enums are one-hot encoded under "field=value".
func (r *MetricsRecord) Features() map[string]float64 {
	out := make(map[string]float64, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		switch spec.Kind {
		case KindEnum:
			out[spec.Name+"="+r.enums[spec.Name]] = 1
		case KindBool:
			if r.flags[spec.Name] {
				out[spec.Name] = 1
			} else {
				out[spec.Name] = 0
			}
		default:
			out[spec.Name] = transform(spec.Transform, r.numbers[spec.Name])
		}
	}
	return out
}

// PillarFeatures returns the subset of Features belonging to pillar p.
func (r *MetricsRecord) PillarFeatures(p Pillar) map[string]float64 {
	all := r.Features()
	out := make(map[string]float64)
	for _, spec := range fieldSpecs {
		if spec.Pillar != p {
			continue
		}
		if spec.Kind == KindEnum {
			key := spec.Name + "=" + r.enums[spec.Name]
			out[key] = all[key]
			continue
		}
		out[spec.Name] = all[spec.Name]
	}
	return out
}

func transform(t Transform, x float64) float64 {
	switch t {
	case TransformLog1p:
		return math.Log1p(x)
	case TransformScore:
		return (x - 1) / 4
	case TransformPercent:
		return x / 100
	default:
		return x
	}
}

// fingerprint is a deterministic FNV-1a digest of the canonical metric values.
func (r *MetricsRecord) fingerprint() string {
	keys := make([]string, 0, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		keys = append(keys, spec.Name)
	}
	sort.Strings(keys)
	h := fnv.New64a()
	for _, k := range keys {
		var v string
		if n, ok := r.numbers[k]; ok {
			v = strconv.FormatFloat(n, 'g', -1, 64)
		} else if b, ok := r.flags[k]; ok {
			v = strconv.FormatBool(b)
		} else {
			v = r.enums[k]
		}
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(v))
		h.Write([]byte{';'})
	}
	return fmt.Sprintf("rec-%016x", h.Sum64())
}
