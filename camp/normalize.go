package camp

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Normalize maps raw, human-entered input onto a MetricsRecord. Enum labels are
// canonicalized through the label table and fields with a declared input scale are
// rescaled. Every offending field is reported in one *ValidationError.
// Normalize has no side effects.
func Normalize(raw map[string]any) (*MetricsRecord, error) {
	return build(raw, true)
}

// FromCanonical builds a MetricsRecord from values already on the canonical scale,
// such as the output of MetricsRecord.Canonical. Enum values must be canonical.
func FromCanonical(values map[string]any) (*MetricsRecord, error) {
	return build(values, false)
}

func build(raw map[string]any, human bool) (*MetricsRecord, error) {
	rec := &MetricsRecord{
		numbers: make(map[string]float64),
		flags:   make(map[string]bool),
		enums:   make(map[string]string),
	}
	var errs []FieldError
	fail := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	for key, v := range raw {
		switch key {
		case MetaStartupID:
			s, ok := v.(string)
			if !ok || strings.TrimSpace(s) == "" {
				fail(key, "must be a non-empty string")
				continue
			}
			rec.id = strings.TrimSpace(s)
			rec.explicitID = true
		case MetaCompanyName:
			s, ok := v.(string)
			if !ok {
				fail(key, "must be a string")
				continue
			}
			rec.name = strings.TrimSpace(s)
		default:
			if _, ok := fieldIndex[key]; !ok {
				fail(key, "unknown field")
			}
		}
	}

	for _, spec := range fieldSpecs {
		v, present := raw[spec.Name]
		if !present || v == nil {
			fail(spec.Name, "missing")
			continue
		}
		switch spec.Kind {
		case KindEnum:
			s, ok := v.(string)
			if !ok {
				fail(spec.Name, "expected a string, got %T", v)
				continue
			}
			var canon string
			if human {
				canon, ok = canonicalEnum(spec, s)
			} else {
				canon, ok = s, contains(spec.Values, s)
			}
			if !ok {
				fail(spec.Name, "unrecognized value %q; accepted: %s", s, strings.Join(spec.Values, ", "))
				continue
			}
			rec.enums[spec.Name] = canon
		case KindBool:
			b, err := coerceBool(v)
			if err != nil {
				fail(spec.Name, "%v", err)
				continue
			}
			rec.flags[spec.Name] = b
		default:
			x, err := coerceNumber(v)
			if err != nil {
				fail(spec.Name, "%v", err)
				continue
			}
			if human {
				x, err = rescale(spec.Scale, x)
				if err != nil {
					fail(spec.Name, "%v", err)
					continue
				}
			}
			if x < spec.Min || x > spec.Max {
				fail(spec.Name, "%v out of range [%v, %v]", x, spec.Min, spec.Max)
				continue
			}
			if spec.Kind == KindCount && x != math.Trunc(x) {
				fail(spec.Name, "must be a whole number, got %v", x)
				continue
			}
			rec.numbers[spec.Name] = x
		}
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return nil, &ValidationError{Fields: errs}
	}
	if !rec.explicitID {
		rec.id = rec.fingerprint()
	}
	return rec, nil
}

// rescale maps a submitted value onto the canonical scale after checking the input range.
func rescale(scale InputScale, x float64) (float64, error) {
	switch scale {
	case ScaleUnit:
		if x < 0 || x > 1 {
			return 0, fmt.Errorf("%v out of input range [0, 1]", x)
		}
		return 1 + 4*x, nil
	case ScalePercent:
		if x < 0 || x > 100 {
			return 0, fmt.Errorf("%v out of input range [0, 100]", x)
		}
		return x / 100, nil
	default:
		return x, nil
	}
}

// coerceNumber accepts Go numeric kinds and json.Number. Strings, NaN and Inf fail.
func coerceNumber(v any) (float64, error) {
	var x float64
	switch n := v.(type) {
	case float64:
		x = n
	case float32:
		x = float64(n)
	case int:
		x = float64(n)
	case int8:
		x = float64(n)
	case int16:
		x = float64(n)
	case int32:
		x = float64(n)
	case int64:
		x = float64(n)
	case uint:
		x = float64(n)
	case uint8:
		x = float64(n)
	case uint16:
		x = float64(n)
	case uint32:
		x = float64(n)
	case uint64:
		x = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("malformed number %q", n.String())
		}
		x = f
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("must be finite, got %v", x)
	}
	return x, nil
}

// coerceBool accepts bool and the numbers 0 and 1.
func coerceBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	if _, isString := v.(string); isString {
		return false, fmt.Errorf("expected a bool, got string")
	}
	x, err := coerceNumber(v)
	if err != nil {
		return false, fmt.Errorf("expected a bool, got %T", v)
	}
	switch x {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("expected a bool or 0/1, got %v", x)
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
