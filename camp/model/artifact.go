// Package model holds the serialized trained models used by the CAMP adapters and the
// read-only Registry that loads them once at startup.
//
// Artifacts are YAML documents of logistic and softmax coefficient tables. Features are
// addressed by name; a coefficient for a feature the record does not carry contributes 0.
package model

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// Artifact names, one per model family.
const (
	NameBaseline = "baseline"
	NameStage    = "stage"
	NamePattern  = "pattern"
	NameTemporal = "temporal"
	NameIndustry = "industry"
)

// Names returns the artifact names in load order.
func Names() []string {
	return []string{NameBaseline, NameStage, NamePattern, NameTemporal, NameIndustry}
}

// Horizon bucket keys used by the temporal artifact.
const (
	HorizonShort  = "short"
	HorizonMedium = "medium"
	HorizonLong   = "long"
)

var pillarKeys = []string{"capital", "advantage", "market", "people"}

// Artifact is one trained model family. Exactly the section matching Name is set.
// All sections must be listed to satisfy KnownFields(true) strict parsing.
type Artifact struct {
	Name     string         `yaml:"name"`
	Version  string         `yaml:"version"`
	Baseline *BaselineModel `yaml:"baseline,omitempty"`
	Stage    *StageModel    `yaml:"stage,omitempty"`
	Pattern  *PatternModel  `yaml:"pattern,omitempty"`
	Temporal *TemporalModel `yaml:"temporal,omitempty"`
	Industry *IndustryModel `yaml:"industry,omitempty"`
}

// Logistic is a binary logistic regression: sigmoid(intercept + sum(coef * feature)).
type Logistic struct {
	Intercept    float64            `yaml:"intercept"`
	Coefficients map[string]float64 `yaml:"coefficients"`
}

// BaselineModel scores the whole record and each pillar independently.
type BaselineModel struct {
	Overall Logistic            `yaml:"overall"`
	Pillars map[string]Logistic `yaml:"pillars"`
}

// PillarModel is one logistic per pillar combined by pillar weights.
type PillarModel struct {
	Weights map[string]float64  `yaml:"weights"`
	Pillars map[string]Logistic `yaml:"pillars"`
}

// StageModel holds one PillarModel per funding stage.
type StageModel struct {
	Stages map[string]PillarModel `yaml:"stages"`
}

// Archetype is one softmax class of the pattern model.
type Archetype struct {
	Name        string   `yaml:"name"`
	Prior       float64  `yaml:"prior"`
	SuccessRate float64  `yaml:"success_rate"`
	Logit       Logistic `yaml:"logit"`
}

// PatternModel classifies a record into archetypes.
type PatternModel struct {
	Archetypes []Archetype `yaml:"archetypes"`
}

// TemporalModel scores survival over three horizon buckets.
type TemporalModel struct {
	Weights  map[string]float64  `yaml:"weights"`
	Horizons map[string]Logistic `yaml:"horizons"`
}

// IndustryModel routes by sector; sectors without a dedicated model use Generic.
type IndustryModel struct {
	Generic Logistic            `yaml:"generic"`
	Sectors map[string]Logistic `yaml:"sectors"`
}

// Parse decodes an artifact with strict field checking and validates it.
func Parse(data []byte) (*Artifact, error) {
	var a Artifact
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&a); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks that the section for Name is present and every coefficient is finite.
func (a *Artifact) Validate() error {
	if a.Version == "" {
		return fmt.Errorf("artifact %q: version is required", a.Name)
	}
	sections := 0
	for _, set := range []bool{a.Baseline != nil, a.Stage != nil, a.Pattern != nil, a.Temporal != nil, a.Industry != nil} {
		if set {
			sections++
		}
	}
	if sections != 1 {
		return fmt.Errorf("artifact %q: expected exactly one model section, got %d", a.Name, sections)
	}
	var err error
	switch a.Name {
	case NameBaseline:
		err = a.validateBaseline()
	case NameStage:
		err = a.validateStage()
	case NamePattern:
		err = a.validatePattern()
	case NameTemporal:
		err = a.validateTemporal()
	case NameIndustry:
		err = a.validateIndustry()
	default:
		return fmt.Errorf("unknown artifact %q; valid: %v", a.Name, Names())
	}
	if err != nil {
		return fmt.Errorf("artifact %q: %w", a.Name, err)
	}
	return nil
}

func (a *Artifact) validateBaseline() error {
	if a.Baseline == nil {
		return fmt.Errorf("missing baseline section")
	}
	if err := a.Baseline.Overall.validate("overall"); err != nil {
		return err
	}
	return validatePillarLogits(a.Baseline.Pillars, "pillars")
}

func (a *Artifact) validateStage() error {
	if a.Stage == nil {
		return fmt.Errorf("missing stage section")
	}
	if len(a.Stage.Stages) == 0 {
		return fmt.Errorf("stage: no stages")
	}
	for _, name := range sortedKeys(a.Stage.Stages) {
		pm := a.Stage.Stages[name]
		if err := validatePillarLogits(pm.Pillars, "stage "+name); err != nil {
			return err
		}
		if err := validateWeights(pm.Weights, pillarKeys, "stage "+name+" weights"); err != nil {
			return err
		}
	}
	return nil
}

func (a *Artifact) validatePattern() error {
	if a.Pattern == nil {
		return fmt.Errorf("missing pattern section")
	}
	if len(a.Pattern.Archetypes) < 2 {
		return fmt.Errorf("pattern: need at least 2 archetypes, got %d", len(a.Pattern.Archetypes))
	}
	seen := make(map[string]bool)
	for _, arch := range a.Pattern.Archetypes {
		if arch.Name == "" {
			return fmt.Errorf("pattern: archetype without a name")
		}
		if seen[arch.Name] {
			return fmt.Errorf("pattern: duplicate archetype %q", arch.Name)
		}
		seen[arch.Name] = true
		if !(arch.Prior > 0 && arch.Prior <= 1) {
			return fmt.Errorf("pattern: archetype %q prior must be in (0, 1], got %v", arch.Name, arch.Prior)
		}
		if !(arch.SuccessRate >= 0 && arch.SuccessRate <= 1) {
			return fmt.Errorf("pattern: archetype %q success_rate must be in [0, 1], got %v", arch.Name, arch.SuccessRate)
		}
		if err := arch.Logit.validate("archetype " + arch.Name); err != nil {
			return err
		}
	}
	return nil
}

func (a *Artifact) validateTemporal() error {
	if a.Temporal == nil {
		return fmt.Errorf("missing temporal section")
	}
	keys := []string{HorizonShort, HorizonMedium, HorizonLong}
	for _, h := range keys {
		l, ok := a.Temporal.Horizons[h]
		if !ok {
			return fmt.Errorf("temporal: missing horizon %q", h)
		}
		if err := l.validate("horizon " + h); err != nil {
			return err
		}
	}
	if len(a.Temporal.Horizons) != len(keys) {
		return fmt.Errorf("temporal: unexpected horizons %v", sortedKeys(a.Temporal.Horizons))
	}
	return validateWeights(a.Temporal.Weights, keys, "temporal weights")
}

func (a *Artifact) validateIndustry() error {
	if a.Industry == nil {
		return fmt.Errorf("missing industry section")
	}
	if err := a.Industry.Generic.validate("generic"); err != nil {
		return err
	}
	for _, name := range sortedKeys(a.Industry.Sectors) {
		if err := a.Industry.Sectors[name].validate("sector " + name); err != nil {
			return err
		}
	}
	return nil
}

func (l Logistic) validate(where string) error {
	if !finite(l.Intercept) {
		return fmt.Errorf("%s: intercept must be finite", where)
	}
	for _, k := range sortedKeys(l.Coefficients) {
		if !finite(l.Coefficients[k]) {
			return fmt.Errorf("%s: coefficient %q must be finite", where, k)
		}
	}
	return nil
}

func validatePillarLogits(m map[string]Logistic, where string) error {
	for _, p := range pillarKeys {
		l, ok := m[p]
		if !ok {
			return fmt.Errorf("%s: missing pillar %q", where, p)
		}
		if err := l.validate(where + " " + p); err != nil {
			return err
		}
	}
	if len(m) != len(pillarKeys) {
		return fmt.Errorf("%s: unexpected pillars %v", where, sortedKeys(m))
	}
	return nil
}

func validateWeights(w map[string]float64, keys []string, where string) error {
	for _, k := range keys {
		v, ok := w[k]
		if !ok {
			return fmt.Errorf("%s: missing %q", where, k)
		}
		if !finite(v) || v <= 0 {
			return fmt.Errorf("%s: %q must be a finite positive number, got %v", where, k, v)
		}
	}
	if len(w) != len(keys) {
		return fmt.Errorf("%s: unexpected keys %v", where, sortedKeys(w))
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
