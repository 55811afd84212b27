package model

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

//go:embed artifacts/*.yaml
var embedded embed.FS

// ErrNotLoaded is returned by Registry.Get for a name the registry never attempted.
var ErrNotLoaded = errors.New("artifact not loaded")

// Status is the load outcome of one artifact.
type Status struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Loaded  bool   `json:"loaded" yaml:"loaded"`
	Source  string `json:"source" yaml:"source"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Registry is the process-wide set of loaded artifacts. It is built once and never
// mutated afterwards, so concurrent readers need no locking.
type Registry struct {
	source    string
	artifacts map[string]*Artifact
	errs      map[string]error
}

// LoadEmbedded loads the artifacts compiled into the binary.
func LoadEmbedded() *Registry {
	return load("embedded", func(name string) ([]byte, error) {
		return embedded.ReadFile("artifacts/" + name + ".yaml")
	})
}

// Load loads <dir>/<name>.yaml for every artifact name. An empty dir means LoadEmbedded.
// A failing artifact is recorded, not fatal; callers decide how many failures they tolerate.
func Load(dir string) *Registry {
	if dir == "" {
		return LoadEmbedded()
	}
	return load(dir, func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, name+".yaml"))
	})
}

func load(source string, read func(name string) ([]byte, error)) *Registry {
	r := &Registry{
		source:    source,
		artifacts: make(map[string]*Artifact),
		errs:      make(map[string]error),
	}
	for _, name := range Names() {
		a, err := loadOne(name, read)
		if err != nil {
			logrus.WithFields(logrus.Fields{"artifact": name, "source": source}).Errorf("Failed to load model: %v", err)
			r.errs[name] = err
			continue
		}
		logrus.WithFields(logrus.Fields{"artifact": name, "version": a.Version, "source": source}).Debug("Loaded model")
		r.artifacts[name] = a
	}
	return r
}

func loadOne(name string, read func(string) ([]byte, error)) (*Artifact, error) {
	data, err := read(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if a.Name != name {
		return nil, fmt.Errorf("file %s holds artifact %q", name, a.Name)
	}
	return a, nil
}

// NewRegistry builds a registry from already-constructed artifacts and load errors.
// Artifacts are validated and must be filed under their own name; a bad one is moved to
// the error set.
func NewRegistry(source string, artifacts map[string]*Artifact, errs map[string]error) *Registry {
	r := &Registry{
		source:    source,
		artifacts: make(map[string]*Artifact, len(artifacts)),
		errs:      make(map[string]error, len(errs)),
	}
	for name, err := range errs {
		r.errs[name] = err
	}
	for name, a := range artifacts {
		if a == nil {
			r.errs[name] = fmt.Errorf("artifact %s is nil", name)
			continue
		}
		if a.Name != name {
			r.errs[name] = fmt.Errorf("registry key %s holds artifact %q", name, a.Name)
			continue
		}
		if err := a.Validate(); err != nil {
			r.errs[name] = err
			continue
		}
		r.artifacts[name] = a
	}
	return r
}

// Get returns the named artifact or the error recorded when it failed to load.
func (r *Registry) Get(name string) (*Artifact, error) {
	if a, ok := r.artifacts[name]; ok {
		return a, nil
	}
	if err, ok := r.errs[name]; ok {
		return nil, err
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotLoaded)
}

// Loaded returns the number of artifacts that loaded successfully.
func (r *Registry) Loaded() int { return len(r.artifacts) }

// Source returns "embedded" or the directory the artifacts were read from.
func (r *Registry) Source() string { return r.source }

// Status returns the load outcome of every artifact name, in load order.
func (r *Registry) Status() []Status {
	out := make([]Status, 0, len(Names()))
	for _, name := range Names() {
		st := Status{Name: name, Source: r.source}
		if a, ok := r.artifacts[name]; ok {
			st.Loaded = true
			st.Version = a.Version
		} else if err, ok := r.errs[name]; ok {
			st.Error = err.Error()
		} else {
			st.Error = ErrNotLoaded.Error()
		}
		out = append(out, st)
	}
	return out
}
