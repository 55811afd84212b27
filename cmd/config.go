package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/server"
)

// Environment overrides. They win over the config file and lose to flags.
const (
	envListen         = "CAMP_LISTEN"
	envModelsDir      = "CAMP_MODELS_DIR"
	envAdapterTimeout = "CAMP_ADAPTER_TIMEOUT"
)

// RateLimitConfig is the rate_limit section of camp.yaml.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// FileConfig represents the full camp.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type FileConfig struct {
	Listen         string             `yaml:"listen"`
	ModelsDir      string             `yaml:"models_dir"`
	AdapterTimeout string             `yaml:"adapter_timeout"`
	LogLevel       string             `yaml:"log_level"`
	RateLimit      *RateLimitConfig   `yaml:"rate_limit"`
	Weights        map[string]float64 `yaml:"weights"`
	VerdictBands   []camp.VerdictBand `yaml:"verdict_bands"`
}

// ServeConfig is the resolved configuration of the serve command.
type ServeConfig struct {
	Listen            string
	ModelsDir         string
	AdapterTimeout    time.Duration
	LogLevel          string
	RequestsPerSecond float64
	Burst             int
	Weights           camp.Weights
	Bands             camp.VerdictBands
}

// serveOverrides holds flag values; nil means the flag was not set.
type serveOverrides struct {
	Listen         *string
	ModelsDir      *string
	AdapterTimeout *time.Duration
	Weights        *string
}

func defaultServeConfig() ServeConfig {
	sc := server.DefaultConfig()
	return ServeConfig{
		Listen:            sc.Addr,
		AdapterTimeout:    camp.DefaultAdapterTimeout,
		RequestsPerSecond: sc.RequestsPerSecond,
		Burst:             sc.Burst,
		Weights:           camp.DefaultWeights(),
		Bands:             camp.DefaultVerdictBands(),
	}
}

// parseConfigFile decodes camp.yaml with strict field checking: typos must cause errors.
func parseConfigFile(r io.Reader) (*FileConfig, error) {
	var cfg FileConfig
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func loadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parseConfigFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// resolveServeConfig applies defaults < file < env < flags and validates the result.
func resolveServeConfig(file *FileConfig, getenv func(string) string, flags serveOverrides) (ServeConfig, error) {
	cfg := defaultServeConfig()

	if file != nil {
		if file.Listen != "" {
			cfg.Listen = file.Listen
		}
		if file.ModelsDir != "" {
			cfg.ModelsDir = file.ModelsDir
		}
		if file.AdapterTimeout != "" {
			d, err := parseTimeout(file.AdapterTimeout)
			if err != nil {
				return cfg, fmt.Errorf("adapter_timeout: %w", err)
			}
			cfg.AdapterTimeout = d
		}
		cfg.LogLevel = file.LogLevel
		if file.RateLimit != nil {
			if file.RateLimit.RequestsPerSecond <= 0 {
				return cfg, fmt.Errorf("rate_limit.requests_per_second must be positive, got %v", file.RateLimit.RequestsPerSecond)
			}
			if file.RateLimit.Burst <= 0 {
				return cfg, fmt.Errorf("rate_limit.burst must be positive, got %d", file.RateLimit.Burst)
			}
			cfg.RequestsPerSecond = file.RateLimit.RequestsPerSecond
			cfg.Burst = file.RateLimit.Burst
		}
		if len(file.Weights) > 0 {
			w, err := camp.WeightsFromMap(file.Weights)
			if err != nil {
				return cfg, fmt.Errorf("weights: %w", err)
			}
			cfg.Weights = w
		}
		if len(file.VerdictBands) > 0 {
			bands := camp.VerdictBands(file.VerdictBands)
			if err := bands.Validate(); err != nil {
				return cfg, err
			}
			cfg.Bands = bands
		}
	}

	if v := getenv(envListen); v != "" {
		cfg.Listen = v
	}
	if v := getenv(envModelsDir); v != "" {
		cfg.ModelsDir = v
	}
	if v := getenv(envAdapterTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", envAdapterTimeout, err)
		}
		cfg.AdapterTimeout = d
	}
	if v := getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}

	if flags.Listen != nil {
		cfg.Listen = *flags.Listen
	}
	if flags.ModelsDir != nil {
		cfg.ModelsDir = *flags.ModelsDir
	}
	if flags.AdapterTimeout != nil {
		if *flags.AdapterTimeout <= 0 {
			return cfg, fmt.Errorf("--adapter-timeout must be positive, got %v", *flags.AdapterTimeout)
		}
		cfg.AdapterTimeout = *flags.AdapterTimeout
	}
	if flags.Weights != nil {
		w, err := camp.ParseWeights(*flags.Weights)
		if err != nil {
			return cfg, fmt.Errorf("--weights: %w", err)
		}
		cfg.Weights = w
	}

	if cfg.Listen == "" {
		return cfg, fmt.Errorf("listen address must not be empty")
	}
	return cfg, nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", d)
	}
	return d, nil
}
