package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcamp/camp-ensemble/camp"
)

const sampleConfig = `listen: 0.0.0.0:9000
models_dir: /srv/models
adapter_timeout: 750ms
log_level: debug
rate_limit:
  requests_per_second: 20
  burst: 40
weights:
  stage: 0.4
verdict_bands:
  - label: STRONG
    min: 0.6
  - label: WEAK
    min: 0
`

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestParseConfigFile_AllSections(t *testing.T) {
	// GIVEN a complete config file
	cfg, err := parseConfigFile(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	// WHEN resolved without env or flags
	sc, err := resolveServeConfig(cfg, env(nil), serveOverrides{})
	require.NoError(t, err)

	// THEN every file value is applied
	assert.Equal(t, "0.0.0.0:9000", sc.Listen)
	assert.Equal(t, "/srv/models", sc.ModelsDir)
	assert.Equal(t, 750*time.Millisecond, sc.AdapterTimeout)
	assert.Equal(t, "debug", sc.LogLevel)
	assert.Equal(t, 20.0, sc.RequestsPerSecond)
	assert.Equal(t, 40, sc.Burst)
	assert.Equal(t, 0.4, sc.Weights[camp.AdapterStage])
	assert.Equal(t, 0.20, sc.Weights[camp.AdapterPattern])
	assert.Equal(t, "STRONG", sc.Bands.Classify(0.7))
}

func TestParseConfigFile_UnknownKey_Rejected(t *testing.T) {
	// GIVEN a typo in a key
	_, err := parseConfigFile(strings.NewReader("listen: :8080\nadapter_timout: 1s\n"))

	// THEN strict parsing refuses the file
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter_timout")
}

func TestParseConfigFile_Empty_Defaults(t *testing.T) {
	cfg, err := parseConfigFile(strings.NewReader(""))
	require.NoError(t, err)

	sc, err := resolveServeConfig(cfg, env(nil), serveOverrides{})

	require.NoError(t, err)
	assert.Equal(t, defaultServeConfig(), sc)
}

func TestResolveServeConfig_Precedence(t *testing.T) {
	// GIVEN the same settings in file, environment and flags
	cfg, err := parseConfigFile(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	vars := map[string]string{
		envListen:         "127.0.0.1:7000",
		envModelsDir:      "/env/models",
		envAdapterTimeout: "3s",
		envLogLevel:       "warn",
	}
	listen := "127.0.0.1:6000"
	weights := "baseline:0.5"

	// WHEN resolved with env and a subset of flags
	sc, err := resolveServeConfig(cfg, env(vars), serveOverrides{Listen: &listen, Weights: &weights})
	require.NoError(t, err)

	// THEN flags beat env, env beats file
	assert.Equal(t, "127.0.0.1:6000", sc.Listen)
	assert.Equal(t, "/env/models", sc.ModelsDir)
	assert.Equal(t, 3*time.Second, sc.AdapterTimeout)
	assert.Equal(t, "warn", sc.LogLevel)
	assert.Equal(t, 0.5, sc.Weights[camp.AdapterBaseline])
	assert.Equal(t, 0.30, sc.Weights[camp.AdapterStage], "flag weights start from the defaults")
}

func TestResolveServeConfig_InvalidValues(t *testing.T) {
	zero := time.Duration(0)
	badWeights := "stage:-1"
	empty := ""
	tests := []struct {
		name    string
		file    string
		vars    map[string]string
		flags   serveOverrides
		wantErr string
	}{
		{name: "bad file timeout", file: "adapter_timeout: soon\n", wantErr: "adapter_timeout"},
		{name: "negative file timeout", file: "adapter_timeout: -1s\n", wantErr: "must be positive"},
		{name: "bad env timeout", vars: map[string]string{envAdapterTimeout: "x"}, wantErr: envAdapterTimeout},
		{name: "zero flag timeout", flags: serveOverrides{AdapterTimeout: &zero}, wantErr: "--adapter-timeout"},
		{name: "bad flag weights", flags: serveOverrides{Weights: &badWeights}, wantErr: "--weights"},
		{name: "unknown file weight", file: "weights:\n  oracle: 1\n", wantErr: "unknown adapter"},
		{name: "overlapping bands", file: "verdict_bands:\n  - {label: A, min: 0.5}\n  - {label: B, min: 0.5}\n", wantErr: "must be below"},
		{name: "bands without zero", file: "verdict_bands:\n  - {label: A, min: 0.5}\n", wantErr: "must start at 0"},
		{name: "zero rate", file: "rate_limit:\n  requests_per_second: 0\n  burst: 1\n", wantErr: "requests_per_second"},
		{name: "zero burst", file: "rate_limit:\n  requests_per_second: 5\n  burst: 0\n", wantErr: "burst"},
		{name: "empty listen", flags: serveOverrides{Listen: &empty}, wantErr: "listen address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfigFile(strings.NewReader(tt.file))
			require.NoError(t, err)
			_, err = resolveServeConfig(cfg, env(tt.vars), tt.flags)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := loadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)

	_, err = loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadDotEnv(t *testing.T) {
	// GIVEN a .env file setting a variable that is not yet set
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CAMP_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("CAMP_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CAMP_TEST_DOTENV"))

	// WHEN loaded
	require.NoError(t, loadDotEnv(path))

	// THEN the variable is set, and a missing file is not an error
	assert.Equal(t, "from-file", os.Getenv("CAMP_TEST_DOTENV"))
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestSetLogLevel_Invalid(t *testing.T) {
	assert.Error(t, setLogLevel("loud"))
}

func TestLoadConfigFile_ShippedExample(t *testing.T) {
	// GIVEN the example camp.yaml at the repository root
	cfg, err := loadConfigFile(filepath.Join("..", "camp.yaml"))
	require.NoError(t, err)

	// WHEN resolved without env or flags
	sc, err := resolveServeConfig(cfg, env(nil), serveOverrides{})

	// THEN it reproduces the built-in weights and bands
	require.NoError(t, err)
	assert.Equal(t, camp.DefaultWeights(), sc.Weights)
	assert.Equal(t, camp.DefaultVerdictBands(), sc.Bands)
	assert.Equal(t, 2*time.Second, sc.AdapterTimeout)
}
