package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"

	envLogLevel = "CAMP_LOG_LEVEL"
)

var (
	logLevel     string // Log verbosity level
	outputFormat string // json or yaml
	modelsDir    string // Directory of model artifacts; empty means embedded
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "camp",
	Short:         "CAMP startup assessment: multi-model ensemble prediction",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(".env"); err != nil {
			return err
		}
		level := logLevel
		if !cmd.Flags().Changed("log") {
			if v := os.Getenv(envLogLevel); v != "" {
				level = v
			}
		}
		return setLogLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatJSON, "Output format (json, yaml)")

	rootCmd.AddCommand(serveCmd, predictCmd, generateCmd, modelsCmd, fieldsCmd)
}

func setLogLevel(s string) error {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", s, err)
	}
	logrus.SetLevel(level)
	return nil
}

// loadDotEnv loads path into the environment when it exists. Variables already set win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	logrus.Debugf("Loaded environment from %s", path)
	return nil
}

func validateFormat(f string) error {
	if f != formatJSON && f != formatYAML {
		return fmt.Errorf("unknown output format %q; valid: %s, %s", f, formatJSON, formatYAML)
	}
	return nil
}

// encode writes v to w in the selected output format.
func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
