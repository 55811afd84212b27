package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/model"
	"github.com/flashcamp/camp-ensemble/camp/server"
)

var (
	configPath     string
	listenAddr     string
	serveModelsDir string
	adapterTimeout time.Duration
	weightsSpec    string
)

// serveCmd starts the HTTP prediction service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prediction API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		var file *FileConfig
		if configPath != "" {
			f, err := loadConfigFile(configPath)
			if err != nil {
				return err
			}
			file = f
		}
		cfg, err := resolveServeConfig(file, os.Getenv, serveFlagOverrides(cmd))
		if err != nil {
			return err
		}
		if cfg.LogLevel != "" && !cmd.Flags().Changed("log") {
			if err := setLogLevel(cfg.LogLevel); err != nil {
				return err
			}
		}

		ens, reg, err := buildPipeline(cfg.ModelsDir, camp.EnsembleConfig{
			Weights:        cfg.Weights,
			Bands:          cfg.Bands,
			AdapterTimeout: cfg.AdapterTimeout,
		})
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"weights":         cfg.Weights.String(),
			"adapter_timeout": cfg.AdapterTimeout,
			"models":          reg.Source(),
		}).Info("Ensemble ready")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := server.New(server.Config{
			Addr:              cfg.Listen,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			ShutdownTimeout:   server.DefaultConfig().ShutdownTimeout,
		}, ens, reg)
		return srv.ListenAndServe(ctx)
	},
}

func serveFlagOverrides(cmd *cobra.Command) serveOverrides {
	var o serveOverrides
	if cmd.Flags().Changed("listen") {
		o.Listen = &listenAddr
	}
	if cmd.Flags().Changed("models") {
		o.ModelsDir = &serveModelsDir
	}
	if cmd.Flags().Changed("adapter-timeout") {
		o.AdapterTimeout = &adapterTimeout
	}
	if cmd.Flags().Changed("weights") {
		o.Weights = &weightsSpec
	}
	return o
}

// buildPipeline loads the registry and binds the adapters into an ensemble.
// It fails only when no artifact loaded at all; partial failures degrade the ensemble.
func buildPipeline(dir string, cfg camp.EnsembleConfig) (*camp.Ensemble, *model.Registry, error) {
	reg := model.Load(dir)
	if reg.Loaded() == 0 {
		return nil, nil, fmt.Errorf("no model artifacts could be loaded from %s", reg.Source())
	}
	for _, st := range reg.Status() {
		if !st.Loaded {
			logrus.WithField("artifact", st.Name).Warnf("Model unavailable, ensemble degraded: %s", st.Error)
		}
	}
	ens, err := camp.NewEnsemble(camp.NewAdapters(reg), cfg)
	if err != nil {
		return nil, nil, err
	}
	return ens, reg, nil
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to camp.yaml")
	serveCmd.Flags().StringVar(&listenAddr, "listen", server.DefaultConfig().Addr, "Listen address")
	serveCmd.Flags().StringVar(&serveModelsDir, "models", "", "Directory of model artifacts (default: embedded)")
	serveCmd.Flags().DurationVar(&adapterTimeout, "adapter-timeout", camp.DefaultAdapterTimeout, "Per-adapter prediction timeout")
	serveCmd.Flags().StringVar(&weightsSpec, "weights", "", "Adapter weights, e.g. stage:3,pattern:2,temporal:2,industry:1.5,baseline:1.5")
}
