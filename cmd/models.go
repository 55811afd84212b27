package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/model"
)

// modelsCmd reports the load status of every model artifact
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show model artifact load status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(outputFormat); err != nil {
			return err
		}
		return encode(cmd.OutOrStdout(), outputFormat, model.Load(modelsDir).Status())
	},
}

// fieldsCmd prints the input field contract
var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Show the input field contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(outputFormat); err != nil {
			return err
		}
		return encode(cmd.OutOrStdout(), outputFormat, camp.Fields())
	},
}

func init() {
	modelsCmd.Flags().StringVar(&modelsDir, "models", "", "Directory of model artifacts (default: embedded)")
}
