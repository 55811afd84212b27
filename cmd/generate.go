package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashcamp/camp-ensemble/camp/synth"
)

var (
	generateCount int
	generateSeed  int64
)

// generateCmd writes synthetic inputs as JSON Lines
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate deterministic synthetic startup inputs as JSON Lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := synth.Generate(synth.Options{Count: generateCount, Seed: generateSeed})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, in := range inputs {
			if err := enc.Encode(in); err != nil {
				return fmt.Errorf("write input: %w", err)
			}
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 10, "Number of inputs to generate")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 42, "Seed for deterministic generation")
}
