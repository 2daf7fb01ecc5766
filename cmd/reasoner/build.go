package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/builder"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// buildOutput is what an external renderer consumes.
type buildOutput struct {
	Chain        state.Chain              `json:"chain"`
	Verification state.VerificationResult `json:"verification"`
}

var buildCmd = &cobra.Command{
	Use:   "build <problem>",
	Short: "Build and verify one reasoning chain, printed as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		epsilon, _ := cmd.Flags().GetFloat32("epsilon")
		seed, _ := cmd.Flags().GetUint64("seed")
		taskID, _ := cmd.Flags().GetString("task-id")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		verifier, err := a.cfg.Verifier()
		if err != nil {
			return err
		}
		if taskID == "" {
			taskID = uuid.NewString()
		}

		chain, err := a.builder().Build(cmd.Context(), builder.Request{
			Task:    state.Task{ID: taskID, Problem: strings.Join(args, " ")},
			Epsilon: epsilon,
			Seed:    seed,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(buildOutput{Chain: chain, Verification: verifier.Verify(chain)}); err != nil {
			return fmt.Errorf("encode chain: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().Float32("epsilon", 0, "probability of consulting the oracle on any step")
	buildCmd.Flags().Uint64("seed", 1, "exploration seed")
	buildCmd.Flags().String("task-id", "", "task id (random when empty)")
}
