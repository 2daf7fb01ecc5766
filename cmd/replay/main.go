package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/config"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/experience"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/replay"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// Exit codes: 0 all match, 1 divergence, 2 usage or runtime error.
var errDiverged = errors.New("replay diverged")

// #region main

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay fixtures or re-verify stored experiences",
	Long: `replay runs in one of two modes:

  replay --fixture path/to/fixture.yaml   rebuild each case with scripted oracle answers
  replay --driver sqlite --dsn exp.db     re-verify stored experiences under the current preset`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, _ := cmd.Flags().GetString("fixture")
		dsn, _ := cmd.Flags().GetString("dsn")
		if (fixture == "") == (dsn == "") {
			return fmt.Errorf("exactly one of --fixture or --dsn is required")
		}

		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if fixture != "" {
			return runFixture(cmd, cfg, fixture)
		}
		return runStore(cmd, cfg, dsn)
	},
}

func main() {
	err := rootCmd.Execute()
	switch {
	case err == nil:
	case errors.Is(err, errDiverged):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.Flags().String("config", "", "YAML or JSON config file")
	rootCmd.Flags().String("fixture", "", "fixture file (fixture mode)")
	rootCmd.Flags().String("driver", experience.DriverSQLite, "store driver (store mode)")
	rootCmd.Flags().String("dsn", "", "sqlite path or redis address (store mode)")
	rootCmd.Flags().IntP("last", "n", 100, "experiences to re-verify (store mode)")
	rootCmd.Flags().Bool("json", false, "output results as JSON")
}

// #endregion main

// #region fixture-mode

func runFixture(cmd *cobra.Command, cfg config.Config, path string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	results, err := replay.Replay(cmd.Context(), f, cfg.Builder())
	if err != nil {
		return err
	}
	summary := replay.Summarize(results)
	logger.Info("replay done", "fixture", path, "cases", summary.Total, "mismatched", summary.Mismatched)

	if jsonOut {
		if err := printJSON(struct {
			Results []replay.Result `json:"results"`
			Summary replay.Summary  `json:"summary"`
		}{results, summary}); err != nil {
			return err
		}
	} else {
		fmt.Printf("%-16s| %-8s| %-8s| %-6s| %-6s| %s\n", "Task", "Expected", "Replayed", "Steps", "Oracle", "Match")
		fmt.Printf("%-16s+%-9s+%-9s+%-7s+%-7s+%s\n",
			strings.Repeat("-", 16), strings.Repeat("-", 9), strings.Repeat("-", 9),
			strings.Repeat("-", 7), strings.Repeat("-", 7), strings.Repeat("-", 6))
		for _, r := range results {
			expected := "-"
			if r.Expected != nil {
				expected = verdict(*r.Expected)
			}
			match := "OK"
			if r.Mismatch {
				match = "DIVERGE"
			}
			fmt.Printf("%-16s| %-8s| %-8s| %-6d| %-6d| %s\n",
				truncate(r.TaskID, 16), expected, verdict(r.Passed), r.Steps, r.OracleCalls, match)
		}
		fmt.Printf("\nSummary: %d total, %d passed, %d failed, %d diverge, %d oracle calls, %.1f mean steps\n",
			summary.Total, summary.Passed, summary.Failed, summary.Mismatched, summary.OracleCalls, summary.MeanSteps)
	}

	if summary.Mismatched > 0 {
		return errDiverged
	}
	return nil
}

// #endregion fixture-mode

// #region store-mode

type reverifyRow struct {
	ID       string `json:"id"`
	ChainID  string `json:"chain_id"`
	Stored   bool   `json:"stored_passed"`
	Replayed bool   `json:"replayed_passed"`
	Summary  string `json:"summary"`
}

// runStore re-verifies stored chains and reports verdicts that changed.
func runStore(cmd *cobra.Command, cfg config.Config, dsn string) error {
	driver, _ := cmd.Flags().GetString("driver")
	last, _ := cmd.Flags().GetInt("last")
	jsonOut, _ := cmd.Flags().GetBool("json")

	verifier, err := cfg.Verifier()
	if err != nil {
		return err
	}
	store, err := experience.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	exps, err := store.LoadTop(cmd.Context(), last)
	if err != nil {
		return err
	}

	rows := make([]reverifyRow, len(exps))
	diverge := 0
	for i, e := range exps {
		rows[i] = reverify(e, verifier.Verify(e.Chain))
		if rows[i].Stored != rows[i].Replayed {
			diverge++
		}
	}

	if jsonOut {
		if err := printJSON(rows); err != nil {
			return err
		}
	} else {
		fmt.Printf("%-36s| %-8s| %-8s| %s\n", "Experience", "Stored", "Replayed", "Match")
		for _, r := range rows {
			match := "OK"
			if r.Stored != r.Replayed {
				match = "DIVERGE  " + r.Summary
			}
			fmt.Printf("%-36s| %-8s| %-8s| %s\n", r.ID, verdict(r.Stored), verdict(r.Replayed), match)
		}
		fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", len(rows), len(rows)-diverge, diverge)
	}

	if diverge > 0 {
		return errDiverged
	}
	return nil
}

func reverify(e state.Experience, v state.VerificationResult) reverifyRow {
	return reverifyRow{
		ID:       e.ID,
		ChainID:  e.Chain.ID,
		Stored:   e.Verification.Passed,
		Replayed: v.Passed,
		Summary:  summarize(v),
	}
}

// #endregion store-mode

// #region helpers

func summarize(v state.VerificationResult) string {
	if len(v.Issues) == 0 {
		return ""
	}
	checks := make([]string, 0, len(v.Issues))
	seen := make(map[string]bool)
	for _, is := range v.Issues {
		if !seen[is.Check] {
			seen[is.Check] = true
			checks = append(checks, is.Check)
		}
	}
	return strings.Join(checks, ",")
}

func verdict(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
