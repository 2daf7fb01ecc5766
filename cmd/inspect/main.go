package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/experience"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/verify"
)

// #region main

var rootCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Inspect stored experiences and trainer decisions",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("driver", experience.DriverSQLite, "store driver: sqlite or redis")
	rootCmd.PersistentFlags().String("dsn", "", "sqlite path or redis address/URL")
	rootCmd.PersistentFlags().Bool("json", false, "output as JSON instead of table")

	topCmd.Flags().IntP("last", "n", 20, "show the N best experiences")
	provenanceCmd.Flags().IntP("last", "n", 20, "show the N most recent decisions")
	rootCmd.AddCommand(topCmd, showCmd, provenanceCmd)
}

func openStore(cmd *cobra.Command) (experience.Store, error) {
	driver, _ := cmd.Flags().GetString("driver")
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		return nil, fmt.Errorf("--dsn is required")
	}
	return experience.Open(driver, dsn)
}

// #endregion main

// #region list-mode

type listRow struct {
	ID         string  `json:"id"`
	Stage      string  `json:"stage"`
	Reward     float32 `json:"reward"`
	Passed     bool    `json:"passed"`
	Steps      int     `json:"steps"`
	Confidence float32 `json:"aggregate_confidence"`
	Anchors    string  `json:"anchors"`
	Cycle      bool    `json:"cycle_complete"`
	CreatedAt  string  `json:"created_at"`
	Problem    string  `json:"problem"`
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the highest-reward experiences",
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetInt("last")
		jsonOut, _ := cmd.Flags().GetBool("json")
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		exps, err := store.LoadTop(cmd.Context(), last)
		if err != nil {
			return err
		}
		if len(exps) == 0 {
			fmt.Fprintln(os.Stderr, "no experiences found")
			return nil
		}

		rows := make([]listRow, len(exps))
		for i, e := range exps {
			rows[i] = listRow{
				ID:         e.ID,
				Stage:      string(e.Stage),
				Reward:     e.Reward,
				Passed:     e.Verification.Passed,
				Steps:      len(e.Chain.Steps),
				Confidence: e.Chain.AggregateConfidence,
				Anchors:    anchors(e.Chain),
				Cycle:      e.Chain.CycleComplete,
				CreatedAt:  e.CreatedAt.Format("2006-01-02 15:04:05"),
				Problem:    e.Chain.Problem,
			}
		}
		if jsonOut {
			return printJSON(rows)
		}

		fmt.Printf("%-36s  %-9s  %6s  %-4s  %5s  %5s  %-8s  %-5s  %s\n",
			"ID", "STAGE", "REWARD", "PASS", "STEPS", "CONF", "ANCHORS", "CYCLE", "PROBLEM")
		for _, r := range rows {
			fmt.Printf("%-36s  %-9s  %6.3f  %-4s  %5d  %5.2f  %-8s  %-5s  %s\n",
				r.ID, r.Stage, r.Reward, yesNo(r.Passed), r.Steps, r.Confidence, r.Anchors, yesNo(r.Cycle), truncate(r.Problem, 60))
		}
		return nil
	},
}

// #endregion list-mode

// #region detail-mode

var showCmd = &cobra.Command{
	Use:   "show <experience-id>",
	Short: "Show one experience step by step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		e, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(e)
		}

		fmt.Printf("Experience: %s\n", e.ID)
		fmt.Printf("Chain:      %s\n", e.Chain.ID)
		fmt.Printf("Task:       %s\n", e.Chain.TaskID)
		fmt.Printf("Problem:    %s\n", e.Chain.Problem)
		fmt.Printf("Stage:      %s\n", e.Stage)
		fmt.Printf("Reward:     %.3f\n", e.Reward)
		fmt.Printf("Anchors:    %s (cycle complete: %s, tier %d)\n", anchors(e.Chain), yesNo(e.Chain.CycleComplete), e.Chain.CycleTier)
		fmt.Printf("Verdict:    %s [%s]\n", verify.Summary(e.Verification), e.Verification.Preset)

		fmt.Printf("\nSteps:\n")
		fmt.Printf("  %3s  %-3s  %-17s  %5s  %5s  %-6s  %-5s  %s\n",
			"#", "POS", "TENSOR", "CONF", "UNC", "ORACLE", "DRIFT", "CONTENT")
		for _, s := range e.Chain.Steps {
			fmt.Printf("  %3d  %-3s  %5.2f %5.2f %5.2f  %5.2f  %5.2f  %-6s  %-5s  %s\n",
				s.Index, s.Position, s.Tensor.Character, s.Tensor.Logic, s.Tensor.Affect,
				s.Confidence, s.Uncertainty, yesNo(s.OracleUsed), driftMark(s), truncate(s.Content, 50))
		}

		fmt.Printf("\nChecks:\n")
		for _, c := range e.Verification.Checks {
			gate := "info"
			if c.Gating {
				gate = "gate"
			}
			fmt.Printf("  %-16s %-4s  score %.2f  pass %s\n", c.Name, gate, c.Score, yesNo(c.Pass))
		}
		return nil
	},
}

// #endregion detail-mode

// #region provenance-mode

var provenanceCmd = &cobra.Command{
	Use:   "provenance",
	Short: "List recent trainer decisions (sqlite only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetInt("last")
		jsonOut, _ := cmd.Flags().GetBool("json")
		dsn, _ := cmd.Flags().GetString("dsn")
		if dsn == "" {
			return fmt.Errorf("--dsn is required")
		}
		store, err := experience.NewSQLiteStore(dsn)
		if err != nil {
			return err
		}
		defer store.Close()

		prov, err := logging.NewSQLProvenance(store.DB())
		if err != nil {
			return err
		}
		entries, err := prov.Recent(cmd.Context(), last)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "no decisions found")
			return nil
		}

		fmt.Printf("%-19s  %-9s  %-8s  %6s  %-36s  %s\n", "CREATED", "STAGE", "DECISION", "REWARD", "CHAIN", "REASON")
		for _, e := range entries {
			fmt.Printf("%-19s  %-9s  %-8s  %6.3f  %-36s  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Stage, e.Decision, e.Reward, e.ChainID, truncate(e.Reason, 80))
		}
		return nil
	},
}

// #endregion provenance-mode

// #region helpers

func anchors(c state.Chain) string {
	parts := make([]string, len(c.AnchorsHit))
	for i, a := range c.AnchorsHit {
		parts[i] = a.String()
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func driftMark(s state.Step) string {
	switch {
	case s.Drift == nil:
		return ""
	case s.Repaired:
		return "fixed"
	case s.Drift.Flagged:
		return "FLAG"
	default:
		return "ok"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
