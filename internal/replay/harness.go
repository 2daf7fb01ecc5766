package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/builder"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/oracle"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region types

// Result is the outcome of replaying one fixture case.
type Result struct {
	TaskID       string                   `json:"task_id"`
	ChainID      string                   `json:"chain_id"`
	Steps        int                      `json:"steps"`
	OracleCalls  int                      `json:"oracle_calls"`
	Positions    []int                    `json:"positions"`
	Passed       bool                     `json:"passed"`
	Expected     *bool                    `json:"expected,omitempty"`
	Mismatch     bool                     `json:"mismatch"`
	Verification state.VerificationResult `json:"verification"`
}

// Summary aggregates a replay run.
type Summary struct {
	Total       int     `json:"total"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Mismatched  int     `json:"mismatched"`
	OracleCalls int     `json:"oracle_calls"`
	MeanSteps   float32 `json:"mean_steps"`
}

// #endregion types

// #region replay

// Replay builds and verifies every case in order, each with its own scripted
// oracle. Cases without answers run with no oracle. opts are passed to every
// builder (sinks, loggers). On cancellation the results so far are returned.
func Replay(ctx context.Context, f *Fixture, base builder.Config, opts ...builder.Option) ([]Result, error) {
	cfg := f.BuilderConfig(base)
	verifier, err := f.Verifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("replay verifier: %w", err)
	}

	results := make([]Result, 0, len(f.Cases))
	for i, c := range f.Cases {
		caseOpts := opts
		if len(c.Answers) > 0 {
			caseOpts = append(append([]builder.Option(nil), opts...), builder.WithOracle(oracle.NewScripted(c.Answers)))
		}
		b := builder.New(cfg, caseOpts...)

		chain, err := b.Build(ctx, builder.Request{
			Task:    c.Task,
			Epsilon: f.Config.Epsilon,
			Seed:    f.Config.Seed + uint64(i),
		})
		if err != nil {
			return results, fmt.Errorf("replay case %d (%s): %w", i, c.Task.ID, err)
		}

		verdict := verifier.Verify(chain)
		r := Result{
			TaskID:       c.Task.ID,
			ChainID:      chain.ID,
			Steps:        len(chain.Steps),
			Positions:    make([]int, len(chain.Steps)),
			Passed:       verdict.Passed,
			Expected:     c.ExpectedPassed,
			Verification: verdict,
		}
		for j, s := range chain.Steps {
			r.Positions[j] = int(s.Position)
			if s.OracleUsed {
				r.OracleCalls++
			}
		}
		r.Mismatch = c.ExpectedPassed != nil && *c.ExpectedPassed != verdict.Passed
		results = append(results, r)
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	steps := 0
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Mismatch {
			s.Mismatched++
		}
		s.OracleCalls += r.OracleCalls
		steps += r.Steps
	}
	if s.Total > 0 {
		s.MeanSteps = float32(steps) / float32(s.Total)
	}
	return s
}

// #endregion replay
