package builder

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/oracle"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region helpers

func testConfig() Config {
	config := DefaultConfig()
	config.OracleTimeout = 20 * time.Millisecond
	return config
}

func uncertainTask() state.Task {
	return state.Task{
		ID:          "t1",
		Problem:     "why did the bridge fail",
		Tensor:      tensor.Neutral(),
		Confidence:  0.5,
		Uncertainty: 0.9,
	}
}

// blockingOracle never answers; it returns only when its context is done.
var blockingOracle = oracle.Func(func(ctx context.Context, _ string, _ tensor.Semantic) (oracle.Answer, error) {
	<-ctx.Done()
	return oracle.Answer{}, ctx.Err()
})

type staticProvider string

func (p staticProvider) Context(context.Context, string) (string, error) { return string(p), nil }

// #endregion helpers

// #region fallback-tests

func TestBuildOracleAlwaysTimesOut(t *testing.T) {
	config := testConfig()
	b := New(config, WithOracle(blockingOracle))

	chain, err := b.Build(context.Background(), Request{Task: uncertainTask()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(chain.Steps) == 0 || len(chain.Steps) > config.MaxSteps {
		t.Fatalf("expected 1..%d steps, got %d", config.MaxSteps, len(chain.Steps))
	}
	for _, s := range chain.Steps {
		if s.OracleUsed {
			t.Errorf("step %d marked oracle_used after timeout", s.Index)
		}
	}
	if chain.Steps[0].UncertaintyKind == state.KindLow {
		t.Error("first step should carry the classified uncertainty kind")
	}
}

func TestBuildWithoutOracle(t *testing.T) {
	rec := metrics.NewRecorder()
	b := New(testConfig(), WithSink(rec))

	chain, err := b.Build(context.Background(), Request{Task: uncertainTask()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := rec.Snapshot()
	if snap.Steps != int64(len(chain.Steps)) {
		t.Errorf("sink saw %d steps, chain has %d", snap.Steps, len(chain.Steps))
	}
	if snap.OracleFallback == 0 || snap.OracleOK != 0 {
		t.Errorf("expected only fallbacks, got %+v", snap)
	}
}

func TestBuildInternalStepsFollowFlow(t *testing.T) {
	task := uncertainTask()
	task.Uncertainty = 0.2
	task.Confidence = 0.3

	chain, err := New(testConfig()).Build(context.Background(), Request{Task: task})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []position.Position{1, 2, 4, 8, 7, 5}
	for i, s := range chain.Steps {
		if s.Position != want[i%len(want)] {
			t.Fatalf("step %d at %s, want %s", i, s.Position, want[i%len(want)])
		}
		if s.UncertaintyKind != state.KindLow {
			t.Errorf("internal step %d has kind %s", i, s.UncertaintyKind)
		}
	}
}

// #endregion fallback-tests

// #region oracle-tests

func TestBuildMergesOracleAnswers(t *testing.T) {
	three, six := position.Position(3), position.Position(6)
	script := oracle.NewScripted([]oracle.Answer{
		{Text: "the load exceeded the rating", TensorDelta: tensor.Semantic{Logic: 1}, SuggestedPosition: &three},
		{Text: "inspection was skipped", TensorDelta: tensor.Semantic{Affect: 1}, SuggestedPosition: &six},
	})
	config := testConfig()
	config.ConvergenceAnchors = 0
	config.UncertaintyThreshold = 0.3

	chain, err := New(config, WithOracle(script)).Build(context.Background(), Request{Task: uncertainTask()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := chain.Steps[0]
	if !first.OracleUsed || first.Position != 3 || first.Content != "the load exceeded the rating" {
		t.Fatalf("unexpected first step: %+v", first)
	}
	if first.Drift == nil {
		t.Error("anchor step should carry a drift result")
	}
	if chain.Steps[1].Position != 6 {
		t.Errorf("expected oracle override to 6, got %s", chain.Steps[1].Position)
	}
	// The script is exhausted by step 2, which resumes the flow from its start.
	if len(chain.Steps) > 2 && chain.Steps[2].Position != 1 {
		t.Errorf("expected flow to resume at 1, got %s", chain.Steps[2].Position)
	}
}

func TestBuildMergesProviderContext(t *testing.T) {
	script := oracle.NewScripted(nil)
	b := New(testConfig(), WithOracle(script), WithContextProvider(staticProvider("earlier chain: rust")))

	if _, err := b.Build(context.Background(), Request{Task: uncertainTask()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	qs := script.Questions()
	if len(qs) == 0 {
		t.Fatal("expected at least one oracle question")
	}
	if !strings.Contains(qs[0], "earlier chain: rust") {
		t.Errorf("question missing provider context: %q", qs[0])
	}
}

func TestBuildEpsilonForcesOracleAndDefersConvergence(t *testing.T) {
	var calls atomic.Int32
	o := oracle.Func(func(context.Context, string, tensor.Semantic) (oracle.Answer, error) {
		calls.Add(1)
		return oracle.Answer{}, oracle.ErrUnavailable
	})
	config := testConfig()
	task := uncertainTask()
	task.Confidence = 0.9
	task.Uncertainty = 0.1

	chain, err := New(config, WithOracle(o)).Build(context.Background(), Request{Task: task, Epsilon: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain.Steps) != config.MaxSteps {
		t.Errorf("expected %d steps with convergence deferred, got %d", config.MaxSteps, len(chain.Steps))
	}
	if int(calls.Load()) != config.MaxSteps {
		t.Errorf("expected an oracle call per step, got %d", calls.Load())
	}
}

func TestBuildSeedDeterministic(t *testing.T) {
	o := oracle.Func(func(context.Context, string, tensor.Semantic) (oracle.Answer, error) {
		return oracle.Answer{Text: "ok", TensorDelta: tensor.Semantic{Character: 0.3}}, nil
	})
	b := New(testConfig(), WithOracle(o))
	task := uncertainTask()
	task.Uncertainty = 0.5

	a, _ := b.Build(context.Background(), Request{Task: task, Epsilon: 0.5, Seed: 7})
	c, _ := b.Build(context.Background(), Request{Task: task, Epsilon: 0.5, Seed: 7})

	if len(a.Steps) != len(c.Steps) {
		t.Fatalf("same seed gave %d vs %d steps", len(a.Steps), len(c.Steps))
	}
	for i := range a.Steps {
		if a.Steps[i].OracleUsed != c.Steps[i].OracleUsed || a.Steps[i].Position != c.Steps[i].Position {
			t.Fatalf("step %d differs between identical seeds", i)
		}
	}
	if a.ID == c.ID {
		t.Error("chains should get distinct ids")
	}
}

// #endregion oracle-tests

// #region cancellation-tests

func TestBuildCancelledDuringOracleCall(t *testing.T) {
	config := testConfig()
	config.OracleTimeout = 10 * time.Second
	b := New(config, WithOracle(blockingOracle))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	chain, err := b.Build(ctx, Request{Task: uncertainTask()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not release the pending oracle call")
	}
	if len(chain.Steps) != 0 {
		t.Errorf("expected empty partial chain, got %d steps", len(chain.Steps))
	}
}

func TestBuildAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig()).Build(ctx, Request{Task: uncertainTask()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// #endregion cancellation-tests

// #region strategy-tests

func TestBuilderIsStrategy(t *testing.T) {
	var s Strategy = New(DefaultConfig())
	if s.Name() != StrategyName {
		t.Errorf("unexpected strategy name %q", s.Name())
	}
}

func TestBuildDefaultsUnsetTaskState(t *testing.T) {
	chain, err := New(testConfig()).Build(context.Background(), Request{Task: state.Task{ID: "bare", Problem: "p"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain.Steps) == 0 {
		t.Fatal("expected steps")
	}
	if !chain.Steps[0].Tensor.InRange() {
		t.Error("expected in-range tensor")
	}
}

// #endregion strategy-tests
