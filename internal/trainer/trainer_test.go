package trainer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/builder"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/drift"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/experience"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/verify"
)

// #region helpers

var fullCycle = []position.Position{1, 2, 3, 4, 8, 6, 7, 5, 9}

func makeChain(id string, positions []position.Position, confidence float32) state.Chain {
	steps := make([]state.Step, len(positions))
	for i, p := range positions {
		t := tensor.Neutral()
		steps[i] = state.Step{
			Index:       i,
			Tensor:      t,
			Position:    p,
			Confidence:  confidence,
			Uncertainty: 0.3,
			Anchor:      position.AnchorInfluence(p, t),
		}
	}
	return state.NewChain(id, "task", "problem", steps)
}

// stubStrategy returns chain(iteration) where the iteration is recovered from the seed.
type stubStrategy struct {
	mu       sync.Mutex
	requests []builder.Request
	chain    func(iteration int) state.Chain
	err      error
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Build(ctx context.Context, req builder.Request) (state.Chain, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.err != nil {
		return state.Chain{}, s.err
	}
	if err := ctx.Err(); err != nil {
		return state.Chain{}, err
	}
	return s.chain(int(req.Seed - 1)), nil
}

func passing(int) state.Chain {
	return makeChain("good", fullCycle, 0.85)
}

type failingStore struct{}

func (failingStore) LoadTop(context.Context, int) ([]state.Experience, error) {
	return nil, experience.ErrStoreUnavailable
}

func (failingStore) Save(context.Context, state.Experience) error {
	return experience.ErrStoreUnavailable
}

func (failingStore) Get(context.Context, string) (state.Experience, error) {
	return state.Experience{}, experience.ErrStoreUnavailable
}

func (failingStore) Close() error { return nil }

type countingProvenance struct {
	calls  atomic.Int32
	stored atomic.Int32
}

func (p *countingProvenance) Record(_ context.Context, _ state.Experience, stored bool) error {
	p.calls.Add(1)
	if stored {
		p.stored.Add(1)
	}
	return nil
}

func balanced(t *testing.T) *verify.Verifier {
	t.Helper()
	v, err := verify.NewPreset(verify.PresetBalanced, nil, drift.DefaultConfig())
	require.NoError(t, err)
	return v
}

func tasks() []state.Task {
	return []state.Task{{ID: "t1", Problem: "why"}, {ID: "t2", Problem: "how"}}
}

// #endregion helpers

// #region stage-tests

func TestFourthIterationRunsAlignment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscoveryBufferSwitchSize = 3
	strategy := &stubStrategy{chain: passing}
	tr := New(cfg, strategy, balanced(t))

	report, err := tr.Run(context.Background(), tasks(), 6)
	require.NoError(t, err)
	require.Len(t, report.Results, 6)

	for i, r := range report.Results {
		assert.Equal(t, i, r.Iteration)
		if i < 3 {
			assert.Equal(t, state.StageDiscovery, r.Stage, "iteration %d", i)
			assert.Equal(t, cfg.EpsilonDiscovery, r.Epsilon)
		} else {
			assert.Equal(t, state.StageAlignment, r.Stage, "iteration %d", i)
			assert.Equal(t, cfg.EpsilonAlignment, r.Epsilon)
		}
	}

	snap := report.Snapshot
	assert.Equal(t, state.StageAlignment, snap.Stage)
	assert.Equal(t, 6, snap.Iterations)
	assert.Equal(t, 6, snap.BufferLen)
	assert.Equal(t, 3, snap.Averages[state.StageDiscovery].Count)
	assert.Equal(t, 3, snap.Averages[state.StageAlignment].Count)
	assert.Equal(t, "t2", report.Results[1].TaskID)
}

func TestStageAssignedAtDispatchUnderConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concurrency = 4
	tr := New(cfg, &stubStrategy{chain: passing}, balanced(t))

	reads := make(chan struct{})
	go func() {
		defer close(reads)
		for i := 0; i < 100; i++ {
			_ = tr.Snapshot()
		}
	}()

	report, err := tr.Run(context.Background(), tasks(), 10)
	require.NoError(t, err)
	<-reads

	require.Len(t, report.Results, 10)
	discovery := 0
	for i, r := range report.Results {
		assert.Equal(t, i, r.Iteration)
		if r.Stage == state.StageDiscovery {
			discovery++
			assert.Less(t, r.Iteration, 3)
		}
	}
	assert.Equal(t, 3, discovery)
}

func TestRunContinuesAcrossCalls(t *testing.T) {
	cfg := DefaultConfig()
	tr := New(cfg, &stubStrategy{chain: passing}, balanced(t))

	_, err := tr.Run(context.Background(), tasks(), 2)
	require.NoError(t, err)
	assert.Equal(t, state.StageDiscovery, tr.Stage())

	report, err := tr.Run(context.Background(), tasks(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Results[0].Iteration)
	assert.Equal(t, state.StageDiscovery, report.Results[0].Stage)
	assert.Equal(t, state.StageAlignment, report.Results[1].Stage)
	assert.Equal(t, 4, report.Snapshot.Iterations)
}

// #endregion stage-tests

// #region reward-tests

func TestRewardBounds(t *testing.T) {
	cases := []struct {
		name  string
		chain state.Chain
		stage state.Stage
		want  float32
	}{
		{"empty", state.Chain{}, state.StageAlignment, 0.1},
		{"full cycle alignment", makeChain("a", fullCycle, 0.85), state.StageAlignment, 1.34},
		{"full cycle discovery clamps", makeChain("d", fullCycle, 0.85), state.StageDiscovery, MaxReward},
		{"partial length", makeChain("p", []position.Position{1, 2, 4, 8, 1, 2}, 0.5), state.StageAlignment, 0.1 + 0.2 + 0.2 + 0.1*2.0/3.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Reward(tc.chain, tc.stage, 12)
			assert.InDelta(t, tc.want, got, 1e-5)
			assert.GreaterOrEqual(t, got, float32(0))
			assert.LessOrEqual(t, got, float32(MaxReward))
		})
	}
}

func TestRewardWithRealBuilderStaysBounded(t *testing.T) {
	bcfg := builder.DefaultConfig()
	cfg := DefaultConfig()
	cfg.MaxSteps = bcfg.MaxSteps
	rec := metrics.NewRecorder()
	tr := New(cfg, builder.New(bcfg, builder.WithSink(rec)), balanced(t), WithSink(rec))

	report, err := tr.Run(context.Background(), []state.Task{{ID: "q", Problem: "what changed"}}, 5)
	require.NoError(t, err)
	require.Len(t, report.Results, 5)
	assert.Equal(t, state.StageAlignment, report.Results[3].Stage)
	for _, r := range report.Results {
		assert.GreaterOrEqual(t, r.Reward, float32(0))
		assert.LessOrEqual(t, r.Reward, float32(MaxReward))
	}

	snap := rec.Snapshot()
	assert.Equal(t, int64(5), snap.VerifyPassed+snap.VerifyFailed)
	assert.Equal(t, int64(3), snap.Rewards[state.StageDiscovery].Count)
}

// #endregion reward-tests

// #region buffer-tests

func TestBufferEvictsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		evicted := b.Add(state.Experience{ID: id, Stage: state.StageDiscovery})
		assert.Equal(t, i >= 3, evicted, "add %s", id)
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Cap())

	items := b.Items()
	ids := []string{items[0].ID, items[1].ID, items[2].ID}
	assert.Equal(t, []string{"c", "d", "e"}, ids)
	assert.Equal(t, 3, b.Count(state.StageDiscovery))
	assert.Equal(t, 0, b.Count(state.StageAlignment))
}

func TestBufferCapacityFloor(t *testing.T) {
	b := NewBuffer(0)
	b.Add(state.Experience{ID: "x"})
	assert.True(t, b.Add(state.Experience{ID: "y"}))
	assert.Equal(t, "y", b.Items()[0].ID)
}

// #endregion buffer-tests

// #region store-tests

func TestStorePolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TauStore = 0.8
	chains := map[int]state.Chain{
		0: makeChain("confident", fullCycle, 0.85),
		1: makeChain("unverified", []position.Position{1, 2, 4}, 0.9),
		2: makeChain("timid", fullCycle, 0.7),
	}
	store := experience.NewMemoryStore()
	prov := &countingProvenance{}
	tr := New(cfg, &stubStrategy{chain: func(i int) state.Chain { return chains[i] }}, balanced(t),
		WithStore(store), WithProvenance(prov))

	report, err := tr.Run(context.Background(), tasks(), 3)
	require.NoError(t, err)

	assert.True(t, report.Results[0].Passed)
	assert.True(t, report.Results[0].Stored)
	assert.False(t, report.Results[1].Passed)
	assert.False(t, report.Results[1].Stored)
	assert.True(t, report.Results[2].Passed)
	assert.False(t, report.Results[2].Stored)

	top, err := store.LoadTop(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "confident", top[0].Chain.ID)

	assert.Equal(t, int32(3), prov.calls.Load())
	assert.Equal(t, int32(1), prov.stored.Load())
}

func TestStoreErrorsAreIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WarmStart = 10
	tr := New(cfg, &stubStrategy{chain: passing}, balanced(t), WithStore(failingStore{}))

	report, err := tr.Run(context.Background(), tasks(), 2)
	require.NoError(t, err)
	for _, r := range report.Results {
		assert.True(t, r.Passed)
		assert.False(t, r.Stored)
	}
	assert.Equal(t, 0, report.Snapshot.WarmStart)
}

func TestWarmStartCountsTowardSwitch(t *testing.T) {
	ctx := context.Background()
	store := experience.NewMemoryStore()
	for _, id := range []string{"w1", "w2"} {
		require.NoError(t, store.Save(ctx, state.Experience{
			ID: id, Chain: makeChain(id, fullCycle, 0.9), Reward: 1, Stage: state.StageDiscovery,
		}))
	}

	cfg := DefaultConfig()
	cfg.WarmStart = 5
	tr := New(cfg, &stubStrategy{chain: passing}, balanced(t), WithStore(store))
	assert.Equal(t, 2, tr.WarmStart(ctx))
	assert.Equal(t, 0, tr.WarmStart(ctx), "warm start runs once")

	report, err := tr.Run(ctx, tasks(), 2)
	require.NoError(t, err)
	assert.Equal(t, state.StageDiscovery, report.Results[0].Stage)
	assert.Equal(t, state.StageAlignment, report.Results[1].Stage)
	assert.Equal(t, 2, report.Snapshot.WarmStart)
	assert.Equal(t, 4, report.Snapshot.BufferLen)
}

// #endregion store-tests

// #region error-tests

func TestRunPropagatesCancellation(t *testing.T) {
	tr := New(DefaultConfig(), &stubStrategy{err: context.Canceled}, balanced(t))

	report, err := tr.Run(context.Background(), tasks(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, report.Results)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := New(DefaultConfig(), &stubStrategy{chain: passing}, balanced(t))

	_, err := tr.Run(ctx, tasks(), 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRequiresTasks(t *testing.T) {
	tr := New(DefaultConfig(), &stubStrategy{chain: passing}, balanced(t))
	_, err := tr.Run(context.Background(), nil, 3)
	assert.Error(t, err)
}

// #endregion error-tests
