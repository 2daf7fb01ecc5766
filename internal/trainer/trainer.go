package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/builder"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/experience"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/verify"
)

// #region trainer

// Trainer runs the two-stage build, verify, score loop. Stage and epsilon are
// decided when an iteration is dispatched; a single collector goroutine owns the
// buffer and averages and publishes snapshots.
type Trainer struct {
	config     Config
	strategy   builder.Strategy
	verifier   *verify.Verifier
	store      experience.Store
	provenance Provenance
	sink       metrics.Sink
	logger     *slog.Logger

	run       sync.Mutex // serializes Run; guards the fields below
	buffer    *Buffer
	iteration int
	discovery int
	warmed    bool
	sums      map[state.Stage]float64
	counts    map[state.Stage]int
	completed int
	warmCount int

	alignment atomic.Bool
	snapshot  atomic.Pointer[Snapshot]
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithStore sets the experience store used for warm start and saves.
func WithStore(s experience.Store) Option {
	return func(t *Trainer) { t.store = s }
}

// WithProvenance sets the decision log.
func WithProvenance(p Provenance) Option {
	return func(t *Trainer) { t.provenance = p }
}

// WithSink sets the metrics sink.
func WithSink(s metrics.Sink) Option {
	return func(t *Trainer) { t.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// New creates a Trainer over a chain strategy and a verifier.
func New(config Config, strategy builder.Strategy, verifier *verify.Verifier, opts ...Option) *Trainer {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	t := &Trainer{
		config:   config,
		strategy: strategy,
		verifier: verifier,
		buffer:   NewBuffer(config.BufferCapacity),
		sums:     make(map[state.Stage]float64),
		counts:   make(map[state.Stage]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sink == nil {
		t.sink = metrics.Nop{}
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("component", "trainer", "strategy", strategy.Name())
	t.publish()
	return t
}

// Snapshot returns the latest published progress view.
func (t *Trainer) Snapshot() Snapshot {
	return *t.snapshot.Load()
}

// Stage returns the stage the next dispatched iteration will run under.
func (t *Trainer) Stage() state.Stage {
	if t.alignment.Load() {
		return state.StageAlignment
	}
	return state.StageDiscovery
}

// #endregion trainer

// #region warm-start

// WarmStart seeds the buffer with the store's best experiences. Discovery-stage
// experiences count toward the stage switch. Store errors are logged and treated
// as an empty corpus. It runs at most once per Trainer.
func (t *Trainer) WarmStart(ctx context.Context) int {
	t.run.Lock()
	defer t.run.Unlock()
	return t.warmStart(ctx)
}

func (t *Trainer) warmStart(ctx context.Context) int {
	if t.warmed || t.store == nil || t.config.WarmStart <= 0 {
		return 0
	}
	t.warmed = true

	exps, err := t.store.LoadTop(ctx, t.config.WarmStart)
	if err != nil {
		t.logger.Warn("warm start failed, starting empty", "err", err)
		return 0
	}
	for _, exp := range exps {
		t.buffer.Add(exp)
		if exp.Stage == state.StageDiscovery {
			t.discovery++
		}
	}
	t.warmCount = len(exps)
	t.updateStage()
	t.publish()
	t.logger.Info("warm start", "loaded", len(exps), "discovery", t.discovery)
	return len(exps)
}

// #endregion warm-start

// #region run

type dispatch struct {
	iteration int
	stage     state.Stage
	epsilon   float32
	task      state.Task
}

type outcome struct {
	result     Result
	experience state.Experience
}

// Run executes iterations builds, cycling through tasks. Builds run concurrently up
// to Config.Concurrency. The only error is the context's; results collected before
// cancellation are still returned.
func (t *Trainer) Run(ctx context.Context, tasks []state.Task, iterations int) (Report, error) {
	if len(tasks) == 0 {
		return Report{}, fmt.Errorf("train: no tasks")
	}
	t.run.Lock()
	defer t.run.Unlock()
	t.warmStart(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.Concurrency)

	outcomes := make(chan outcome, t.config.Concurrency)
	var results []Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range outcomes {
			results = append(results, o.result)
			t.collect(o)
		}
	}()

	for i := 0; i < iterations; i++ {
		if gctx.Err() != nil {
			break
		}
		d := t.next(tasks)
		g.Go(func() error {
			o, err := t.iterate(gctx, d)
			if err != nil {
				return err
			}
			outcomes <- o
			return nil
		})
	}

	err := g.Wait()
	close(outcomes)
	<-done

	sort.Slice(results, func(i, j int) bool { return results[i].Iteration < results[j].Iteration })
	report := Report{Results: results, Snapshot: t.Snapshot()}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return report, fmt.Errorf("train: %w", err)
	}
	return report, nil
}

// next assigns the stage and epsilon of the upcoming iteration.
func (t *Trainer) next(tasks []state.Task) dispatch {
	d := dispatch{
		iteration: t.iteration,
		task:      tasks[t.iteration%len(tasks)],
		stage:     t.Stage(),
	}
	t.iteration++

	if d.stage == state.StageDiscovery {
		d.epsilon = t.config.EpsilonDiscovery
		t.discovery++
		if t.updateStage() {
			t.logger.Info("stage switch", "stage", state.StageAlignment, "after_iteration", d.iteration,
				"discovery", t.discovery)
		}
	} else {
		d.epsilon = t.config.EpsilonAlignment
	}
	return d
}

// updateStage flips to Alignment once the Discovery count reaches the switch size.
func (t *Trainer) updateStage() bool {
	if t.alignment.Load() || t.discovery < t.config.DiscoveryBufferSwitchSize {
		return false
	}
	t.alignment.Store(true)
	return true
}

// iterate builds, verifies, scores and optionally stores one chain.
func (t *Trainer) iterate(ctx context.Context, d dispatch) (outcome, error) {
	chain, err := t.strategy.Build(ctx, builder.Request{
		Task:    d.task,
		Epsilon: d.epsilon,
		Seed:    t.config.Seed + uint64(d.iteration),
	})
	if err != nil {
		return outcome{}, fmt.Errorf("iteration %d: %w", d.iteration, err)
	}

	verdict := t.verifier.Verify(chain)
	reward := Reward(chain, d.stage, t.config.MaxSteps)
	t.sink.Verified(verdict.Passed)
	t.sink.Rewarded(d.stage, reward)

	exp := state.Experience{
		ID:           uuid.NewString(),
		Chain:        chain,
		Verification: verdict,
		Reward:       reward,
		Stage:        d.stage,
		CreatedAt:    time.Now().UTC(),
	}
	stored := t.save(ctx, exp)

	if t.provenance != nil {
		if err := t.provenance.Record(ctx, exp, stored); err != nil {
			t.logger.Warn("provenance record failed", "chain_id", chain.ID, "err", err)
		}
	}

	t.logger.Debug("iteration done",
		"iteration", d.iteration,
		"stage", d.stage,
		"chain_id", chain.ID,
		"passed", verdict.Passed,
		"reward", reward,
		"stored", stored,
	)

	return outcome{
		experience: exp,
		result: Result{
			Iteration:           d.iteration,
			Stage:               d.stage,
			Epsilon:             d.epsilon,
			TaskID:              d.task.ID,
			ChainID:             chain.ID,
			Steps:               len(chain.Steps),
			AggregateConfidence: chain.AggregateConfidence,
			Passed:              verdict.Passed,
			Reward:              reward,
			Stored:              stored,
		},
	}, nil
}

// save persists exp when it passed and is confident enough. Failures are logged.
func (t *Trainer) save(ctx context.Context, exp state.Experience) bool {
	if t.store == nil || !exp.Verification.Passed || exp.Chain.AggregateConfidence < t.config.TauStore {
		return false
	}
	if err := t.store.Save(ctx, exp); err != nil {
		t.logger.Warn("experience save failed", "chain_id", exp.Chain.ID, "err", err)
		return false
	}
	return true
}

// #endregion run

// #region collector

// collect is called only from the collector goroutine.
func (t *Trainer) collect(o outcome) {
	t.buffer.Add(o.experience)
	t.sums[o.result.Stage] += float64(o.result.Reward)
	t.counts[o.result.Stage]++
	t.completed++
	t.publish()
}

func (t *Trainer) publish() {
	averages := make(map[state.Stage]StageAverage, len(t.counts))
	for stage, n := range t.counts {
		averages[stage] = StageAverage{Mean: float32(t.sums[stage] / float64(n)), Count: n}
	}
	t.snapshot.Store(&Snapshot{
		Stage:      t.Stage(),
		Iterations: t.completed,
		BufferLen:  t.buffer.Len(),
		WarmStart:  t.warmCount,
		Averages:   averages,
	})
}

// #endregion collector
