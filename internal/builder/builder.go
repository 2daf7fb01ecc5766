package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/drift"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/oracle"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/signals"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/update"
)

var tracer = otel.Tracer("reasoner.builder")

// StrategyName identifies the default chain builder.
const StrategyName = "anchored-flow"

// #region builder

// Builder constructs reasoning chains step by step. It holds no per-chain state,
// so one Builder may serve many concurrent builds.
type Builder struct {
	config   Config
	oracle   oracle.Oracle
	producer *signals.Producer
	provider signals.ContextProvider
	detector *drift.Detector
	sink     metrics.Sink
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithOracle sets the oracle. Without one every oracle branch degrades to an internal step.
func WithOracle(o oracle.Oracle) Option {
	return func(b *Builder) { b.oracle = o }
}

// WithContextProvider sets the optional provider merged into oracle questions.
func WithContextProvider(p signals.ContextProvider) Option {
	return func(b *Builder) { b.provider = p }
}

// WithSink sets the metrics sink.
func WithSink(s metrics.Sink) Option {
	return func(b *Builder) { b.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New creates a Builder.
func New(config Config, opts ...Option) *Builder {
	b := &Builder{config: config}
	for _, opt := range opts {
		opt(b)
	}
	if b.sink == nil {
		b.sink = metrics.Nop{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "builder")

	sigCfg := config.Signals
	sigCfg.UncertaintyThreshold = config.UncertaintyThreshold
	b.producer = signals.NewProducer(b.provider, sigCfg, b.logger)
	b.detector = drift.NewDetector(config.Drift)
	return b
}

// Name implements Strategy.
func (b *Builder) Name() string { return StrategyName }

// #endregion builder

// #region build

// cursor is the mutable state carried between steps of one build.
type cursor struct {
	tensor      tensor.Semantic
	position    position.Position
	lastFlow    position.Position
	confidence  float32
	uncertainty float32
	anchors     map[position.Position]bool
}

// Build runs the step loop until max steps or convergence. Oracle failures degrade to
// internal steps. The only error returned is the parent context's; the partial chain
// built so far is returned with it.
func (b *Builder) Build(ctx context.Context, req Request) (state.Chain, error) {
	chainID := uuid.NewString()
	task := req.Task

	ctx, span := tracer.Start(ctx, "builder.Build",
		trace.WithAttributes(
			attribute.String("chain.id", chainID),
			attribute.String("task.id", task.ID),
			attribute.Float64("builder.epsilon", float64(req.Epsilon)),
		),
	)
	defer span.End()

	log := b.logger.With("chain_id", chainID, "task_id", task.ID)
	rng := rand.New(rand.NewPCG(req.Seed, req.Seed^0x9e3779b97f4a7c15))
	cur := b.initial(task)
	steps := make([]state.Step, 0, b.config.MaxSteps)

	for i := 0; i < b.config.MaxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return b.finish(span, log, chainID, task, steps, err)
		}

		explore := req.Epsilon > 0 && rng.Float32() < req.Epsilon
		step, err := b.step(ctx, log, task, i, cur, explore)
		if err != nil {
			return b.finish(span, log, chainID, task, steps, err)
		}

		steps = append(steps, step)
		b.sink.StepTaken()
		if position.IsAnchor(step.Position) {
			b.inspect(log, steps, i)
			step = steps[i]
		}
		if position.IsAnchor(step.Anchor.Hit) {
			b.sink.AnchorHit(step.Anchor.Hit)
			cur.anchors[step.Anchor.Hit] = true
		}

		cur.tensor = step.Tensor
		cur.position = step.Position
		cur.confidence = step.Confidence
		cur.uncertainty = step.Uncertainty
		if position.IsFlow(step.Position) {
			cur.lastFlow = step.Position
		}

		if !explore && b.converged(cur) {
			log.Debug("chain converged", "step", i, "confidence", cur.confidence, "uncertainty", cur.uncertainty)
			break
		}
	}

	return b.finish(span, log, chainID, task, steps, nil)
}

// initial seeds the cursor from the task, filling defaults for an unset state.
func (b *Builder) initial(task state.Task) cursor {
	c := cursor{
		tensor:      task.Tensor.Clamp(),
		position:    position.Idle,
		lastFlow:    position.Idle,
		confidence:  task.Confidence,
		uncertainty: task.Uncertainty,
		anchors:     make(map[position.Position]bool),
	}
	if task.Tensor == (tensor.Semantic{}) {
		c.tensor = tensor.Neutral()
	}
	if task.Confidence == 0 && task.Uncertainty == 0 {
		c.confidence = b.config.InitialConfidence
		c.uncertainty = b.config.InitialUncertainty
	}
	return c
}

func (b *Builder) converged(c cursor) bool {
	if c.uncertainty < b.config.ConvergenceUncertainty && c.confidence > b.config.ConvergenceConfidence {
		return true
	}
	return b.config.ConvergenceAnchors > 0 && len(c.anchors) >= b.config.ConvergenceAnchors
}

func (b *Builder) finish(span trace.Span, log *slog.Logger, chainID string, task state.Task, steps []state.Step, err error) (state.Chain, error) {
	chain := state.NewChain(chainID, task.ID, task.Problem, steps)
	span.SetAttributes(
		attribute.Int("chain.steps", len(chain.Steps)),
		attribute.Bool("chain.cycle_complete", chain.CycleComplete),
		attribute.Int("chain.anchors_hit", len(chain.AnchorsHit)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("build interrupted", "steps", len(steps), "err", err)
		return chain, fmt.Errorf("build chain: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	log.Info("chain built",
		"steps", len(chain.Steps),
		"anchors_hit", len(chain.AnchorsHit),
		"cycle_complete", chain.CycleComplete,
		"aggregate_confidence", chain.AggregateConfidence,
	)
	return chain, nil
}

// #endregion build

// #region step

// step produces step i. It returns an error only when the parent context is done.
func (b *Builder) step(ctx context.Context, log *slog.Logger, task state.Task, i int, cur cursor, explore bool) (state.Step, error) {
	in := update.Input{
		Tensor:      cur.tensor,
		Position:    cur.position,
		LastFlow:    cur.lastFlow,
		Confidence:  cur.confidence,
		Uncertainty: cur.uncertainty,
	}

	var (
		res     update.Result
		content string
		used    bool
		kind    = state.KindLow
	)

	if cur.uncertainty > b.config.UncertaintyThreshold || explore {
		q := b.producer.Produce(ctx, signals.ProduceInput{
			Problem:     task.Problem,
			Tensor:      cur.tensor,
			Confidence:  cur.confidence,
			Uncertainty: cur.uncertainty,
			StepIndex:   i,
		})
		kind = q.Kind

		ans, err := b.ask(ctx, q)
		switch {
		case err == nil:
			res = update.Oracle(in, update.OracleAnswer{
				TensorDelta:       ans.TensorDelta,
				SuggestedPosition: ans.SuggestedPosition,
			}, b.config.Update)
			content = ans.Text
			used = true
			b.sink.OracleCall(metrics.OutcomeOK)
		case ctx.Err() != nil:
			return state.Step{}, ctx.Err()
		default:
			log.Warn("oracle unavailable, falling back to internal step", "step", i, "kind", kind, "err", err)
			b.sink.OracleCall(metrics.OutcomeFallback)
			res = update.Internal(in, b.config.Update)
		}
	} else {
		res = update.Internal(in, b.config.Update)
	}

	if content == "" {
		content = fmt.Sprintf("%s %s: confidence %.2f, uncertainty %.2f",
			res.Metrics.PositionSource, res.Position, res.Confidence, res.Uncertainty)
	}

	return state.Step{
		Index:           i,
		Content:         content,
		Tensor:          res.Tensor,
		Position:        res.Position,
		Confidence:      res.Confidence,
		Uncertainty:     res.Uncertainty,
		UncertaintyKind: kind,
		OracleUsed:      used,
		// Influence is computed the same way however the position was chosen.
		Anchor: position.AnchorInfluence(res.Position, res.Tensor),
	}, nil
}

// ask makes one bounded oracle round-trip. The call runs under its own timeout and
// is abandoned as soon as that timeout or the parent context fires.
func (b *Builder) ask(ctx context.Context, q signals.Question) (oracle.Answer, error) {
	if b.oracle == nil {
		return oracle.Answer{}, fmt.Errorf("no oracle configured: %w", oracle.ErrUnavailable)
	}

	octx, cancel := context.WithTimeout(ctx, b.config.OracleTimeout)
	defer cancel()

	type reply struct {
		ans oracle.Answer
		err error
	}
	done := make(chan reply, 1)
	go func() {
		a, err := b.oracle.Ask(octx, q.Text, q.Context)
		done <- reply{a, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && !errors.Is(r.err, oracle.ErrUnavailable) {
			return oracle.Answer{}, fmt.Errorf("%w: %w", oracle.ErrUnavailable, r.err)
		}
		return r.ans, r.err
	case <-octx.Done():
		return oracle.Answer{}, fmt.Errorf("oracle call: %w: %w", oracle.ErrUnavailable, octx.Err())
	}
}

// inspect runs inline drift detection at an anchor step, repairing it when flagged.
func (b *Builder) inspect(log *slog.Logger, steps []state.Step, i int) {
	out := b.detector.Inspect(steps, i)
	if !out.Flagged {
		return
	}
	b.sink.DriftFlagged()
	if out.Intervened {
		b.sink.InterventionApplied()
		log.Info("drift repaired",
			"step", i,
			"position", steps[i].Position,
			"score", out.Score,
			"divergence", out.Divergence,
			"confidence_in", out.ConfidenceIn,
			"confidence_out", out.ConfidenceOut,
		)
		return
	}
	log.Warn("drift flagged without repair", "step", i, "score", out.Score, "divergence", out.Divergence)
}

// #endregion step
