package signals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region producer

// Producer classifies step uncertainty and turns it into targeted oracle questions.
type Producer struct {
	provider ContextProvider
	config   ProducerConfig
	logger   *slog.Logger
}

// NewProducer creates a Producer. provider may be nil (questions carry no extra context).
func NewProducer(provider ContextProvider, config ProducerConfig, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{provider: provider, config: config, logger: logger}
}

// #endregion producer

// #region classify

// Classify picks the uncertainty kind with a tiered fallback:
// low → missing facts → value ambiguity → unclear causality → multiple pathways.
func (p *Producer) Classify(input ProduceInput) state.UncertaintyKind {
	return Classify(input, p.config)
}

// Classify is the pure form of Producer.Classify.
func Classify(input ProduceInput, config ProducerConfig) state.UncertaintyKind {
	if input.Uncertainty < config.UncertaintyThreshold {
		return state.KindLow
	}
	if input.Confidence < config.MissingFactsConfidence {
		return state.KindMissingFacts
	}
	t := input.Tensor
	if abs(t.Character-t.Affect) >= config.ValueConflictGap {
		return state.KindValueAmbiguity
	}
	if t.Logic < config.LogicFloor {
		return state.KindUnclearCausality
	}
	if spread(t.Array()) <= config.PathwaySpread {
		return state.KindMultiplePathways
	}
	return state.KindMissingFacts
}

// #endregion classify

// #region question

// questionTemplates maps each uncertainty kind to a targeted question.
var questionTemplates = map[state.UncertaintyKind]string{
	state.KindMissingFacts:     "Which facts are needed to continue reasoning about: %s",
	state.KindUnclearCausality: "What causes what in: %s",
	state.KindMultiplePathways: "Which of the competing approaches best fits: %s",
	state.KindValueAmbiguity:   "Which values or priorities should govern: %s",
	state.KindLow:              "Confirm the next step for: %s",
}

// Produce classifies the input and builds the question. Provider errors are logged
// and the question is returned without extra context.
func (p *Producer) Produce(ctx context.Context, input ProduceInput) Question {
	kind := p.Classify(input)
	tmpl, ok := questionTemplates[kind]
	if !ok {
		tmpl = questionTemplates[state.KindMissingFacts]
	}
	text := fmt.Sprintf(tmpl, strings.TrimSpace(input.Problem))

	if extra := p.context(ctx, input.Problem); extra != "" {
		text = text + "\n[CONTEXT]\n" + extra
	}

	return Question{Text: text, Kind: kind, Context: input.Tensor}
}

func (p *Producer) context(ctx context.Context, query string) string {
	if p.provider == nil {
		return ""
	}
	extra, err := p.provider.Context(ctx, query)
	if err != nil {
		p.logger.Warn("context provider failed", "component", "signals", "err", err)
		return ""
	}
	extra = strings.TrimSpace(extra)
	if p.config.MaxContextLen > 0 && len(extra) > p.config.MaxContextLen {
		extra = truncate(extra, p.config.MaxContextLen)
	}
	return extra
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// #endregion question

// #region helpers

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// spread is max - min over the channels.
func spread(vals [3]float32) float32 {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

// #endregion helpers
