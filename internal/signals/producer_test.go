package signals

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region mock

// mockProvider returns a fixed context string or error.
type mockProvider struct {
	text  string
	err   error
	calls int
}

func (m *mockProvider) Context(_ context.Context, _ string) (string, error) {
	m.calls++
	return m.text, m.err
}

// #endregion mock

// #region classify-tests

func TestClassify(t *testing.T) {
	config := DefaultProducerConfig()
	cases := []struct {
		name  string
		input ProduceInput
		want  state.UncertaintyKind
	}{
		{"low uncertainty", ProduceInput{Uncertainty: 0.2, Confidence: 0.1, Tensor: tensor.Neutral()}, state.KindLow},
		{"missing facts", ProduceInput{Uncertainty: 0.9, Confidence: 0.1, Tensor: tensor.Neutral()}, state.KindMissingFacts},
		{"value ambiguity", ProduceInput{Uncertainty: 0.9, Confidence: 0.5, Tensor: tensor.New(8, 5, 2)}, state.KindValueAmbiguity},
		{"unclear causality", ProduceInput{Uncertainty: 0.9, Confidence: 0.5, Tensor: tensor.New(4, 1, 4)}, state.KindUnclearCausality},
		{"multiple pathways", ProduceInput{Uncertainty: 0.9, Confidence: 0.5, Tensor: tensor.New(5, 5.5, 5)}, state.KindMultiplePathways},
		{"fallback", ProduceInput{Uncertainty: 0.9, Confidence: 0.5, Tensor: tensor.New(4, 8, 5)}, state.KindMissingFacts},
	}
	for _, c := range cases {
		if got := Classify(c.input, config); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

// #endregion classify-tests

// #region produce-tests

func TestProduce_NilProvider(t *testing.T) {
	p := NewProducer(nil, DefaultProducerConfig(), nil)
	q := p.Produce(context.Background(), ProduceInput{
		Problem:     "why did the bridge fail",
		Uncertainty: 0.9,
		Confidence:  0.1,
		Tensor:      tensor.Neutral(),
	})

	if q.Kind != state.KindMissingFacts {
		t.Fatalf("expected missing facts, got %s", q.Kind)
	}
	if !strings.Contains(q.Text, "why did the bridge fail") {
		t.Errorf("question should carry the problem: %q", q.Text)
	}
	if strings.Contains(q.Text, "[CONTEXT]") {
		t.Error("nil provider must not add context")
	}
	if q.Context != tensor.Neutral() {
		t.Error("question should carry the step tensor")
	}
}

func TestProduce_MergesProviderContext(t *testing.T) {
	mp := &mockProvider{text: "  prior chain: load exceeded rating  "}
	p := NewProducer(mp, DefaultProducerConfig(), nil)

	q := p.Produce(context.Background(), ProduceInput{Problem: "bridge", Uncertainty: 0.9, Tensor: tensor.Neutral()})

	if mp.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", mp.calls)
	}
	if !strings.HasSuffix(q.Text, "[CONTEXT]\nprior chain: load exceeded rating") {
		t.Errorf("expected trimmed context suffix, got %q", q.Text)
	}
}

func TestProduce_ProviderErrorDegrades(t *testing.T) {
	mp := &mockProvider{err: errors.New("down")}
	p := NewProducer(mp, DefaultProducerConfig(), nil)

	q := p.Produce(context.Background(), ProduceInput{Problem: "bridge", Uncertainty: 0.9, Tensor: tensor.Neutral()})

	if strings.Contains(q.Text, "[CONTEXT]") {
		t.Error("provider error must not add context")
	}
}

func TestProduce_ContextTruncated(t *testing.T) {
	config := DefaultProducerConfig()
	config.MaxContextLen = 5
	p := NewProducer(&mockProvider{text: "abcdefghij"}, config, nil)

	q := p.Produce(context.Background(), ProduceInput{Problem: "x", Uncertainty: 0.9, Tensor: tensor.Neutral()})

	if !strings.HasSuffix(q.Text, "\nabcde") {
		t.Errorf("expected truncated context, got %q", q.Text)
	}
}

func TestProduce_ContextTruncatedOnRuneBoundary(t *testing.T) {
	config := DefaultProducerConfig()
	config.MaxContextLen = 5
	p := NewProducer(&mockProvider{text: "éééééééééé"}, config, nil)

	q := p.Produce(context.Background(), ProduceInput{Problem: "x", Uncertainty: 0.9, Tensor: tensor.Neutral()})

	if !utf8.ValidString(q.Text) {
		t.Fatalf("question is not valid UTF-8: %q", q.Text)
	}
	if !strings.HasSuffix(q.Text, "\néé") {
		t.Errorf("expected context cut to whole runes, got %q", q.Text)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"abcdef", 3, "abc"},
		{"日本語", 4, "日"},
		{"日本語", 6, "日本"},
		{"é", 1, ""},
	}
	for _, c := range cases {
		if got := truncate(c.in, c.n); got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}

// #endregion produce-tests
