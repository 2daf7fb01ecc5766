package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region scripted

// Scripted replays a fixed list of answers in order. Once exhausted it reports
// ErrUnavailable, so callers fall back to internal steps.
type Scripted struct {
	mu      sync.Mutex
	answers []Answer
	next    int
	asked   []string
}

// NewScripted creates a Scripted oracle over answers.
func NewScripted(answers []Answer) *Scripted {
	cp := make([]Answer, len(answers))
	copy(cp, answers)
	return &Scripted{answers: cp}
}

// Ask returns the next scripted answer.
func (s *Scripted) Ask(ctx context.Context, question string, _ tensor.Semantic) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, question)
	if s.next >= len(s.answers) {
		return Answer{}, fmt.Errorf("script exhausted after %d answers: %w", len(s.answers), ErrUnavailable)
	}
	a := s.answers[s.next]
	s.next++
	return a, nil
}

// Questions returns the questions received so far.
func (s *Scripted) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.asked))
	copy(out, s.asked)
	return out
}

// #endregion scripted
