package oracle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region limited

// Limited throttles calls to an Oracle with a token bucket. Waiting counts
// against the caller's deadline; running out of time is ErrUnavailable.
type Limited struct {
	next    Oracle
	limiter *rate.Limiter
}

// NewLimited wraps next with perSecond sustained calls and the given burst.
// perSecond <= 0 disables limiting.
func NewLimited(next Oracle, perSecond float64, burst int) *Limited {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Ask waits for a token, then forwards to the wrapped oracle.
func (l *Limited) Ask(ctx context.Context, question string, contextTensor tensor.Semantic) (Answer, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Answer{}, fmt.Errorf("rate limit wait: %w: %w", ErrUnavailable, err)
	}
	return l.next.Ask(ctx, question, contextTensor)
}

// #endregion limited
