package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"NewsPoster/internal/ports"
)

// Limited throttles calls to a Completer.
type Limited struct {
	next    ports.Completer
	limiter *rate.Limiter
}

var _ ports.Completer = (*Limited)(nil)

// NewLimited allows perMinute calls per minute; zero or less disables the limit.
func NewLimited(next ports.Completer, perMinute int) *Limited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, 1)}
}

func (l *Limited) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.Complete(ctx, req)
}
