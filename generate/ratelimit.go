package generate

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedCompleter spaces out calls to the wrapped completer so every
// worker shares one request budget.
type RateLimitedCompleter struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimitedCompleter allows rps calls per second with the given burst.
// A burst below 1 is raised to 1.
func NewRateLimitedCompleter(next Completer, rps float64, burst int) *RateLimitedCompleter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedCompleter{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *RateLimitedCompleter) Name() string { return c.next.Name() }

func (c *RateLimitedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limit: %w", err)
	}
	return c.next.Complete(ctx, req)
}
