package adapter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedGenerator wraps an AssessmentGenerator with a client-side
// rate limiter. Question generation calls a metered LLM API; the limiter
// smooths bursts before the collaborator throttles them.
type RateLimitedGenerator struct {
	inner   AssessmentGenerator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator wraps gen so calls proceed at most at the given
// rate, with the given burst.
func NewRateLimitedGenerator(gen AssessmentGenerator, r rate.Limit, burst int) *RateLimitedGenerator {
	return &RateLimitedGenerator{
		inner:   gen,
		limiter: rate.NewLimiter(r, burst),
	}
}

// GenerateAssessment waits for limiter admission and delegates. A context
// cancelled while waiting surfaces as a transient failure so the
// supervisor treats it like any other bounded wait.
func (g *RateLimitedGenerator) GenerateAssessment(ctx context.Context, req AssessmentRequest) (*Assessment, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, RateLimited("assessment-generator", err)
	}
	return g.inner.GenerateAssessment(ctx, req)
}
