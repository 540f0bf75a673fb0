// Package executor defines the contract the core calls to perform a
// decision's side effect. Implementations live outside the core, one per
// action kind family (messaging, tasks, calendar).
package executor

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/stewardlabs/steward/internal/models"
)

// Executor performs the side effect of a decision.
//
// Business-logic failures must be converted to a Failure outcome, not
// returned as an error. A returned error means a truly exceptional condition
// (storage unavailable, context canceled); the orchestrator converts it to a
// Failure outcome on the caller's behalf.
type Executor interface {
	Execute(ctx context.Context, d models.Decision) (models.ExecutionOutcome, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, d models.Decision) (models.ExecutionOutcome, error)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, d models.Decision) (models.ExecutionOutcome, error) {
	return f(ctx, d)
}

// RateLimited throttles an executor's outbound side effects. Useful when the
// side-effect channel (messaging API, workspace API) enforces quotas.
type RateLimited struct {
	inner   Executor
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a per-second execution budget.
func NewRateLimited(inner Executor, perSecond float64) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Execute waits for the limiter before delegating.
func (r *RateLimited) Execute(ctx context.Context, d models.Decision) (models.ExecutionOutcome, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return models.ExecutionOutcome{}, fmt.Errorf("rate limiter: %w", err)
	}
	return r.inner.Execute(ctx, d)
}

// NoOp acknowledges every decision without performing a side effect. Used
// when no side-effect channel is configured (dry-run deployments).
type NoOp struct{}

// Execute implements Executor.
func (NoOp) Execute(_ context.Context, d models.Decision) (models.ExecutionOutcome, error) {
	return models.Success(fmt.Sprintf("acknowledged %s (no side-effect channel configured)", d.Action.Kind())), nil
}
