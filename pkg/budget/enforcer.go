package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/ragcache/pkg/models"
)

// ErrBudgetExceeded is returned when upstream token usage has reached the budget.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Usage reports tokens spent since a point in time.
type Usage interface {
	TotalSince(ctx context.Context, since time.Time) (int64, error)
}

// Enforcer checks upstream token usage against a per-period budget.
type Enforcer struct {
	policy models.BudgetPolicy
	usage  Usage
	now    func() time.Time
}

// New creates an Enforcer for the given policy.
func New(policy models.BudgetPolicy, u Usage) *Enforcer {
	return &Enforcer{policy: policy, usage: u, now: time.Now}
}

// Check returns ErrBudgetExceeded once the current period's usage reaches MaxTokens.
func (e *Enforcer) Check(ctx context.Context) error {
	used, err := e.usage.TotalSince(ctx, periodStart(e.now(), e.policy.Period))
	if err != nil {
		return fmt.Errorf("budget check: %w", err)
	}
	if used >= e.policy.MaxTokens {
		return ErrBudgetExceeded
	}
	return nil
}

// Status returns usage for the current period.
func (e *Enforcer) Status(ctx context.Context) (models.BudgetStatus, error) {
	used, err := e.usage.TotalSince(ctx, periodStart(e.now(), e.policy.Period))
	if err != nil {
		return models.BudgetStatus{}, fmt.Errorf("budget status: %w", err)
	}
	return models.BudgetStatus{
		Policy:    e.policy,
		Used:      used,
		Remaining: max(e.policy.MaxTokens-used, 0),
	}, nil
}

func periodStart(now time.Time, period models.BudgetPeriod) time.Time {
	now = now.UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
