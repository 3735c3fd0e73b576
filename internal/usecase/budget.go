package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

// UpdateAllocation sets what remains to be spent from the project budget to
// newRemaining, creating the budget on first use. The change is recorded as
// the signed difference with the current remaining amount.
func (c *Commands) UpdateAllocation(ctx context.Context, projectID domain.ProjectID, newRemaining domain.Amount) (id domain.BudgetID, err error) {
	ctx, span := startSpan(ctx, "budget.update_allocation",
		attribute.String("project_id", projectID.String()),
		attribute.String("amount", newRemaining.String()),
	)
	defer func() { endSpan(span, err) }()

	if newRemaining.Value.IsNegative() {
		return domain.BudgetID{}, domain.InvalidInputs(fmt.Errorf("remaining amount can not be negative, got %s", newRemaining))
	}

	err = c.onBudget(ctx, projectID, func(p project.Project, b *budget.Budget) ([]budget.Event, error) {
		current := decimal.Zero
		if b != nil {
			current = b.Remaining()
		}
		diff := domain.NewAmount(newRemaining.Value.Sub(current), newRemaining.Currency)
		return p.AllocateBudget(b, diff)
	})
	if err != nil {
		return domain.BudgetID{}, err
	}
	return budget.IDFor(projectID), nil
}

// onBudget runs decide against the current project and budget under the
// project lock and publishes what it returns. b is nil when the project has
// no budget.
func (c *Commands) onBudget(
	ctx context.Context,
	id domain.ProjectID,
	decide func(p project.Project, b *budget.Budget) ([]budget.Event, error),
) error {
	_, err := c.onBudgetResult(ctx, id, decide)
	return err
}

// onBudgetResult is onBudget returning the budget with the new events
// applied.
func (c *Commands) onBudgetResult(
	ctx context.Context,
	id domain.ProjectID,
	decide func(p project.Project, b *budget.Budget) ([]budget.Event, error),
) (budget.Budget, error) {
	unlock := c.lock(id)
	defer unlock()

	p, err := c.loadProject(ctx, id)
	if err != nil {
		return budget.Budget{}, err
	}
	b, err := c.loadBudget(ctx, p)
	if err != nil {
		return budget.Budget{}, err
	}
	events, err := decide(p, b)
	if err != nil {
		return budget.Budget{}, rejected(err)
	}
	if err := publish(ctx, c, events); err != nil {
		return budget.Budget{}, err
	}

	var current budget.Budget
	if b != nil {
		current = *b
	}
	return current.ApplyEvents(events), nil
}
