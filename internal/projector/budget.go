package projector

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
)

// BudgetStore is the write side of the budget read models.
type BudgetStore interface {
	SaveBudget(ctx context.Context, b budget.Budget) error
	InsertPaymentReceipt(ctx context.Context, e payment.Processed) error
}

// BudgetProjector rewrites the read model of a budget from its current
// state on every budget event, so replaying a stream yields the same rows.
type BudgetProjector struct {
	budgets *domain.Repository[budget.Budget, budget.Event]
	store   BudgetStore
}

func NewBudgetProjector(budgets *domain.Repository[budget.Budget, budget.Event], store BudgetStore) *BudgetProjector {
	return &BudgetProjector{budgets: budgets, store: store}
}

func (p *BudgetProjector) OnEvent(ctx context.Context, e domain.Event) error {
	be, ok := e.(budget.Event)
	if !ok {
		return nil
	}

	b, err := p.budgets.FindByID(ctx, be.BudgetID())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Internal(fmt.Errorf("budget %s has events on the bus but none in the store", be.BudgetID()))
	}
	if err != nil {
		return err
	}
	if err := p.store.SaveBudget(ctx, b); err != nil {
		return fmt.Errorf("saving budget %s: %w", b.ID, err)
	}

	if pe, ok := be.(budget.PaymentEvent); ok {
		if processed, ok := pe.Event.(payment.Processed); ok {
			if err := p.store.InsertPaymentReceipt(ctx, processed); err != nil {
				return fmt.Errorf("saving receipt %s: %w", processed.ReceiptID, err)
			}
		}
	}
	return nil
}
