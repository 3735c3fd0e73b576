package budget

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/payment"
)

var (
	ErrOverspent       = errors.New("budget would be overspent")
	ErrPaymentNotFound = errors.New("payment not found in budget")
	ErrInvalidAmount   = errors.New("payment amount must be positive")
)

var budgetNamespace = uuid.MustParse("6f1c5a2e-9d4b-4c3a-8e71-0b2f4d6a9c15")

// IDFor returns the id of the budget owned by a project.
func IDFor(projectID domain.ProjectID) domain.BudgetID {
	return domain.BudgetID{UUID: uuid.NewSHA1(budgetNamespace, projectID.UUID[:])}
}

// Budget tracks the funds allocated to a project and the payments drawn
// from them. Spent never exceeds Allocated.
type Budget struct {
	ID        domain.BudgetID
	ProjectID domain.ProjectID
	Currency  domain.Currency
	Allocated decimal.Decimal
	Spent     decimal.Decimal
	Payments  map[domain.PaymentID]payment.Payment
}

func FromEvents(events []Event) Budget {
	return domain.FromEvents[Budget](events)
}

func (b Budget) ApplyEvents(events []Event) Budget {
	return domain.ApplyEvents(b, events)
}

func (b Budget) ApplyEvent(e Event) Budget {
	switch e := e.(type) {
	case Created:
		return Budget{ID: e.ID, ProjectID: e.ProjectID, Currency: e.Currency}
	case Allocated:
		b.Allocated = b.Allocated.Add(e.Amount)
	case PaymentEvent:
		b = b.applyPaymentEvent(e.Event)
	}
	return b
}

func (b Budget) applyPaymentEvent(e payment.Event) Budget {
	id := e.PaymentID()
	current := b.Payments[id]
	next := current.ApplyEvent(e)

	switch e := e.(type) {
	case payment.Requested:
		b.Spent = b.Spent.Add(e.Amount.Value)
	case payment.Cancelled:
		if !current.Cancelled() {
			b.Spent = b.Spent.Sub(current.RequestedAmount)
		}
	}

	payments := maps.Clone(b.Payments)
	if payments == nil {
		payments = make(map[domain.PaymentID]payment.Payment)
	}
	payments[id] = next
	b.Payments = payments
	return b
}

// Remaining is what can still be requested.
func (b Budget) Remaining() decimal.Decimal {
	return b.Allocated.Sub(b.Spent)
}

// Create emits the event opening a budget for a project.
func Create(id domain.BudgetID, projectID domain.ProjectID, currency domain.Currency) []Event {
	return []Event{Created{ID: id, ProjectID: projectID, Currency: currency}}
}

// Allocate changes the allocation by a signed amount. The allocation can
// not drop below what is already spent.
func (b Budget) Allocate(amount decimal.Decimal) ([]Event, error) {
	if b.Allocated.Add(amount).LessThan(b.Spent) {
		return nil, fmt.Errorf("%w: allocating %s with %s spent of %s", ErrOverspent, amount, b.Spent, b.Allocated)
	}
	return []Event{Allocated{ID: b.ID, Amount: amount}}, nil
}

// RequestPayment reserves amount from the remaining funds.
func (b Budget) RequestPayment(
	paymentID domain.PaymentID,
	requestorID domain.UserID,
	recipientID domain.GithubUserID,
	amount domain.Amount,
	durationWorked payment.Duration,
	reason payment.Reason,
	now time.Time,
) ([]Event, error) {
	if amount.Currency != b.Currency {
		return nil, domain.InvalidInputs(fmt.Errorf("payment in %s from a budget in %s", amount.Currency, b.Currency))
	}
	if !amount.Value.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if b.Remaining().LessThan(amount.Value) {
		return nil, fmt.Errorf("%w: requesting %s with %s remaining", ErrOverspent, amount.Value, b.Remaining())
	}
	return b.wrap(payment.Request(paymentID, requestorID, recipientID, amount, durationWorked, reason, now)), nil
}

func (b Budget) CancelPaymentRequest(paymentID domain.PaymentID) ([]Event, error) {
	p, err := b.payment(paymentID)
	if err != nil {
		return nil, err
	}
	return b.wrapErr(p.Cancel())
}

func (b Budget) AddPaymentReceipt(
	paymentID domain.PaymentID,
	receiptID domain.PaymentReceiptID,
	amount domain.Amount,
	receipt payment.Receipt,
	now time.Time,
) ([]Event, error) {
	p, err := b.payment(paymentID)
	if err != nil {
		return nil, err
	}
	return b.wrapErr(p.AddReceipt(receiptID, amount, receipt, now))
}

func (b Budget) MarkInvoiceAsReceived(paymentID domain.PaymentID, now time.Time) ([]Event, error) {
	p, err := b.payment(paymentID)
	if err != nil {
		return nil, err
	}
	return b.wrapErr(p.MarkInvoiceAsReceived(now))
}

func (b Budget) RejectInvoice(paymentID domain.PaymentID) ([]Event, error) {
	p, err := b.payment(paymentID)
	if err != nil {
		return nil, err
	}
	return b.wrapErr(p.RejectInvoice())
}

func (b Budget) payment(id domain.PaymentID) (payment.Payment, error) {
	p, ok := b.Payments[id]
	if !ok {
		return payment.Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	return p, nil
}

func (b Budget) wrap(events []payment.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		out = append(out, PaymentEvent{ID: b.ID, Event: e})
	}
	return out
}

func (b Budget) wrapErr(events []payment.Event, err error) ([]Event, error) {
	if err != nil {
		return nil, err
	}
	return b.wrap(events), nil
}
