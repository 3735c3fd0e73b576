package payment

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Priya8975/marketplace/internal/domain"
)

var (
	ErrOverspent      = errors.New("receipt amount exceeds requested amount")
	ErrNotCancellable = errors.New("payment is not cancellable")
	ErrCancelled      = errors.New("payment has been cancelled")
	ErrInvalidAmount  = errors.New("receipt amount must be positive")
)

type Status string

const (
	StatusActive    Status = "Active"
	StatusCancelled Status = "Cancelled"
)

// Payment is a request to pay a contributor, and the receipts paying it.
// The zero value is an Active payment with nothing requested.
type Payment struct {
	ID                domain.PaymentID
	RequestedAmount   decimal.Decimal
	PaidAmount        decimal.Decimal
	Currency          domain.Currency
	Status            Status
	RecipientID       domain.GithubUserID
	RequestorID       domain.UserID
	WorkItems         []WorkItem
	DurationWorked    Duration
	RequestedAt       time.Time
	InvoiceReceivedAt *time.Time
}

func FromEvents(events []Event) Payment {
	return domain.FromEvents[Payment](events)
}

func (p Payment) ApplyEvents(events []Event) Payment {
	return domain.ApplyEvents(p, events)
}

func (p Payment) ApplyEvent(e Event) Payment {
	switch e := e.(type) {
	case Requested:
		p.ID = e.ID
		p.Status = StatusActive
		p.RequestedAmount = e.Amount.Value
		p.Currency = e.Amount.Currency
		p.RecipientID = e.RecipientID
		p.RequestorID = e.RequestorID
		p.WorkItems = slices.Clone(e.Reason.WorkItems)
		p.DurationWorked = e.DurationWorked
		p.RequestedAt = e.RequestedAt
	case Processed:
		p.PaidAmount = p.PaidAmount.Add(e.Amount.Value)
	case Cancelled:
		p.Status = StatusCancelled
	case InvoiceReceived:
		at := e.ReceivedAt
		p.InvoiceReceivedAt = &at
	case InvoiceRejected:
		p.InvoiceReceivedAt = nil
	}
	return p
}

// Cancelled reports whether the payment reached its terminal state.
func (p Payment) Cancelled() bool { return p.Status == StatusCancelled }

// Request emits the event creating a payment.
func Request(
	id domain.PaymentID,
	requestorID domain.UserID,
	recipientID domain.GithubUserID,
	amount domain.Amount,
	durationWorked Duration,
	reason Reason,
	now time.Time,
) []Event {
	return []Event{Requested{
		ID:             id,
		RequestorID:    requestorID,
		RecipientID:    recipientID,
		Amount:         amount,
		DurationWorked: durationWorked,
		Reason:         reason,
		RequestedAt:    now.UTC(),
	}}
}

// AddReceipt records a (possibly partial) payment. Paid amounts can never
// exceed the requested amount.
func (p Payment) AddReceipt(receiptID domain.PaymentReceiptID, amount domain.Amount, receipt Receipt, now time.Time) ([]Event, error) {
	if err := p.onlyActive(); err != nil {
		return nil, err
	}
	if !amount.Value.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if p.PaidAmount.Add(amount.Value).GreaterThan(p.RequestedAmount) {
		return nil, ErrOverspent
	}
	return []Event{Processed{
		ID:          p.ID,
		ReceiptID:   receiptID,
		Amount:      amount,
		Receipt:     receipt,
		ProcessedAt: now.UTC(),
	}}, nil
}

// Cancel is only possible while nothing has been paid.
func (p Payment) Cancel() ([]Event, error) {
	if err := p.onlyActive(); err != nil {
		return nil, err
	}
	if !p.PaidAmount.IsZero() {
		return nil, ErrNotCancellable
	}
	return []Event{Cancelled{ID: p.ID}}, nil
}

func (p Payment) MarkInvoiceAsReceived(now time.Time) ([]Event, error) {
	if err := p.onlyActive(); err != nil {
		return nil, err
	}
	return []Event{InvoiceReceived{ID: p.ID, ReceivedAt: now.UTC()}}, nil
}

func (p Payment) RejectInvoice() ([]Event, error) {
	if err := p.onlyActive(); err != nil {
		return nil, err
	}
	return []Event{InvoiceRejected{ID: p.ID}}, nil
}

func (p Payment) onlyActive() error {
	if p.Status == StatusCancelled {
		return ErrCancelled
	}
	return nil
}
