package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

// PaymentRequest holds the inputs of a payment request.
type PaymentRequest struct {
	RequestorID domain.UserID
	RecipientID domain.GithubUserID
	Amount      domain.Amount
	HoursWorked int
	Reason      payment.Reason
}

func (r PaymentRequest) validate() error {
	if r.HoursWorked < 0 {
		return domain.InvalidInputs(fmt.Errorf("hours worked can not be negative, got %d", r.HoursWorked))
	}
	if int64(r.HoursWorked) > payment.MaxHours {
		return domain.InvalidInputs(fmt.Errorf("hours worked can not exceed %d, got %d", payment.MaxHours, r.HoursWorked))
	}
	if r.RecipientID <= 0 {
		return domain.InvalidInputs(fmt.Errorf("invalid recipient %d", r.RecipientID))
	}
	return nil
}

// RequestPayment reserves a payment on the project budget and returns it.
func (c *Commands) RequestPayment(ctx context.Context, projectID domain.ProjectID, req PaymentRequest) (_ payment.Payment, err error) {
	paymentID := domain.NewPaymentID()
	ctx, span := startSpan(ctx, "payment.request",
		attribute.String("project_id", projectID.String()),
		attribute.String("payment_id", paymentID.String()),
		attribute.String("amount", req.Amount.String()),
	)
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return payment.Payment{}, err
	}

	b, err := c.onBudgetResult(ctx, projectID, func(p project.Project, b *budget.Budget) ([]budget.Event, error) {
		return p.RequestPayment(b, paymentID, req.RequestorID, req.RecipientID, req.Amount,
			payment.Hours(req.HoursWorked), req.Reason, c.now())
	})
	if err != nil {
		return payment.Payment{}, err
	}
	return b.Payments[paymentID], nil
}

func (c *Commands) CancelPayment(ctx context.Context, projectID domain.ProjectID, paymentID domain.PaymentID) (err error) {
	ctx, span := paymentSpan(ctx, "payment.cancel", projectID, paymentID)
	defer func() { endSpan(span, err) }()

	return c.onBudget(ctx, projectID, func(p project.Project, b *budget.Budget) ([]budget.Event, error) {
		return p.CancelPaymentRequest(b, paymentID)
	})
}

// AddPaymentReceipt records a payment made to the recipient and returns
// the receipt id.
func (c *Commands) AddPaymentReceipt(
	ctx context.Context,
	projectID domain.ProjectID,
	paymentID domain.PaymentID,
	amount domain.Amount,
	receipt payment.Receipt,
) (id domain.PaymentReceiptID, err error) {
	ctx, span := paymentSpan(ctx, "payment.add_receipt", projectID, paymentID)
	defer func() { endSpan(span, err) }()

	if err := receipt.Validate(); err != nil {
		return domain.PaymentReceiptID{}, err
	}

	id = domain.NewPaymentReceiptID()
	err = c.onBudget(ctx, projectID, func(p project.Project, b *budget.Budget) ([]budget.Event, error) {
		return p.AddPaymentReceipt(b, paymentID, id, amount, receipt, c.now())
	})
	if err != nil {
		return domain.PaymentReceiptID{}, err
	}
	return id, nil
}

func (c *Commands) MarkInvoiceAsReceived(ctx context.Context, projectID domain.ProjectID, paymentID domain.PaymentID) (err error) {
	ctx, span := paymentSpan(ctx, "payment.mark_invoice_as_received", projectID, paymentID)
	defer func() { endSpan(span, err) }()

	return c.onBudget(ctx, projectID, func(p project.Project, b *budget.Budget) ([]budget.Event, error) {
		return p.MarkInvoiceAsReceived(b, paymentID, c.now())
	})
}

func (c *Commands) RejectInvoice(ctx context.Context, projectID domain.ProjectID, paymentID domain.PaymentID) (err error) {
	ctx, span := paymentSpan(ctx, "payment.reject_invoice", projectID, paymentID)
	defer func() { endSpan(span, err) }()

	return c.onBudget(ctx, projectID, func(p project.Project, b *budget.Budget) ([]budget.Event, error) {
		return p.RejectInvoice(b, paymentID)
	})
}

func paymentSpan(ctx context.Context, name string, projectID domain.ProjectID, paymentID domain.PaymentID) (context.Context, trace.Span) {
	return startSpan(ctx, name,
		attribute.String("project_id", projectID.String()),
		attribute.String("payment_id", paymentID.String()),
	)
}
