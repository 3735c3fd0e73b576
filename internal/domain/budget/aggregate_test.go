package budget_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
)

var now = time.Date(2023, 3, 14, 10, 0, 0, 0, time.UTC)

func usdc(v int64) domain.Amount {
	return domain.NewAmount(decimal.NewFromInt(v), domain.USDC)
}

func allocatedBudget(t *testing.T, amount int64) budget.Budget {
	t.Helper()
	projectID := domain.NewProjectID()
	events := budget.Create(budget.IDFor(projectID), projectID, domain.USDC)
	b := budget.FromEvents(events)
	allocated, err := b.Allocate(decimal.NewFromInt(amount))
	require.NoError(t, err)
	return b.ApplyEvents(allocated)
}

func request(t *testing.T, b budget.Budget, amount int64) (budget.Budget, domain.PaymentID) {
	t.Helper()
	id := domain.NewPaymentID()
	events, err := b.RequestPayment(id, domain.NewUserID(), 42, usdc(amount), payment.Hours(12), payment.Reason{}, now)
	require.NoError(t, err)
	return b.ApplyEvents(events), id
}

func TestIDForIsStable(t *testing.T) {
	projectID := domain.NewProjectID()
	assert.Equal(t, budget.IDFor(projectID), budget.IDFor(projectID))
	assert.NotEqual(t, budget.IDFor(projectID), budget.IDFor(domain.NewProjectID()))
}

func TestRequestPaymentReservesFunds(t *testing.T) {
	b := allocatedBudget(t, 1000)

	id := domain.NewPaymentID()
	events, err := b.RequestPayment(id, domain.NewUserID(), 42, usdc(420), payment.Hours(12), payment.Reason{}, now)
	require.NoError(t, err)
	require.Len(t, events, 1)

	pe, ok := events[0].(budget.PaymentEvent)
	require.True(t, ok)
	requested, ok := pe.Event.(payment.Requested)
	require.True(t, ok)
	assert.Equal(t, id, requested.ID)

	b = b.ApplyEvents(events)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(580)), "remaining %s", b.Remaining())
	assert.Contains(t, b.Payments, id)
}

func TestRequestPaymentOverspent(t *testing.T) {
	b := allocatedBudget(t, 100)

	_, err := b.RequestPayment(domain.NewPaymentID(), domain.NewUserID(), 42, usdc(101), payment.Hours(1), payment.Reason{}, now)
	require.ErrorIs(t, err, budget.ErrOverspent)
}

func TestRequestPaymentWrongCurrency(t *testing.T) {
	b := allocatedBudget(t, 100)

	amount := domain.NewAmount(decimal.NewFromInt(1), domain.ETH)
	_, err := b.RequestPayment(domain.NewPaymentID(), domain.NewUserID(), 42, amount, payment.Hours(1), payment.Reason{}, now)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInputs, domain.KindOf(err))
}

func TestCancelReleasesFunds(t *testing.T) {
	b, id := request(t, allocatedBudget(t, 1000), 420)

	events, err := b.CancelPaymentRequest(id)
	require.NoError(t, err)
	require.Len(t, events, 1)

	b = b.ApplyEvents(events)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(1000)))
	assert.True(t, b.Payments[id].Cancelled())

	_, err = b.CancelPaymentRequest(id)
	require.ErrorIs(t, err, payment.ErrCancelled)
}

func TestUnknownPayment(t *testing.T) {
	b := allocatedBudget(t, 1000)

	_, err := b.CancelPaymentRequest(domain.NewPaymentID())
	require.ErrorIs(t, err, budget.ErrPaymentNotFound)
	_, err = b.RejectInvoice(domain.NewPaymentID())
	require.ErrorIs(t, err, budget.ErrPaymentNotFound)
}

func TestAllocationCannotDropBelowSpent(t *testing.T) {
	b, _ := request(t, allocatedBudget(t, 1000), 420)

	_, err := b.Allocate(decimal.NewFromInt(-600))
	require.ErrorIs(t, err, budget.ErrOverspent)

	events, err := b.Allocate(decimal.NewFromInt(-580))
	require.NoError(t, err)
	b = b.ApplyEvents(events)
	assert.True(t, b.Remaining().IsZero())
}

func TestReceiptFlowsThroughBudget(t *testing.T) {
	b, id := request(t, allocatedBudget(t, 1000), 420)

	receipt := payment.Receipt{Fiat: &payment.FiatReceipt{RecipientIBAN: "FR76", TransactionReference: "tx"}}
	_, err := b.AddPaymentReceipt(id, domain.NewPaymentReceiptID(), usdc(500), receipt, now)
	require.ErrorIs(t, err, payment.ErrOverspent)

	events, err := b.AddPaymentReceipt(id, domain.NewPaymentReceiptID(), usdc(420), receipt, now)
	require.NoError(t, err)
	b = b.ApplyEvents(events)
	assert.True(t, b.Payments[id].PaidAmount.Equal(decimal.NewFromInt(420)))

	_, err = b.CancelPaymentRequest(id)
	require.ErrorIs(t, err, payment.ErrNotCancellable)
}

func TestPaymentEventJSON(t *testing.T) {
	b, id := request(t, allocatedBudget(t, 1000), 420)
	events, err := b.MarkInvoiceAsReceived(id, now)
	require.NoError(t, err)

	raw, err := json.Marshal(events[0])
	require.NoError(t, err)

	decoded, err := budget.Decode("Payment", raw)
	require.NoError(t, err)
	pe, ok := decoded.(budget.PaymentEvent)
	require.True(t, ok)
	assert.Equal(t, b.ID, pe.ID)
	assert.Equal(t, payment.InvoiceReceived{ID: id, ReceivedAt: now}, pe.Event)
}

func TestApplyDoesNotShareState(t *testing.T) {
	b, id := request(t, allocatedBudget(t, 1000), 420)
	events, err := b.CancelPaymentRequest(id)
	require.NoError(t, err)

	_ = b.ApplyEvents(events)
	assert.False(t, b.Payments[id].Cancelled())
}
