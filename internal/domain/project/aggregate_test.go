package project_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

var now = time.Date(2023, 3, 14, 10, 0, 0, 0, time.UTC)

func usdc(v int64) domain.Amount {
	return domain.NewAmount(decimal.NewFromInt(v), domain.USDC)
}

func created(t *testing.T) project.Project {
	t.Helper()
	return project.FromEvents(project.Create(domain.NewProjectID()))
}

func TestFromEventsOfNothingIsZero(t *testing.T) {
	assert.Equal(t, project.Project{}, project.FromEvents(nil))
}

func TestAllocateBudgetCreatesBudget(t *testing.T) {
	p := created(t)

	events, err := p.AllocateBudget(nil, usdc(1000))
	require.NoError(t, err)
	require.Equal(t, []budget.Event{
		budget.Created{ID: p.BudgetID(), ProjectID: p.ID, Currency: domain.USDC},
		budget.Allocated{ID: p.BudgetID(), Amount: decimal.NewFromInt(1000)},
	}, events)

	b := budget.FromEvents(events)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(1000)))
}

func TestAllocateBudgetOnExistingBudget(t *testing.T) {
	p := created(t)
	events, err := p.AllocateBudget(nil, usdc(1000))
	require.NoError(t, err)
	b := budget.FromEvents(events)

	events, err = p.AllocateBudget(&b, usdc(-200))
	require.NoError(t, err)
	require.Len(t, events, 1)
	b = b.ApplyEvents(events)
	assert.True(t, b.Allocated.Equal(decimal.NewFromInt(800)))
}

func TestAllocateBudgetOfAnotherProject(t *testing.T) {
	other := created(t)
	events, err := other.AllocateBudget(nil, usdc(10))
	require.NoError(t, err)
	b := budget.FromEvents(events)

	_, err = created(t).AllocateBudget(&b, usdc(10))
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestRequestPaymentScenario(t *testing.T) {
	p := created(t)
	events, err := p.AllocateBudget(nil, usdc(1000))
	require.NoError(t, err)
	b := budget.FromEvents(events)

	paymentID := domain.NewPaymentID()
	events, err = p.RequestPayment(&b, paymentID, domain.NewUserID(), 42, usdc(420), payment.Hours(12), payment.Reason{}, now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.IsType(t, payment.Requested{}, events[0].(budget.PaymentEvent).Event)

	b = b.ApplyEvents(events)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(580)))

	receipt := payment.Receipt{Fiat: &payment.FiatReceipt{RecipientIBAN: "FR76", TransactionReference: "ref"}}
	_, err = p.AddPaymentReceipt(&b, paymentID, domain.NewPaymentReceiptID(), usdc(500), receipt, now)
	require.ErrorIs(t, err, payment.ErrOverspent)

	events, err = p.CancelPaymentRequest(&b, paymentID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, payment.Cancelled{ID: paymentID}, events[0].(budget.PaymentEvent).Event)
	b = b.ApplyEvents(events)

	_, err = p.CancelPaymentRequest(&b, paymentID)
	require.ErrorIs(t, err, payment.ErrCancelled)
}

func TestPaymentCommandsWithoutBudget(t *testing.T) {
	p := created(t)
	paymentID := domain.NewPaymentID()

	_, err := p.RequestPayment(nil, paymentID, domain.NewUserID(), 42, usdc(1), payment.Hours(1), payment.Reason{}, now)
	assert.ErrorIs(t, err, project.ErrNoBudget)
	_, err = p.CancelPaymentRequest(nil, paymentID)
	assert.ErrorIs(t, err, project.ErrNoBudget)
	_, err = p.AddPaymentReceipt(nil, paymentID, domain.NewPaymentReceiptID(), usdc(1), payment.Receipt{}, now)
	assert.ErrorIs(t, err, project.ErrNoBudget)
	_, err = p.MarkInvoiceAsReceived(nil, paymentID, now)
	assert.ErrorIs(t, err, project.ErrNoBudget)
	_, err = p.RejectInvoice(nil, paymentID)
	assert.ErrorIs(t, err, project.ErrNoBudget)
}

func TestAssignLeader(t *testing.T) {
	p := created(t)
	leader := domain.NewUserID()

	events, err := p.AssignLeader(leader)
	require.NoError(t, err)
	require.Equal(t, []project.Event{project.LeaderAssigned{ID: p.ID, LeaderID: leader}}, events)

	p = p.ApplyEvents(events)
	assert.True(t, p.IsLeader(leader))

	_, err = p.AssignLeader(leader)
	require.ErrorIs(t, err, project.ErrLeaderAlreadyAssigned)
}

func TestUnassignLeader(t *testing.T) {
	p := created(t)
	leader := domain.NewUserID()

	_, err := p.UnassignLeader(leader)
	require.ErrorIs(t, err, project.ErrNotLeader)

	events, err := p.AssignLeader(leader)
	require.NoError(t, err)
	p = p.ApplyEvents(events)

	events, err = p.UnassignLeader(leader)
	require.NoError(t, err)
	p = p.ApplyEvents(events)
	assert.False(t, p.IsLeader(leader))
}

func TestGithubRepos(t *testing.T) {
	p := created(t)

	_, err := p.UnlinkGithubRepo(7)
	require.ErrorIs(t, err, project.ErrNotLinked)

	events, err := p.LinkGithubRepo(7)
	require.NoError(t, err)
	linked := p.ApplyEvents(events)
	assert.True(t, linked.HasGithubRepo(7))
	assert.False(t, p.HasGithubRepo(7), "apply must not mutate the previous state")

	_, err = linked.LinkGithubRepo(7)
	require.ErrorIs(t, err, project.ErrGithubRepoAlreadyLinked)

	events, err = linked.UnlinkGithubRepo(7)
	require.NoError(t, err)
	assert.False(t, linked.ApplyEvents(events).HasGithubRepo(7))
}
