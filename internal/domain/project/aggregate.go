package project

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
)

var (
	ErrLeaderAlreadyAssigned   = errors.New("project lead already assigned to this project")
	ErrNotLeader               = errors.New("user is not a project leader")
	ErrGithubRepoAlreadyLinked = errors.New("github repository already linked to this project")
	ErrNotLinked               = errors.New("github repository is not linked to this project")
	ErrNoBudget                = errors.New("budget must be created first")
)

// Project groups leaders and linked repositories. Its budget lives in its
// own stream, see BudgetID.
type Project struct {
	ID          domain.ProjectID
	Leaders     map[domain.UserID]struct{}
	GithubRepos map[domain.GithubRepoID]struct{}
}

func FromEvents(events []Event) Project {
	return domain.FromEvents[Project](events)
}

func (p Project) ApplyEvents(events []Event) Project {
	return domain.ApplyEvents(p, events)
}

func (p Project) ApplyEvent(e Event) Project {
	switch e := e.(type) {
	case Created:
		return Project{ID: e.ID}
	case LeaderAssigned:
		p.Leaders = with(p.Leaders, e.LeaderID)
	case LeaderUnassigned:
		p.Leaders = without(p.Leaders, e.LeaderID)
	case GithubRepoLinked:
		p.GithubRepos = with(p.GithubRepos, e.GithubRepoID)
	case GithubRepoUnlinked:
		p.GithubRepos = without(p.GithubRepos, e.GithubRepoID)
	}
	return p
}

// sets are copied on write so earlier states stay untouched.
func with[K comparable](set map[K]struct{}, k K) map[K]struct{} {
	out := maps.Clone(set)
	if out == nil {
		out = make(map[K]struct{})
	}
	out[k] = struct{}{}
	return out
}

func without[K comparable](set map[K]struct{}, k K) map[K]struct{} {
	out := maps.Clone(set)
	delete(out, k)
	return out
}

// BudgetID is the id of the budget stream owned by the project.
func (p Project) BudgetID() domain.BudgetID { return budget.IDFor(p.ID) }

func (p Project) IsLeader(userID domain.UserID) bool {
	_, ok := p.Leaders[userID]
	return ok
}

func (p Project) HasGithubRepo(repoID domain.GithubRepoID) bool {
	_, ok := p.GithubRepos[repoID]
	return ok
}

func Create(id domain.ProjectID) []Event {
	return []Event{Created{ID: id}}
}

func (p Project) AssignLeader(leaderID domain.UserID) ([]Event, error) {
	if p.IsLeader(leaderID) {
		return nil, ErrLeaderAlreadyAssigned
	}
	return []Event{LeaderAssigned{ID: p.ID, LeaderID: leaderID}}, nil
}

func (p Project) UnassignLeader(leaderID domain.UserID) ([]Event, error) {
	if !p.IsLeader(leaderID) {
		return nil, ErrNotLeader
	}
	return []Event{LeaderUnassigned{ID: p.ID, LeaderID: leaderID}}, nil
}

func (p Project) LinkGithubRepo(repoID domain.GithubRepoID) ([]Event, error) {
	if p.HasGithubRepo(repoID) {
		return nil, ErrGithubRepoAlreadyLinked
	}
	return []Event{GithubRepoLinked{ID: p.ID, GithubRepoID: repoID}}, nil
}

func (p Project) UnlinkGithubRepo(repoID domain.GithubRepoID) ([]Event, error) {
	if !p.HasGithubRepo(repoID) {
		return nil, ErrNotLinked
	}
	return []Event{GithubRepoUnlinked{ID: p.ID, GithubRepoID: repoID}}, nil
}

// AllocateBudget changes the project's allocation by diff. When the project
// has no budget yet (current is nil) the budget is created first, in the
// currency of diff.
func (p Project) AllocateBudget(current *budget.Budget, diff domain.Amount) ([]budget.Event, error) {
	if current == nil {
		events := budget.Create(p.BudgetID(), p.ID, diff.Currency)
		allocated, err := budget.FromEvents(events).Allocate(diff.Value)
		if err != nil {
			return nil, err
		}
		return append(events, allocated...), nil
	}
	if err := p.owns(current); err != nil {
		return nil, err
	}
	if diff.Currency != current.Currency {
		return nil, domain.InvalidInputs(fmt.Errorf("allocating %s to a budget in %s", diff.Currency, current.Currency))
	}
	return current.Allocate(diff.Value)
}

func (p Project) RequestPayment(
	current *budget.Budget,
	paymentID domain.PaymentID,
	requestorID domain.UserID,
	recipientID domain.GithubUserID,
	amount domain.Amount,
	durationWorked payment.Duration,
	reason payment.Reason,
	now time.Time,
) ([]budget.Event, error) {
	b, err := p.budget(current)
	if err != nil {
		return nil, err
	}
	return b.RequestPayment(paymentID, requestorID, recipientID, amount, durationWorked, reason, now)
}

func (p Project) CancelPaymentRequest(current *budget.Budget, paymentID domain.PaymentID) ([]budget.Event, error) {
	b, err := p.budget(current)
	if err != nil {
		return nil, err
	}
	return b.CancelPaymentRequest(paymentID)
}

func (p Project) AddPaymentReceipt(
	current *budget.Budget,
	paymentID domain.PaymentID,
	receiptID domain.PaymentReceiptID,
	amount domain.Amount,
	receipt payment.Receipt,
	now time.Time,
) ([]budget.Event, error) {
	b, err := p.budget(current)
	if err != nil {
		return nil, err
	}
	return b.AddPaymentReceipt(paymentID, receiptID, amount, receipt, now)
}

func (p Project) MarkInvoiceAsReceived(current *budget.Budget, paymentID domain.PaymentID, now time.Time) ([]budget.Event, error) {
	b, err := p.budget(current)
	if err != nil {
		return nil, err
	}
	return b.MarkInvoiceAsReceived(paymentID, now)
}

func (p Project) RejectInvoice(current *budget.Budget, paymentID domain.PaymentID) ([]budget.Event, error) {
	b, err := p.budget(current)
	if err != nil {
		return nil, err
	}
	return b.RejectInvoice(paymentID)
}

func (p Project) budget(current *budget.Budget) (budget.Budget, error) {
	if current == nil {
		return budget.Budget{}, ErrNoBudget
	}
	if err := p.owns(current); err != nil {
		return budget.Budget{}, err
	}
	return *current, nil
}

func (p Project) owns(b *budget.Budget) error {
	if b.ProjectID != p.ID {
		return domain.Internal(fmt.Errorf("budget %s belongs to project %s, not %s", b.ID, b.ProjectID, p.ID))
	}
	return nil
}
