package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// Identifiers wrap uuid.UUID so they can not be mixed up while keeping
// uuid's text and JSON encoding.

type ProjectID struct{ uuid.UUID }

func NewProjectID() ProjectID { return ProjectID{uuid.New()} }

type BudgetID struct{ uuid.UUID }

func NewBudgetID() BudgetID { return BudgetID{uuid.New()} }

type PaymentID struct{ uuid.UUID }

func NewPaymentID() PaymentID { return PaymentID{uuid.New()} }

type PaymentReceiptID struct{ uuid.UUID }

func NewPaymentReceiptID() PaymentReceiptID { return PaymentReceiptID{uuid.New()} }

type UserID struct{ uuid.UUID }

func NewUserID() UserID { return UserID{uuid.New()} }

type SponsorID struct{ uuid.UUID }

func NewSponsorID() SponsorID { return SponsorID{uuid.New()} }

// GithubUserID is the numeric id GitHub assigns to an account.
type GithubUserID int64

func (id GithubUserID) String() string { return strconv.FormatInt(int64(id), 10) }

// GithubRepoID is the numeric id GitHub assigns to a repository.
type GithubRepoID int64

func (id GithubRepoID) String() string { return strconv.FormatInt(int64(id), 10) }

// GithubIssueNumber is an issue or pull request number within a repository.
type GithubIssueNumber int64

func (n GithubIssueNumber) String() string { return strconv.FormatInt(int64(n), 10) }

// ParseProjectID parses a textual project id.
func ParseProjectID(s string) (ProjectID, error) {
	id, err := uuid.Parse(s)
	return ProjectID{id}, err
}

func ParseBudgetID(s string) (BudgetID, error) {
	id, err := uuid.Parse(s)
	return BudgetID{id}, err
}

func ParsePaymentID(s string) (PaymentID, error) {
	id, err := uuid.Parse(s)
	return PaymentID{id}, err
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	return UserID{id}, err
}

func ParseSponsorID(s string) (SponsorID, error) {
	id, err := uuid.Parse(s)
	return SponsorID{id}, err
}
