package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
)

// BudgetView is the read model of a project budget.
type BudgetView struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"project_id"`
	Currency        string          `json:"currency"`
	InitialAmount   decimal.Decimal `json:"initial_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	SpentAmount     decimal.Decimal `json:"spent_amount"`
}

// PaymentRequestView is the read model of a payment request.
type PaymentRequestView struct {
	ID                string          `json:"id"`
	BudgetID          string          `json:"budget_id"`
	ProjectID         string          `json:"project_id"`
	RequestorID       string          `json:"requestor_id"`
	RecipientID       int64           `json:"recipient_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	HoursWorked       int             `json:"hours_worked"`
	Status            string          `json:"status"`
	RequestedAt       time.Time       `json:"requested_at"`
	InvoiceReceivedAt *time.Time      `json:"invoice_received_at,omitempty"`
}

// SaveBudget replaces the read model of b and its payment requests with
// the given state.
func (s *PostgresStore) SaveBudget(ctx context.Context, b budget.Budget) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO budgets (id, project_id, currency, initial_amount, remaining_amount, spent_amount)
		VALUES (@id, @project_id, @currency, @initial, @remaining, @spent)
		ON CONFLICT (id) DO UPDATE SET
			initial_amount = EXCLUDED.initial_amount,
			remaining_amount = EXCLUDED.remaining_amount,
			spent_amount = EXCLUDED.spent_amount
	`, pgx.NamedArgs{
		"id":         b.ID.String(),
		"project_id": b.ProjectID.String(),
		"currency":   string(b.Currency),
		"initial":    b.Allocated,
		"remaining":  b.Remaining(),
		"spent":      b.Spent,
	})

	for id, p := range b.Payments {
		batch.Queue(`
			INSERT INTO payment_requests (id, budget_id, project_id, requestor_id, recipient_id, amount, currency,
				paid_amount, hours_worked, status, requested_at, invoice_received_at)
			VALUES (@id, @budget_id, @project_id, @requestor_id, @recipient_id, @amount, @currency,
				@paid_amount, @hours_worked, @status, @requested_at, @invoice_received_at)
			ON CONFLICT (id) DO UPDATE SET
				paid_amount = EXCLUDED.paid_amount,
				status = EXCLUDED.status,
				invoice_received_at = EXCLUDED.invoice_received_at
		`, pgx.NamedArgs{
			"id":                  id.String(),
			"budget_id":           b.ID.String(),
			"project_id":          b.ProjectID.String(),
			"requestor_id":        p.RequestorID.String(),
			"recipient_id":        int64(p.RecipientID),
			"amount":              p.RequestedAmount,
			"currency":            string(p.Currency),
			"paid_amount":         p.PaidAmount,
			"hours_worked":        int(time.Duration(p.DurationWorked).Hours()),
			"status":              string(p.Status),
			"requested_at":        p.RequestedAt,
			"invoice_received_at": p.InvoiceReceivedAt,
		})
		batch.Queue(`INSERT INTO github_user_indexes (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, int64(p.RecipientID))
		for _, w := range p.WorkItems {
			batch.Queue(`
				INSERT INTO work_items (payment_id, repo_id, issue_number) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING
			`, id.String(), int64(w.RepoID), int64(w.IssueNumber))
			batch.Queue(`INSERT INTO github_repo_indexes (repo_id) VALUES ($1) ON CONFLICT DO NOTHING`, int64(w.RepoID))
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving budget %s: %w", b.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing budget %s: %w", b.ID, err)
	}
	return nil
}

// InsertPaymentReceipt stores the receipt carried by a Processed event.
func (s *PostgresStore) InsertPaymentReceipt(ctx context.Context, e payment.Processed) error {
	receipt, err := json.Marshal(e.Receipt)
	if err != nil {
		return fmt.Errorf("encoding receipt %s: %w", e.ReceiptID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO payments (id, request_id, amount, currency, receipt, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, e.ReceiptID.String(), e.ID.String(), e.Amount.Value, string(e.Amount.Currency), receipt, e.ProcessedAt)
	if err != nil {
		return fmt.Errorf("inserting receipt %s: %w", e.ReceiptID, err)
	}
	return nil
}

func (s *PostgresStore) GetBudgetByProject(ctx context.Context, projectID domain.ProjectID) (*BudgetView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, currency, initial_amount, remaining_amount, spent_amount
		FROM budgets WHERE project_id = $1
	`, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("querying budget: %w", err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[BudgetView])
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(fmt.Errorf("project %s has no budget", projectID))
		}
		return nil, fmt.Errorf("scanning budget: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) ListPaymentRequests(ctx context.Context, projectID domain.ProjectID) ([]PaymentRequestView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, budget_id, project_id, requestor_id, recipient_id, amount, currency,
			paid_amount, hours_worked, status, requested_at, invoice_received_at
		FROM payment_requests
		WHERE project_id = $1
		ORDER BY requested_at DESC
	`, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("querying payment requests: %w", err)
	}
	requests, err := pgx.CollectRows(rows, pgx.RowToStructByPos[PaymentRequestView])
	if err != nil {
		return nil, fmt.Errorf("scanning payment requests: %w", err)
	}
	return requests, nil
}

// TruncateBudgets empties the tables written by the budget projector.
func (s *PostgresStore) TruncateBudgets(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE budgets, payment_requests, payments, work_items`)
	if err != nil {
		return fmt.Errorf("truncating budget tables: %w", err)
	}
	return nil
}
