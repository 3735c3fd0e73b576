package store

import (
	"context"
	"fmt"
)

// Metrics holds aggregated marketplace and webhook delivery statistics.
type Metrics struct {
	TotalEvents       int     `json:"total_events"`
	Projects          int     `json:"projects"`
	Budgets           int     `json:"budgets"`
	ActivePayments    int     `json:"active_payments"`
	CancelledPayments int     `json:"cancelled_payments"`
	Receipts          int     `json:"receipts"`
	TotalDeliveries   int     `json:"total_deliveries"`
	SuccessCount      int     `json:"success_count"`
	FailedCount       int     `json:"failed_count"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResponseMs     float64 `json:"avg_response_ms"`
	DeadLetterCount   int     `json:"dead_letter_count"`
	ActiveWebhooks    int     `json:"active_webhooks"`
}

// GetMetrics returns aggregated statistics from the database.
func (s *PostgresStore) GetMetrics(ctx context.Context) (*Metrics, error) {
	var m Metrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM projects),
			(SELECT COUNT(*) FROM budgets),
			(SELECT COUNT(*) FROM payment_requests WHERE status = 'Active'),
			(SELECT COUNT(*) FROM payment_requests WHERE status = 'Cancelled'),
			(SELECT COUNT(*) FROM payments)
	`).Scan(&m.TotalEvents, &m.Projects, &m.Budgets, &m.ActivePayments, &m.CancelledPayments, &m.Receipts)
	if err != nil {
		return nil, fmt.Errorf("querying marketplace metrics: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'success') AS success,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COALESCE(AVG(response_time_ms) FILTER (WHERE response_time_ms > 0), 0) AS avg_response_ms
		FROM delivery_attempts
	`).Scan(&m.TotalDeliveries, &m.SuccessCount, &m.FailedCount, &m.AvgResponseMs)
	if err != nil {
		return nil, fmt.Errorf("querying delivery metrics: %w", err)
	}
	if m.TotalDeliveries > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalDeliveries) * 100
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM dead_letter_queue WHERE resolved_at IS NULL),
			(SELECT COUNT(*) FROM webhooks WHERE is_active)
	`).Scan(&m.DeadLetterCount, &m.ActiveWebhooks)
	if err != nil {
		return nil, fmt.Errorf("querying webhook metrics: %w", err)
	}

	return &m, nil
}
