package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/marketplace/internal/domain"
)

// DeliveryAttemptRecord holds data for inserting a delivery attempt.
type DeliveryAttemptRecord struct {
	MessageID      string
	WebhookID      string
	EventType      string
	AttemptNumber  int
	Status         string
	HTTPStatusCode *int
	ResponseBody   string
	ResponseTimeMs int
	ErrorMessage   string
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordDeliveryAttempt inserts a delivery attempt into the database.
func (s *PostgresStore) RecordDeliveryAttempt(ctx context.Context, rec DeliveryAttemptRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_attempts (message_id, webhook_id, event_type, attempt_number, status, http_status_code, response_body, response_time_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.MessageID, rec.WebhookID, rec.EventType, rec.AttemptNumber, rec.Status,
		rec.HTTPStatusCode, nullable(rec.ResponseBody), rec.ResponseTimeMs, nullable(rec.ErrorMessage))
	if err != nil {
		return fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return nil
}

// DeadLetterRecord holds data for inserting a dead letter entry.
type DeadLetterRecord struct {
	MessageID      string
	WebhookID      string
	Payload        json.RawMessage
	TotalAttempts  int
	LastHTTPStatus *int
	LastError      string
}

// InsertDeadLetter adds a permanently failed delivery to the dead letter queue.
func (s *PostgresStore) InsertDeadLetter(ctx context.Context, rec DeadLetterRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letter_queue (message_id, webhook_id, payload, total_attempts, last_http_status, last_error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.MessageID, rec.WebhookID, []byte(rec.Payload), rec.TotalAttempts, rec.LastHTTPStatus, nullable(rec.LastError))
	if err != nil {
		return fmt.Errorf("inserting dead letter: %w", err)
	}
	return nil
}

// filter builds a WHERE clause from named conditions.
type filter struct {
	conditions []string
	args       pgx.NamedArgs
}

func newFilter() *filter { return &filter{args: pgx.NamedArgs{}} }

func (f *filter) eq(column, value string) {
	if value == "" {
		return
	}
	f.conditions = append(f.conditions, fmt.Sprintf("%s = @%s", column, column))
	f.args[column] = value
}

func (f *filter) raw(cond string) { f.conditions = append(f.conditions, cond) }

func (f *filter) query(base, order string, limit int) string {
	q := base
	if len(f.conditions) > 0 {
		q += " WHERE " + strings.Join(f.conditions, " AND ")
	}
	q += " ORDER BY " + order
	if limit > 0 {
		q += " LIMIT @limit"
		f.args["limit"] = limit
	}
	return q
}

const deadLetterColumns = `id, message_id, webhook_id, payload, total_attempts, last_error, last_http_status, created_at, resolved_at, resolved_by`

func scanDeadLetter(row pgx.CollectableRow) (domain.DeadLetter, error) {
	var dl domain.DeadLetter
	var payload []byte
	err := row.Scan(
		&dl.ID, &dl.MessageID, &dl.WebhookID, &payload, &dl.TotalAttempts,
		&dl.LastError, &dl.LastHTTPStatus, &dl.CreatedAt,
		&dl.ResolvedAt, &dl.ResolvedBy,
	)
	dl.Payload = payload
	return dl, err
}

// ListDeadLetters returns dead letter entries with optional filtering.
func (s *PostgresStore) ListDeadLetters(ctx context.Context, webhookID string, resolved bool, limit int) ([]domain.DeadLetter, error) {
	f := newFilter()
	f.eq("webhook_id", webhookID)
	if resolved {
		f.raw("resolved_at IS NOT NULL")
	} else {
		f.raw("resolved_at IS NULL")
	}

	rows, err := s.pool.Query(ctx, f.query("SELECT "+deadLetterColumns+" FROM dead_letter_queue", "created_at DESC", limit), f.args)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	letters, err := pgx.CollectRows(rows, scanDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("scanning dead letters: %w", err)
	}
	return letters, nil
}

// GetDeadLetter returns a single dead letter by ID.
func (s *PostgresStore) GetDeadLetter(ctx context.Context, id string) (*domain.DeadLetter, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+deadLetterColumns+" FROM dead_letter_queue WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("querying dead letter: %w", err)
	}
	dl, err := pgx.CollectExactlyOneRow(rows, scanDeadLetter)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(fmt.Errorf("dead letter %s not found", id))
		}
		return nil, fmt.Errorf("scanning dead letter: %w", err)
	}
	return &dl, nil
}

// ResolveDeadLetter marks a dead letter as resolved.
func (s *PostgresStore) ResolveDeadLetter(ctx context.Context, id string, resolvedBy string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE dead_letter_queue SET resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND resolved_at IS NULL
	`, id, resolvedBy)
	if err != nil {
		return fmt.Errorf("resolving dead letter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NotFound(fmt.Errorf("dead letter %s not found or already resolved", id))
	}
	return nil
}

const attemptColumns = `id, message_id, webhook_id, event_type, attempt_number, status, http_status_code, response_body, response_time_ms, error_message, created_at`

func scanAttempt(row pgx.CollectableRow) (domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	err := row.Scan(
		&a.ID, &a.MessageID, &a.WebhookID, &a.EventType, &a.AttemptNumber,
		&a.Status, &a.HTTPStatusCode, &a.ResponseBody,
		&a.ResponseTimeMs, &a.ErrorMessage, &a.CreatedAt,
	)
	return a, err
}

// ListDeliveryAttempts returns delivery attempts with optional filtering.
func (s *PostgresStore) ListDeliveryAttempts(ctx context.Context, messageID, webhookID, status string, limit int) ([]domain.DeliveryAttempt, error) {
	f := newFilter()
	f.eq("message_id", messageID)
	f.eq("webhook_id", webhookID)
	f.eq("status", status)

	rows, err := s.pool.Query(ctx, f.query("SELECT "+attemptColumns+" FROM delivery_attempts", "created_at DESC", limit), f.args)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	attempts, err := pgx.CollectRows(rows, scanAttempt)
	if err != nil {
		return nil, fmt.Errorf("scanning delivery attempts: %w", err)
	}
	return attempts, nil
}

// GetDeliveryAttempt returns a single delivery attempt by ID.
func (s *PostgresStore) GetDeliveryAttempt(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+attemptColumns+" FROM delivery_attempts WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempt: %w", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAttempt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(fmt.Errorf("delivery attempt %s not found", id))
		}
		return nil, fmt.Errorf("scanning delivery attempt: %w", err)
	}
	return &a, nil
}
