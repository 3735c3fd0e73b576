package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/marketplace/internal/domain"
)

func webhookNotFound(id string) error {
	return domain.NotFound(fmt.Errorf("webhook %s not found", id))
}

func (s *PostgresStore) CreateWebhook(ctx context.Context, req domain.CreateWebhookRequest) (*domain.Webhook, error) {
	secretKey, err := generateSecretKey()
	if err != nil {
		return nil, fmt.Errorf("generating secret key: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var wh domain.Webhook
	err = tx.QueryRow(ctx, `
		INSERT INTO webhooks (name, endpoint_url, secret_key)
		VALUES ($1, $2, $3)
		RETURNING id, name, endpoint_url, secret_key, is_active, created_at, updated_at
	`, req.Name, req.EndpointURL, secretKey).Scan(
		&wh.ID, &wh.Name, &wh.EndpointURL, &wh.SecretKey,
		&wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting webhook: %w", err)
	}

	batch := &pgx.Batch{}
	for _, eventType := range req.EventTypes {
		batch.Queue(`
			INSERT INTO webhook_subscriptions (webhook_id, event_type)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, wh.ID, eventType)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("inserting subscriptions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	wh.EventTypes = req.EventTypes
	return &wh, nil
}

const webhookColumns = `
	w.id, w.name, w.endpoint_url, w.secret_key, w.is_active, w.created_at, w.updated_at,
	COALESCE(ARRAY_AGG(s.event_type ORDER BY s.event_type) FILTER (WHERE s.event_type IS NOT NULL), '{}')
`

func scanWebhooks(rows pgx.Rows) ([]domain.Webhook, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Webhook, error) {
		var wh domain.Webhook
		err := row.Scan(
			&wh.ID, &wh.Name, &wh.EndpointURL, &wh.SecretKey,
			&wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt, &wh.EventTypes,
		)
		return wh, err
	})
}

func (s *PostgresStore) GetWebhook(ctx context.Context, id string) (*domain.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks w
		LEFT JOIN webhook_subscriptions s ON s.webhook_id = w.id
		WHERE w.id = $1
		GROUP BY w.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying webhook: %w", err)
	}
	hooks, err := scanWebhooks(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning webhook: %w", err)
	}
	if len(hooks) == 0 {
		return nil, webhookNotFound(id)
	}
	return &hooks[0], nil
}

// ListWebhooks returns every webhook without its secret.
func (s *PostgresStore) ListWebhooks(ctx context.Context) ([]domain.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks w
		LEFT JOIN webhook_subscriptions s ON s.webhook_id = w.id
		GROUP BY w.id
		ORDER BY w.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying webhooks: %w", err)
	}
	hooks, err := scanWebhooks(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning webhooks: %w", err)
	}
	for i := range hooks {
		hooks[i].SecretKey = ""
	}
	return hooks, nil
}

// WebhooksFor returns the active webhooks with a pattern selecting
// qualifiedType, e.g. "Budget.Allocated", "Budget.*" or "*".
func (s *PostgresStore) WebhooksFor(ctx context.Context, qualifiedType string) ([]domain.Webhook, error) {
	aggregate, _, _ := strings.Cut(qualifiedType, ".")
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks w
		JOIN webhook_subscriptions s ON s.webhook_id = w.id
		WHERE w.is_active
		  AND s.event_type IN (@exact, @wildcard, '*')
		GROUP BY w.id
	`, pgx.NamedArgs{"exact": qualifiedType, "wildcard": aggregate + ".*"})
	if err != nil {
		return nil, fmt.Errorf("querying webhooks for %s: %w", qualifiedType, err)
	}
	hooks, err := scanWebhooks(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning webhooks: %w", err)
	}
	return hooks, nil
}

func (s *PostgresStore) UpdateWebhook(ctx context.Context, id string, req domain.UpdateWebhookRequest) (*domain.Webhook, error) {
	setClauses := []string{}
	args := pgx.NamedArgs{"id": id}

	if req.Name != nil {
		setClauses = append(setClauses, "name = @name")
		args["name"] = *req.Name
	}
	if req.EndpointURL != nil {
		setClauses = append(setClauses, "endpoint_url = @endpoint_url")
		args["endpoint_url"] = *req.EndpointURL
	}
	if req.IsActive != nil {
		setClauses = append(setClauses, "is_active = @is_active")
		args["is_active"] = *req.IsActive
	}

	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = NOW()")
		tag, err := s.pool.Exec(ctx,
			fmt.Sprintf("UPDATE webhooks SET %s WHERE id = @id", strings.Join(setClauses, ", ")),
			args,
		)
		if err != nil {
			return nil, fmt.Errorf("updating webhook: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, webhookNotFound(id)
		}
	}

	return s.GetWebhook(ctx, id)
}

func (s *PostgresStore) DeleteWebhook(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhookNotFound(id)
	}
	return nil
}

func generateSecretKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "mkt_whsec_" + hex.EncodeToString(bytes), nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
