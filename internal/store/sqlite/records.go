package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Priya8975/marketplace/internal/store"
)

// Records reads raw event rows for auditing.
type Records struct {
	db *sql.DB
}

func NewRecords(db *sql.DB) *Records {
	return &Records{db: db}
}

// ListEventRecords mirrors the Postgres query: one stream, or the whole
// family when aggregateID is empty, oldest first.
func (r *Records) ListEventRecords(ctx context.Context, aggregateName, aggregateID string, limit int) ([]store.EventRecord, error) {
	query := `SELECT idx, aggregate_name, aggregate_id, version, event_type, payload, inserted_at
		FROM events WHERE aggregate_name = ?`
	args := []any{aggregateName}
	if aggregateID != "" {
		query += " AND aggregate_id = ?"
		args = append(args, aggregateID)
	}
	query += " ORDER BY idx"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying event records: %w", err)
	}
	defer rows.Close()

	records := []store.EventRecord{}
	for rows.Next() {
		var (
			rec        store.EventRecord
			payload    string
			insertedAt string
		)
		err := rows.Scan(&rec.Index, &rec.AggregateName, &rec.AggregateID, &rec.Version, &rec.EventType, &payload, &insertedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning event record: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		rec.InsertedAt, err = time.Parse(time.RFC3339Nano, insertedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing inserted_at %q: %w", insertedAt, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event records: %w", err)
	}
	return records, nil
}
