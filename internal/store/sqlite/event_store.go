// Package sqlite is an embedded event store for single-node deployments and
// tests, on the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Priya8975/marketplace/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	idx            INTEGER PRIMARY KEY AUTOINCREMENT,
	aggregate_name TEXT    NOT NULL,
	aggregate_id   TEXT    NOT NULL,
	version        INTEGER NOT NULL,
	event_type     TEXT    NOT NULL,
	payload        TEXT    NOT NULL,
	inserted_at    TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	UNIQUE (aggregate_name, aggregate_id, version)
);
CREATE INDEX IF NOT EXISTS idx_events_aggregate ON events (aggregate_name, aggregate_id, idx);
CREATE TABLE IF NOT EXISTS event_deduplications (
	deduplication_id TEXT    PRIMARY KEY,
	event_index      INTEGER NOT NULL REFERENCES events (idx)
);
`

// Open opens (creating if needed) the database at path with foreign keys on.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// one writer at a time keeps appends serialised.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

type EventStore[E domain.Event] struct {
	db        *sql.DB
	aggregate string
	decode    func(eventType string, payload []byte) (E, error)
}

func NewEventStore[E domain.Event](db *sql.DB, aggregate string, decode func(string, []byte) (E, error)) *EventStore[E] {
	return &EventStore[E]{db: db, aggregate: aggregate, decode: decode}
}

func (s *EventStore[E]) Append(ctx context.Context, aggregateID string, events []domain.StorableEvent[E]) error {
	if len(events) == 0 {
		return nil
	}

	type row struct {
		eventType, payload, dedup string
	}
	rows := make([]row, 0, len(events))
	for _, se := range events {
		if se.Event.AggregateID() != aggregateID {
			return domain.NewStoreError(domain.StoreInvalidEvent,
				fmt.Errorf("event of %s appended to stream %s", se.Event.AggregateID(), aggregateID))
		}
		if se.DeduplicationID == "" {
			return domain.NewStoreError(domain.StoreInvalidEvent, errors.New("missing deduplication id"))
		}
		payload, err := json.Marshal(se.Event)
		if err != nil {
			return domain.NewStoreError(domain.StoreInvalidEvent, fmt.Errorf("encoding %s: %w", se.Event.EventType(), err))
		}
		rows = append(rows, row{se.Event.EventType(), string(payload), se.DeduplicationID})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError(domain.StoreConnection, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_name = ? AND aggregate_id = ?`,
		s.aggregate, aggregateID,
	).Scan(&version)
	if err != nil {
		return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("reading stream version: %w", err))
	}

	for _, r := range rows {
		var seen int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM event_deduplications WHERE deduplication_id = ?`, r.dedup,
		).Scan(&seen)
		if err != nil {
			return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("checking deduplication id: %w", err))
		}
		if seen > 0 {
			continue
		}

		version++
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (aggregate_name, aggregate_id, version, event_type, payload) VALUES (?, ?, ?, ?, ?)`,
			s.aggregate, aggregateID, version, r.eventType, r.payload,
		)
		if err != nil {
			return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("inserting event: %w", err))
		}
		index, err := res.LastInsertId()
		if err != nil {
			return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("reading event index: %w", err))
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO event_deduplications (deduplication_id, event_index) VALUES (?, ?)`, r.dedup, index,
		)
		if err != nil {
			return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("inserting deduplication id: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

func (s *EventStore[E]) ListByID(ctx context.Context, aggregateID string) ([]E, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, payload FROM events WHERE aggregate_name = ? AND aggregate_id = ? ORDER BY idx`,
		s.aggregate, aggregateID,
	)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreList, fmt.Errorf("querying events: %w", err))
	}
	return s.scan(rows)
}

func (s *EventStore[E]) List(ctx context.Context) ([]E, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, payload FROM events WHERE aggregate_name = ? ORDER BY idx`, s.aggregate,
	)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreList, fmt.Errorf("querying events: %w", err))
	}
	return s.scan(rows)
}

func (s *EventStore[E]) scan(rows *sql.Rows) ([]E, error) {
	defer rows.Close()

	var events []E
	for rows.Next() {
		var eventType, payload string
		if err := rows.Scan(&eventType, &payload); err != nil {
			return nil, domain.NewStoreError(domain.StoreList, fmt.Errorf("scanning event: %w", err))
		}
		e, err := s.decode(eventType, []byte(payload))
		if err != nil {
			return nil, domain.NewStoreError(domain.StoreInvalidEvent, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError(domain.StoreList, fmt.Errorf("iterating events: %w", err))
	}
	return events, nil
}
