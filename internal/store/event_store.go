package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Priya8975/marketplace/internal/domain"
)

// appendAttempts bounds retries of an append that lost a race on a
// deduplication id.
const appendAttempts = 3

// DecodeFunc rebuilds an event of one aggregate family.
type DecodeFunc[E domain.Event] func(eventType string, payload []byte) (E, error)

// EventStore is the Postgres event store of one aggregate family.
type EventStore[E domain.Event] struct {
	pg        *PostgresStore
	aggregate string
	decode    DecodeFunc[E]
}

func NewEventStore[E domain.Event](pg *PostgresStore, aggregate string, decode DecodeFunc[E]) *EventStore[E] {
	return &EventStore[E]{pg: pg, aggregate: aggregate, decode: decode}
}

type pendingEvent struct {
	eventType       string
	payload         []byte
	deduplicationID string
}

func encodeAll[E domain.Event](aggregateID string, events []domain.StorableEvent[E]) ([]pendingEvent, error) {
	out := make([]pendingEvent, 0, len(events))
	for _, se := range events {
		if se.Event.AggregateID() != aggregateID {
			return nil, domain.NewStoreError(domain.StoreInvalidEvent,
				fmt.Errorf("event of %s appended to stream %s", se.Event.AggregateID(), aggregateID))
		}
		if se.DeduplicationID == "" {
			return nil, domain.NewStoreError(domain.StoreInvalidEvent, errors.New("missing deduplication id"))
		}
		payload, err := json.Marshal(se.Event)
		if err != nil {
			return nil, domain.NewStoreError(domain.StoreInvalidEvent, fmt.Errorf("encoding %s: %w", se.Event.EventType(), err))
		}
		out = append(out, pendingEvent{
			eventType:       se.Event.EventType(),
			payload:         payload,
			deduplicationID: se.DeduplicationID,
		})
	}
	return out, nil
}

// Append stores events in one transaction. Events already stored under
// their deduplication id are skipped.
func (s *EventStore[E]) Append(ctx context.Context, aggregateID string, events []domain.StorableEvent[E]) error {
	if len(events) == 0 {
		return nil
	}
	pending, err := encodeAll(aggregateID, events)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = s.appendOnce(ctx, aggregateID, pending)
		if err == nil || !isUniqueViolation(err) || attempt == appendAttempts {
			return err
		}
	}
}

func (s *EventStore[E]) appendOnce(ctx context.Context, aggregateID string, pending []pendingEvent) error {
	tx, err := s.pg.pool.Begin(ctx)
	if err != nil {
		return domain.NewStoreError(domain.StoreConnection, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	// serialises writers of the same stream until commit.
	_, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", s.aggregate+"/"+aggregateID)
	if err != nil {
		return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("locking stream: %w", err))
	}

	var version int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM events
		WHERE aggregate_name = $1 AND aggregate_id = $2
	`, s.aggregate, aggregateID).Scan(&version)
	if err != nil {
		return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("reading stream version: %w", err))
	}

	for _, p := range pending {
		var seen bool
		err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM event_deduplications WHERE deduplication_id = $1)",
			p.deduplicationID,
		).Scan(&seen)
		if err != nil {
			return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("checking deduplication id: %w", err))
		}
		if seen {
			continue
		}

		version++
		var index int64
		err = tx.QueryRow(ctx, `
			INSERT INTO events (aggregate_name, aggregate_id, version, event_type, payload)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING index
		`, s.aggregate, aggregateID, version, p.eventType, p.payload).Scan(&index)
		if err != nil {
			return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("inserting event: %w", err))
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO event_deduplications (deduplication_id, event_index)
			VALUES ($1, $2)
		`, p.deduplicationID, index)
		if err != nil {
			return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("inserting deduplication id: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NewStoreError(domain.StoreAppend, fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *EventStore[E]) ListByID(ctx context.Context, aggregateID string) ([]E, error) {
	rows, err := s.pg.pool.Query(ctx, `
		SELECT event_type, payload FROM events
		WHERE aggregate_name = $1 AND aggregate_id = $2
		ORDER BY index
	`, s.aggregate, aggregateID)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreList, fmt.Errorf("querying events: %w", err))
	}
	return s.scan(rows)
}

func (s *EventStore[E]) List(ctx context.Context) ([]E, error) {
	rows, err := s.pg.pool.Query(ctx, `
		SELECT event_type, payload FROM events
		WHERE aggregate_name = $1
		ORDER BY index
	`, s.aggregate)
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreList, fmt.Errorf("querying events: %w", err))
	}
	return s.scan(rows)
}

func (s *EventStore[E]) scan(rows pgx.Rows) ([]E, error) {
	defer rows.Close()

	var events []E
	for rows.Next() {
		var (
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&eventType, &payload); err != nil {
			return nil, domain.NewStoreError(domain.StoreList, fmt.Errorf("scanning event: %w", err))
		}
		e, err := s.decode(eventType, payload)
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

// EventRecord is a stored event as kept in the events table.
type EventRecord struct {
	Index         int64           `json:"index"`
	AggregateName string          `json:"aggregate_name"`
	AggregateID   string          `json:"aggregate_id"`
	Version       int64           `json:"version"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	InsertedAt    time.Time       `json:"inserted_at"`
}

// ListEventRecords returns the raw stream of one aggregate, or every stream
// of the family when aggregateID is empty, newest last.
func (s *PostgresStore) ListEventRecords(ctx context.Context, aggregateName, aggregateID string, limit int) ([]EventRecord, error) {
	args := pgx.NamedArgs{"name": aggregateName, "limit": limit}
	query := `
		SELECT index, aggregate_name, aggregate_id, version, event_type, payload, inserted_at
		FROM events WHERE aggregate_name = @name`
	if aggregateID != "" {
		query += " AND aggregate_id = @id"
		args["id"] = aggregateID
	}
	query += " ORDER BY index"
	if limit > 0 {
		query += " LIMIT @limit"
	}

	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("querying event records: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByPos[EventRecord])
	if err != nil {
		return nil, fmt.Errorf("scanning event records: %w", err)
	}
	if records == nil {
		records = []EventRecord{}
	}
	return records, nil
}
