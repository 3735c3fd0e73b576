// Package codec converts domain events to and from the JSON envelope
// carried on the bus.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/payment"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

// Envelope is the wire form of one event.
type Envelope struct {
	Aggregate   string          `json:"aggregate"`
	AggregateID string          `json:"aggregate_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}

// QualifiedType is "<aggregate>.<type>".
func (e Envelope) QualifiedType() string { return e.Aggregate + "." + e.Type }

// Message is what the bus carries for events.
type Message = domain.UniqueMessage[Envelope]

// CommandMessage groups the events of one command on their way to the
// event store.
type CommandMessage = domain.CommandMessage[Envelope]

func Encode(e domain.Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s: %w", domain.QualifiedType(e), err)
	}
	return Envelope{
		Aggregate:   e.AggregateName(),
		AggregateID: e.AggregateID(),
		Type:        e.EventType(),
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}, nil
}

func EncodeAll[E domain.Event](events []E) ([]Envelope, error) {
	out := make([]Envelope, 0, len(events))
	for _, e := range events {
		env, err := Encode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// Decode rebuilds the event held by env.
func Decode(env Envelope) (domain.Event, error) {
	var (
		e   domain.Event
		err error
	)
	switch env.Aggregate {
	case project.AggregateName:
		e, err = project.Decode(env.Type, env.Payload)
	case budget.AggregateName:
		e, err = budget.Decode(env.Type, env.Payload)
	case payment.AggregateName:
		e, err = payment.Decode(env.Type, env.Payload)
	default:
		return nil, domain.NewStoreError(domain.StoreInvalidEvent, fmt.Errorf("unknown aggregate %q", env.Aggregate))
	}
	if err != nil {
		return nil, domain.NewStoreError(domain.StoreInvalidEvent, err)
	}
	if e.AggregateID() != env.AggregateID {
		return nil, domain.NewStoreError(domain.StoreInvalidEvent,
			fmt.Errorf("envelope for %s holds an event of %s", env.AggregateID, e.AggregateID()))
	}
	return e, nil
}

// NewCommandMessages encodes the events of one command.
func NewCommandMessages[E domain.Event](events []E) ([]CommandMessage, error) {
	envs, err := EncodeAll(events)
	if err != nil {
		return nil, err
	}
	return domain.NewCommandMessages(envs), nil
}

// Republish turns a recorded command message into the event message fanned
// out to listeners, keeping its id so redeliveries stay deduplicated.
func Republish(m CommandMessage) Message {
	return Message{ID: m.ID, Payload: m.Payload}
}
