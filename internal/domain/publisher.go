package domain

import (
	"context"

	"github.com/google/uuid"
)

// DestinationKind tells a bus whether a destination is a queue or an exchange.
type DestinationKind int

const (
	QueueDestination DestinationKind = iota
	ExchangeDestination
)

// Destination names a queue, which holds messages for one consumer group,
// or an exchange, which copies messages to every bound queue.
type Destination struct {
	Kind DestinationKind
	Name string
}

func Queue(name string) Destination { return Destination{Kind: QueueDestination, Name: name} }

func Exchange(name string) Destination { return Destination{Kind: ExchangeDestination, Name: name} }

func (d Destination) String() string {
	if d.Kind == ExchangeDestination {
		return "exchange:" + d.Name
	}
	return "queue:" + d.Name
}

// Message is anything a bus can carry. Consumers use the deduplication id to
// skip redeliveries.
type Message interface {
	DeduplicationID() string
}

// UniqueMessage carries a payload with its own deduplication id.
type UniqueMessage[P any] struct {
	ID      uuid.UUID `json:"id"`
	Payload P         `json:"payload"`
}

func NewUniqueMessage[P any](payload P) UniqueMessage[P] {
	return UniqueMessage[P]{ID: uuid.New(), Payload: payload}
}

func (m UniqueMessage[P]) DeduplicationID() string { return m.ID.String() }

// CommandMessage carries one of the payloads produced by a single command.
// All messages of a command share CommandID.
type CommandMessage[P any] struct {
	ID        uuid.UUID `json:"id"`
	CommandID uuid.UUID `json:"command_id"`
	Payload   P         `json:"payload"`
}

func (m CommandMessage[P]) DeduplicationID() string { return m.ID.String() }

// NewCommandMessages wraps payloads under a fresh command id.
func NewCommandMessages[P any](payloads []P) []CommandMessage[P] {
	commandID := uuid.New()
	msgs := make([]CommandMessage[P], 0, len(payloads))
	for _, p := range payloads {
		msgs = append(msgs, CommandMessage[P]{ID: uuid.New(), CommandID: commandID, Payload: p})
	}
	return msgs
}

// Publisher sends messages to a destination. PublishMany keeps the relative
// order of msgs for consumers of the same queue.
type Publisher[M Message] interface {
	Publish(ctx context.Context, dest Destination, msg M) error
	PublishMany(ctx context.Context, dest Destination, msgs []M) error
}
