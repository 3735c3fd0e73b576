package domain

import "context"

// Event is a domain fact emitted by an aggregate command. Each aggregate
// package defines a sealed Event interface embedding this one.
type Event interface {
	// AggregateName is the stream family, e.g. "Project".
	AggregateName() string
	// AggregateID identifies the stream the event belongs to.
	AggregateID() string
	// EventType names the variant, e.g. "LeaderAssigned".
	EventType() string
}

// StorableEvent pairs an event with the id used to drop duplicate appends.
type StorableEvent[E Event] struct {
	Event           E
	DeduplicationID string
}

// EventStore persists and lists the events of one aggregate family.
//
// Append is transactional: all events are stored or none are. Events whose
// deduplication id was stored before are skipped without error. ListByID
// returns a stream in insertion order and List scans every stream of the
// family in global insertion order.
type EventStore[E Event] interface {
	Append(ctx context.Context, aggregateID string, events []StorableEvent[E]) error
	ListByID(ctx context.Context, aggregateID string) ([]E, error)
	List(ctx context.Context) ([]E, error)
}

// QualifiedType returns "<aggregate>.<type>", the name used by routing and
// webhook filters. Events wrapping another event name themselves through a
// QualifiedType method.
func QualifiedType(e Event) string {
	if q, ok := e.(interface{ QualifiedType() string }); ok {
		return q.QualifiedType()
	}
	return e.AggregateName() + "." + e.EventType()
}
