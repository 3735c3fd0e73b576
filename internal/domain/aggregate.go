package domain

// EventSourcable is implemented by aggregates rebuilt from their events.
// ApplyEvent must be pure and total: it returns the next state and never
// mutates the receiver.
type EventSourcable[A any, E Event] interface {
	ApplyEvent(E) A
}

// FromEvents folds events over the zero value of A.
func FromEvents[A EventSourcable[A, E], E Event](events []E) A {
	var zero A
	return ApplyEvents(zero, events)
}

// ApplyEvents folds events over an existing state.
func ApplyEvents[A EventSourcable[A, E], E Event](state A, events []E) A {
	for _, e := range events {
		state = state.ApplyEvent(e)
	}
	return state
}
