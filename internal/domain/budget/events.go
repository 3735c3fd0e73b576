package budget

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/payment"
)

// AggregateName is the stream family of budget events.
const AggregateName = "Budget"

// Event is the sealed set of budget events.
type Event interface {
	domain.Event
	BudgetID() domain.BudgetID
	isBudgetEvent()
}

type Created struct {
	ID        domain.BudgetID  `json:"id"`
	ProjectID domain.ProjectID `json:"project_id"`
	Currency  domain.Currency  `json:"currency"`
}

// Allocated changes the allocation by a signed amount.
type Allocated struct {
	ID     domain.BudgetID `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentEvent nests an event of one of the budget's payments.
type PaymentEvent struct {
	ID    domain.BudgetID
	Event payment.Event
}

func (e Created) BudgetID() domain.BudgetID      { return e.ID }
func (e Allocated) BudgetID() domain.BudgetID    { return e.ID }
func (e PaymentEvent) BudgetID() domain.BudgetID { return e.ID }

func (e Created) AggregateID() string      { return e.ID.String() }
func (e Allocated) AggregateID() string    { return e.ID.String() }
func (e PaymentEvent) AggregateID() string { return e.ID.String() }

func (Created) AggregateName() string      { return AggregateName }
func (Allocated) AggregateName() string    { return AggregateName }
func (PaymentEvent) AggregateName() string { return AggregateName }

func (Created) EventType() string      { return "Created" }
func (Allocated) EventType() string    { return "Allocated" }
func (PaymentEvent) EventType() string { return "Payment" }

// QualifiedType names the nested event, e.g. "Payment.Requested".
func (e PaymentEvent) QualifiedType() string {
	if e.Event == nil {
		return AggregateName + "." + e.EventType()
	}
	return domain.QualifiedType(e.Event)
}

func (Created) isBudgetEvent()      {}
func (Allocated) isBudgetEvent()    {}
func (PaymentEvent) isBudgetEvent() {}

type paymentEventJSON struct {
	ID    domain.BudgetID `json:"id"`
	Event struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"event"`
}

func (e PaymentEvent) MarshalJSON() ([]byte, error) {
	if e.Event == nil {
		return nil, fmt.Errorf("budget %s: payment event is nil", e.ID)
	}
	payload, err := json.Marshal(e.Event)
	if err != nil {
		return nil, err
	}
	var v paymentEventJSON
	v.ID = e.ID
	v.Event.Type = e.Event.EventType()
	v.Event.Payload = payload
	return json.Marshal(v)
}

func (e *PaymentEvent) UnmarshalJSON(b []byte) error {
	var v paymentEventJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	inner, err := payment.Decode(v.Event.Type, v.Event.Payload)
	if err != nil {
		return err
	}
	e.ID = v.ID
	e.Event = inner
	return nil
}

// Decode rebuilds a budget event from its type name and JSON payload.
func Decode(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case "Created":
		return decodeAs[Created](eventType, payload)
	case "Allocated":
		return decodeAs[Allocated](eventType, payload)
	case "Payment":
		var v PaymentEvent
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decoding budget %s: %w", eventType, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown budget event type %q", eventType)
	}
}

func decodeAs[T Event](eventType string, payload []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decoding budget %s: %w", eventType, err)
	}
	return v, nil
}

// PaymentEvents returns the payment events nested in events, in order.
func PaymentEvents(events []Event) []payment.Event {
	var out []payment.Event
	for _, e := range events {
		if pe, ok := e.(PaymentEvent); ok {
			out = append(out, pe.Event)
		}
	}
	return out
}
