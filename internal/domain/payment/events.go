package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Priya8975/marketplace/internal/domain"
)

// AggregateName is the stream family of payment events.
const AggregateName = "Payment"

// Event is the sealed set of payment events.
type Event interface {
	domain.Event
	PaymentID() domain.PaymentID
	isPaymentEvent()
}

type Requested struct {
	ID             domain.PaymentID    `json:"id"`
	RequestorID    domain.UserID       `json:"requestor_id"`
	RecipientID    domain.GithubUserID `json:"recipient_id"`
	Amount         domain.Amount       `json:"amount"`
	DurationWorked Duration            `json:"duration_worked"`
	Reason         Reason              `json:"reason"`
	RequestedAt    time.Time           `json:"requested_at"`
}

type Processed struct {
	ID          domain.PaymentID        `json:"id"`
	ReceiptID   domain.PaymentReceiptID `json:"receipt_id"`
	Amount      domain.Amount           `json:"amount"`
	Receipt     Receipt                 `json:"receipt"`
	ProcessedAt time.Time               `json:"processed_at"`
}

type Cancelled struct {
	ID domain.PaymentID `json:"id"`
}

type InvoiceReceived struct {
	ID         domain.PaymentID `json:"id"`
	ReceivedAt time.Time        `json:"received_at"`
}

type InvoiceRejected struct {
	ID domain.PaymentID `json:"id"`
}

func (e Requested) PaymentID() domain.PaymentID       { return e.ID }
func (e Processed) PaymentID() domain.PaymentID       { return e.ID }
func (e Cancelled) PaymentID() domain.PaymentID       { return e.ID }
func (e InvoiceReceived) PaymentID() domain.PaymentID { return e.ID }
func (e InvoiceRejected) PaymentID() domain.PaymentID { return e.ID }

func (e Requested) AggregateID() string       { return e.ID.String() }
func (e Processed) AggregateID() string       { return e.ID.String() }
func (e Cancelled) AggregateID() string       { return e.ID.String() }
func (e InvoiceReceived) AggregateID() string { return e.ID.String() }
func (e InvoiceRejected) AggregateID() string { return e.ID.String() }

func (Requested) AggregateName() string       { return AggregateName }
func (Processed) AggregateName() string       { return AggregateName }
func (Cancelled) AggregateName() string       { return AggregateName }
func (InvoiceReceived) AggregateName() string { return AggregateName }
func (InvoiceRejected) AggregateName() string { return AggregateName }

func (Requested) EventType() string       { return "Requested" }
func (Processed) EventType() string       { return "Processed" }
func (Cancelled) EventType() string       { return "Cancelled" }
func (InvoiceReceived) EventType() string { return "InvoiceReceived" }
func (InvoiceRejected) EventType() string { return "InvoiceRejected" }

func (Requested) isPaymentEvent()       {}
func (Processed) isPaymentEvent()       {}
func (Cancelled) isPaymentEvent()       {}
func (InvoiceReceived) isPaymentEvent() {}
func (InvoiceRejected) isPaymentEvent() {}

// Decode rebuilds a payment event from its type name and JSON payload.
func Decode(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case "Requested":
		return decodeAs[Requested](eventType, payload)
	case "Processed":
		return decodeAs[Processed](eventType, payload)
	case "Cancelled":
		return decodeAs[Cancelled](eventType, payload)
	case "InvoiceReceived":
		return decodeAs[InvoiceReceived](eventType, payload)
	case "InvoiceRejected":
		return decodeAs[InvoiceRejected](eventType, payload)
	default:
		return nil, fmt.Errorf("unknown payment event type %q", eventType)
	}
}

func decodeAs[T Event](eventType string, payload []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decoding payment %s: %w", eventType, err)
	}
	return v, nil
}
