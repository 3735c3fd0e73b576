package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/store"
)

// DeliveriesQueue holds one job per event and matching webhook.
const DeliveriesQueue = "webhook-deliveries"

// DeliveryJob is an event on its way to one webhook.
type DeliveryJob struct {
	ID          uuid.UUID       `json:"id"`
	MessageID   string          `json:"message_id"`
	WebhookID   string          `json:"webhook_id"`
	EndpointURL string          `json:"endpoint_url"`
	SecretKey   string          `json:"secret_key"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
}

func (j DeliveryJob) DeduplicationID() string { return j.ID.String() }

// NewDeliveryJob derives the job id from the message and webhook ids so a
// redelivered event does not reach the same webhook twice.
func NewDeliveryJob(messageID uuid.UUID, wh domain.Webhook, eventType string, payload json.RawMessage) DeliveryJob {
	return DeliveryJob{
		ID:          uuid.NewSHA1(messageID, []byte(wh.ID)),
		MessageID:   messageID.String(),
		WebhookID:   wh.ID,
		EndpointURL: wh.EndpointURL,
		SecretKey:   wh.SecretKey,
		EventType:   eventType,
		Payload:     payload,
	}
}

// AttemptRecorder persists delivery attempts and dead letters.
type AttemptRecorder interface {
	RecordDeliveryAttempt(ctx context.Context, rec store.DeliveryAttemptRecord) error
	InsertDeadLetter(ctx context.Context, rec store.DeadLetterRecord) error
}

// Breaker gates calls to one webhook.
type Breaker interface {
	AllowRequest(ctx context.Context, target string) (string, bool)
	RecordSuccess(ctx context.Context, target string)
	RecordFailure(ctx context.Context, target string)
}

// DeliveryError is a failed delivery, with the HTTP status when the
// endpoint answered.
type DeliveryError struct {
	StatusCode *int
	Msg        string
}

func (e *DeliveryError) Error() string { return e.Msg }

var errCircuitOpen = errors.New("circuit open")

// Deliverer handles the HTTP delivery of events to webhook endpoints.
type Deliverer struct {
	httpClient *http.Client
	recorder   AttemptRecorder
	breaker    Breaker
	logger     *slog.Logger
}

// NewDeliverer creates a deliverer with a configured HTTP client.
func NewDeliverer(recorder AttemptRecorder, breaker Breaker, timeout time.Duration, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		httpClient: &http.Client{Timeout: timeout},
		recorder:   recorder,
		breaker:    breaker,
		logger:     logger,
	}
}

// Deliver POSTs the event to the webhook endpoint, signed with
// HMAC-SHA256. Any non-2xx outcome is returned as a *DeliveryError.
func (d *Deliverer) Deliver(ctx context.Context, del Delivery[DeliveryJob]) error {
	job := del.Message
	start := time.Now()

	if _, allowed := d.breaker.AllowRequest(ctx, job.WebhookID); !allowed {
		d.logger.Debug("delivery skipped, circuit open", "webhook_id", job.WebhookID, "message_id", job.MessageID)
		return &DeliveryError{Msg: errCircuitOpen.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.EndpointURL, bytes.NewReader(job.Payload))
	if err != nil {
		return Discard(d.recordAttempt(ctx, del, start, nil, "", fmt.Sprintf("failed to create request: %v", err)))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", computeHMAC(job.Payload, job.SecretKey))
	req.Header.Set("X-Webhook-Event", job.EventType)
	req.Header.Set("X-Webhook-ID", job.MessageID)
	req.Header.Set("X-Webhook-Attempt", fmt.Sprintf("%d", del.Attempt))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.breaker.RecordFailure(ctx, job.WebhookID)
		return d.recordAttempt(ctx, del, start, nil, "", fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	// Limit to 1KB
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.breaker.RecordSuccess(ctx, job.WebhookID)
	} else {
		d.breaker.RecordFailure(ctx, job.WebhookID)
	}
	return d.recordAttempt(ctx, del, start, &resp.StatusCode, string(body), "")
}

// recordAttempt logs the delivery result to PostgreSQL and returns the
// error the consumer acts upon.
func (d *Deliverer) recordAttempt(ctx context.Context, del Delivery[DeliveryJob], start time.Time, statusCode *int, responseBody string, errMsg string) error {
	job := del.Message
	elapsed := time.Since(start).Milliseconds()

	status := domain.DeliverySuccess
	if errMsg != "" || (statusCode != nil && (*statusCode < 200 || *statusCode >= 300)) {
		status = domain.DeliveryFailed
	}

	err := d.recorder.RecordDeliveryAttempt(ctx, store.DeliveryAttemptRecord{
		MessageID:      job.MessageID,
		WebhookID:      job.WebhookID,
		EventType:      job.EventType,
		AttemptNumber:  del.Attempt,
		Status:         status,
		HTTPStatusCode: statusCode,
		ResponseBody:   responseBody,
		ResponseTimeMs: int(elapsed),
		ErrorMessage:   errMsg,
	})
	if err != nil {
		d.logger.Error("failed to record delivery attempt",
			"error", err,
			"message_id", job.MessageID,
			"webhook_id", job.WebhookID,
		)
	}

	if status == domain.DeliverySuccess {
		d.logger.Info("delivery successful",
			"message_id", job.MessageID,
			"webhook_id", job.WebhookID,
			"attempt", del.Attempt,
			"status_code", *statusCode,
			"response_time_ms", elapsed,
		)
		return nil
	}

	d.logger.Warn("delivery failed",
		"message_id", job.MessageID,
		"webhook_id", job.WebhookID,
		"attempt", del.Attempt,
		"error", errMsg,
		"status_code", statusCode,
		"response_time_ms", elapsed,
	)
	if errMsg == "" {
		errMsg = fmt.Sprintf("endpoint answered %d", *statusCode)
	}
	return &DeliveryError{StatusCode: statusCode, Msg: errMsg}
}

// DeadLetter stores a delivery that exhausted its attempts.
func (d *Deliverer) DeadLetter(ctx context.Context, del Delivery[DeliveryJob], cause error) {
	job := del.Message
	rec := store.DeadLetterRecord{
		MessageID:     job.MessageID,
		WebhookID:     job.WebhookID,
		Payload:       job.Payload,
		TotalAttempts: del.Attempt,
		LastError:     cause.Error(),
	}
	var de *DeliveryError
	if errors.As(cause, &de) {
		rec.LastHTTPStatus = de.StatusCode
	}
	if err := d.recorder.InsertDeadLetter(ctx, rec); err != nil {
		d.logger.Error("failed to insert dead letter",
			"error", err,
			"message_id", job.MessageID,
			"webhook_id", job.WebhookID,
		)
		return
	}
	d.logger.Warn("delivery dead-lettered",
		"message_id", job.MessageID,
		"webhook_id", job.WebhookID,
		"attempts", del.Attempt,
	)
}

// computeHMAC generates an HMAC-SHA256 signature for the payload.
func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the HMAC-SHA256 of payload
// under secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
