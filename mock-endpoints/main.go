package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Priya8975/marketplace/internal/worker"
)

const maxRecent = 50

// receiver records what the webhook endpoints were sent.
type receiver struct {
	secret   string
	logger   *slog.Logger
	requests atomic.Int64
	rejected atomic.Int64

	mu     sync.Mutex
	recent []received
}

type received struct {
	Event     string          `json:"event"`
	MessageID string          `json:"message_id"`
	Attempt   string          `json:"attempt"`
	Body      json.RawMessage `json:"body"`
	At        time.Time       `json:"at"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	rcv := &receiver{secret: os.Getenv("WEBHOOK_SECRET"), logger: logger}

	logger.Info("mock endpoint server starting", "port", port, "verifying_signatures", rcv.secret != "")
	if err := http.ListenAndServe(":"+port, rcv.routes()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (rc *receiver) routes() http.Handler {
	mux := http.NewServeMux()

	// always 200
	mux.HandleFunc("POST /webhook/success", rc.handle(func(w http.ResponseWriter) {
		respond(w, http.StatusOK, map[string]string{"status": "received"})
	}))

	// 200 after 3 seconds
	mux.HandleFunc("POST /webhook/slow", rc.handle(func(w http.ResponseWriter) {
		time.Sleep(3 * time.Second)
		respond(w, http.StatusOK, map[string]string{"status": "received (slow)"})
	}))

	// always 500
	mux.HandleFunc("POST /webhook/fail", rc.handle(func(w http.ResponseWriter) {
		respond(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}))

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]int64{
			"total_requests":    rc.requests.Load(),
			"rejected_requests": rc.rejected.Load(),
		})
	})

	mux.HandleFunc("GET /received", func(w http.ResponseWriter, r *http.Request) {
		rc.mu.Lock()
		recent := append([]received{}, rc.recent...)
		rc.mu.Unlock()
		respond(w, http.StatusOK, recent)
	})

	return mux
}

// handle verifies the signature when a secret is configured, records the
// request, then lets reply answer.
func (rc *receiver) handle(reply func(w http.ResponseWriter)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := rc.requests.Add(1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}

		log := rc.logger.With(
			"request", count,
			"path", r.URL.Path,
			"event", r.Header.Get("X-Webhook-Event"),
			"message_id", r.Header.Get("X-Webhook-ID"),
			"attempt", r.Header.Get("X-Webhook-Attempt"),
		)

		if rc.secret != "" && !worker.VerifySignature(body, rc.secret, r.Header.Get("X-Webhook-Signature")) {
			rc.rejected.Add(1)
			log.Warn("signature mismatch")
			respond(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}

		if !json.Valid(body) {
			body = nil
		}
		rc.remember(received{
			Event:     r.Header.Get("X-Webhook-Event"),
			MessageID: r.Header.Get("X-Webhook-ID"),
			Attempt:   r.Header.Get("X-Webhook-Attempt"),
			Body:      body,
			At:        time.Now(),
		})
		log.Info("webhook received")
		reply(w)
	}
}

func (rc *receiver) remember(r received) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.recent = append(rc.recent, r)
	if len(rc.recent) > maxRecent {
		rc.recent = rc.recent[len(rc.recent)-maxRecent:]
	}
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
