package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/engine"
)

type WebhookHandler struct {
	store          WebhookStore
	circuitBreaker CircuitStates
	logger         *slog.Logger
}

func NewWebhookHandler(s WebhookStore, cb CircuitStates, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{store: s, circuitBreaker: cb, logger: logger}
}

type createWebhookResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SecretKey string `json:"secret_key"`
}

// Create returns the signing secret. It is never shown again.
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	wh, err := h.store.CreateWebhook(r.Context(), req)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, createWebhookResponse{
		ID:        wh.ID,
		Name:      wh.Name,
		SecretKey: wh.SecretKey,
	})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.store.ListWebhooks(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, hooks)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	wh, err := h.store.GetWebhook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	wh.SecretKey = ""
	respondJSON(w, http.StatusOK, wh)
}

func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wh, err := h.store.GetWebhook(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, webhookHealth{
		WebhookID:      wh.ID,
		Name:           wh.Name,
		EndpointURL:    wh.EndpointURL,
		IsActive:       wh.IsActive,
		CircuitBreaker: h.circuitBreaker.GetState(r.Context(), id),
	})
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	wh, err := h.store.UpdateWebhook(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	wh.SecretKey = ""
	respondJSON(w, http.StatusOK, wh)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteWebhook(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type webhookHealth struct {
	WebhookID      string                     `json:"webhook_id"`
	Name           string                     `json:"name"`
	EndpointURL    string                     `json:"endpoint_url"`
	IsActive       bool                       `json:"is_active"`
	CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
}
