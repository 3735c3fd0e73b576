package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type DeliveryHandler struct {
	store  DeliveryLog
	logger *slog.Logger
}

func NewDeliveryHandler(s DeliveryLog, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{store: s, logger: logger}
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	attempts, err := h.store.ListDeliveryAttempts(r.Context(), q.Get("message_id"), q.Get("webhook_id"), q.Get("status"), queryLimit(r))
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.store.GetDeliveryAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}
