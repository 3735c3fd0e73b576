package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type DeadLetterHandler struct {
	store  DeliveryLog
	logger *slog.Logger
}

func NewDeadLetterHandler(s DeliveryLog, logger *slog.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{store: s, logger: logger}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resolved := q.Get("resolved") == "true"

	letters, err := h.store.ListDeadLetters(r.Context(), q.Get("webhook_id"), resolved, queryLimit(r))
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, letters)
}

func (h *DeadLetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	letter, err := h.store.GetDeadLetter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, letter)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// Resolve accepts an empty body, the resolver then defaults to "manual".
func (h *DeadLetterHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = "manual"
	}

	if err := h.store.ResolveDeadLetter(r.Context(), id, req.ResolvedBy); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
