package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

// EventHandler exposes the raw event streams for auditing.
type EventHandler struct {
	log    EventLog
	logger *slog.Logger
}

func NewEventHandler(l EventLog, logger *slog.Logger) *EventHandler {
	return &EventHandler{log: l, logger: logger}
}

func knownAggregate(name string) bool {
	return name == project.AggregateName || name == budget.AggregateName
}

// List returns the events of every stream of an aggregate family.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	aggregate := chi.URLParam(r, "aggregate")
	if !knownAggregate(aggregate) {
		respondError(w, http.StatusNotFound, "unknown aggregate "+aggregate)
		return
	}

	records, err := h.log.ListEventRecords(r.Context(), aggregate, "", queryLimit(r))
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// Stream returns every event of one aggregate in version order.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	aggregate := chi.URLParam(r, "aggregate")
	if !knownAggregate(aggregate) {
		respondError(w, http.StatusNotFound, "unknown aggregate "+aggregate)
		return
	}
	id := chi.URLParam(r, "id")

	records, err := h.log.ListEventRecords(r.Context(), aggregate, id, 0)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if len(records) == 0 {
		respondError(w, http.StatusNotFound, aggregate+" "+id+" not found")
		return
	}
	respondJSON(w, http.StatusOK, records)
}
