package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/marketplace/internal/store"
	ws "github.com/Priya8975/marketplace/internal/websocket"
)

type DashboardHandler struct {
	store      MetricsSource
	queues     QueueDepths
	queueNames []string
	webhooks   WebhookStore
	cb         CircuitStates
	hub        *ws.Hub
	logger     *slog.Logger
}

func NewDashboardHandler(
	s MetricsSource,
	queues QueueDepths,
	queueNames []string,
	webhooks WebhookStore,
	cb CircuitStates,
	hub *ws.Hub,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		store:      s,
		queues:     queues,
		queueNames: queueNames,
		webhooks:   webhooks,
		cb:         cb,
		hub:        hub,
		logger:     logger,
	}
}

type metricsResponse struct {
	store.Metrics
	QueueDepths      map[string]int64 `json:"queue_depths"`
	WebSocketClients int              `json:"websocket_clients"`
}

// Metrics returns aggregated system metrics. An unreadable queue reports
// a depth of -1.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetMetrics(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	depths := make(map[string]int64, len(h.queueNames))
	for _, name := range h.queueNames {
		depth, err := h.queues.QueueDepth(r.Context(), name)
		if err != nil {
			h.logger.Warn("reading queue depth", "queue", name, "error", err)
			depth = -1
		}
		depths[name] = depth
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		Metrics:          *metrics,
		QueueDepths:      depths,
		WebSocketClients: clients,
	})
}

// WebhookHealth returns every webhook with its circuit breaker state.
func (h *DashboardHandler) WebhookHealth(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.ListWebhooks(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	result := make([]webhookHealth, 0, len(hooks))
	for _, wh := range hooks {
		result = append(result, webhookHealth{
			WebhookID:      wh.ID,
			Name:           wh.Name,
			EndpointURL:    wh.EndpointURL,
			IsActive:       wh.IsActive,
			CircuitBreaker: h.cb.GetState(r.Context(), wh.ID),
		})
	}

	respondJSON(w, http.StatusOK, result)
}
