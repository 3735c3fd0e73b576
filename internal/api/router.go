package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/engine"
	"github.com/Priya8975/marketplace/internal/store"
	"github.com/Priya8975/marketplace/internal/usecase"
	ws "github.com/Priya8975/marketplace/internal/websocket"
)

// ReadModels serves the projected views.
type ReadModels interface {
	GetProject(ctx context.Context, id domain.ProjectID) (*store.ProjectView, error)
	GetBudgetByProject(ctx context.Context, projectID domain.ProjectID) (*store.BudgetView, error)
	ListPaymentRequests(ctx context.Context, projectID domain.ProjectID) ([]store.PaymentRequestView, error)
	ListSponsors(ctx context.Context, projectID *domain.ProjectID) ([]store.Sponsor, error)
	GetSponsor(ctx context.Context, id domain.SponsorID) (*store.Sponsor, error)
	GetGithubRepo(ctx context.Context, id domain.GithubRepoID) (*store.GithubRepo, error)
}

// EventLog reads the raw event streams.
type EventLog interface {
	ListEventRecords(ctx context.Context, aggregateName, aggregateID string, limit int) ([]store.EventRecord, error)
}

type WebhookStore interface {
	CreateWebhook(ctx context.Context, req domain.CreateWebhookRequest) (*domain.Webhook, error)
	GetWebhook(ctx context.Context, id string) (*domain.Webhook, error)
	ListWebhooks(ctx context.Context) ([]domain.Webhook, error)
	UpdateWebhook(ctx context.Context, id string, req domain.UpdateWebhookRequest) (*domain.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
}

// DeliveryLog reads delivery attempts and manages dead letters.
type DeliveryLog interface {
	ListDeliveryAttempts(ctx context.Context, messageID, webhookID, status string, limit int) ([]domain.DeliveryAttempt, error)
	GetDeliveryAttempt(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
	ListDeadLetters(ctx context.Context, webhookID string, resolved bool, limit int) ([]domain.DeadLetter, error)
	GetDeadLetter(ctx context.Context, id string) (*domain.DeadLetter, error)
	ResolveDeadLetter(ctx context.Context, id string, resolvedBy string) error
}

type MetricsSource interface {
	GetMetrics(ctx context.Context) (*store.Metrics, error)
}

// CircuitStates reports the breaker state of a webhook.
type CircuitStates interface {
	GetState(ctx context.Context, target string) engine.CircuitBreakerState
}

type QueueDepths interface {
	QueueDepth(ctx context.Context, queue string) (int64, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Commands   *usecase.Commands
	Sponsors   *usecase.Sponsors
	Reads      ReadModels
	Events     EventLog
	Webhooks   WebhookStore
	Deliveries DeliveryLog
	Metrics    MetricsSource
	Circuits   CircuitStates
	Queues     QueueDepths
	// QueueNames are the bus queues reported by /metrics.
	QueueNames []string
	Hub        *ws.Hub
	// Checks are pinged by /health, keyed by dependency name.
	Checks map[string]Pinger
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(corsMiddleware)

	projects := NewProjectHandler(d.Commands, d.Reads, d.Logger)
	payments := NewPaymentHandler(d.Commands, d.Reads, d.Logger)
	sponsors := NewSponsorHandler(d.Sponsors, d.Reads, d.Logger)
	events := NewEventHandler(d.Events, d.Logger)
	webhooks := NewWebhookHandler(d.Webhooks, d.Circuits, d.Logger)
	deliveries := NewDeliveryHandler(d.Deliveries, d.Logger)
	deadLetters := NewDeadLetterHandler(d.Deliveries, d.Logger)
	dashboard := NewDashboardHandler(d.Metrics, d.Queues, d.QueueNames, d.Webhooks, d.Circuits, d.Hub, d.Logger)

	if d.Hub != nil {
		r.Get("/ws", d.Hub.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.Checks))

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projects.Create)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projects.Get)
				r.Post("/leaders", projects.AssignLeader)
				r.Delete("/leaders/{leaderID}", projects.UnassignLeader)
				r.Post("/github-repos", projects.LinkGithubRepo)
				r.Delete("/github-repos/{repoID}", projects.UnlinkGithubRepo)
				r.Get("/budget", projects.GetBudget)
				r.Put("/budget", projects.UpdateAllocation)
				r.Get("/sponsors", sponsors.ListForProject)
				r.Put("/sponsors/{sponsorID}", sponsors.AddToProject)
				r.Delete("/sponsors/{sponsorID}", sponsors.RemoveFromProject)

				r.Route("/payments", func(r chi.Router) {
					r.Post("/", payments.Request)
					r.Get("/", payments.List)
					r.Delete("/{paymentID}", payments.Cancel)
					r.Post("/{paymentID}/receipts", payments.AddReceipt)
					r.Put("/{paymentID}/invoice", payments.MarkInvoiceAsReceived)
					r.Delete("/{paymentID}/invoice", payments.RejectInvoice)
				})
			})
		})

		r.Get("/github-repos/{repoID}", projects.GetGithubRepo)

		r.Route("/sponsors", func(r chi.Router) {
			r.Post("/", sponsors.Create)
			r.Get("/", sponsors.List)
			r.Get("/{sponsorID}", sponsors.Get)
			r.Patch("/{sponsorID}", sponsors.Update)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/{aggregate}", events.List)
			r.Get("/{aggregate}/{id}", events.Stream)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", webhooks.Create)
			r.Get("/", webhooks.List)
			r.Get("/{id}", webhooks.Get)
			r.Patch("/{id}", webhooks.Update)
			r.Delete("/{id}", webhooks.Delete)
			r.Get("/{id}/health", webhooks.Health)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveries.List)
			r.Get("/{id}", deliveries.Get)
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", deadLetters.List)
			r.Get("/{id}", deadLetters.Get)
			r.Post("/{id}/resolve", deadLetters.Resolve)
		})

		r.Get("/metrics", dashboard.Metrics)
		r.Get("/webhooks-health", dashboard.WebhookHealth)
	})

	return r
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
