package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Priya8975/marketplace/internal/app"
	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/config"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/engine"
	"github.com/Priya8975/marketplace/internal/eventstore"
	"github.com/Priya8975/marketplace/internal/github"
	"github.com/Priya8975/marketplace/internal/projector"
	"github.com/Priya8975/marketplace/internal/telemetry"
	"github.com/Priya8975/marketplace/internal/worker"
)

// runner is a consumer ready to poll its queue.
type runner interface {
	Run(ctx context.Context) error
}

func main() {
	logger := app.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("listeners failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "marketplace-listeners", cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	client := infra.Redis.Client()
	events := engine.NewBus[codec.Message](client, logger)
	for _, q := range app.ListenerQueues {
		if err := events.Bind(ctx, eventstore.EventsExchange, q); err != nil {
			return err
		}
	}

	pg := infra.Postgres
	projects := domain.NewRepository[project.Project, project.Event](infra.Projects)
	budgets := domain.NewRepository[budget.Budget, budget.Event](infra.Budgets)
	limiter := engine.NewRateLimiter(client, logger, time.Second)
	gh := github.NewClient(cfg.GithubAPIURL, cfg.GithubToken, limiter, cfg.GithubRateLimit, logger)
	cb := engine.NewCircuitBreaker(client, logger, cfg.CBFailureThreshold, cfg.CBCooldown)
	deliverer := worker.NewDeliverer(pg, cb, cfg.WebhookTimeout, logger)

	consumers := map[string]runner{
		app.ProjectsQueue: app.Consume(infra, app.ProjectsQueue,
			projector.Handler(projector.NewProjectProjector(projects, pg)), projector.StreamKey),
		app.BudgetsQueue: app.Consume(infra, app.BudgetsQueue,
			projector.Handler(projector.NewBudgetProjector(budgets, pg)), projector.StreamKey),
		app.EventLoggerQueue: app.Consume(infra, app.EventLoggerQueue,
			projector.Handler(projector.NewLogger(logger)), projector.StreamKey),
		app.GithubIndexerQueue: app.Consume(infra, app.GithubIndexerQueue,
			projector.Handler(projector.NewGithubRepoIndexer(gh, pg, logger)), projector.StreamKey),
		app.WebhooksQueue: app.Consume(infra, app.WebhooksQueue,
			worker.NewFanout(pg, engine.NewBus[worker.DeliveryJob](client, logger), logger).Handle, projector.StreamKey),
	}

	deliveries := app.Consume(infra, worker.DeliveriesQueue, deliverer.Deliver, webhookKey)
	deliveries.OnDeadLetter(deliverer.DeadLetter)
	consumers[worker.DeliveriesQueue] = deliveries

	if cfg.EventStoreMode == config.ModeAsync {
		service := eventstore.NewService(eventstore.NewRecorder(infra.Stores(), logger), events, logger)
		consumers[eventstore.Queue] = app.Consume(infra, eventstore.Queue, service.Handle, eventstore.StreamKey)
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, c := range consumers {
		g.Go(func() error {
			logger.Info("listener starting", "queue", name)
			return c.Run(ctx)
		})
	}

	err = g.Wait()
	logger.Info("listeners stopped")
	return err
}

// webhookKey keeps the deliveries of one webhook in order.
func webhookKey(j worker.DeliveryJob) string {
	return j.WebhookID
}
