package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/marketplace/internal/api"
	"github.com/Priya8975/marketplace/internal/app"
	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/config"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/engine"
	"github.com/Priya8975/marketplace/internal/eventstore"
	"github.com/Priya8975/marketplace/internal/github"
	"github.com/Priya8975/marketplace/internal/projector"
	"github.com/Priya8975/marketplace/internal/store"
	"github.com/Priya8975/marketplace/internal/telemetry"
	"github.com/Priya8975/marketplace/internal/usecase"
	ws "github.com/Priya8975/marketplace/internal/websocket"
)

func main() {
	logger := app.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
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

	shutdownTracing, err := telemetry.Setup(ctx, "marketplace-api", cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	if err := infra.Postgres.RunMigrations(ctx, store.Migrations); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	client := infra.Redis.Client()
	events := engine.NewBus[codec.Message](client, logger)

	// Commands are recorded in the request (sync) or by the event-store
	// listener (async).
	var publisher domain.Publisher[codec.CommandMessage]
	switch cfg.EventStoreMode {
	case config.ModeAsync:
		publisher = engine.NewBus[codec.CommandMessage](client, logger)
	default:
		publisher = eventstore.NewCommitter(eventstore.NewRecorder(infra.Stores(), logger), events, logger)
	}

	limiter := engine.NewRateLimiter(client, logger, time.Second)
	gh := github.NewClient(cfg.GithubAPIURL, cfg.GithubToken, limiter, cfg.GithubRateLimit, logger)
	commands := usecase.NewCommands(infra.Projects, infra.Budgets, publisher, gh, logger)
	sponsors := usecase.NewSponsors(infra.Postgres, infra.Projects, logger)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	if err := events.Bind(ctx, eventstore.EventsExchange, app.LiveFeedQueue); err != nil {
		return err
	}
	feed := app.Consume(infra, app.LiveFeedQueue, projector.NewLiveFeed(hub).Handle, projector.StreamKey)
	go feed.Run(ctx)

	cb := engine.NewCircuitBreaker(client, logger, cfg.CBFailureThreshold, cfg.CBCooldown)

	router := api.NewRouter(api.Deps{
		Commands:   commands,
		Sponsors:   sponsors,
		Reads:      infra.Postgres,
		Events:     infra.Records,
		Webhooks:   infra.Postgres,
		Deliveries: infra.Postgres,
		Metrics:    infra.Postgres,
		Circuits:   cb,
		Queues:     events,
		QueueNames: app.Queues(),
		Hub:        hub,
		Checks: map[string]api.Pinger{
			"postgres": infra.Postgres,
			"redis":    infra.Redis,
		},
		Logger: logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
