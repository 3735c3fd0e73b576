// Package app wires the infrastructure shared by the marketplace binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/Priya8975/marketplace/internal/config"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/engine"
	"github.com/Priya8975/marketplace/internal/eventstore"
	"github.com/Priya8975/marketplace/internal/store"
	"github.com/Priya8975/marketplace/internal/store/sqlite"
	"github.com/Priya8975/marketplace/internal/worker"
)

// Queues bound to the events exchange.
const (
	ProjectsQueue      = "projects"
	BudgetsQueue       = "budgets"
	EventLoggerQueue   = "event-logger"
	GithubIndexerQueue = "github-indexer"
	WebhooksQueue      = "webhooks"
	LiveFeedQueue      = "live-feed"
)

const (
	leaseDuration = 30 * time.Second
	dedupTTL      = 24 * time.Hour
)

// ListenerQueues are consumed by the listeners binary.
var ListenerQueues = []string{ProjectsQueue, BudgetsQueue, EventLoggerQueue, GithubIndexerQueue, WebhooksQueue}

// Queues lists every bus queue, in pipeline order.
func Queues() []string {
	return slices.Concat(
		[]string{eventstore.Queue},
		ListenerQueues,
		[]string{LiveFeedQueue, worker.DeliveriesQueue},
	)
}

// EventRecords reads raw event rows of the configured backend.
type EventRecords interface {
	ListEventRecords(ctx context.Context, aggregateName, aggregateID string, limit int) ([]store.EventRecord, error)
}

// Infra holds the connections every binary needs.
type Infra struct {
	Config   *config.Config
	Logger   *slog.Logger
	Postgres *store.PostgresStore
	Redis    *store.RedisStore
	Projects domain.EventStore[project.Event]
	Budgets  domain.EventStore[budget.Event]
	Records  EventRecords

	dedup   *engine.Deduplicator
	closers []func()
}

func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// Open connects to Postgres and Redis and opens the configured event store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infra, error) {
	i := &Infra{Config: cfg, Logger: logger}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	i.Postgres = pg
	i.closers = append(i.closers, pg.Close)
	logger.Info("connected to PostgreSQL")

	rdb, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		i.Close()
		return nil, err
	}
	i.Redis = rdb
	i.closers = append(i.closers, func() { rdb.Close() })
	i.dedup = engine.NewDeduplicator(rdb.Client(), dedupTTL)
	logger.Info("connected to Redis")

	switch cfg.EventStoreBackend {
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			i.Close()
			return nil, err
		}
		i.closers = append(i.closers, func() { db.Close() })
		i.Projects = sqlite.NewEventStore[project.Event](db, project.AggregateName, project.Decode)
		i.Budgets = sqlite.NewEventStore[budget.Event](db, budget.AggregateName, budget.Decode)
		i.Records = sqlite.NewRecords(db)
	case config.BackendPostgres:
		i.Projects = store.NewEventStore[project.Event](pg, project.AggregateName, project.Decode)
		i.Budgets = store.NewEventStore[budget.Event](pg, budget.AggregateName, budget.Decode)
		i.Records = pg
	default:
		i.Close()
		return nil, fmt.Errorf("unknown event store backend %q", cfg.EventStoreBackend)
	}
	logger.Info("event store opened", "backend", cfg.EventStoreBackend, "mode", cfg.EventStoreMode)

	return i, nil
}

// Close releases connections in reverse opening order.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}

func (i *Infra) Stores() eventstore.Stores {
	return eventstore.Stores{Projects: i.Projects, Budgets: i.Budgets}
}

// Consume builds a consumer of queue tuned by the configuration.
func Consume[M domain.Message](i *Infra, queue string, handler worker.Handler[M], keyOf func(M) string) *worker.Consumer[M] {
	return worker.NewConsumer(
		engine.NewQueue(i.Redis.Client(), queue, leaseDuration),
		i.dedup,
		handler,
		keyOf,
		i.Logger,
		worker.ConsumerOptions{
			Workers:      i.Config.NumWorkers,
			PollInterval: i.Config.ConsumerPollInterval,
			MaxAttempts:  i.Config.ConsumerMaxAttempts,
		},
	)
}
