// Package usecase runs the marketplace commands: load the aggregates,
// decide, and publish the resulting events to the event store.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Priya8975/marketplace/internal/codec"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/eventstore"
	"github.com/Priya8975/marketplace/internal/github"
)

var tracer = otel.Tracer("marketplace/usecase")

// RepoChecker confirms a GitHub repository exists before it is linked.
type RepoChecker interface {
	GetRepo(ctx context.Context, id domain.GithubRepoID) (*github.Repo, error)
}

// Commands handles every event-sourced command. Commands on the same
// project run one at a time within a process.
type Commands struct {
	projects  *domain.Repository[project.Project, project.Event]
	budgets   *domain.Repository[budget.Budget, budget.Event]
	publisher domain.Publisher[codec.CommandMessage]
	github    RepoChecker
	locks     *keyedMutex
	logger    *slog.Logger
	now       func() time.Time
}

func NewCommands(
	projects domain.EventStore[project.Event],
	budgets domain.EventStore[budget.Event],
	publisher domain.Publisher[codec.CommandMessage],
	github RepoChecker,
	logger *slog.Logger,
) *Commands {
	return &Commands{
		projects:  domain.NewRepository[project.Project, project.Event](projects),
		budgets:   domain.NewRepository[budget.Budget, budget.Event](budgets),
		publisher: publisher,
		github:    github,
		locks:     newKeyedMutex(),
		logger:    logger,
		now:       time.Now,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.KindOf(err).String())
	}
	span.End()
}

// lock serialises commands on one project and its budget.
func (c *Commands) lock(id domain.ProjectID) func() {
	return c.locks.Lock(id.String())
}

func (c *Commands) loadProject(ctx context.Context, id domain.ProjectID) (project.Project, error) {
	p, err := c.projects.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return p, domain.NotFound(fmt.Errorf("project %s not found", id))
	}
	if err != nil {
		return p, domain.Infrastructure(err)
	}
	return p, nil
}

// loadBudget returns nil when the project has no budget yet.
func (c *Commands) loadBudget(ctx context.Context, p project.Project) (*budget.Budget, error) {
	b, err := c.budgets.FindByID(ctx, p.BudgetID())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	return &b, nil
}

// rejected classifies an aggregate refusing a command.
func rejected(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, budget.ErrPaymentNotFound) {
		return domain.NotFound(err)
	}
	return domain.InvalidInputs(err)
}

func publish[E domain.Event](ctx context.Context, c *Commands, events []E) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := codec.NewCommandMessages(events)
	if err != nil {
		return domain.Internal(err)
	}
	if err := c.publisher.PublishMany(ctx, domain.Queue(eventstore.Queue), msgs); err != nil {
		return domain.Infrastructure(fmt.Errorf("publishing events: %w", err))
	}

	c.logger.Info("command committed",
		"command_id", msgs[0].CommandID,
		"aggregate_id", events[0].AggregateID(),
		"event_type", domain.QualifiedType(events[0]),
		"events", len(events),
	)
	return nil
}
