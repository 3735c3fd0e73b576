package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Priya8975/marketplace/internal/app"
	"github.com/Priya8975/marketplace/internal/config"
	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/budget"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/projector"
	"github.com/Priya8975/marketplace/internal/refresh"
	"github.com/Priya8975/marketplace/internal/store"
)

func main() {
	logger := app.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "refresh",
		Short:         "Rebuild marketplace read models from the event store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		jobCmd("project", "Replay project events into the project read models", projectJob),
		jobCmd("budget", "Replay budget events into the budget and payment read models", budgetJob),
		allCmd(),
		migrateCmd(),
	)
	return root
}

type jobFactory func(i *app.Infra) refresh.Job

func projectJob(i *app.Infra) refresh.Job {
	pg := i.Postgres
	truncate := func(ctx context.Context) error {
		if err := pg.TruncateGithubIndexes(ctx); err != nil {
			return err
		}
		return pg.TruncateProjects(ctx)
	}
	projects := domain.NewRepository[project.Project, project.Event](i.Projects)
	return refresh.New(project.AggregateName, i.Projects, truncate, projector.NewProjectProjector(projects, pg), i.Logger)
}

func budgetJob(i *app.Infra) refresh.Job {
	pg := i.Postgres
	budgets := domain.NewRepository[budget.Budget, budget.Event](i.Budgets)
	return refresh.New(budget.AggregateName, i.Budgets, pg.TruncateBudgets, projector.NewBudgetProjector(budgets, pg), i.Logger)
}

// withInfra opens the infrastructure for the duration of fn.
func withInfra(cmd *cobra.Command, fn func(ctx context.Context, i *app.Infra) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	i, err := app.Open(ctx, cfg, app.NewLogger())
	if err != nil {
		return err
	}
	defer i.Close()
	return fn(ctx, i)
}

func jobCmd(use, short string, job jobFactory) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInfra(cmd, func(ctx context.Context, i *app.Infra) error {
				return job(i).Refresh(ctx)
			})
		},
	}
}

func allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Replay every aggregate family, projects first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInfra(cmd, func(ctx context.Context, i *app.Infra) error {
				return refresh.All(ctx, projectJob(i), budgetJob(i))
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInfra(cmd, func(ctx context.Context, i *app.Infra) error {
				if err := i.Postgres.RunMigrations(ctx, store.Migrations); err != nil {
					return err
				}
				i.Logger.Info("database migrations applied")
				return nil
			})
		},
	}
}
