package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

func (c *Commands) CreateProject(ctx context.Context) (id domain.ProjectID, err error) {
	ctx, span := startSpan(ctx, "project.create")
	defer func() { endSpan(span, err) }()

	id = domain.NewProjectID()
	span.SetAttributes(attribute.String("project_id", id.String()))
	if err := publish(ctx, c, project.Create(id)); err != nil {
		return domain.ProjectID{}, err
	}
	return id, nil
}

func (c *Commands) AssignLeader(ctx context.Context, projectID domain.ProjectID, leaderID domain.UserID) (err error) {
	ctx, span := startSpan(ctx, "project.assign_leader",
		attribute.String("project_id", projectID.String()),
		attribute.String("leader_id", leaderID.String()),
	)
	defer func() { endSpan(span, err) }()

	return c.onProject(ctx, projectID, func(p project.Project) ([]project.Event, error) {
		return p.AssignLeader(leaderID)
	})
}

func (c *Commands) UnassignLeader(ctx context.Context, projectID domain.ProjectID, leaderID domain.UserID) (err error) {
	ctx, span := startSpan(ctx, "project.unassign_leader",
		attribute.String("project_id", projectID.String()),
		attribute.String("leader_id", leaderID.String()),
	)
	defer func() { endSpan(span, err) }()

	return c.onProject(ctx, projectID, func(p project.Project) ([]project.Event, error) {
		return p.UnassignLeader(leaderID)
	})
}

// LinkGithubRepo links a repository GitHub knows about. The repository is
// checked before anything is published.
func (c *Commands) LinkGithubRepo(ctx context.Context, projectID domain.ProjectID, repoID domain.GithubRepoID) (err error) {
	ctx, span := startSpan(ctx, "project.link_github_repo",
		attribute.String("project_id", projectID.String()),
		attribute.Int64("github_repo_id", int64(repoID)),
	)
	defer func() { endSpan(span, err) }()

	return c.onProject(ctx, projectID, func(p project.Project) ([]project.Event, error) {
		events, err := p.LinkGithubRepo(repoID)
		if err != nil {
			return nil, err
		}
		if _, err := c.github.GetRepo(ctx, repoID); err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return nil, domain.InvalidInputs(fmt.Errorf("github repository %s does not exist", repoID))
			}
			return nil, err
		}
		return events, nil
	})
}

func (c *Commands) UnlinkGithubRepo(ctx context.Context, projectID domain.ProjectID, repoID domain.GithubRepoID) (err error) {
	ctx, span := startSpan(ctx, "project.unlink_github_repo",
		attribute.String("project_id", projectID.String()),
		attribute.Int64("github_repo_id", int64(repoID)),
	)
	defer func() { endSpan(span, err) }()

	return c.onProject(ctx, projectID, func(p project.Project) ([]project.Event, error) {
		return p.UnlinkGithubRepo(repoID)
	})
}

// onProject runs decide against the current project under the project lock
// and publishes what it returns.
func (c *Commands) onProject(ctx context.Context, id domain.ProjectID, decide func(project.Project) ([]project.Event, error)) error {
	unlock := c.lock(id)
	defer unlock()

	p, err := c.loadProject(ctx, id)
	if err != nil {
		return err
	}
	events, err := decide(p)
	if err != nil {
		return rejected(err)
	}
	return publish(ctx, c, events)
}
