package projector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/github"
	"github.com/Priya8975/marketplace/internal/store"
)

// RepoFetcher reads repository details from GitHub.
type RepoFetcher interface {
	GetRepo(ctx context.Context, id domain.GithubRepoID) (*github.Repo, error)
}

// RepoIndex stores fetched repositories.
type RepoIndex interface {
	UpsertGithubRepo(ctx context.Context, repo store.GithubRepo) error
}

// GithubRepoIndexer fetches and stores every repository linked to a project.
type GithubRepoIndexer struct {
	github RepoFetcher
	index  RepoIndex
	logger *slog.Logger
}

func NewGithubRepoIndexer(github RepoFetcher, index RepoIndex, logger *slog.Logger) *GithubRepoIndexer {
	return &GithubRepoIndexer{github: github, index: index, logger: logger}
}

func (g *GithubRepoIndexer) OnEvent(ctx context.Context, e domain.Event) error {
	linked, ok := e.(project.GithubRepoLinked)
	if !ok {
		return nil
	}

	repo, err := g.github.GetRepo(ctx, linked.GithubRepoID)
	if domain.KindOf(err) == domain.KindNotFound {
		// Deleted since it was linked; nothing to index.
		g.logger.Warn("linked github repo not found", "repo_id", linked.GithubRepoID, "project_id", linked.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching github repo %s: %w", linked.GithubRepoID, err)
	}

	row := store.GithubRepo{
		ID:        repo.ID,
		Owner:     repo.Owner.Login,
		Name:      repo.Name,
		Stars:     repo.Stars,
		HTMLURL:   repo.HTMLURL,
		UpdatedAt: repo.UpdatedAt,
	}
	if repo.Description != nil {
		row.Description = *repo.Description
	}
	if err := g.index.UpsertGithubRepo(ctx, row); err != nil {
		return err
	}

	g.logger.Info("github repo indexed", "repo_id", repo.ID, "project_id", linked.ID)
	return nil
}
