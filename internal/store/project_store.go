package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

// ProjectView is the read model of a project.
type ProjectView struct {
	ID          string    `json:"id"`
	Leaders     []string  `json:"leaders"`
	GithubRepos []int64   `json:"github_repos"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveProject replaces the leaders and linked repos of p with its current
// state and queues every linked repository for indexing.
func (s *PostgresStore) SaveProject(ctx context.Context, p project.Project) error {
	id := p.ID.String()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO projects (id) VALUES ($1) ON CONFLICT DO NOTHING`, id)
	batch.Queue(`DELETE FROM project_leads WHERE project_id = $1`, id)
	batch.Queue(`DELETE FROM project_github_repos WHERE project_id = $1`, id)
	for leader := range p.Leaders {
		batch.Queue(`INSERT INTO project_leads (project_id, user_id) VALUES ($1, $2)`, id, leader.String())
	}
	for repo := range p.GithubRepos {
		batch.Queue(`INSERT INTO project_github_repos (project_id, github_repo_id) VALUES ($1, $2)`, id, int64(repo))
		batch.Queue(`INSERT INTO github_repo_indexes (repo_id) VALUES ($1) ON CONFLICT DO NOTHING`, int64(repo))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving project %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing project %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id domain.ProjectID) (*ProjectView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.created_at,
			COALESCE((SELECT ARRAY_AGG(user_id::text ORDER BY user_id) FROM project_leads WHERE project_id = p.id), '{}'),
			COALESCE((SELECT ARRAY_AGG(github_repo_id ORDER BY github_repo_id) FROM project_github_repos WHERE project_id = p.id), '{}')
		FROM projects p
		WHERE p.id = $1
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (ProjectView, error) {
		var p ProjectView
		err := row.Scan(&p.ID, &p.CreatedAt, &p.Leaders, &p.GithubRepos)
		return p, err
	})
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(fmt.Errorf("project %s not found", id))
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	return &p, nil
}

// TruncateProjects empties the tables written by the project projector.
func (s *PostgresStore) TruncateProjects(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE projects, project_leads, project_github_repos`)
	if err != nil {
		return fmt.Errorf("truncating project tables: %w", err)
	}
	return nil
}
