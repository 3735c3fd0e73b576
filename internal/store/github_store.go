package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/marketplace/internal/domain"
)

// GithubRepo is the indexed copy of a GitHub repository.
type GithubRepo struct {
	ID          int64     `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Stars       int       `json:"stars"`
	HTMLURL     string    `json:"html_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertGithubRepo stores repo and marks it indexed.
func (s *PostgresStore) UpsertGithubRepo(ctx context.Context, repo GithubRepo) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO github_repos (id, owner, name, description, stars, html_url, updated_at)
		VALUES (@id, @owner, @name, @description, @stars, @html_url, NOW())
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			stars = EXCLUDED.stars,
			html_url = EXCLUDED.html_url,
			updated_at = NOW()
	`, pgx.NamedArgs{
		"id":          repo.ID,
		"owner":       repo.Owner,
		"name":        repo.Name,
		"description": repo.Description,
		"stars":       repo.Stars,
		"html_url":    repo.HTMLURL,
	})
	batch.Queue(`
		INSERT INTO github_repo_indexes (repo_id, indexed_at) VALUES ($1, NOW())
		ON CONFLICT (repo_id) DO UPDATE SET indexed_at = NOW()
	`, repo.ID)
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting github repo %d: %w", repo.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetGithubRepo(ctx context.Context, id domain.GithubRepoID) (*GithubRepo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, name, description, stars, html_url, updated_at
		FROM github_repos WHERE id = $1
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("querying github repo: %w", err)
	}
	repo, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[GithubRepo])
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(fmt.Errorf("github repo %s not indexed", id))
		}
		return nil, fmt.Errorf("scanning github repo: %w", err)
	}
	return &repo, nil
}

// TruncateGithubIndexes empties the indexing queues so a replay can
// rebuild them.
func (s *PostgresStore) TruncateGithubIndexes(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE github_repo_indexes, github_user_indexes`)
	if err != nil {
		return fmt.Errorf("truncating github indexes: %w", err)
	}
	return nil
}
