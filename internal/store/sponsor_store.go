package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Priya8975/marketplace/internal/domain"
)

// Sponsor funds projects. Sponsors are plain records, not event sourced.
type Sponsor struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	LogoURL string  `json:"logo_url"`
	URL     *string `json:"url,omitempty"`
}

func sponsorNotFound(id domain.SponsorID) error {
	return domain.NotFound(fmt.Errorf("sponsor %s not found", id))
}

func (s *PostgresStore) InsertSponsor(ctx context.Context, sp Sponsor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sponsors (id, name, logo_url, url) VALUES ($1, $2, $3, $4)
	`, sp.ID, sp.Name, sp.LogoURL, sp.URL)
	if err != nil {
		return fmt.Errorf("inserting sponsor: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSponsor(ctx context.Context, id domain.SponsorID) (*Sponsor, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, logo_url, url FROM sponsors WHERE id = $1`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying sponsor: %w", err)
	}
	sp, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Sponsor])
	if err != nil {
		if isNoRows(err) {
			return nil, sponsorNotFound(id)
		}
		return nil, fmt.Errorf("scanning sponsor: %w", err)
	}
	return &sp, nil
}

func (s *PostgresStore) UpdateSponsor(ctx context.Context, sp Sponsor) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sponsors SET name = $2, logo_url = $3, url = $4 WHERE id = $1
	`, sp.ID, sp.Name, sp.LogoURL, sp.URL)
	if err != nil {
		return fmt.Errorf("updating sponsor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(fmt.Errorf("sponsor %s not found", sp.ID))
	}
	return nil
}

func (s *PostgresStore) ListSponsors(ctx context.Context, projectID *domain.ProjectID) ([]Sponsor, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if projectID == nil {
		rows, err = s.pool.Query(ctx, `SELECT id, name, logo_url, url FROM sponsors ORDER BY name`)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT s.id, s.name, s.logo_url, s.url
			FROM sponsors s JOIN projects_sponsors ps ON ps.sponsor_id = s.id
			WHERE ps.project_id = $1
			ORDER BY s.name
		`, projectID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("querying sponsors: %w", err)
	}
	sponsors, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Sponsor])
	if err != nil {
		return nil, fmt.Errorf("scanning sponsors: %w", err)
	}
	return sponsors, nil
}

func (s *PostgresStore) AddSponsorToProject(ctx context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects_sponsors (project_id, sponsor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, projectID.String(), sponsorID.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return sponsorNotFound(sponsorID)
		}
		return fmt.Errorf("adding sponsor to project: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveSponsorFromProject(ctx context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM projects_sponsors WHERE project_id = $1 AND sponsor_id = $2
	`, projectID.String(), sponsorID.String())
	if err != nil {
		return fmt.Errorf("removing sponsor from project: %w", err)
	}
	return nil
}
