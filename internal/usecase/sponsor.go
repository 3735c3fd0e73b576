package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/project"
	"github.com/Priya8975/marketplace/internal/store"
)

// SponsorStore persists sponsors and their project links.
type SponsorStore interface {
	InsertSponsor(ctx context.Context, sp store.Sponsor) error
	GetSponsor(ctx context.Context, id domain.SponsorID) (*store.Sponsor, error)
	UpdateSponsor(ctx context.Context, sp store.Sponsor) error
	AddSponsorToProject(ctx context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) error
	RemoveSponsorFromProject(ctx context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) error
}

// Sponsors manages sponsors. They are plain records, so there is no event
// to publish.
type Sponsors struct {
	store    SponsorStore
	projects *domain.Repository[project.Project, project.Event]
	logger   *slog.Logger
}

func NewSponsors(store SponsorStore, projects domain.EventStore[project.Event], logger *slog.Logger) *Sponsors {
	return &Sponsors{
		store:    store,
		projects: domain.NewRepository[project.Project, project.Event](projects),
		logger:   logger,
	}
}

type CreateSponsorRequest struct {
	Name    string  `json:"name"`
	LogoURL string  `json:"logo_url"`
	URL     *string `json:"url"`
}

// UpdateSponsorRequest changes the fields that are set. An empty URL
// removes the sponsor's website.
type UpdateSponsorRequest struct {
	Name    *string `json:"name"`
	LogoURL *string `json:"logo_url"`
	URL     *string `json:"url"`
}

func (s *Sponsors) Create(ctx context.Context, req CreateSponsorRequest) (id domain.SponsorID, err error) {
	ctx, span := startSpan(ctx, "sponsor.create")
	defer func() { endSpan(span, err) }()

	sp := store.Sponsor{Name: strings.TrimSpace(req.Name), LogoURL: req.LogoURL, URL: req.URL}
	if err := validateSponsor(sp); err != nil {
		return domain.SponsorID{}, err
	}

	id = domain.NewSponsorID()
	sp.ID = id.String()
	if err := s.store.InsertSponsor(ctx, sp); err != nil {
		return domain.SponsorID{}, domain.Infrastructure(err)
	}
	s.logger.Info("sponsor created", "sponsor_id", sp.ID)
	return id, nil
}

func (s *Sponsors) Update(ctx context.Context, id domain.SponsorID, req UpdateSponsorRequest) (err error) {
	ctx, span := startSpan(ctx, "sponsor.update", attribute.String("sponsor_id", id.String()))
	defer func() { endSpan(span, err) }()

	sp, err := s.store.GetSponsor(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if req.Name != nil {
		sp.Name = strings.TrimSpace(*req.Name)
	}
	if req.LogoURL != nil {
		sp.LogoURL = *req.LogoURL
	}
	if req.URL != nil {
		sp.URL = req.URL
		if *req.URL == "" {
			sp.URL = nil
		}
	}
	if err := validateSponsor(*sp); err != nil {
		return err
	}
	return storeError(s.store.UpdateSponsor(ctx, *sp))
}

func (s *Sponsors) AddToProject(ctx context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) (err error) {
	ctx, span := startSpan(ctx, "sponsor.add_to_project",
		attribute.String("project_id", projectID.String()),
		attribute.String("sponsor_id", sponsorID.String()),
	)
	defer func() { endSpan(span, err) }()

	if err := s.projectExists(ctx, projectID); err != nil {
		return err
	}
	return storeError(s.store.AddSponsorToProject(ctx, projectID, sponsorID))
}

func (s *Sponsors) RemoveFromProject(ctx context.Context, projectID domain.ProjectID, sponsorID domain.SponsorID) (err error) {
	ctx, span := startSpan(ctx, "sponsor.remove_from_project",
		attribute.String("project_id", projectID.String()),
		attribute.String("sponsor_id", sponsorID.String()),
	)
	defer func() { endSpan(span, err) }()

	if err := s.projectExists(ctx, projectID); err != nil {
		return err
	}
	return storeError(s.store.RemoveSponsorFromProject(ctx, projectID, sponsorID))
}

func (s *Sponsors) projectExists(ctx context.Context, id domain.ProjectID) error {
	ok, err := s.projects.Exists(ctx, id)
	if err != nil {
		return domain.Infrastructure(err)
	}
	if !ok {
		return domain.NotFound(fmt.Errorf("project %s not found", id))
	}
	return nil
}

// storeError keeps classified store errors and treats the rest as
// infrastructure failures.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Infrastructure(err)
}

func validateSponsor(sp store.Sponsor) error {
	if sp.Name == "" {
		return domain.InvalidInputs(errors.New("sponsor name is required"))
	}
	if err := validateURL("logo_url", sp.LogoURL); err != nil {
		return err
	}
	if sp.URL != nil {
		return validateURL("url", *sp.URL)
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.InvalidInputs(fmt.Errorf("%s must be an absolute http(s) URL", field))
	}
	return nil
}
