package projector

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/project"
)

// ProjectStore is the write side of the project read models.
type ProjectStore interface {
	SaveProject(ctx context.Context, p project.Project) error
}

// ProjectProjector rewrites a project, its leaders and linked repos from the
// current state of the project stream, so events handled out of order after
// a retry still leave the rows of the latest state.
type ProjectProjector struct {
	projects *domain.Repository[project.Project, project.Event]
	store    ProjectStore
}

func NewProjectProjector(projects *domain.Repository[project.Project, project.Event], store ProjectStore) *ProjectProjector {
	return &ProjectProjector{projects: projects, store: store}
}

func (p *ProjectProjector) OnEvent(ctx context.Context, e domain.Event) error {
	pe, ok := e.(project.Event)
	if !ok {
		return nil
	}

	current, err := p.projects.FindByID(ctx, pe.ProjectID())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Internal(fmt.Errorf("project %s has events on the bus but none in the store", pe.ProjectID()))
	}
	if err != nil {
		return err
	}
	if err := p.store.SaveProject(ctx, current); err != nil {
		return fmt.Errorf("projecting %s of %s: %w", domain.QualifiedType(pe), pe.AggregateID(), err)
	}
	return nil
}
