package engine

import (
	"context"
	"time"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

type ProjectCreateOptions struct {
	Title       string
	Description string
	ClientID    string
	Kind        string
	Due         *time.Time
	NextStep    string
	NextStepDue *time.Time
	Tags        []string
	ActorID     string
}

type ProjectUpdateOptions struct {
	ID               string
	Title            *string
	Description      *string
	ClientID         *string
	Kind             *string
	Due              *time.Time
	ClearDue         bool
	NextStep         *string
	NextStepDue      *time.Time
	ClearNextStepDue bool
	Tags             *[]string
	ActorID          string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if err := requireTitle("title", opts.Title); err != nil {
		return domain.Project{}, err
	}
	if opts.Kind == "" {
		opts.Kind = domain.ProjectActive
	}
	if err := oneOf("kind", opts.Kind, domain.ProjectActive, domain.ProjectPlanned); err != nil {
		return domain.Project{}, err
	}
	now := e.stamp()
	p := domain.Project{
		ID:          newID(),
		Title:       opts.Title,
		Description: opts.Description,
		ClientID:    optionalString(opts.ClientID),
		Kind:        opts.Kind,
		Due:         opts.Due,
		NextStep:    opts.NextStep,
		NextStepDue: opts.NextStepDue,
		Tags:        repo.NormalizeTags(opts.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.checkRef(ctx, tx, domain.KindClient, p.ClientID); err != nil {
		return domain.Project{}, err
	}
	if err := e.Repo.SaveProjectTx(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindProject, events.TypeCreated), domain.KindProject, p.ID, opts.ActorID, events.EventPayload{"title": p.Title, "kind": p.Kind}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	p, err := e.Repo.GetProjectTx(ctx, tx, opts.ID)
	if err != nil {
		return p, err
	}
	if opts.Title != nil {
		if err := requireTitle("title", *opts.Title); err != nil {
			return p, err
		}
		p.Title = *opts.Title
	}
	setString(&p.Description, opts.Description)
	setString(&p.NextStep, opts.NextStep)
	if opts.Kind != nil {
		if err := oneOf("kind", *opts.Kind, domain.ProjectActive, domain.ProjectPlanned); err != nil {
			return p, err
		}
		p.Kind = *opts.Kind
	}
	patchString(&p.ClientID, opts.ClientID)
	if opts.ClientID != nil {
		if err := e.checkRef(ctx, tx, domain.KindClient, p.ClientID); err != nil {
			return p, err
		}
	}
	if opts.ClearDue {
		p.Due = nil
	} else if opts.Due != nil {
		p.Due = opts.Due
	}
	if opts.ClearNextStepDue {
		p.NextStepDue = nil
	} else if opts.NextStepDue != nil {
		p.NextStepDue = opts.NextStepDue
	}
	if opts.Tags != nil {
		p.Tags = repo.NormalizeTags(*opts.Tags)
	}
	p.UpdatedAt = e.stamp()
	if err := e.Repo.SaveProjectTx(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindProject, events.TypeUpdated), domain.KindProject, p.ID, opts.ActorID, events.EventPayload{"title": p.Title, "kind": p.Kind}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// DeleteProject removes a project; foreign keys null every reference to it.
func (e Engine) DeleteProject(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	p, err := e.Repo.GetProjectTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteProject(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindProject, events.TypeDeleted), domain.KindProject, id, actorID, events.EventPayload{"title": p.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return e.Repo.GetProject(ctx, id)
}

func (e Engine) ListProjects(ctx context.Context, f repo.ProjectFilters) ([]domain.Project, error) {
	if f.Kind != "" {
		if err := oneOf("kind", f.Kind, domain.ProjectActive, domain.ProjectPlanned); err != nil {
			return nil, err
		}
	}
	res, err := e.Repo.ListProjects(ctx, f)
	if res == nil && err == nil {
		res = []domain.Project{}
	}
	return res, err
}
