package engine

import (
	"context"
	"time"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

type ClientCreateOptions struct {
	Name         string
	Industry     string
	Website      string
	Phone        string
	Email        string
	Address      string
	IsKeyAccount bool
	NextStep     string
	NextStepDue  *time.Time
	Tags         []string
	ActorID      string
}

type ClientUpdateOptions struct {
	ID               string
	Name             *string
	Industry         *string
	Website          *string
	Phone            *string
	Email            *string
	Address          *string
	IsKeyAccount     *bool
	NextStep         *string
	NextStepDue      *time.Time
	ClearNextStepDue bool
	Tags             *[]string
	ActorID          string
}

func (e Engine) CreateClient(ctx context.Context, opts ClientCreateOptions) (domain.Client, error) {
	if err := requireTitle("name", opts.Name); err != nil {
		return domain.Client{}, err
	}
	now := e.stamp()
	c := domain.Client{
		ID:           newID(),
		Name:         opts.Name,
		Industry:     opts.Industry,
		Website:      opts.Website,
		Phone:        opts.Phone,
		Email:        opts.Email,
		Address:      opts.Address,
		IsKeyAccount: opts.IsKeyAccount,
		NextStep:     opts.NextStep,
		NextStepDue:  opts.NextStepDue,
		Tags:         repo.NormalizeTags(opts.Tags),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SaveClientTx(ctx, tx, c); err != nil {
		return domain.Client{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindClient, events.TypeCreated), domain.KindClient, c.ID, opts.ActorID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (e Engine) UpdateClient(ctx context.Context, opts ClientUpdateOptions) (domain.Client, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetClientTx(ctx, tx, opts.ID)
	if err != nil {
		return c, err
	}
	if opts.Name != nil {
		if err := requireTitle("name", *opts.Name); err != nil {
			return c, err
		}
		c.Name = *opts.Name
	}
	setString(&c.Industry, opts.Industry)
	setString(&c.Website, opts.Website)
	setString(&c.Phone, opts.Phone)
	setString(&c.Email, opts.Email)
	setString(&c.Address, opts.Address)
	setString(&c.NextStep, opts.NextStep)
	if opts.IsKeyAccount != nil {
		c.IsKeyAccount = *opts.IsKeyAccount
	}
	if opts.ClearNextStepDue {
		c.NextStepDue = nil
	} else if opts.NextStepDue != nil {
		c.NextStepDue = opts.NextStepDue
	}
	if opts.Tags != nil {
		c.Tags = repo.NormalizeTags(*opts.Tags)
	}
	c.UpdatedAt = e.stamp()
	if err := e.Repo.SaveClientTx(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindClient, events.TypeUpdated), domain.KindClient, c.ID, opts.ActorID, events.EventPayload{"name": c.Name}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

// DeleteClient removes a client; foreign keys null every reference to it.
func (e Engine) DeleteClient(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetClientTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteClient(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindClient, events.TypeDeleted), domain.KindClient, id, actorID, events.EventPayload{"name": c.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return e.Repo.GetClient(ctx, id)
}

func (e Engine) ListClients(ctx context.Context, f repo.ClientFilters) ([]domain.Client, error) {
	res, err := e.Repo.ListClients(ctx, f)
	if res == nil && err == nil {
		res = []domain.Client{}
	}
	return res, err
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
