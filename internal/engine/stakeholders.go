package engine

import (
	"context"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

var stakeholderAttitudes = []string{"Champion", "Supporter", "Neutral", "Skeptic", "Blocker"}

type StakeholderCreateOptions struct {
	Name      string
	Role      string
	Email     string
	Phone     string
	ClientID  string
	Influence string
	Attitude  string
	Notes     string
	ActorID   string
}

type StakeholderUpdateOptions struct {
	ID        string
	Name      *string
	Role      *string
	Email     *string
	Phone     *string
	ClientID  *string
	Influence *string
	Attitude  *string
	Notes     *string
	ActorID   string
}

func validateStakeholder(s domain.Stakeholder) error {
	if err := requireTitle("name", s.Name); err != nil {
		return err
	}
	if err := oneOf("influence", s.Influence, domain.LevelLow, domain.LevelMedium, domain.LevelHigh); err != nil {
		return err
	}
	return oneOf("attitude", s.Attitude, stakeholderAttitudes...)
}

func (e Engine) CreateStakeholder(ctx context.Context, opts StakeholderCreateOptions) (domain.Stakeholder, error) {
	now := e.stamp()
	s := domain.Stakeholder{
		ID:        newID(),
		Name:      opts.Name,
		Role:      opts.Role,
		Email:     opts.Email,
		Phone:     opts.Phone,
		ClientID:  optionalString(opts.ClientID),
		Influence: opts.Influence,
		Attitude:  opts.Attitude,
		Notes:     opts.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.Influence == "" {
		s.Influence = domain.LevelMedium
	}
	if s.Attitude == "" {
		s.Attitude = "Neutral"
	}
	if err := validateStakeholder(s); err != nil {
		return domain.Stakeholder{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stakeholder{}, err
	}
	defer tx.Rollback()
	if err := e.checkRef(ctx, tx, domain.KindClient, s.ClientID); err != nil {
		return domain.Stakeholder{}, err
	}
	if err := e.Repo.SaveStakeholderTx(ctx, tx, s); err != nil {
		return domain.Stakeholder{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindStakeholder, events.TypeCreated), domain.KindStakeholder, s.ID, opts.ActorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Stakeholder{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stakeholder{}, err
	}
	return s, nil
}

func (e Engine) UpdateStakeholder(ctx context.Context, opts StakeholderUpdateOptions) (domain.Stakeholder, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stakeholder{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetStakeholderTx(ctx, tx, opts.ID)
	if err != nil {
		return s, err
	}
	setString(&s.Name, opts.Name)
	setString(&s.Role, opts.Role)
	setString(&s.Email, opts.Email)
	setString(&s.Phone, opts.Phone)
	setString(&s.Influence, opts.Influence)
	setString(&s.Attitude, opts.Attitude)
	setString(&s.Notes, opts.Notes)
	patchString(&s.ClientID, opts.ClientID)
	if err := validateStakeholder(s); err != nil {
		return s, err
	}
	if opts.ClientID != nil {
		if err := e.checkRef(ctx, tx, domain.KindClient, s.ClientID); err != nil {
			return s, err
		}
	}
	s.UpdatedAt = e.stamp()
	if err := e.Repo.SaveStakeholderTx(ctx, tx, s); err != nil {
		return s, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindStakeholder, events.TypeUpdated), domain.KindStakeholder, s.ID, opts.ActorID, events.EventPayload{
		"name":      s.Name,
		"attitude":  s.Attitude,
		"influence": s.Influence,
	}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stakeholder{}, err
	}
	return s, nil
}

func (e Engine) DeleteStakeholder(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetStakeholderTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteStakeholder(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindStakeholder, events.TypeDeleted), domain.KindStakeholder, id, actorID, events.EventPayload{"name": s.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetStakeholder(ctx context.Context, id string) (domain.Stakeholder, error) {
	return e.Repo.GetStakeholder(ctx, id)
}

func (e Engine) ListStakeholders(ctx context.Context, f repo.StakeholderFilters) ([]domain.Stakeholder, error) {
	res, err := e.Repo.ListStakeholders(ctx, f)
	if res == nil && err == nil {
		res = []domain.Stakeholder{}
	}
	return res, err
}
