package engine

import (
	"context"
	"time"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

var levelValue = map[string]int{
	domain.LevelLow:    1,
	domain.LevelMedium: 2,
	domain.LevelHigh:   3,
}

// RiskScore multiplies severity and likelihood levels (Low=1, Medium=2,
// High=3). Unknown levels count as Low.
func RiskScore(severity, likelihood string) int {
	s, ok := levelValue[severity]
	if !ok {
		s = 1
	}
	l, ok := levelValue[likelihood]
	if !ok {
		l = 1
	}
	return s * l
}

// RiskBand maps a risk score onto Low, Medium or High.
func RiskBand(score int) string {
	switch {
	case score >= 6:
		return domain.LevelHigh
	case score >= 3:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

type RAIDCreateOptions struct {
	Kind        string
	Title       string
	Description string
	Severity    string
	Likelihood  string
	Status      string
	Owner       string
	Due         *time.Time
	Resolution  string
	ProjectID   string
	ClientID    string
	ActorID     string
}

type RAIDUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Severity    *string
	Likelihood  *string
	Status      *string
	Owner       *string
	Due         *time.Time
	ClearDue    bool
	Resolution  *string
	ProjectID   *string
	ClientID    *string
	ActorID     string
}

func validateRAID(it domain.RAIDItem) error {
	if err := oneOf("kind", it.Kind, domain.RAIDKinds...); err != nil {
		return err
	}
	if err := requireTitle("title", it.Title); err != nil {
		return err
	}
	if err := oneOf("severity", it.Severity, domain.LevelLow, domain.LevelMedium, domain.LevelHigh); err != nil {
		return err
	}
	if err := oneOf("likelihood", it.Likelihood, domain.LevelLow, domain.LevelMedium, domain.LevelHigh); err != nil {
		return err
	}
	return oneOf("status", it.Status, domain.RAIDOpen, domain.RAIDMonitoring, domain.RAIDClosed)
}

func (e Engine) CreateRAID(ctx context.Context, opts RAIDCreateOptions) (domain.RAIDItem, error) {
	now := e.stamp()
	it := domain.RAIDItem{
		ID:          newID(),
		Kind:        opts.Kind,
		Title:       opts.Title,
		Description: opts.Description,
		Severity:    opts.Severity,
		Likelihood:  opts.Likelihood,
		Status:      opts.Status,
		Owner:       opts.Owner,
		Due:         opts.Due,
		Resolution:  opts.Resolution,
		ProjectID:   optionalString(opts.ProjectID),
		ClientID:    optionalString(opts.ClientID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if it.Severity == "" {
		it.Severity = domain.LevelMedium
	}
	if it.Likelihood == "" {
		it.Likelihood = domain.LevelMedium
	}
	if it.Status == "" {
		it.Status = domain.RAIDOpen
	}
	if err := validateRAID(it); err != nil {
		return domain.RAIDItem{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RAIDItem{}, err
	}
	defer tx.Rollback()
	if err := e.checkRef(ctx, tx, domain.KindProject, it.ProjectID); err != nil {
		return domain.RAIDItem{}, err
	}
	if err := e.checkRef(ctx, tx, domain.KindClient, it.ClientID); err != nil {
		return domain.RAIDItem{}, err
	}
	if err := e.Repo.SaveRAIDTx(ctx, tx, it); err != nil {
		return domain.RAIDItem{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindRAID, events.TypeCreated), domain.KindRAID, it.ID, opts.ActorID, events.EventPayload{
		"kind":  it.Kind,
		"title": it.Title,
		"score": RiskScore(it.Severity, it.Likelihood),
	}); err != nil {
		return domain.RAIDItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RAIDItem{}, err
	}
	return it, nil
}

func (e Engine) UpdateRAID(ctx context.Context, opts RAIDUpdateOptions) (domain.RAIDItem, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RAIDItem{}, err
	}
	defer tx.Rollback()
	it, err := e.Repo.GetRAIDTx(ctx, tx, opts.ID)
	if err != nil {
		return it, err
	}
	setString(&it.Title, opts.Title)
	setString(&it.Description, opts.Description)
	setString(&it.Severity, opts.Severity)
	setString(&it.Likelihood, opts.Likelihood)
	setString(&it.Status, opts.Status)
	setString(&it.Owner, opts.Owner)
	setString(&it.Resolution, opts.Resolution)
	patchString(&it.ProjectID, opts.ProjectID)
	patchString(&it.ClientID, opts.ClientID)
	if opts.ClearDue {
		it.Due = nil
	} else if opts.Due != nil {
		it.Due = opts.Due
	}
	if err := validateRAID(it); err != nil {
		return it, err
	}
	if opts.ProjectID != nil {
		if err := e.checkRef(ctx, tx, domain.KindProject, it.ProjectID); err != nil {
			return it, err
		}
	}
	if opts.ClientID != nil {
		if err := e.checkRef(ctx, tx, domain.KindClient, it.ClientID); err != nil {
			return it, err
		}
	}
	it.UpdatedAt = e.stamp()
	if err := e.Repo.SaveRAIDTx(ctx, tx, it); err != nil {
		return it, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindRAID, events.TypeUpdated), domain.KindRAID, it.ID, opts.ActorID, events.EventPayload{
		"kind":   it.Kind,
		"status": it.Status,
		"score":  RiskScore(it.Severity, it.Likelihood),
	}); err != nil {
		return it, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RAIDItem{}, err
	}
	return it, nil
}

func (e Engine) DeleteRAID(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	it, err := e.Repo.GetRAIDTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteRAID(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindRAID, events.TypeDeleted), domain.KindRAID, id, actorID, events.EventPayload{"kind": it.Kind, "title": it.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetRAID(ctx context.Context, id string) (domain.RAIDItem, error) {
	return e.Repo.GetRAID(ctx, id)
}

func (e Engine) ListRAID(ctx context.Context, f repo.RAIDFilters) ([]domain.RAIDItem, error) {
	if f.Kind != "" {
		if err := oneOf("kind", f.Kind, domain.RAIDKinds...); err != nil {
			return nil, err
		}
	}
	res, err := e.Repo.ListRAID(ctx, f)
	if res == nil && err == nil {
		res = []domain.RAIDItem{}
	}
	return res, err
}
