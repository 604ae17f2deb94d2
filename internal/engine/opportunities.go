package engine

import (
	"context"
	"time"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

type OpportunityCreateOptions struct {
	Name        string
	ClientID    string
	ProjectID   string
	Stage       string
	Amount      float64
	Probability *float64
	NextStep    string
	NextStepDue *time.Time
	Notes       string
	Tags        []string
	ActorID     string
}

type OpportunityUpdateOptions struct {
	ID               string
	Name             *string
	ClientID         *string
	ProjectID        *string
	Stage            *string
	Amount           *float64
	Probability      *float64
	NextStep         *string
	NextStepDue      *time.Time
	ClearNextStepDue bool
	Notes            *string
	Tags             *[]string
	ActorID          string
}

// defaultProbability is used when an opportunity is created without one.
const defaultProbability = 0.5

func validateOpportunity(o domain.Opportunity) error {
	if err := requireTitle("name", o.Name); err != nil {
		return err
	}
	if err := oneOf("stage", o.Stage, domain.OpportunityStages...); err != nil {
		return err
	}
	if err := finite("amount", o.Amount); err != nil {
		return err
	}
	if o.Amount < 0 {
		return validationf("amount must not be negative")
	}
	if err := finite("probability", o.Probability); err != nil {
		return err
	}
	if o.Probability < 0 || o.Probability > 1 {
		return validationf("probability must be between 0 and 1")
	}
	return nil
}

func (e Engine) CreateOpportunity(ctx context.Context, opts OpportunityCreateOptions) (domain.Opportunity, error) {
	if opts.Stage == "" {
		opts.Stage = domain.StageDiscovery
	}
	prob := defaultProbability
	if opts.Probability != nil {
		prob = *opts.Probability
	}
	now := e.stamp()
	o := domain.Opportunity{
		ID:          newID(),
		Name:        opts.Name,
		ClientID:    optionalString(opts.ClientID),
		ProjectID:   optionalString(opts.ProjectID),
		Stage:       opts.Stage,
		Amount:      opts.Amount,
		Probability: prob,
		NextStep:    opts.NextStep,
		NextStepDue: opts.NextStepDue,
		Notes:       opts.Notes,
		Tags:        repo.NormalizeTags(opts.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateOpportunity(o); err != nil {
		return domain.Opportunity{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Opportunity{}, err
	}
	defer tx.Rollback()
	if err := e.checkRef(ctx, tx, domain.KindClient, o.ClientID); err != nil {
		return domain.Opportunity{}, err
	}
	if err := e.checkRef(ctx, tx, domain.KindProject, o.ProjectID); err != nil {
		return domain.Opportunity{}, err
	}
	if err := e.Repo.SaveOpportunityTx(ctx, tx, o); err != nil {
		return domain.Opportunity{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindOpportunity, events.TypeCreated), domain.KindOpportunity, o.ID, opts.ActorID, events.EventPayload{
		"name":   o.Name,
		"stage":  o.Stage,
		"amount": o.Amount,
	}); err != nil {
		return domain.Opportunity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Opportunity{}, err
	}
	return o, nil
}

func (e Engine) UpdateOpportunity(ctx context.Context, opts OpportunityUpdateOptions) (domain.Opportunity, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Opportunity{}, err
	}
	defer tx.Rollback()
	o, err := e.Repo.GetOpportunityTx(ctx, tx, opts.ID)
	if err != nil {
		return o, err
	}
	fromStage := o.Stage
	setString(&o.Name, opts.Name)
	setString(&o.Stage, opts.Stage)
	setString(&o.NextStep, opts.NextStep)
	setString(&o.Notes, opts.Notes)
	patchString(&o.ClientID, opts.ClientID)
	patchString(&o.ProjectID, opts.ProjectID)
	if opts.Amount != nil {
		o.Amount = *opts.Amount
	}
	if opts.Probability != nil {
		o.Probability = *opts.Probability
	}
	if opts.ClearNextStepDue {
		o.NextStepDue = nil
	} else if opts.NextStepDue != nil {
		o.NextStepDue = opts.NextStepDue
	}
	if opts.Tags != nil {
		o.Tags = repo.NormalizeTags(*opts.Tags)
	}
	if err := validateOpportunity(o); err != nil {
		return o, err
	}
	if opts.ClientID != nil {
		if err := e.checkRef(ctx, tx, domain.KindClient, o.ClientID); err != nil {
			return o, err
		}
	}
	if opts.ProjectID != nil {
		if err := e.checkRef(ctx, tx, domain.KindProject, o.ProjectID); err != nil {
			return o, err
		}
	}
	o.UpdatedAt = e.stamp()
	if err := e.Repo.SaveOpportunityTx(ctx, tx, o); err != nil {
		return o, err
	}
	payload := events.EventPayload{"name": o.Name, "stage": o.Stage, "amount": o.Amount}
	if fromStage != o.Stage {
		payload["from_stage"] = fromStage
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindOpportunity, events.TypeUpdated), domain.KindOpportunity, o.ID, opts.ActorID, payload); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Opportunity{}, err
	}
	return o, nil
}

func (e Engine) DeleteOpportunity(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	o, err := e.Repo.GetOpportunityTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteOpportunity(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindOpportunity, events.TypeDeleted), domain.KindOpportunity, id, actorID, events.EventPayload{"name": o.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetOpportunity(ctx context.Context, id string) (domain.Opportunity, error) {
	return e.Repo.GetOpportunity(ctx, id)
}

func (e Engine) ListOpportunities(ctx context.Context, f repo.OpportunityFilters) ([]domain.Opportunity, error) {
	if f.Stage != "" {
		if err := oneOf("stage", f.Stage, domain.OpportunityStages...); err != nil {
			return nil, err
		}
	}
	res, err := e.Repo.ListOpportunities(ctx, f)
	if res == nil && err == nil {
		res = []domain.Opportunity{}
	}
	return res, err
}

type StageSummary struct {
	Stage    string  `json:"stage"`
	Count    int     `json:"count"`
	Amount   float64 `json:"amount"`
	Weighted float64 `json:"weighted"`
}

type PipelineMetrics struct {
	Stages []StageSummary `json:"stages"`
	// Total is the summed amount of open opportunities.
	Total     float64 `json:"total"`
	Weighted  float64 `json:"weighted"`
	ClosedWon float64 `json:"closed_won"`
	// WinRate is won / closed as a percentage, 0 when nothing closed.
	WinRate   float64 `json:"win_rate"`
	OpenCount int     `json:"open_count"`
}

// ComputePipeline summarises opportunities per stage.
func ComputePipeline(opps []domain.Opportunity) PipelineMetrics {
	m := PipelineMetrics{Stages: make([]StageSummary, len(domain.OpportunityStages))}
	idx := map[string]int{}
	for i, s := range domain.OpportunityStages {
		m.Stages[i] = StageSummary{Stage: s}
		idx[s] = i
	}
	won, closed := 0, 0
	for _, o := range opps {
		if i, ok := idx[o.Stage]; ok {
			m.Stages[i].Count++
			m.Stages[i].Amount += o.Amount
			m.Stages[i].Weighted += o.Amount * o.Probability
		}
		switch {
		case o.Stage == domain.StageClosedWon:
			m.ClosedWon += o.Amount
			won++
			closed++
		case o.Stage == domain.StageClosedLost:
			closed++
		default:
			m.Total += o.Amount
			m.Weighted += o.Amount * o.Probability
			m.OpenCount++
		}
	}
	if closed > 0 {
		m.WinRate = float64(won) / float64(closed) * 100
	}
	return m
}

func (e Engine) PipelineMetrics(ctx context.Context) (PipelineMetrics, error) {
	opps, err := e.Repo.ListOpportunities(ctx, repo.OpportunityFilters{})
	if err != nil {
		return PipelineMetrics{}, err
	}
	return ComputePipeline(opps), nil
}
