package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const opportunityColumns = `id,name,client_id,project_id,stage,amount,probability,next_step,next_step_due,notes,created_at,updated_at`

func scanOpportunity(s scanner) (domain.Opportunity, error) {
	var o domain.Opportunity
	var clientID, projectID, nextStep, nextStepDue, notes sql.NullString
	err := s.Scan(&o.ID, &o.Name, &clientID, &projectID, &o.Stage, &o.Amount, &o.Probability, &nextStep, &nextStepDue, &notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	o.ClientID = stringPtr(clientID)
	o.ProjectID = stringPtr(projectID)
	o.NextStep = nextStep.String
	o.Notes = notes.String
	if o.NextStepDue, err = timePtr(nextStepDue); err != nil {
		return o, err
	}
	return o, nil
}

func (r Repo) SaveOpportunityTx(ctx context.Context, tx *sql.Tx, o domain.Opportunity) error {
	_, err := tx.ExecContext(ctx, upsertSQL("opportunities", opportunityColumns),
		o.ID, o.Name, nullableStringPtr(o.ClientID), nullableStringPtr(o.ProjectID), o.Stage, o.Amount, o.Probability,
		nullable(o.NextStep), nullableTime(o.NextStepDue), nullable(o.Notes), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save opportunity: %w", err)
	}
	return r.SetTagsTx(ctx, tx, domain.KindOpportunity, o.ID, o.Tags)
}

func (r Repo) getOpportunity(ctx context.Context, q querier, id string) (domain.Opportunity, error) {
	o, err := scanOpportunity(q.QueryRowContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id=?`, id))
	if err != nil {
		return o, err
	}
	o.Tags, err = r.tagsOf(ctx, q, domain.KindOpportunity, id)
	return o, err
}

func (r Repo) GetOpportunity(ctx context.Context, id string) (domain.Opportunity, error) {
	return r.getOpportunity(ctx, r.DB, id)
}

func (r Repo) GetOpportunityTx(ctx context.Context, tx *sql.Tx, id string) (domain.Opportunity, error) {
	return r.getOpportunity(ctx, tx, id)
}

type OpportunityFilters struct {
	ClientID string
	Stage    string
	OpenOnly bool
	Tag      string
}

func (r Repo) ListOpportunities(ctx context.Context, f OpportunityFilters) ([]domain.Opportunity, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Stage != "" {
		clauses = append(clauses, "stage=?")
		args = append(args, f.Stage)
	}
	if f.OpenOnly {
		clauses = append(clauses, "stage NOT IN ('Closed Won','Closed Lost')")
	}
	if f.Tag != "" {
		c, a := tagClause(domain.KindOpportunity, f.Tag)
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities`+whereClause(clauses)+` ORDER BY amount DESC, created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Opportunity
	var ids []string
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	tags, err := r.tagsFor(ctx, r.DB, domain.KindOpportunity, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Tags = orEmpty(tags[res[i].ID])
	}
	return res, nil
}

func (r Repo) DeleteOpportunity(ctx context.Context, tx *sql.Tx, id string) error {
	if err := expectAffected(tx.ExecContext(ctx, `DELETE FROM opportunities WHERE id=?`, id)); err != nil {
		return err
	}
	return r.DeleteTagsTx(ctx, tx, domain.KindOpportunity, id)
}
