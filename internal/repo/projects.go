package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const projectColumns = `id,title,description,client_id,kind,due,next_step,next_step_due,created_at,updated_at`

func scanProject(s scanner) (domain.Project, error) {
	var p domain.Project
	var description, clientID, due, nextStep, nextStepDue sql.NullString
	err := s.Scan(&p.ID, &p.Title, &description, &clientID, &p.Kind, &due, &nextStep, &nextStepDue, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Description = description.String
	p.ClientID = stringPtr(clientID)
	p.NextStep = nextStep.String
	if p.Due, err = timePtr(due); err != nil {
		return p, err
	}
	if p.NextStepDue, err = timePtr(nextStepDue); err != nil {
		return p, err
	}
	return p, nil
}

func (r Repo) SaveProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, upsertSQL("projects", projectColumns),
		p.ID, p.Title, nullable(p.Description), nullableStringPtr(p.ClientID), p.Kind, nullableTime(p.Due),
		nullable(p.NextStep), nullableTime(p.NextStepDue), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return r.SetTagsTx(ctx, tx, domain.KindProject, p.ID, p.Tags)
}

func (r Repo) getProject(ctx context.Context, q querier, id string) (domain.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if err != nil {
		return p, err
	}
	p.Tags, err = r.tagsOf(ctx, q, domain.KindProject, p.ID)
	return p, err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return r.getProject(ctx, r.DB, id)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return r.getProject(ctx, tx, id)
}

type ProjectFilters struct {
	ClientID    string
	Kind        string
	Tag         string
	HasNextStep bool
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.HasNextStep {
		clauses = append(clauses, "COALESCE(next_step,'')<>''")
	}
	if f.Tag != "" {
		c, a := tagClause(domain.KindProject, f.Tag)
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects`+whereClause(clauses)+` ORDER BY due IS NULL, due, created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	var ids []string
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	tags, err := r.tagsFor(ctx, r.DB, domain.KindProject, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Tags = orEmpty(tags[res[i].ID])
	}
	return res, nil
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	if err := expectAffected(tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)); err != nil {
		return err
	}
	return r.DeleteTagsTx(ctx, tx, domain.KindProject, id)
}
