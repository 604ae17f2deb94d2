package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const clientColumns = `id,name,industry,website,phone,email,address,is_key_account,next_step,next_step_due,created_at,updated_at`

func scanClient(s scanner) (domain.Client, error) {
	var c domain.Client
	var industry, website, phone, email, address, nextStep, nextStepDue sql.NullString
	err := s.Scan(&c.ID, &c.Name, &industry, &website, &phone, &email, &address, &c.IsKeyAccount, &nextStep, &nextStepDue, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Industry = industry.String
	c.Website = website.String
	c.Phone = phone.String
	c.Email = email.String
	c.Address = address.String
	c.NextStep = nextStep.String
	if c.NextStepDue, err = timePtr(nextStepDue); err != nil {
		return c, err
	}
	return c, nil
}

// SaveClientTx inserts or replaces a client and its tags.
func (r Repo) SaveClientTx(ctx context.Context, tx *sql.Tx, c domain.Client) error {
	_, err := tx.ExecContext(ctx, upsertSQL("clients", clientColumns),
		c.ID, c.Name, nullable(c.Industry), nullable(c.Website), nullable(c.Phone), nullable(c.Email), nullable(c.Address),
		c.IsKeyAccount, nullable(c.NextStep), nullableTime(c.NextStepDue), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save client: %w", err)
	}
	return r.SetTagsTx(ctx, tx, domain.KindClient, c.ID, c.Tags)
}

func (r Repo) getClient(ctx context.Context, q querier, id string) (domain.Client, error) {
	c, err := scanClient(q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=?`, id))
	if err != nil {
		return c, err
	}
	c.Tags, err = r.tagsOf(ctx, q, domain.KindClient, c.ID)
	return c, err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return r.getClient(ctx, r.DB, id)
}

func (r Repo) GetClientTx(ctx context.Context, tx *sql.Tx, id string) (domain.Client, error) {
	return r.getClient(ctx, tx, id)
}

type ClientFilters struct {
	KeyAccountOnly bool
	Tag            string
	HasNextStep    bool
}

func (r Repo) ListClients(ctx context.Context, f ClientFilters) ([]domain.Client, error) {
	var clauses []string
	var args []any
	if f.KeyAccountOnly {
		clauses = append(clauses, "is_key_account=1")
	}
	if f.HasNextStep {
		clauses = append(clauses, "COALESCE(next_step,'')<>''")
	}
	if f.Tag != "" {
		c, a := tagClause(domain.KindClient, f.Tag)
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients`+whereClause(clauses)+` ORDER BY name COLLATE NOCASE, created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	var ids []string
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	tags, err := r.tagsFor(ctx, r.DB, domain.KindClient, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Tags = orEmpty(tags[res[i].ID])
	}
	return res, nil
}

func (r Repo) DeleteClient(ctx context.Context, tx *sql.Tx, id string) error {
	if err := expectAffected(tx.ExecContext(ctx, `DELETE FROM clients WHERE id=?`, id)); err != nil {
		return err
	}
	return r.DeleteTagsTx(ctx, tx, domain.KindClient, id)
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
