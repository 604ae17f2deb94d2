package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const raidColumns = `id,kind,title,description,severity,likelihood,status,owner,due,resolution,project_id,client_id,created_at,updated_at`

func scanRAID(s scanner) (domain.RAIDItem, error) {
	var it domain.RAIDItem
	var description, owner, due, resolution, projectID, clientID sql.NullString
	err := s.Scan(&it.ID, &it.Kind, &it.Title, &description, &it.Severity, &it.Likelihood, &it.Status, &owner, &due, &resolution,
		&projectID, &clientID, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return it, ErrNotFound
	}
	if err != nil {
		return it, err
	}
	it.Description = description.String
	it.Owner = owner.String
	it.Resolution = resolution.String
	it.ProjectID = stringPtr(projectID)
	it.ClientID = stringPtr(clientID)
	if it.Due, err = timePtr(due); err != nil {
		return it, err
	}
	return it, nil
}

func (r Repo) SaveRAIDTx(ctx context.Context, tx *sql.Tx, it domain.RAIDItem) error {
	_, err := tx.ExecContext(ctx, upsertSQL("raid_items", raidColumns),
		it.ID, it.Kind, it.Title, nullable(it.Description), it.Severity, it.Likelihood, it.Status, nullable(it.Owner),
		nullableTime(it.Due), nullable(it.Resolution), nullableStringPtr(it.ProjectID), nullableStringPtr(it.ClientID),
		it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save raid item: %w", err)
	}
	return nil
}

func (r Repo) GetRAID(ctx context.Context, id string) (domain.RAIDItem, error) {
	return scanRAID(r.DB.QueryRowContext(ctx, `SELECT `+raidColumns+` FROM raid_items WHERE id=?`, id))
}

func (r Repo) GetRAIDTx(ctx context.Context, tx *sql.Tx, id string) (domain.RAIDItem, error) {
	return scanRAID(tx.QueryRowContext(ctx, `SELECT `+raidColumns+` FROM raid_items WHERE id=?`, id))
}

type RAIDFilters struct {
	Kind      string
	Status    string
	ProjectID string
	ClientID  string
	OpenOnly  bool
}

func (r Repo) ListRAID(ctx context.Context, f RAIDFilters) ([]domain.RAIDItem, error) {
	var clauses []string
	var args []any
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.OpenOnly {
		clauses = append(clauses, "status<>'Closed'")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+raidColumns+` FROM raid_items`+whereClause(clauses)+` ORDER BY created_at DESC, rowid DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RAIDItem
	for rows.Next() {
		it, err := scanRAID(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (r Repo) DeleteRAID(ctx context.Context, tx *sql.Tx, id string) error {
	return expectAffected(tx.ExecContext(ctx, `DELETE FROM raid_items WHERE id=?`, id))
}
