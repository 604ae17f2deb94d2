package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const stakeholderColumns = `id,name,role,email,phone,client_id,influence,attitude,notes,created_at,updated_at`

func scanStakeholder(s scanner) (domain.Stakeholder, error) {
	var st domain.Stakeholder
	var role, email, phone, clientID, notes sql.NullString
	err := s.Scan(&st.ID, &st.Name, &role, &email, &phone, &clientID, &st.Influence, &st.Attitude, &notes, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	st.Role = role.String
	st.Email = email.String
	st.Phone = phone.String
	st.ClientID = stringPtr(clientID)
	st.Notes = notes.String
	return st, nil
}

func (r Repo) SaveStakeholderTx(ctx context.Context, tx *sql.Tx, s domain.Stakeholder) error {
	_, err := tx.ExecContext(ctx, upsertSQL("stakeholders", stakeholderColumns),
		s.ID, s.Name, nullable(s.Role), nullable(s.Email), nullable(s.Phone), nullableStringPtr(s.ClientID),
		s.Influence, s.Attitude, nullable(s.Notes), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save stakeholder: %w", err)
	}
	return nil
}

func (r Repo) GetStakeholder(ctx context.Context, id string) (domain.Stakeholder, error) {
	return scanStakeholder(r.DB.QueryRowContext(ctx, `SELECT `+stakeholderColumns+` FROM stakeholders WHERE id=?`, id))
}

func (r Repo) GetStakeholderTx(ctx context.Context, tx *sql.Tx, id string) (domain.Stakeholder, error) {
	return scanStakeholder(tx.QueryRowContext(ctx, `SELECT `+stakeholderColumns+` FROM stakeholders WHERE id=?`, id))
}

type StakeholderFilters struct {
	ClientID  string
	Influence string
	Attitude  string
}

func (r Repo) ListStakeholders(ctx context.Context, f StakeholderFilters) ([]domain.Stakeholder, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Influence != "" {
		clauses = append(clauses, "influence=?")
		args = append(args, f.Influence)
	}
	if f.Attitude != "" {
		clauses = append(clauses, "attitude=?")
		args = append(args, f.Attitude)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stakeholderColumns+` FROM stakeholders`+whereClause(clauses)+` ORDER BY name COLLATE NOCASE`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stakeholder
	for rows.Next() {
		s, err := scanStakeholder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) DeleteStakeholder(ctx context.Context, tx *sql.Tx, id string) error {
	return expectAffected(tx.ExecContext(ctx, `DELETE FROM stakeholders WHERE id=?`, id))
}
