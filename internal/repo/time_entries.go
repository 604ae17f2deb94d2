package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"planner/internal/domain"
)

const timeEntryColumns = `id,date,hours,billable,client_id,project_id,task_id,notes,created_at`

func scanTimeEntry(s scanner) (domain.TimeEntry, error) {
	var te domain.TimeEntry
	var clientID, projectID, taskID, notes sql.NullString
	err := s.Scan(&te.ID, &te.Date, &te.Hours, &te.Billable, &clientID, &projectID, &taskID, &notes, &te.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return te, ErrNotFound
	}
	if err != nil {
		return te, err
	}
	te.ClientID = stringPtr(clientID)
	te.ProjectID = stringPtr(projectID)
	te.TaskID = stringPtr(taskID)
	te.Notes = notes.String
	return te, nil
}

func (r Repo) SaveTimeEntryTx(ctx context.Context, tx *sql.Tx, te domain.TimeEntry) error {
	_, err := tx.ExecContext(ctx, upsertSQL("time_entries", timeEntryColumns),
		te.ID, te.Date, te.Hours, te.Billable, nullableStringPtr(te.ClientID), nullableStringPtr(te.ProjectID),
		nullableStringPtr(te.TaskID), nullable(te.Notes), te.CreatedAt)
	if err != nil {
		return fmt.Errorf("save time entry: %w", err)
	}
	return nil
}

func (r Repo) GetTimeEntry(ctx context.Context, id string) (domain.TimeEntry, error) {
	return scanTimeEntry(r.DB.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id=?`, id))
}

func (r Repo) GetTimeEntryTx(ctx context.Context, tx *sql.Tx, id string) (domain.TimeEntry, error) {
	return scanTimeEntry(tx.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id=?`, id))
}

// TimeEntryFilters selects entries by inclusive date range (YYYY-MM-DD).
type TimeEntryFilters struct {
	From      string
	To        string
	ClientID  string
	ProjectID string
	TaskID    string
	Billable  *bool
}

func (r Repo) ListTimeEntries(ctx context.Context, f TimeEntryFilters) ([]domain.TimeEntry, error) {
	var clauses []string
	var args []any
	if f.From != "" {
		clauses = append(clauses, "date>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "date<=?")
		args = append(args, f.To)
	}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	if f.Billable != nil {
		clauses = append(clauses, "billable=?")
		args = append(args, *f.Billable)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries`+whereClause(clauses)+` ORDER BY date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeEntry
	for rows.Next() {
		te, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, te)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTimeEntry(ctx context.Context, tx *sql.Tx, id string) error {
	return expectAffected(tx.ExecContext(ctx, `DELETE FROM time_entries WHERE id=?`, id))
}

// HoursOn sums hours logged on a date.
func (r Repo) HoursOn(ctx context.Context, date string) (float64, error) {
	var h float64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(hours),0) FROM time_entries WHERE date=?`, date).Scan(&h)
	return h, err
}

func scanTimer(row *sql.Row) (domain.Timer, error) {
	var tm domain.Timer
	var taskID sql.NullString
	var started string
	err := row.Scan(&taskID, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return tm, ErrNotFound
	}
	if err != nil {
		return tm, err
	}
	tm.TaskID = stringPtr(taskID)
	if tm.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return tm, fmt.Errorf("parse timer start: %w", err)
	}
	return tm, nil
}

// GetTimer returns the running timer or ErrNotFound.
func (r Repo) GetTimer(ctx context.Context) (domain.Timer, error) {
	return scanTimer(r.DB.QueryRowContext(ctx, `SELECT task_id, started_at FROM timer WHERE id=1`))
}

func (r Repo) GetTimerTx(ctx context.Context, tx *sql.Tx) (domain.Timer, error) {
	return scanTimer(tx.QueryRowContext(ctx, `SELECT task_id, started_at FROM timer WHERE id=1`))
}

func (r Repo) StartTimerTx(ctx context.Context, tx *sql.Tx, tm domain.Timer) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO timer(id,task_id,started_at) VALUES (1,?,?)`,
		nullableStringPtr(tm.TaskID), tm.StartedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r Repo) ClearTimerTx(ctx context.Context, tx *sql.Tx) error {
	return expectAffected(tx.ExecContext(ctx, `DELETE FROM timer WHERE id=1`))
}
