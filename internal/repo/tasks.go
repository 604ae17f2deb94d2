package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const taskColumns = `id,title,description,status,priority,effort,impact,confidence,score,due,client_id,project_id,is_next_step,created_at,updated_at,completed_at`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var status string
	var description, due, clientID, projectID, completedAt sql.NullString
	err := s.Scan(&t.ID, &t.Title, &description, &status, &t.Priority, &t.Effort, &t.Impact, &t.Confidence, &t.Score,
		&due, &clientID, &projectID, &t.IsNextStep, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.TaskStatus(status)
	t.Description = description.String
	t.ClientID = stringPtr(clientID)
	t.ProjectID = stringPtr(projectID)
	t.CompletedAt = stringPtr(completedAt)
	if t.Due, err = timePtr(due); err != nil {
		return t, err
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), string(t.Status), t.Priority, t.Effort, t.Impact, t.Confidence, t.Score,
		nullableTime(t.Due), nullableStringPtr(t.ClientID), nullableStringPtr(t.ProjectID), t.IsNextStep,
		t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return r.SetTagsTx(ctx, tx, domain.KindTask, t.ID, t.Tags)
}

// UpsertTaskTx inserts or fully replaces a task row, used by import.
func (r Repo) UpsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description, status=excluded.status,
 priority=excluded.priority, effort=excluded.effort, impact=excluded.impact, confidence=excluded.confidence,
 score=excluded.score, due=excluded.due, client_id=excluded.client_id, project_id=excluded.project_id,
 is_next_step=excluded.is_next_step, created_at=excluded.created_at, updated_at=excluded.updated_at,
 completed_at=excluded.completed_at`,
		t.ID, t.Title, nullable(t.Description), string(t.Status), t.Priority, t.Effort, t.Impact, t.Confidence, t.Score,
		nullableTime(t.Due), nullableStringPtr(t.ClientID), nullableStringPtr(t.ProjectID), t.IsNextStep,
		t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return r.SetTagsTx(ctx, tx, domain.KindTask, t.ID, t.Tags)
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	err := expectAffected(tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, status=?, priority=?, effort=?, impact=?, confidence=?, score=?, due=?, client_id=?, project_id=?, is_next_step=?, updated_at=?, completed_at=? WHERE id=?`,
		t.Title, nullable(t.Description), string(t.Status), t.Priority, t.Effort, t.Impact, t.Confidence, t.Score,
		nullableTime(t.Due), nullableStringPtr(t.ClientID), nullableStringPtr(t.ProjectID), t.IsNextStep,
		t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID))
	if err != nil {
		return err
	}
	return r.SetTagsTx(ctx, tx, domain.KindTask, t.ID, t.Tags)
}

func (r Repo) UpdateTaskScore(ctx context.Context, tx *sql.Tx, id string, score float64) error {
	return expectAffected(tx.ExecContext(ctx, `UPDATE tasks SET score=? WHERE id=?`, score, id))
}

// ClearNextStepTx unsets is_next_step on every sibling of keepID under the
// same parent. A task's parent is its project, else its client.
func (r Repo) ClearNextStepTx(ctx context.Context, tx *sql.Tx, parentColumn, parentID, keepID string) ([]string, error) {
	var cond string
	switch parentColumn {
	case "project_id":
		cond = "project_id=?"
	case "client_id":
		cond = "client_id=? AND project_id IS NULL"
	default:
		return nil, fmt.Errorf("invalid next-step parent column %q", parentColumn)
	}
	rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE is_next_step=1 AND id<>? AND `+cond, keepID, parentID)
	if err != nil {
		return nil, err
	}
	var cleared []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		cleared = append(cleared, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cleared) == 0 {
		return nil, nil
	}
	_, err = tx.ExecContext(ctx, `UPDATE tasks SET is_next_step=0 WHERE is_next_step=1 AND id<>? AND `+cond, keepID, parentID)
	return cleared, err
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	if err := expectAffected(tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)); err != nil {
		return err
	}
	return r.DeleteTagsTx(ctx, tx, domain.KindTask, id)
}

func (r Repo) getTask(ctx context.Context, q querier, id string) (domain.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if err != nil {
		return t, err
	}
	t.Tags, err = r.tagsOf(ctx, q, domain.KindTask, t.ID)
	return t, err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return r.getTask(ctx, tx, id)
}

type TaskFilters struct {
	Status       string
	ClientID     string
	ProjectID    string
	Tag          string
	NextStepOnly bool
	// ExcludeDone drops tasks with status Done.
	ExcludeDone bool
	DueBefore   string
	Limit       int
}

// ListTasks returns tasks in creation order; callers rank them.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	return r.listTasks(ctx, r.DB, f)
}

func (r Repo) ListTasksTx(ctx context.Context, tx *sql.Tx, f TaskFilters) ([]domain.Task, error) {
	return r.listTasks(ctx, tx, f)
}

func (r Repo) listTasks(ctx context.Context, q querier, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Tag != "" {
		c, a := tagClause(domain.KindTask, f.Tag)
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	if f.NextStepOnly {
		clauses = append(clauses, "is_next_step=1")
	}
	if f.ExcludeDone {
		clauses = append(clauses, "status<>'Done'")
	}
	if f.DueBefore != "" {
		clauses = append(clauses, "due IS NOT NULL AND due<?")
		args = append(args, f.DueBefore)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks` + whereClause(clauses) + ` ORDER BY created_at ASC, rowid ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	var ids []string
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	tags, err := r.tagsFor(ctx, q, domain.KindTask, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Tags = tags[res[i].ID]
		if res[i].Tags == nil {
			res[i].Tags = []string{}
		}
	}
	return res, nil
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// LinkedNoteIDs returns the notes referencing a task.
func (r Repo) LinkedNoteIDs(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT note_id FROM note_tasks WHERE task_id=? ORDER BY note_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
