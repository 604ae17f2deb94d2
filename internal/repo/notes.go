package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const noteColumns = `id,title,content,client_id,project_id,created_at,updated_at`

func scanNote(s scanner) (domain.Note, error) {
	var n domain.Note
	var content, clientID, projectID sql.NullString
	err := s.Scan(&n.ID, &n.Title, &content, &clientID, &projectID, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return n, ErrNotFound
	}
	if err != nil {
		return n, err
	}
	n.Content = content.String
	n.ClientID = stringPtr(clientID)
	n.ProjectID = stringPtr(projectID)
	return n, nil
}

// SaveNoteTx inserts or replaces a note, its tags and its task links.
// Links to tasks that do not exist are rejected by the foreign key.
func (r Repo) SaveNoteTx(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, upsertSQL("notes", noteColumns),
		n.ID, n.Title, nullable(n.Content), nullableStringPtr(n.ClientID), nullableStringPtr(n.ProjectID), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tasks WHERE note_id=?`, n.ID); err != nil {
		return err
	}
	for _, taskID := range NormalizeTags(n.LinkedTasks) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO note_tasks(note_id,task_id) VALUES (?,?)`, n.ID, taskID); err != nil {
			return fmt.Errorf("link task %s: %w", taskID, err)
		}
	}
	return r.SetTagsTx(ctx, tx, domain.KindNote, n.ID, n.Tags)
}

func (r Repo) noteLinks(ctx context.Context, q querier, ids []string) (map[string][]string, error) {
	res := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, `SELECT note_id, task_id FROM note_tasks WHERE note_id IN (`+placeholders(len(ids))+`) ORDER BY task_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var noteID, taskID string
		if err := rows.Scan(&noteID, &taskID); err != nil {
			return nil, err
		}
		res[noteID] = append(res[noteID], taskID)
	}
	return res, rows.Err()
}

func (r Repo) getNote(ctx context.Context, q querier, id string) (domain.Note, error) {
	n, err := scanNote(q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=?`, id))
	if err != nil {
		return n, err
	}
	links, err := r.noteLinks(ctx, q, []string{id})
	if err != nil {
		return n, err
	}
	n.LinkedTasks = orEmpty(links[id])
	n.Tags, err = r.tagsOf(ctx, q, domain.KindNote, id)
	return n, err
}

func (r Repo) GetNote(ctx context.Context, id string) (domain.Note, error) {
	return r.getNote(ctx, r.DB, id)
}

func (r Repo) GetNoteTx(ctx context.Context, tx *sql.Tx, id string) (domain.Note, error) {
	return r.getNote(ctx, tx, id)
}

type NoteFilters struct {
	ClientID  string
	ProjectID string
	TaskID    string
	Tag       string
}

func (r Repo) ListNotes(ctx context.Context, f NoteFilters) ([]domain.Note, error) {
	var clauses []string
	var args []any
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "id IN (SELECT note_id FROM note_tasks WHERE task_id=?)")
		args = append(args, f.TaskID)
	}
	if f.Tag != "" {
		c, a := tagClause(domain.KindNote, f.Tag)
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes`+whereClause(clauses)+` ORDER BY updated_at DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	var ids []string
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	links, err := r.noteLinks(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	tags, err := r.tagsFor(ctx, r.DB, domain.KindNote, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].LinkedTasks = orEmpty(links[res[i].ID])
		res[i].Tags = orEmpty(tags[res[i].ID])
	}
	return res, nil
}

func (r Repo) DeleteNote(ctx context.Context, tx *sql.Tx, id string) error {
	if err := expectAffected(tx.ExecContext(ctx, `DELETE FROM notes WHERE id=?`, id)); err != nil {
		return err
	}
	return r.DeleteTagsTx(ctx, tx, domain.KindNote, id)
}
