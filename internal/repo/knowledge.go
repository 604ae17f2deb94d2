package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planner/internal/domain"
)

const knowledgeColumns = `id,title,content,category,is_public,created_at,updated_at,last_accessed_at`

func scanKnowledge(s scanner) (domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	var content, category sql.NullString
	err := s.Scan(&k.ID, &k.Title, &content, &category, &k.IsPublic, &k.CreatedAt, &k.UpdatedAt, &k.LastAccessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return k, ErrNotFound
	}
	if err != nil {
		return k, err
	}
	k.Content = content.String
	k.Category = category.String
	return k, nil
}

func (r Repo) SaveKnowledgeTx(ctx context.Context, tx *sql.Tx, k domain.KnowledgeItem) error {
	_, err := tx.ExecContext(ctx, upsertSQL("knowledge", knowledgeColumns),
		k.ID, k.Title, nullable(k.Content), nullable(k.Category), k.IsPublic, k.CreatedAt, k.UpdatedAt, k.LastAccessedAt)
	if err != nil {
		return fmt.Errorf("save knowledge item: %w", err)
	}
	return r.SetTagsTx(ctx, tx, domain.KindKnowledge, k.ID, k.Tags)
}

func (r Repo) getKnowledge(ctx context.Context, q querier, id string) (domain.KnowledgeItem, error) {
	k, err := scanKnowledge(q.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge WHERE id=?`, id))
	if err != nil {
		return k, err
	}
	k.Tags, err = r.tagsOf(ctx, q, domain.KindKnowledge, id)
	return k, err
}

func (r Repo) GetKnowledgeTx(ctx context.Context, tx *sql.Tx, id string) (domain.KnowledgeItem, error) {
	return r.getKnowledge(ctx, tx, id)
}

// TouchKnowledgeTx records a read of the item.
func (r Repo) TouchKnowledgeTx(ctx context.Context, tx *sql.Tx, id, ts string) error {
	return expectAffected(tx.ExecContext(ctx, `UPDATE knowledge SET last_accessed_at=? WHERE id=?`, ts, id))
}

type KnowledgeFilters struct {
	Category   string
	Tag        string
	PublicOnly bool
}

func (r Repo) ListKnowledge(ctx context.Context, f KnowledgeFilters) ([]domain.KnowledgeItem, error) {
	var clauses []string
	var args []any
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.PublicOnly {
		clauses = append(clauses, "is_public=1")
	}
	if f.Tag != "" {
		c, a := tagClause(domain.KindKnowledge, f.Tag)
		clauses = append(clauses, c)
		args = append(args, a...)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge`+whereClause(clauses)+` ORDER BY last_accessed_at DESC, title`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.KnowledgeItem
	var ids []string
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, k)
		ids = append(ids, k.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	tags, err := r.tagsFor(ctx, r.DB, domain.KindKnowledge, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Tags = orEmpty(tags[res[i].ID])
	}
	return res, nil
}

func (r Repo) DeleteKnowledge(ctx context.Context, tx *sql.Tx, id string) error {
	if err := expectAffected(tx.ExecContext(ctx, `DELETE FROM knowledge WHERE id=?`, id)); err != nil {
		return err
	}
	return r.DeleteTagsTx(ctx, tx, domain.KindKnowledge, id)
}
