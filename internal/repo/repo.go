package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", v.String, err)
	}
	return &t, nil
}

func expectAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

// likePattern escapes s for a case-insensitive LIKE with ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// NormalizeTags trims, drops blanks and duplicates, and sorts.
func NormalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SetTagsTx replaces the tag set of an entity.
func (r Repo) SetTagsTx(ctx context.Context, tx *sql.Tx, kind, id string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entity_kind=? AND entity_id=?`, kind, id); err != nil {
		return err
	}
	for _, t := range NormalizeTags(tags) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags(entity_kind,entity_id,tag) VALUES (?,?,?)`, kind, id, t); err != nil {
			return fmt.Errorf("insert tag %s: %w", t, err)
		}
	}
	return nil
}

func (r Repo) DeleteTagsTx(ctx context.Context, tx *sql.Tx, kind, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entity_kind=? AND entity_id=?`, kind, id)
	return err
}

func (r Repo) tagsFor(ctx context.Context, q querier, kind string, ids []string) (map[string][]string, error) {
	res := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	args := []any{kind}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, `SELECT entity_id, tag FROM tags WHERE entity_kind=? AND entity_id IN (`+placeholders(len(ids))+`) ORDER BY tag`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		res[id] = append(res[id], tag)
	}
	return res, rows.Err()
}

func (r Repo) tagsOf(ctx context.Context, q querier, kind, id string) ([]string, error) {
	m, err := r.tagsFor(ctx, q, kind, []string{id})
	if err != nil {
		return nil, err
	}
	if tags := m[id]; tags != nil {
		return tags, nil
	}
	return []string{}, nil
}

// AllTags returns every distinct tag of an entity kind with its use count.
func (r Repo) AllTags(ctx context.Context, kind string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT tag, COUNT(*) FROM tags WHERE entity_kind=? GROUP BY tag`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		res[tag] = n
	}
	return res, rows.Err()
}

func tagClause(kind, tag string) (string, []any) {
	return "id IN (SELECT entity_id FROM tags WHERE entity_kind=? AND tag=?)", []any{kind, tag}
}

// Counts returns row counts per table used by the dashboard.
func (r Repo) Counts(ctx context.Context) (map[string]int, error) {
	queries := map[string]string{
		"clients":            `SELECT COUNT(*) FROM clients`,
		"active_projects":    `SELECT COUNT(*) FROM projects WHERE kind='Active'`,
		"planned_projects":   `SELECT COUNT(*) FROM projects WHERE kind='Planned'`,
		"open_opportunities": `SELECT COUNT(*) FROM opportunities WHERE stage NOT IN ('Closed Won','Closed Lost')`,
		"open_tasks":         `SELECT COUNT(*) FROM tasks WHERE status<>'Done'`,
		"open_raid":          `SELECT COUNT(*) FROM raid_items WHERE status<>'Closed'`,
	}
	res := make(map[string]int, len(queries))
	for name, query := range queries {
		var n int
		if err := r.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		res[name] = n
	}
	return res, nil
}

// upsertSQL builds an insert that replaces every non-key column on id
// conflict.
func upsertSQL(table, columns string) string {
	cols := strings.Split(columns, ",")
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == "id" {
			continue
		}
		sets = append(sets, c+"=excluded."+c)
	}
	return `INSERT INTO ` + table + `(` + columns + `) VALUES (` + placeholders(len(cols)) + `) ON CONFLICT(id) DO UPDATE SET ` + strings.Join(sets, ",")
}
