package repo

import (
	"context"
	"fmt"
	"strings"

	"planner/internal/domain"
)

// SearchResult is one hit of a workspace search.
type SearchResult struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

var searchSources = []struct {
	kind  string
	query string
}{
	{domain.KindTask, `SELECT id, title, COALESCE(description,'') FROM tasks WHERE lower(title) LIKE ? ESCAPE '\' OR lower(COALESCE(description,'')) LIKE ? ESCAPE '\' ORDER BY score DESC, created_at`},
	{domain.KindClient, `SELECT id, name, COALESCE(industry,'') || ' ' || COALESCE(next_step,'') FROM clients WHERE lower(name) LIKE ? ESCAPE '\' OR lower(COALESCE(industry,'') || ' ' || COALESCE(next_step,'')) LIKE ? ESCAPE '\' ORDER BY name`},
	{domain.KindProject, `SELECT id, title, COALESCE(description,'') FROM projects WHERE lower(title) LIKE ? ESCAPE '\' OR lower(COALESCE(description,'')) LIKE ? ESCAPE '\' ORDER BY title`},
	{domain.KindNote, `SELECT id, title, COALESCE(content,'') FROM notes WHERE lower(title) LIKE ? ESCAPE '\' OR lower(COALESCE(content,'')) LIKE ? ESCAPE '\' ORDER BY updated_at DESC`},
	{domain.KindOpportunity, `SELECT id, name, COALESCE(notes,'') FROM opportunities WHERE lower(name) LIKE ? ESCAPE '\' OR lower(COALESCE(notes,'')) LIKE ? ESCAPE '\' ORDER BY amount DESC`},
	{domain.KindKnowledge, `SELECT id, title, COALESCE(content,'') FROM knowledge WHERE lower(title) LIKE ? ESCAPE '\' OR lower(COALESCE(content,'')) LIKE ? ESCAPE '\' ORDER BY title`},
}

// Search matches term as a case-insensitive substring across entities.
// limit caps results per entity kind.
func (r Repo) Search(ctx context.Context, term string, kinds []string, limit int) ([]SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	want := map[string]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	pattern := likePattern(term)
	res := []SearchResult{}
	for _, src := range searchSources {
		if len(want) > 0 && !want[src.kind] {
			continue
		}
		rows, err := r.DB.QueryContext(ctx, src.query+` LIMIT ?`, pattern, pattern, limit)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", src.kind, err)
		}
		for rows.Next() {
			var hit SearchResult
			var body string
			if err := rows.Scan(&hit.ID, &hit.Title, &body); err != nil {
				rows.Close()
				return nil, err
			}
			hit.Kind = src.kind
			hit.Snippet = snippet(body, term, 80)
			res = append(res, hit)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return res, nil
}

// snippet returns up to width runes of body centred on the first match.
func snippet(body, term string, width int) string {
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= width {
		return body
	}
	idx := strings.Index(strings.ToLower(body), strings.ToLower(term))
	start := 0
	if idx > 0 {
		start = len([]rune(body[:idx])) - width/2
		if start < 0 {
			start = 0
		}
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
		start = end - width
	}
	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}
