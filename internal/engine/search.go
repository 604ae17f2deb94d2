package engine

import (
	"context"

	"planner/internal/domain"
	"planner/internal/repo"
)

var searchKinds = []string{
	domain.KindTask, domain.KindClient, domain.KindProject,
	domain.KindNote, domain.KindOpportunity, domain.KindKnowledge,
}

// Search runs a case-insensitive substring search over the searchable
// entities, optionally restricted to kinds.
func (e Engine) Search(ctx context.Context, term string, kinds []string, limit int) ([]repo.SearchResult, error) {
	for _, k := range kinds {
		if err := oneOf("kind", k, searchKinds...); err != nil {
			return nil, err
		}
	}
	return e.Repo.Search(ctx, term, kinds, limit)
}

// LatestEvents returns the most recent activity log entries.
func (e Engine) LatestEvents(ctx context.Context, limit int, f repo.EventFilters) ([]domain.Event, error) {
	res, err := e.Repo.LatestEvents(ctx, limit, f)
	if res == nil && err == nil {
		res = []domain.Event{}
	}
	return res, err
}
