package engine

import (
	"context"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

type KnowledgeCreateOptions struct {
	Title    string
	Content  string
	Category string
	Tags     []string
	IsPublic bool
	ActorID  string
}

type KnowledgeUpdateOptions struct {
	ID       string
	Title    *string
	Content  *string
	Category *string
	Tags     *[]string
	IsPublic *bool
	ActorID  string
}

func (e Engine) CreateKnowledge(ctx context.Context, opts KnowledgeCreateOptions) (domain.KnowledgeItem, error) {
	if err := requireTitle("title", opts.Title); err != nil {
		return domain.KnowledgeItem{}, err
	}
	now := e.stamp()
	k := domain.KnowledgeItem{
		ID:             newID(),
		Title:          opts.Title,
		Content:        opts.Content,
		Category:       opts.Category,
		Tags:           repo.NormalizeTags(opts.Tags),
		IsPublic:       opts.IsPublic,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.KnowledgeItem{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SaveKnowledgeTx(ctx, tx, k); err != nil {
		return domain.KnowledgeItem{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindKnowledge, events.TypeCreated), domain.KindKnowledge, k.ID, opts.ActorID, events.EventPayload{
		"title":    k.Title,
		"category": k.Category,
	}); err != nil {
		return domain.KnowledgeItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.KnowledgeItem{}, err
	}
	return k, nil
}

// GetKnowledge returns an item and records the access time.
func (e Engine) GetKnowledge(ctx context.Context, id string) (domain.KnowledgeItem, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.KnowledgeItem{}, err
	}
	defer tx.Rollback()
	now := e.stamp()
	if err := e.Repo.TouchKnowledgeTx(ctx, tx, id, now); err != nil {
		return domain.KnowledgeItem{}, err
	}
	k, err := e.Repo.GetKnowledgeTx(ctx, tx, id)
	if err != nil {
		return k, err
	}
	if err := tx.Commit(); err != nil {
		return domain.KnowledgeItem{}, err
	}
	return k, nil
}

func (e Engine) UpdateKnowledge(ctx context.Context, opts KnowledgeUpdateOptions) (domain.KnowledgeItem, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.KnowledgeItem{}, err
	}
	defer tx.Rollback()
	k, err := e.Repo.GetKnowledgeTx(ctx, tx, opts.ID)
	if err != nil {
		return k, err
	}
	if opts.Title != nil {
		if err := requireTitle("title", *opts.Title); err != nil {
			return k, err
		}
		k.Title = *opts.Title
	}
	setString(&k.Content, opts.Content)
	setString(&k.Category, opts.Category)
	if opts.IsPublic != nil {
		k.IsPublic = *opts.IsPublic
	}
	if opts.Tags != nil {
		k.Tags = repo.NormalizeTags(*opts.Tags)
	}
	k.UpdatedAt = e.stamp()
	if err := e.Repo.SaveKnowledgeTx(ctx, tx, k); err != nil {
		return k, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindKnowledge, events.TypeUpdated), domain.KindKnowledge, k.ID, opts.ActorID, events.EventPayload{"title": k.Title}); err != nil {
		return k, err
	}
	if err := tx.Commit(); err != nil {
		return domain.KnowledgeItem{}, err
	}
	return k, nil
}

func (e Engine) DeleteKnowledge(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	k, err := e.Repo.GetKnowledgeTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteKnowledge(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindKnowledge, events.TypeDeleted), domain.KindKnowledge, id, actorID, events.EventPayload{"title": k.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListKnowledge(ctx context.Context, f repo.KnowledgeFilters) ([]domain.KnowledgeItem, error) {
	res, err := e.Repo.ListKnowledge(ctx, f)
	if res == nil && err == nil {
		res = []domain.KnowledgeItem{}
	}
	return res, err
}
