package engine

import (
	"context"
	"database/sql"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

type NoteCreateOptions struct {
	Title       string
	Content     string
	ClientID    string
	ProjectID   string
	LinkedTasks []string
	Tags        []string
	ActorID     string
}

type NoteUpdateOptions struct {
	ID          string
	Title       *string
	Content     *string
	ClientID    *string
	ProjectID   *string
	LinkedTasks *[]string
	LinkTasks   []string
	UnlinkTasks []string
	Tags        *[]string
	ActorID     string
}

func (e Engine) CreateNote(ctx context.Context, opts NoteCreateOptions) (domain.Note, error) {
	if err := requireTitle("title", opts.Title); err != nil {
		return domain.Note{}, err
	}
	now := e.stamp()
	n := domain.Note{
		ID:          newID(),
		Title:       opts.Title,
		Content:     opts.Content,
		ClientID:    optionalString(opts.ClientID),
		ProjectID:   optionalString(opts.ProjectID),
		LinkedTasks: repo.NormalizeTags(opts.LinkedTasks),
		Tags:        repo.NormalizeTags(opts.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Note{}, err
	}
	defer tx.Rollback()
	if err := e.checkNoteRefs(ctx, tx, n); err != nil {
		return domain.Note{}, err
	}
	if err := e.Repo.SaveNoteTx(ctx, tx, n); err != nil {
		return domain.Note{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindNote, events.TypeCreated), domain.KindNote, n.ID, opts.ActorID, events.EventPayload{
		"title":        n.Title,
		"linked_tasks": n.LinkedTasks,
	}); err != nil {
		return domain.Note{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

func (e Engine) checkNoteRefs(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	if err := e.checkRef(ctx, tx, domain.KindClient, n.ClientID); err != nil {
		return err
	}
	if err := e.checkRef(ctx, tx, domain.KindProject, n.ProjectID); err != nil {
		return err
	}
	for _, id := range n.LinkedTasks {
		if err := e.checkRef(ctx, tx, domain.KindTask, &id); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) UpdateNote(ctx context.Context, opts NoteUpdateOptions) (domain.Note, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Note{}, err
	}
	defer tx.Rollback()
	n, err := e.Repo.GetNoteTx(ctx, tx, opts.ID)
	if err != nil {
		return n, err
	}
	if opts.Title != nil {
		if err := requireTitle("title", *opts.Title); err != nil {
			return n, err
		}
		n.Title = *opts.Title
	}
	setString(&n.Content, opts.Content)
	patchString(&n.ClientID, opts.ClientID)
	patchString(&n.ProjectID, opts.ProjectID)
	if opts.LinkedTasks != nil {
		n.LinkedTasks = *opts.LinkedTasks
	}
	n.LinkedTasks = applyTagDelta(n.LinkedTasks, opts.LinkTasks, opts.UnlinkTasks)
	if opts.Tags != nil {
		n.Tags = repo.NormalizeTags(*opts.Tags)
	}
	if err := e.checkNoteRefs(ctx, tx, n); err != nil {
		return n, err
	}
	n.UpdatedAt = e.stamp()
	if err := e.Repo.SaveNoteTx(ctx, tx, n); err != nil {
		return n, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindNote, events.TypeUpdated), domain.KindNote, n.ID, opts.ActorID, events.EventPayload{
		"title":        n.Title,
		"linked_tasks": n.LinkedTasks,
	}); err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

func (e Engine) DeleteNote(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	n, err := e.Repo.GetNoteTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteNote(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindNote, events.TypeDeleted), domain.KindNote, id, actorID, events.EventPayload{"title": n.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetNote(ctx context.Context, id string) (domain.Note, error) {
	return e.Repo.GetNote(ctx, id)
}

func (e Engine) ListNotes(ctx context.Context, f repo.NoteFilters) ([]domain.Note, error) {
	res, err := e.Repo.ListNotes(ctx, f)
	if res == nil && err == nil {
		res = []domain.Note{}
	}
	return res, err
}
