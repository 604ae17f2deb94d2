package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/ranking"
	"planner/internal/repo"
)

// TaskCreateOptions are parameters for creating a task. Nil scoring fields
// take the configured defaults.
type TaskCreateOptions struct {
	ID          string
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    *int
	Effort      *float64
	Impact      *int
	Confidence  *float64
	Due         *time.Time
	ClientID    string
	ProjectID   string
	IsNextStep  bool
	Tags        []string
	ActorID     string
}

// TaskUpdateOptions is a partial update; nil fields are left unchanged.
// Empty ClientID or ProjectID clears the reference.
type TaskUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	Priority    *int
	Effort      *float64
	Impact      *int
	Confidence  *float64
	Due         *time.Time
	ClearDue    bool
	ClientID    *string
	ProjectID   *string
	IsNextStep  *bool
	Tags        *[]string
	AddTags     []string
	RemoveTags  []string
	ActorID     string
}

func (o TaskUpdateOptions) touchesScore() bool {
	return o.Priority != nil || o.Effort != nil || o.Impact != nil || o.Confidence != nil
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if err := requireTitle("title", opts.Title); err != nil {
		return domain.Task{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.StatusInbox
	}
	if !opts.Status.Valid() {
		return domain.Task{}, validationf("invalid status %q", opts.Status)
	}
	now := e.stamp()
	t := domain.Task{
		ID:          opts.ID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      opts.Status,
		Priority:    e.Config.Tasks.DefaultPriority,
		Effort:      e.Config.Tasks.DefaultEffort,
		Impact:      e.Config.Tasks.DefaultImpact,
		Confidence:  e.Config.Tasks.DefaultConfidence,
		Due:         opts.Due,
		ClientID:    optionalString(opts.ClientID),
		ProjectID:   optionalString(opts.ProjectID),
		IsNextStep:  opts.IsNextStep,
		Tags:        repo.NormalizeTags(opts.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	if opts.Effort != nil {
		t.Effort = *opts.Effort
	}
	if opts.Impact != nil {
		t.Impact = *opts.Impact
	}
	if opts.Confidence != nil {
		t.Confidence = *opts.Confidence
	}
	if t.Status == domain.StatusDone {
		t.CompletedAt = &now
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.resolveTaskParents(ctx, tx, &t); err != nil {
		return domain.Task{}, err
	}
	if err := e.scoreTask(&t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.enforceNextStep(ctx, tx, t, opts.ActorID); err != nil {
		return domain.Task{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTask, events.TypeCreated), domain.KindTask, t.ID, opts.ActorID, events.EventPayload{
		"title":  t.Title,
		"status": t.Status,
		"score":  t.Score,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// scoreTask clamps the scoring inputs in place and stores the score of the
// clamped values, so a later rescore of the row yields the same number.
func (e Engine) scoreTask(t *domain.Task) error {
	if err := finite("confidence", t.Confidence); err != nil {
		return err
	}
	if err := finite("effort", t.Effort); err != nil {
		return err
	}
	in := ranking.Inputs{Priority: t.Priority, Impact: t.Impact, Confidence: t.Confidence, Effort: t.Effort}
	n, clamped := in.Normalize()
	t.Priority, t.Impact, t.Confidence, t.Effort = n.Priority, n.Impact, n.Confidence, n.Effort
	t.Score = n.Score()
	if clamped {
		e.logger().Warn("task scoring inputs clamped",
			zap.String("task_id", t.ID),
			zap.Int("priority", in.Priority),
			zap.Int("impact", in.Impact),
			zap.Float64("confidence", in.Confidence),
			zap.Float64("effort", in.Effort),
			zap.Float64("score", t.Score))
	}
	return nil
}

// resolveTaskParents checks references and inherits the client of the
// task's project when no client is given.
func (e Engine) resolveTaskParents(ctx context.Context, tx *sql.Tx, t *domain.Task) error {
	if t.ProjectID != nil {
		p, err := e.Repo.GetProjectTx(ctx, tx, *t.ProjectID)
		if errors.Is(err, repo.ErrNotFound) {
			return validationf("project %s not found", *t.ProjectID)
		}
		if err != nil {
			return err
		}
		if t.ClientID == nil && p.ClientID != nil {
			cid := *p.ClientID
			t.ClientID = &cid
		}
	}
	return e.checkRef(ctx, tx, domain.KindClient, t.ClientID)
}

// enforceNextStep keeps at most one next-step task per parent.
func (e Engine) enforceNextStep(ctx context.Context, tx *sql.Tx, t domain.Task, actorID string) error {
	if !t.IsNextStep {
		return nil
	}
	column, parent := "project_id", derefString(t.ProjectID)
	if parent == "" {
		column, parent = "client_id", derefString(t.ClientID)
	}
	if parent == "" {
		return nil
	}
	cleared, err := e.Repo.ClearNextStepTx(ctx, tx, column, parent, t.ID)
	if err != nil {
		return err
	}
	for _, id := range cleared {
		if err := e.events().Append(ctx, tx, events.Type(domain.KindTask, events.TypeUpdated), domain.KindTask, id, actorID, events.EventPayload{
			"is_next_step": false,
			"replaced_by":  t.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := e.updateTaskTx(ctx, tx, opts)
	if err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// BulkUpdateTasks applies the same patch to every id in one transaction.
func (e Engine) BulkUpdateTasks(ctx context.Context, ids []string, opts TaskUpdateOptions) ([]domain.Task, error) {
	if len(ids) == 0 {
		return nil, validationf("no task ids given")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	res := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		o := opts
		o.ID = id
		t, err := e.updateTaskTx(ctx, tx, o)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (e Engine) updateTaskTx(ctx context.Context, tx *sql.Tx, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return t, err
	}
	before := t
	now := e.stamp()
	if opts.Title != nil {
		if err := requireTitle("title", *opts.Title); err != nil {
			return t, err
		}
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Status != nil {
		if !opts.Status.Valid() {
			return t, validationf("invalid status %q", *opts.Status)
		}
		t.Status = *opts.Status
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	if opts.Effort != nil {
		t.Effort = *opts.Effort
	}
	if opts.Impact != nil {
		t.Impact = *opts.Impact
	}
	if opts.Confidence != nil {
		t.Confidence = *opts.Confidence
	}
	if opts.ClearDue {
		t.Due = nil
	} else if opts.Due != nil {
		d := *opts.Due
		t.Due = &d
	}
	patchString(&t.ClientID, opts.ClientID)
	patchString(&t.ProjectID, opts.ProjectID)
	if opts.IsNextStep != nil {
		t.IsNextStep = *opts.IsNextStep
	}
	if opts.Tags != nil {
		t.Tags = *opts.Tags
	}
	t.Tags = applyTagDelta(t.Tags, opts.AddTags, opts.RemoveTags)

	switch {
	case t.Status == domain.StatusDone && before.Status != domain.StatusDone:
		t.CompletedAt = &now
	case t.Status != domain.StatusDone:
		t.CompletedAt = nil
	}
	if opts.ClientID != nil || opts.ProjectID != nil {
		if err := e.resolveTaskParents(ctx, tx, &t); err != nil {
			return t, err
		}
	}
	if opts.touchesScore() {
		if err := e.scoreTask(&t); err != nil {
			return t, err
		}
	}
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.enforceNextStep(ctx, tx, t, opts.ActorID); err != nil {
		return t, err
	}
	evt := events.TypeUpdated
	if t.Status == domain.StatusDone && before.Status != domain.StatusDone {
		evt = events.TypeCompleted
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTask, evt), domain.KindTask, t.ID, opts.ActorID, taskDiff(before, t)); err != nil {
		return t, err
	}
	return t, nil
}

func applyTagDelta(tags, add, remove []string) []string {
	drop := map[string]bool{}
	for _, r := range remove {
		drop[r] = true
	}
	var out []string
	for _, t := range append(append([]string{}, tags...), add...) {
		if !drop[t] {
			out = append(out, t)
		}
	}
	return repo.NormalizeTags(out)
}

func taskDiff(before, after domain.Task) events.EventPayload {
	p := events.EventPayload{}
	if before.Title != after.Title {
		p["title"] = after.Title
	}
	if before.Status != after.Status {
		p["from_status"] = before.Status
		p["status"] = after.Status
	}
	if before.Score != after.Score {
		p["score"] = after.Score
	}
	if before.Priority != after.Priority {
		p["priority"] = after.Priority
	}
	if before.IsNextStep != after.IsNextStep {
		p["is_next_step"] = after.IsNextStep
	}
	if !sameTime(before.Due, after.Due) {
		p["due"] = after.Due
	}
	return p
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (e Engine) CompleteTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	done := domain.StatusDone
	return e.UpdateTask(ctx, TaskUpdateOptions{ID: id, Status: &done, ActorID: actorID})
}

func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTask, events.TypeDeleted), domain.KindTask, id, actorID, events.EventPayload{"title": t.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// RescoreTasks recomputes every stored score and returns how many changed.
func (e Engine) RescoreTasks(ctx context.Context, actorID string) (int, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	tasks, err := e.Repo.ListTasksTx(ctx, tx, repo.TaskFilters{})
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, t := range tasks {
		score := ranking.ComputeScore(t.Priority, t.Impact, t.Confidence, t.Effort)
		if score == t.Score {
			continue
		}
		if err := e.Repo.UpdateTaskScore(ctx, tx, t.ID, score); err != nil {
			return 0, err
		}
		changed++
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTask, events.TypeRescored), domain.KindTask, "", actorID, events.EventPayload{
		"tasks":   len(tasks),
		"changed": changed,
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.logger().Info("tasks rescored", zap.Int("tasks", len(tasks)), zap.Int("changed", changed))
	return changed, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, id)
}

const (
	SortRank     = "rank"
	SortDue      = "due"
	SortPriority = "priority"
)

type TaskListOptions struct {
	repo.TaskFilters
	Sort string
}

// ListTasks returns filtered tasks ranked by score unless another sort is asked.
func (e Engine) ListTasks(ctx context.Context, opts TaskListOptions) ([]domain.Task, error) {
	if opts.Status != "" && !domain.TaskStatus(opts.Status).Valid() {
		return nil, validationf("invalid status %q", opts.Status)
	}
	tasks, err := e.Repo.ListTasks(ctx, opts.TaskFilters)
	if err != nil {
		return nil, err
	}
	switch opts.Sort {
	case "", SortRank:
		ranking.Sort(tasks)
	case SortDue:
		ranking.SortByDue(tasks)
	case SortPriority:
		ranking.SortByPriority(tasks)
	default:
		return nil, validationf("invalid sort %q (rank, due, priority)", opts.Sort)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

type BoardColumn struct {
	Status domain.TaskStatus `json:"status"`
	Tasks  []domain.Task     `json:"tasks"`
}

// Board groups tasks into kanban columns, each ranked.
func (e Engine) Board(ctx context.Context, f repo.TaskFilters) ([]BoardColumn, error) {
	f.Status = ""
	tasks, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	ranking.Sort(tasks)
	cols := make([]BoardColumn, len(domain.TaskStatuses))
	idx := map[domain.TaskStatus]int{}
	for i, s := range domain.TaskStatuses {
		cols[i] = BoardColumn{Status: s, Tasks: []domain.Task{}}
		idx[s] = i
	}
	for _, t := range tasks {
		i, ok := idx[t.Status]
		if !ok {
			continue
		}
		cols[i].Tasks = append(cols[i].Tasks, t)
	}
	return cols, nil
}
