package engine

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/ranking"
	"planner/internal/repo"
)

// SnapshotVersion is the format version written by Export.
const SnapshotVersion = 1

// Snapshot is a complete JSON export of the workspace, excluding the
// event log.
type Snapshot struct {
	Version       int                    `json:"version"`
	ExportedAt    string                 `json:"exported_at"`
	Clients       []domain.Client        `json:"clients"`
	Projects      []domain.Project       `json:"projects"`
	Tasks         []domain.Task          `json:"tasks"`
	Notes         []domain.Note          `json:"notes"`
	Opportunities []domain.Opportunity   `json:"opportunities"`
	Stakeholders  []domain.Stakeholder   `json:"stakeholders"`
	RAID          []domain.RAIDItem      `json:"raid"`
	TimeEntries   []domain.TimeEntry     `json:"time_entries"`
	Knowledge     []domain.KnowledgeItem `json:"knowledge"`
}

// ImportStats counts rows written per kind.
type ImportStats map[string]int

func (e Engine) Export(ctx context.Context) (Snapshot, error) {
	s := Snapshot{Version: SnapshotVersion, ExportedAt: e.stamp()}
	var err error
	if s.Clients, err = e.Repo.ListClients(ctx, repo.ClientFilters{}); err != nil {
		return s, err
	}
	if s.Projects, err = e.Repo.ListProjects(ctx, repo.ProjectFilters{}); err != nil {
		return s, err
	}
	if s.Tasks, err = e.Repo.ListTasks(ctx, repo.TaskFilters{}); err != nil {
		return s, err
	}
	if s.Notes, err = e.Repo.ListNotes(ctx, repo.NoteFilters{}); err != nil {
		return s, err
	}
	if s.Opportunities, err = e.Repo.ListOpportunities(ctx, repo.OpportunityFilters{}); err != nil {
		return s, err
	}
	if s.Stakeholders, err = e.Repo.ListStakeholders(ctx, repo.StakeholderFilters{}); err != nil {
		return s, err
	}
	if s.RAID, err = e.Repo.ListRAID(ctx, repo.RAIDFilters{}); err != nil {
		return s, err
	}
	if s.TimeEntries, err = e.Repo.ListTimeEntries(ctx, repo.TimeEntryFilters{}); err != nil {
		return s, err
	}
	if s.Knowledge, err = e.Repo.ListKnowledge(ctx, repo.KnowledgeFilters{}); err != nil {
		return s, err
	}
	return s, nil
}

// ExportJSON writes an indented snapshot to w.
func (e Engine) ExportJSON(ctx context.Context, w io.Writer) error {
	s, err := e.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

var taskCSVHeader = []string{
	"id", "title", "status", "priority", "effort", "impact", "confidence", "score",
	"due", "due_class", "client_id", "project_id", "is_next_step", "tags", "created_at", "completed_at",
}

// ExportTasksCSV writes ranked tasks as CSV with a header row.
func (e Engine) ExportTasksCSV(ctx context.Context, w io.Writer) error {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		return err
	}
	ranking.Sort(tasks)
	now := e.now()
	cw := csv.NewWriter(w)
	if err := cw.Write(taskCSVHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		due := ""
		if t.Due != nil {
			due = t.Due.In(now.Location()).Format(domain.DateLayout)
		}
		rec := []string{
			t.ID,
			t.Title,
			string(t.Status),
			strconv.Itoa(t.Priority),
			strconv.FormatFloat(t.Effort, 'g', -1, 64),
			strconv.Itoa(t.Impact),
			strconv.FormatFloat(t.Confidence, 'g', -1, 64),
			strconv.FormatFloat(t.Score, 'f', 4, 64),
			due,
			ranking.Classify(t.Due, now).String(),
			derefString(t.ClientID),
			derefString(t.ProjectID),
			strconv.FormatBool(t.IsNextStep),
			strings.Join(t.Tags, ";"),
			t.CreatedAt,
			derefString(t.CompletedAt),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Import upserts every row of a snapshot in one transaction. Task scores
// are recomputed from the imported inputs.
func (e Engine) Import(ctx context.Context, s Snapshot, actorID string) (ImportStats, error) {
	if s.Version > SnapshotVersion {
		return nil, validationf("snapshot version %d is newer than supported %d", s.Version, SnapshotVersion)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	stats := ImportStats{}
	now := e.stamp()
	stampRow := func(created, updated *string) error {
		if *created == "" {
			*created = now
		}
		if *updated == "" {
			*updated = *created
		}
		if err := normalizeStamp("created_at", created); err != nil {
			return err
		}
		return normalizeStamp("updated_at", updated)
	}
	for _, c := range s.Clients {
		if err := requireTitle("client name", c.Name); err != nil {
			return nil, err
		}
		if err := stampRow(&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("client %s: %w", c.ID, err)
		}
		c.Tags = repo.NormalizeTags(c.Tags)
		if err := e.Repo.SaveClientTx(ctx, tx, c); err != nil {
			return nil, err
		}
		stats[domain.KindClient]++
	}
	for _, p := range s.Projects {
		if err := requireTitle("project title", p.Title); err != nil {
			return nil, err
		}
		if p.Kind == "" {
			p.Kind = domain.ProjectActive
		}
		if err := stampRow(&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("project %s: %w", p.ID, err)
		}
		p.Tags = repo.NormalizeTags(p.Tags)
		if err := e.Repo.SaveProjectTx(ctx, tx, p); err != nil {
			return nil, err
		}
		stats[domain.KindProject]++
	}
	for _, t := range s.Tasks {
		if err := requireTitle("task title", t.Title); err != nil {
			return nil, err
		}
		if t.Status == "" {
			t.Status = domain.StatusInbox
		}
		if !t.Status.Valid() {
			return nil, validationf("task %s: invalid status %q", t.ID, t.Status)
		}
		if t.ID == "" {
			t.ID = newID()
		}
		if err := stampRow(&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		if t.CompletedAt != nil {
			done := *t.CompletedAt
			if err := normalizeStamp("completed_at", &done); err != nil {
				return nil, fmt.Errorf("task %s: %w", t.ID, err)
			}
			t.CompletedAt = &done
		}
		t.Tags = repo.NormalizeTags(t.Tags)
		if err := e.scoreTask(&t); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		if err := e.Repo.UpsertTaskTx(ctx, tx, t); err != nil {
			return nil, err
		}
		if err := e.enforceNextStep(ctx, tx, t, actorID); err != nil {
			return nil, err
		}
		stats[domain.KindTask]++
	}
	for _, n := range s.Notes {
		if err := requireTitle("note title", n.Title); err != nil {
			return nil, err
		}
		if err := stampRow(&n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("note %s: %w", n.ID, err)
		}
		n.Tags = repo.NormalizeTags(n.Tags)
		n.LinkedTasks = repo.NormalizeTags(n.LinkedTasks)
		if err := e.Repo.SaveNoteTx(ctx, tx, n); err != nil {
			return nil, err
		}
		stats[domain.KindNote]++
	}
	for _, o := range s.Opportunities {
		if err := validateOpportunity(o); err != nil {
			return nil, fmt.Errorf("opportunity %s: %w", o.ID, err)
		}
		if err := stampRow(&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("opportunity %s: %w", o.ID, err)
		}
		o.Tags = repo.NormalizeTags(o.Tags)
		if err := e.Repo.SaveOpportunityTx(ctx, tx, o); err != nil {
			return nil, err
		}
		stats[domain.KindOpportunity]++
	}
	for _, st := range s.Stakeholders {
		if err := validateStakeholder(st); err != nil {
			return nil, fmt.Errorf("stakeholder %s: %w", st.ID, err)
		}
		if err := stampRow(&st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stakeholder %s: %w", st.ID, err)
		}
		if err := e.Repo.SaveStakeholderTx(ctx, tx, st); err != nil {
			return nil, err
		}
		stats[domain.KindStakeholder]++
	}
	for _, it := range s.RAID {
		if err := validateRAID(it); err != nil {
			return nil, fmt.Errorf("raid %s: %w", it.ID, err)
		}
		if err := stampRow(&it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("raid %s: %w", it.ID, err)
		}
		if err := e.Repo.SaveRAIDTx(ctx, tx, it); err != nil {
			return nil, err
		}
		stats[domain.KindRAID]++
	}
	for _, te := range s.TimeEntries {
		if err := validateTimeEntry(te); err != nil {
			return nil, fmt.Errorf("time entry %s: %w", te.ID, err)
		}
		if te.CreatedAt == "" {
			te.CreatedAt = now
		}
		if err := normalizeStamp("created_at", &te.CreatedAt); err != nil {
			return nil, fmt.Errorf("time entry %s: %w", te.ID, err)
		}
		if err := e.Repo.SaveTimeEntryTx(ctx, tx, te); err != nil {
			return nil, err
		}
		stats[domain.KindTimeEntry]++
	}
	for _, k := range s.Knowledge {
		if err := requireTitle("knowledge title", k.Title); err != nil {
			return nil, err
		}
		if err := stampRow(&k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("knowledge %s: %w", k.ID, err)
		}
		if k.LastAccessedAt == "" {
			k.LastAccessedAt = k.UpdatedAt
		}
		if err := normalizeStamp("last_accessed_at", &k.LastAccessedAt); err != nil {
			return nil, fmt.Errorf("knowledge %s: %w", k.ID, err)
		}
		k.Tags = repo.NormalizeTags(k.Tags)
		if err := e.Repo.SaveKnowledgeTx(ctx, tx, k); err != nil {
			return nil, err
		}
		stats[domain.KindKnowledge]++
	}
	payload := events.EventPayload{}
	for k, v := range stats {
		payload[k] = v
	}
	if err := e.events().Append(ctx, tx, events.Type("workspace", events.TypeImported), "workspace", "", actorID, payload); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.logger().Info("snapshot imported", zap.Any("rows", map[string]int(stats)))
	return stats, nil
}

// ImportJSON decodes a snapshot from r and imports it.
func (e Engine) ImportJSON(ctx context.Context, r io.Reader, actorID string) (ImportStats, error) {
	var s Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, validationf("decode snapshot: %v", err)
	}
	return e.Import(ctx, s, actorID)
}

// exportStamp is used in default export file names.
func exportStamp(t time.Time) string {
	return t.Format("20060102-150405")
}

// ExportFileName suggests a file name for an export of the given format.
func (e Engine) ExportFileName(format string) string {
	return "planner-" + exportStamp(e.now()) + "." + format
}

// normalizeStamp rewrites an imported timestamp as RFC 3339 UTC, the form
// the store compares as text.
func normalizeStamp(field string, v *string) error {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(*v))
	if err != nil {
		return validationf("%s %q is not an RFC 3339 timestamp", field, *v)
	}
	*v = ts.UTC().Format(time.RFC3339)
	return nil
}
