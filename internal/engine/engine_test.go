package engine_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
	"planner/internal/db"
	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/migrate"
	"planner/internal/ranking"
	"planner/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	clock  *time.Time
}

func (env testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Time.Timezone = "UTC"
	eng := engine.New(conn, cfg, nil)
	clock := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return clock }
	return testEnv{Engine: eng, Ctx: context.Background(), clock: &clock}
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Draft proposal", Tags: []string{"sales", " ", "sales", "acme"}})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInbox, task.Status)
	assert.Equal(t, 3, task.Priority)
	assert.Equal(t, 3, task.Impact)
	assert.Equal(t, 2.5, task.Effort)
	assert.Equal(t, 0.7, task.Confidence)
	assert.InDelta(t, 2.52, task.Score, 1e-9)
	assert.Equal(t, []string{"acme", "sales"}, task.Tags)

	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Score, got.Score)
	assert.Equal(t, task.Tags, got.Tags)
}

func TestCreateTaskClampsScoringInputs(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:      "Out of range",
		Priority:   ptr(9),
		Impact:     ptr(0),
		Confidence: ptr(2.0),
		Effort:     ptr(0.0),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, task.Priority)
	assert.Equal(t, 1, task.Impact)
	assert.Equal(t, 1.0, task.Confidence)
	assert.Equal(t, ranking.MinEffort, task.Effort)
	assert.InDelta(t, 50.0, task.Score, 1e-9)
}

func TestCreateTaskRejectsBlankTitle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "  "})
	require.ErrorIs(t, err, engine.ErrValidation)

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", Status: "Someday"})
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestUpdateTaskRescoresOnScoringFields(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "Review", Priority: ptr(3), Impact: ptr(4), Confidence: ptr(0.8), Effort: ptr(2.0),
	})
	require.NoError(t, err)
	assert.InDelta(t, 4.8, task.Score, 1e-9)

	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: ptr("Review deck")})
	require.NoError(t, err)
	assert.InDelta(t, 4.8, task.Score, 1e-9)

	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Effort: ptr(4.0)})
	require.NoError(t, err)
	assert.InDelta(t, 2.4, task.Score, 1e-9)

	evts, err := env.Engine.LatestEvents(env.Ctx, 1, repo.EventFilters{EntityID: task.ID})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "task.updated", evts[0].Type)
	assert.Contains(t, evts[0].Payload, `"score"`)
}

func TestUpdateMissingTask(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: "nope", Title: ptr("x")})
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCompleteTask(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Send invoice"})
	require.NoError(t, err)

	done, err := env.Engine.CompleteTask(env.Ctx, task.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, "2024-06-15T09:00:00Z", *done.CompletedAt)

	evts, err := env.Engine.LatestEvents(env.Ctx, 1, repo.EventFilters{EntityID: task.ID})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "task.completed", evts[0].Type)
	assert.Equal(t, "tester", evts[0].ActorID)

	reopened, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: ptr(domain.StatusTodo)})
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
}

func TestTaskInheritsProjectClient(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateClient(env.Ctx, engine.ClientCreateOptions{Name: "Acme"})
	require.NoError(t, err)
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Audit", ClientID: c.ID})
	require.NoError(t, err)

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Kickoff", ProjectID: p.ID})
	require.NoError(t, err)
	require.NotNil(t, task.ClientID)
	assert.Equal(t, c.ID, *task.ClientID)
}

func TestUnknownReferenceIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", ProjectID: "missing"})
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.CreateNote(env.Ctx, engine.NoteCreateOptions{Title: "x", LinkedTasks: []string{"missing"}})
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.CreateOpportunity(env.Ctx, engine.OpportunityCreateOptions{Name: "x", ClientID: "missing"})
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestNextStepIsUniquePerParent(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateClient(env.Ctx, engine.ClientCreateOptions{Name: "Acme"})
	require.NoError(t, err)
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Audit", ClientID: c.ID})
	require.NoError(t, err)

	first, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "first", ProjectID: p.ID, IsNextStep: true})
	require.NoError(t, err)
	clientLevel, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "client level", ClientID: c.ID, IsNextStep: true})
	require.NoError(t, err)
	second, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "second", ProjectID: p.ID, IsNextStep: true})
	require.NoError(t, err)

	got, err := env.Engine.GetTask(env.Ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsNextStep)
	got, err = env.Engine.GetTask(env.Ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsNextStep)
	got, err = env.Engine.GetTask(env.Ctx, clientLevel.ID)
	require.NoError(t, err)
	assert.True(t, got.IsNextStep, "project tasks must not clear the client-level next step")

	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: first.ID, IsNextStep: ptr(true)})
	require.NoError(t, err)
	next, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{TaskFilters: repo.TaskFilters{ProjectID: p.ID, NextStepOnly: true}})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, first.ID, next[0].ID)
}

func TestBulkUpdateIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "a"})
	require.NoError(t, err)
	b, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "b"})
	require.NoError(t, err)

	_, err = env.Engine.BulkUpdateTasks(env.Ctx, []string{a.ID, "missing"}, engine.TaskUpdateOptions{Priority: ptr(5)})
	require.ErrorIs(t, err, repo.ErrNotFound)
	got, err := env.Engine.GetTask(env.Ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Priority)

	res, err := env.Engine.BulkUpdateTasks(env.Ctx, []string{a.ID, b.ID}, engine.TaskUpdateOptions{Priority: ptr(5), AddTags: []string{"urgent"}})
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, task := range res {
		assert.Equal(t, 5, task.Priority)
		assert.InDelta(t, 4.2, task.Score, 1e-9)
		assert.Equal(t, []string{"urgent"}, task.Tags)
	}
}

func TestListTasksRankedAndBoard(t *testing.T) {
	env := newTestEnv(t)
	low, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "low", Priority: ptr(1)})
	require.NoError(t, err)
	high, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "high", Priority: ptr(5), Status: domain.StatusDoing})
	require.NoError(t, err)
	mid, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "mid", Due: day(2024, 6, 20)})
	require.NoError(t, err)

	tasks, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{high.ID, mid.ID, low.ID}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})

	byDue, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{Sort: engine.SortDue})
	require.NoError(t, err)
	assert.Equal(t, mid.ID, byDue[0].ID)

	_, err = env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{Sort: "alphabetical"})
	require.ErrorIs(t, err, engine.ErrValidation)

	board, err := env.Engine.Board(env.Ctx, repo.TaskFilters{})
	require.NoError(t, err)
	require.Len(t, board, len(domain.TaskStatuses))
	assert.Equal(t, domain.StatusInbox, board[0].Status)
	require.Len(t, board[0].Tasks, 2)
	assert.Equal(t, mid.ID, board[0].Tasks[0].ID)
	assert.Equal(t, domain.StatusDoing, board[2].Status)
	require.Len(t, board[2].Tasks, 1)
	assert.Empty(t, board[4].Tasks)
}

func TestRescoreTasks(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x"})
	require.NoError(t, err)
	_, err = env.Engine.DB.Exec(`UPDATE tasks SET score=0 WHERE id=?`, task.ID)
	require.NoError(t, err)

	changed, err := env.Engine.RescoreTasks(env.Ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.52, got.Score, 1e-9)

	changed, err = env.Engine.RescoreTasks(env.Ctx, "")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestStoredScoreMatchesStoredInputs(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Endless", Effort: ptr(math.Inf(1))})
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Unknown", Confidence: ptr(math.NaN())})
	require.ErrorIs(t, err, engine.ErrValidation)

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Tiny", Effort: ptr(0.01), Confidence: ptr(2.0)})
	require.NoError(t, err)
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Effort: ptr(math.Inf(1))})
	require.ErrorIs(t, err, engine.ErrValidation)

	stored, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ranking.ComputeScore(stored.Priority, stored.Impact, stored.Confidence, stored.Effort), stored.Score)

	changed, err := env.Engine.RescoreTasks(env.Ctx, "")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestTaskViewsFarFutureDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	due, err := engine.ParseDue("+300000000d", now)
	require.NoError(t, err)
	require.NotNil(t, due)

	today, week, overdue := engine.TaskViews([]domain.Task{{ID: "far", Status: domain.StatusTodo, Due: due}}, now, 7)
	assert.Empty(t, today)
	assert.Empty(t, week)
	assert.Empty(t, overdue)
}

func TestDeleteClientNullsReferences(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateClient(env.Ctx, engine.ClientCreateOptions{Name: "Acme", Tags: []string{"key"}})
	require.NoError(t, err)
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Audit", ClientID: c.ID})
	require.NoError(t, err)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "t", ClientID: c.ID})
	require.NoError(t, err)
	te, err := env.Engine.AddTimeEntry(env.Ctx, engine.TimeEntryCreateOptions{Hours: 1, ClientID: c.ID})
	require.NoError(t, err)

	require.NoError(t, env.Engine.DeleteClient(env.Ctx, c.ID, ""))

	gotTask, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, gotTask.ClientID)
	gotProject, err := env.Engine.GetProject(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, gotProject.ClientID)
	gotEntry, err := env.Engine.GetTimeEntry(env.Ctx, te.ID)
	require.NoError(t, err)
	assert.Nil(t, gotEntry.ClientID)
	_, err = env.Engine.GetClient(env.Ctx, c.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestNoteLinksFollowTasks(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "a"})
	require.NoError(t, err)
	b, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "b"})
	require.NoError(t, err)
	n, err := env.Engine.CreateNote(env.Ctx, engine.NoteCreateOptions{Title: "Meeting", LinkedTasks: []string{b.ID, a.ID, a.ID}})
	require.NoError(t, err)
	assert.Len(t, n.LinkedTasks, 2)

	require.NoError(t, env.Engine.DeleteTask(env.Ctx, a.ID, ""))
	got, err := env.Engine.GetNote(env.Ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.LinkedTasks)

	notes, err := env.Engine.ListNotes(env.Ctx, repo.NoteFilters{TaskID: b.ID})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, n.ID, notes[0].ID)
}

func TestPipelineMetrics(t *testing.T) {
	env := newTestEnv(t)
	opps := []engine.OpportunityCreateOptions{
		{Name: "A", Stage: domain.StageDiscovery, Amount: 1000, Probability: ptr(0.5)},
		{Name: "B", Stage: domain.StageProposal, Amount: 2000, Probability: ptr(0.25)},
		{Name: "C", Stage: domain.StageClosedWon, Amount: 3000, Probability: ptr(1.0)},
		{Name: "D", Stage: domain.StageClosedLost, Amount: 500, Probability: ptr(0.0)},
	}
	for _, o := range opps {
		_, err := env.Engine.CreateOpportunity(env.Ctx, o)
		require.NoError(t, err)
	}
	m, err := env.Engine.PipelineMetrics(env.Ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3000, m.Total, 1e-9)
	assert.InDelta(t, 1000, m.Weighted, 1e-9)
	assert.InDelta(t, 3000, m.ClosedWon, 1e-9)
	assert.InDelta(t, 50, m.WinRate, 1e-9)
	assert.Equal(t, 2, m.OpenCount)
	require.Len(t, m.Stages, len(domain.OpportunityStages))
	assert.Equal(t, 1, m.Stages[0].Count)

	empty := engine.ComputePipeline(nil)
	assert.Zero(t, empty.WinRate)

	_, err = env.Engine.CreateOpportunity(env.Ctx, engine.OpportunityCreateOptions{Name: "bad", Probability: ptr(1.5)})
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestRiskScore(t *testing.T) {
	cases := []struct {
		severity, likelihood string
		score                int
		band                 string
	}{
		{domain.LevelLow, domain.LevelLow, 1, domain.LevelLow},
		{domain.LevelLow, domain.LevelMedium, 2, domain.LevelLow},
		{domain.LevelHigh, domain.LevelLow, 3, domain.LevelMedium},
		{domain.LevelMedium, domain.LevelMedium, 4, domain.LevelMedium},
		{domain.LevelHigh, domain.LevelMedium, 6, domain.LevelHigh},
		{domain.LevelHigh, domain.LevelHigh, 9, domain.LevelHigh},
	}
	for _, c := range cases {
		score := engine.RiskScore(c.severity, c.likelihood)
		assert.Equal(t, c.score, score, "%s x %s", c.severity, c.likelihood)
		assert.Equal(t, c.band, engine.RiskBand(score))
	}
}

func TestRAIDLifecycle(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.CreateRAID(env.Ctx, engine.RAIDCreateOptions{Kind: domain.RAIDRisk, Title: "Key person leaves", Severity: domain.LevelHigh})
	require.NoError(t, err)
	assert.Equal(t, domain.RAIDOpen, it.Status)
	assert.Equal(t, domain.LevelMedium, it.Likelihood)

	it, err = env.Engine.UpdateRAID(env.Ctx, engine.RAIDUpdateOptions{ID: it.ID, Status: ptr(domain.RAIDClosed), Resolution: ptr("Pairing in place")})
	require.NoError(t, err)
	open, err := env.Engine.ListRAID(env.Ctx, repo.RAIDFilters{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = env.Engine.CreateRAID(env.Ctx, engine.RAIDCreateOptions{Kind: "rumour", Title: "x"})
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestStakeholderValidation(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.CreateStakeholder(env.Ctx, engine.StakeholderCreateOptions{Name: "Dana", Role: "CFO"})
	require.NoError(t, err)
	assert.Equal(t, "Neutral", s.Attitude)
	assert.Equal(t, domain.LevelMedium, s.Influence)

	_, err = env.Engine.UpdateStakeholder(env.Ctx, engine.StakeholderUpdateOptions{ID: s.ID, Attitude: ptr("Hostile")})
	require.ErrorIs(t, err, engine.ErrValidation)
	s, err = env.Engine.UpdateStakeholder(env.Ctx, engine.StakeholderUpdateOptions{ID: s.ID, Attitude: ptr("Champion")})
	require.NoError(t, err)
	assert.Equal(t, "Champion", s.Attitude)
}

func TestTimerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Workshop"})
	require.NoError(t, err)

	_, err = env.Engine.StopTimer(env.Ctx, "")
	require.ErrorIs(t, err, engine.ErrNoTimer)

	_, err = env.Engine.StartTimer(env.Ctx, task.ID, "")
	require.NoError(t, err)
	_, err = env.Engine.StartTimer(env.Ctx, "", "")
	require.ErrorIs(t, err, engine.ErrTimerRunning)

	env.advance(90 * time.Minute)
	te, err := env.Engine.StopTimer(env.Ctx, "")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, te.Hours, 1e-9)
	assert.Equal(t, "2024-06-15", te.Date)
	require.NotNil(t, te.TaskID)
	assert.Equal(t, task.ID, *te.TaskID)

	_, err = env.Engine.Timer(env.Ctx)
	require.ErrorIs(t, err, engine.ErrNoTimer)
}

func TestTimerHours(t *testing.T) {
	assert.Equal(t, 0.01, engine.TimerHours(0))
	assert.Equal(t, 0.01, engine.TimerHours(10*time.Second))
	assert.Equal(t, 0.25, engine.TimerHours(15*time.Minute))
	assert.Equal(t, 1.33, engine.TimerHours(80*time.Minute))
}

func TestTimeEntryValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AddTimeEntry(env.Ctx, engine.TimeEntryCreateOptions{Hours: 0})
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.AddTimeEntry(env.Ctx, engine.TimeEntryCreateOptions{Hours: 1, Date: "15/06/2024"})
	require.ErrorIs(t, err, engine.ErrValidation)

	te, err := env.Engine.AddTimeEntry(env.Ctx, engine.TimeEntryCreateOptions{Hours: 2})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", te.Date)
	te, err = env.Engine.UpdateTimeEntry(env.Ctx, engine.TimeEntryUpdateOptions{ID: te.ID, Billable: ptr(true)})
	require.NoError(t, err)
	assert.True(t, te.Billable)
	require.NoError(t, env.Engine.DeleteTimeEntry(env.Ctx, te.ID, ""))
	require.ErrorIs(t, env.Engine.DeleteTimeEntry(env.Ctx, te.ID, ""), repo.ErrNotFound)
}

func TestPeriodRange(t *testing.T) {
	ref := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) // Saturday
	from, to, err := engine.PeriodRange(engine.PeriodWeek, ref, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", from.Format(domain.DateLayout))
	assert.Equal(t, "2024-06-16", to.Format(domain.DateLayout))

	from, to, err = engine.PeriodRange(engine.PeriodWeek, ref, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-09", from.Format(domain.DateLayout))
	assert.Equal(t, "2024-06-15", to.Format(domain.DateLayout))

	from, to, err = engine.PeriodRange(engine.PeriodMonth, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), time.Monday)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", from.Format(domain.DateLayout))
	assert.Equal(t, "2024-02-29", to.Format(domain.DateLayout))

	_, _, err = engine.PeriodRange("year", ref, time.Monday)
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestTimeSummaryWeek(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateClient(env.Ctx, engine.ClientCreateOptions{Name: "Acme"})
	require.NoError(t, err)
	entries := []engine.TimeEntryCreateOptions{
		{Date: "2024-06-10", Hours: 4, Billable: true, ClientID: c.ID},
		{Date: "2024-06-14", Hours: 2},
		{Date: "2024-06-17", Hours: 3, Billable: true},
	}
	for _, o := range entries {
		_, err := env.Engine.AddTimeEntry(env.Ctx, o)
		require.NoError(t, err)
	}
	s, err := env.Engine.TimeSummary(env.Ctx, engine.PeriodWeek, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", s.From)
	assert.Equal(t, "2024-06-16", s.To)
	assert.InDelta(t, 6, s.Total, 1e-9)
	assert.InDelta(t, 4, s.Billable, 1e-9)
	assert.InDelta(t, 2, s.NonBillable, 1e-9)
	assert.InDelta(t, 66.6667, s.Utilization, 1e-3)
	require.Len(t, s.ByDate, 2)
	assert.Equal(t, "2024-06-10", s.ByDate[0].Key)
	require.Len(t, s.ByClient, 2)

	assert.Zero(t, engine.Summarize(nil).Utilization)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	mk := func(title string, status domain.TaskStatus, due *time.Time) domain.Task {
		task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: title, Status: status, Due: due})
		require.NoError(t, err)
		return task
	}
	overdue := mk("overdue", domain.StatusTodo, day(2024, 6, 14))
	mk("blocked overdue", domain.StatusBlocked, day(2024, 6, 10))
	mk("done overdue", domain.StatusDone, day(2024, 6, 10))
	today := mk("today", domain.StatusDoing, day(2024, 6, 15))
	soon := mk("soon", domain.StatusTodo, day(2024, 6, 18))
	mk("later", domain.StatusTodo, day(2024, 7, 30))
	mk("undated", domain.StatusTodo, nil)

	_, err := env.Engine.CreateClient(env.Ctx, engine.ClientCreateOptions{Name: "Acme", NextStep: "Send SOW", NextStepDue: day(2024, 6, 16)})
	require.NoError(t, err)
	_, err = env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Audit", NextStep: "Book workshop"})
	require.NoError(t, err)
	_, err = env.Engine.AddTimeEntry(env.Ctx, engine.TimeEntryCreateOptions{Hours: 3.5, Billable: true})
	require.NoError(t, err)

	d, err := env.Engine.Dashboard(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", d.Date)
	require.Len(t, d.Overdue, 1)
	assert.Equal(t, overdue.ID, d.Overdue[0].ID)
	assert.Equal(t, 1, d.OverdueCount)
	require.Len(t, d.Today, 1)
	assert.Equal(t, today.ID, d.Today[0].ID)
	require.Len(t, d.Week, 1)
	assert.Equal(t, soon.ID, d.Week[0].ID)

	require.Len(t, d.NextSteps, 2)
	assert.Equal(t, domain.KindClient, d.NextSteps[0].Kind)
	assert.Equal(t, ranking.Tomorrow, d.NextSteps[0].DueClass)
	assert.Equal(t, domain.KindProject, d.NextSteps[1].Kind)
	assert.Equal(t, ranking.NoDueDate, d.NextSteps[1].DueClass)

	assert.Equal(t, 1, d.Metrics.Clients)
	assert.Equal(t, 1, d.Metrics.ActiveProjects)
	assert.InDelta(t, 3.5, d.Metrics.HoursToday, 1e-9)
}

func TestKnowledgeReadTouchesAccess(t *testing.T) {
	env := newTestEnv(t)
	k, err := env.Engine.CreateKnowledge(env.Ctx, engine.KnowledgeCreateOptions{Title: "Discovery checklist", Category: "templates"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15T09:00:00Z", k.LastAccessedAt)

	env.advance(24 * time.Hour)
	got, err := env.Engine.GetKnowledge(env.Ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-16T09:00:00Z", got.LastAccessedAt)
	assert.Equal(t, k.UpdatedAt, got.UpdatedAt)

	_, err = env.Engine.GetKnowledge(env.Ctx, "missing")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Prepare 50% discount offer"})
	require.NoError(t, err)
	_, err = env.Engine.CreateKnowledge(env.Ctx, engine.KnowledgeCreateOptions{Title: "Pricing", Content: "Never offer a DISCOUNT above 20%"})
	require.NoError(t, err)

	res, err := env.Engine.Search(env.Ctx, "discount", nil, 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, domain.KindTask, res[0].Kind)
	assert.Equal(t, domain.KindKnowledge, res[1].Kind)

	res, err = env.Engine.Search(env.Ctx, "50%", nil, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)

	res, err = env.Engine.Search(env.Ctx, "discount", []string{domain.KindKnowledge}, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)

	_, err = env.Engine.Search(env.Ctx, "x", []string{"invoice"}, 0)
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	c, err := src.Engine.CreateClient(src.Ctx, engine.ClientCreateOptions{Name: "Acme", Tags: []string{"key"}})
	require.NoError(t, err)
	p, err := src.Engine.CreateProject(src.Ctx, engine.ProjectCreateOptions{Title: "Audit", ClientID: c.ID})
	require.NoError(t, err)
	task, err := src.Engine.CreateTask(src.Ctx, engine.TaskCreateOptions{Title: "Kickoff", ProjectID: p.ID, Due: day(2024, 6, 20), IsNextStep: true})
	require.NoError(t, err)
	_, err = src.Engine.CreateNote(src.Ctx, engine.NoteCreateOptions{Title: "Call", LinkedTasks: []string{task.ID}})
	require.NoError(t, err)
	_, err = src.Engine.AddTimeEntry(src.Ctx, engine.TimeEntryCreateOptions{Hours: 1, TaskID: task.ID})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Engine.ExportJSON(src.Ctx, &buf))

	dst := newTestEnv(t)
	stats, err := dst.Engine.ImportJSON(dst.Ctx, &buf, "importer")
	require.NoError(t, err)
	assert.Equal(t, 1, stats[domain.KindTask])
	assert.Equal(t, 1, stats[domain.KindTimeEntry])

	got, err := dst.Engine.GetTask(dst.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Score, got.Score)
	assert.True(t, got.IsNextStep)
	require.NotNil(t, got.ClientID)
	assert.Equal(t, c.ID, *got.ClientID)
	entries, err := dst.Engine.ListTimeEntries(dst.Ctx, repo.TimeEntryFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ProjectID)
	assert.Equal(t, p.ID, *entries[0].ProjectID)

	// importing twice upserts instead of duplicating
	var again bytes.Buffer
	require.NoError(t, src.Engine.ExportJSON(src.Ctx, &again))
	_, err = dst.Engine.ImportJSON(dst.Ctx, &again, "importer")
	require.NoError(t, err)
	tasks, err := dst.Engine.ListTasks(dst.Ctx, engine.TaskListOptions{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestImportRejectsBadSnapshot(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ImportJSON(env.Ctx, bytes.NewBufferString(`{"version":1,"tasks":[{"id":"t1","title":"x","status":"Later"}]}`), "")
	require.ErrorIs(t, err, engine.ErrValidation)
	_, err = env.Engine.ImportJSON(env.Ctx, bytes.NewBufferString(`{"version":1,"surprise":true}`), "")
	require.ErrorIs(t, err, engine.ErrValidation)

	tasks, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestImportNormalizesTimestamps(t *testing.T) {
	env := newTestEnv(t)
	snap := `{"version":1,"tasks":[{"id":"t1","title":"Offset","status":"Done",` +
		`"created_at":"2024-06-01T10:00:00+02:00","updated_at":"2024-06-01T10:30:00.250+02:00",` +
		`"completed_at":"2024-06-02T00:15:00-01:00"}]}`
	_, err := env.Engine.ImportJSON(env.Ctx, bytes.NewBufferString(snap), "")
	require.NoError(t, err)

	got, err := env.Engine.GetTask(env.Ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T08:00:00Z", got.CreatedAt)
	assert.Equal(t, "2024-06-01T08:30:00Z", got.UpdatedAt)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "2024-06-02T01:15:00Z", *got.CompletedAt)

	_, err = env.Engine.ImportJSON(env.Ctx, bytes.NewBufferString(`{"version":1,"clients":[{"id":"c1","name":"Acme","created_at":"June 1st"}]}`), "")
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestExportTasksCSV(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Quote, with comma", Due: day(2024, 6, 16), Tags: []string{"b", "a"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, env.Engine.ExportTasksCSV(env.Ctx, &buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "Quote, with comma", records[1][1])
	assert.Equal(t, "2024-06-16", records[1][8])
	assert.Equal(t, "tomorrow", records[1][9])
	assert.Equal(t, "a;b", records[1][13])
}

func TestParseDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"2024-07-01": "2024-07-01",
		"today":      "2024-06-15",
		"Tomorrow":   "2024-06-16",
		"+10d":       "2024-06-25",
	}
	for in, want := range cases {
		got, err := engine.ParseDue(in, now)
		require.NoError(t, err, in)
		require.NotNil(t, got, in)
		assert.Equal(t, want, got.Format(domain.DateLayout), in)
	}
	got, err := engine.ParseDue("", now)
	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = engine.ParseDue("next week", now)
	require.ErrorIs(t, err, engine.ErrValidation)
}
