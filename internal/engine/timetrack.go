package engine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"planner/internal/domain"
	"planner/internal/events"
	"planner/internal/repo"
)

// ErrTimerRunning is returned when starting a timer while one is active.
var ErrTimerRunning = errors.New("timer already running")

// ErrNoTimer is returned when stopping without an active timer.
var ErrNoTimer = errors.New("no timer running")

type TimeEntryCreateOptions struct {
	Date      string
	Hours     float64
	Billable  bool
	ClientID  string
	ProjectID string
	TaskID    string
	Notes     string
	ActorID   string
}

type TimeEntryUpdateOptions struct {
	ID        string
	Date      *string
	Hours     *float64
	Billable  *bool
	ClientID  *string
	ProjectID *string
	TaskID    *string
	Notes     *string
	ActorID   string
}

func validDate(field, v string) error {
	if _, err := time.Parse(domain.DateLayout, v); err != nil {
		return validationf("%s must be YYYY-MM-DD", field)
	}
	return nil
}

func validateTimeEntry(te domain.TimeEntry) error {
	if err := validDate("date", te.Date); err != nil {
		return err
	}
	if err := finite("hours", te.Hours); err != nil {
		return err
	}
	if te.Hours <= 0 {
		return validationf("hours must be positive")
	}
	if te.Hours > 24 {
		return validationf("hours must not exceed 24")
	}
	return nil
}

func (e Engine) checkTimeRefs(ctx context.Context, tx *sql.Tx, te domain.TimeEntry) error {
	if err := e.checkRef(ctx, tx, domain.KindClient, te.ClientID); err != nil {
		return err
	}
	if err := e.checkRef(ctx, tx, domain.KindProject, te.ProjectID); err != nil {
		return err
	}
	return e.checkRef(ctx, tx, domain.KindTask, te.TaskID)
}

func (e Engine) AddTimeEntry(ctx context.Context, opts TimeEntryCreateOptions) (domain.TimeEntry, error) {
	if opts.Date == "" {
		opts.Date = e.now().Format(domain.DateLayout)
	}
	te := domain.TimeEntry{
		ID:        newID(),
		Date:      opts.Date,
		Hours:     opts.Hours,
		Billable:  opts.Billable,
		ClientID:  optionalString(opts.ClientID),
		ProjectID: optionalString(opts.ProjectID),
		TaskID:    optionalString(opts.TaskID),
		Notes:     opts.Notes,
		CreatedAt: e.stamp(),
	}
	if err := validateTimeEntry(te); err != nil {
		return domain.TimeEntry{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()
	if err := e.inheritTimeParents(ctx, tx, &te); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.checkTimeRefs(ctx, tx, te); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.Repo.SaveTimeEntryTx(ctx, tx, te); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTimeEntry, events.TypeCreated), domain.KindTimeEntry, te.ID, opts.ActorID, events.EventPayload{
		"date":     te.Date,
		"hours":    te.Hours,
		"billable": te.Billable,
	}); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return te, nil
}

// inheritTimeParents fills client and project from the linked task.
func (e Engine) inheritTimeParents(ctx context.Context, tx *sql.Tx, te *domain.TimeEntry) error {
	if te.TaskID == nil || (te.ClientID != nil && te.ProjectID != nil) {
		return nil
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, *te.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return validationf("task %s not found", *te.TaskID)
	}
	if err != nil {
		return err
	}
	if te.ClientID == nil {
		te.ClientID = t.ClientID
	}
	if te.ProjectID == nil {
		te.ProjectID = t.ProjectID
	}
	return nil
}

func (e Engine) UpdateTimeEntry(ctx context.Context, opts TimeEntryUpdateOptions) (domain.TimeEntry, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()
	te, err := e.Repo.GetTimeEntryTx(ctx, tx, opts.ID)
	if err != nil {
		return te, err
	}
	setString(&te.Date, opts.Date)
	setString(&te.Notes, opts.Notes)
	if opts.Hours != nil {
		te.Hours = *opts.Hours
	}
	if opts.Billable != nil {
		te.Billable = *opts.Billable
	}
	patchString(&te.ClientID, opts.ClientID)
	patchString(&te.ProjectID, opts.ProjectID)
	patchString(&te.TaskID, opts.TaskID)
	if err := validateTimeEntry(te); err != nil {
		return te, err
	}
	if err := e.checkTimeRefs(ctx, tx, te); err != nil {
		return te, err
	}
	if err := e.Repo.SaveTimeEntryTx(ctx, tx, te); err != nil {
		return te, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTimeEntry, events.TypeUpdated), domain.KindTimeEntry, te.ID, opts.ActorID, events.EventPayload{
		"date":     te.Date,
		"hours":    te.Hours,
		"billable": te.Billable,
	}); err != nil {
		return te, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return te, nil
}

func (e Engine) DeleteTimeEntry(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	te, err := e.Repo.GetTimeEntryTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTimeEntry(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTimeEntry, events.TypeDeleted), domain.KindTimeEntry, id, actorID, events.EventPayload{
		"date":  te.Date,
		"hours": te.Hours,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetTimeEntry(ctx context.Context, id string) (domain.TimeEntry, error) {
	return e.Repo.GetTimeEntry(ctx, id)
}

func (e Engine) ListTimeEntries(ctx context.Context, f repo.TimeEntryFilters) ([]domain.TimeEntry, error) {
	if f.From != "" {
		if err := validDate("from", f.From); err != nil {
			return nil, err
		}
	}
	if f.To != "" {
		if err := validDate("to", f.To); err != nil {
			return nil, err
		}
	}
	res, err := e.Repo.ListTimeEntries(ctx, f)
	if res == nil && err == nil {
		res = []domain.TimeEntry{}
	}
	return res, err
}

// StartTimer starts the single workspace timer, optionally for a task.
func (e Engine) StartTimer(ctx context.Context, taskID, actorID string) (domain.Timer, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Timer{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetTimerTx(ctx, tx); err == nil {
		return domain.Timer{}, ErrTimerRunning
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Timer{}, err
	}
	tm := domain.Timer{TaskID: optionalString(taskID), StartedAt: e.now()}
	if err := e.checkRef(ctx, tx, domain.KindTask, tm.TaskID); err != nil {
		return domain.Timer{}, err
	}
	if err := e.Repo.StartTimerTx(ctx, tx, tm); err != nil {
		return domain.Timer{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTimer, events.TypeStarted), domain.KindTimer, taskID, actorID, nil); err != nil {
		return domain.Timer{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Timer{}, err
	}
	return tm, nil
}

// TimerHours converts an elapsed duration to hours rounded to 0.01 with a
// floor of 0.01.
func TimerHours(elapsed time.Duration) float64 {
	h := math.Round(elapsed.Hours()*100) / 100
	if h < 0.01 {
		return 0.01
	}
	return h
}

// StopTimer ends the running timer and books its elapsed time as a
// billable entry on the start date.
func (e Engine) StopTimer(ctx context.Context, actorID string) (domain.TimeEntry, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()
	tm, err := e.Repo.GetTimerTx(ctx, tx)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.TimeEntry{}, ErrNoTimer
	}
	if err != nil {
		return domain.TimeEntry{}, err
	}
	now := e.now()
	te := domain.TimeEntry{
		ID:        newID(),
		Date:      tm.StartedAt.In(e.Location()).Format(domain.DateLayout),
		Hours:     TimerHours(now.Sub(tm.StartedAt)),
		Billable:  true,
		TaskID:    tm.TaskID,
		CreatedAt: e.stamp(),
	}
	if te.Hours > 24 {
		e.logger().Warn("timer exceeded a day, capping entry", zap.Float64("hours", te.Hours))
		te.Hours = 24
	}
	if err := e.inheritTimeParents(ctx, tx, &te); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.Repo.SaveTimeEntryTx(ctx, tx, te); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.Repo.ClearTimerTx(ctx, tx); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.events().Append(ctx, tx, events.Type(domain.KindTimer, events.TypeStopped), domain.KindTimeEntry, te.ID, actorID, events.EventPayload{
		"hours":   te.Hours,
		"task_id": te.TaskID,
	}); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return te, nil
}

// Timer returns the running timer or ErrNoTimer.
func (e Engine) Timer(ctx context.Context) (domain.Timer, error) {
	tm, err := e.Repo.GetTimer(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return tm, ErrNoTimer
	}
	return tm, err
}

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

type HoursBucket struct {
	Key   string  `json:"key"`
	Hours float64 `json:"hours"`
}

type TimeSummary struct {
	Period      string        `json:"period"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Total       float64       `json:"total"`
	Billable    float64       `json:"billable"`
	NonBillable float64       `json:"non_billable"`
	Utilization float64       `json:"utilization"`
	ByDate      []HoursBucket `json:"by_date"`
	ByClient    []HoursBucket `json:"by_client"`
	ByProject   []HoursBucket `json:"by_project"`
}

// PeriodRange returns the inclusive first and last day of the period that
// contains ref.
func PeriodRange(period string, ref time.Time, weekStart time.Weekday) (time.Time, time.Time, error) {
	y, m, d := ref.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
	switch period {
	case PeriodDay:
		return day, day, nil
	case PeriodWeek:
		offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
		from := day.AddDate(0, 0, -offset)
		return from, from.AddDate(0, 0, 6), nil
	case PeriodMonth:
		from := time.Date(y, m, 1, 0, 0, 0, 0, ref.Location())
		return from, from.AddDate(0, 1, -1), nil
	default:
		return time.Time{}, time.Time{}, validationf("period must be one of %s, %s, %s", PeriodDay, PeriodWeek, PeriodMonth)
	}
}

// Summarize aggregates entries; utilization is billable over total as a
// percentage and 0 when nothing was logged.
func Summarize(entries []domain.TimeEntry) TimeSummary {
	var s TimeSummary
	byDate := map[string]float64{}
	byClient := map[string]float64{}
	byProject := map[string]float64{}
	for _, te := range entries {
		s.Total += te.Hours
		if te.Billable {
			s.Billable += te.Hours
		} else {
			s.NonBillable += te.Hours
		}
		byDate[te.Date] += te.Hours
		byClient[derefString(te.ClientID)] += te.Hours
		byProject[derefString(te.ProjectID)] += te.Hours
	}
	if s.Total > 0 {
		s.Utilization = s.Billable / s.Total * 100
	}
	s.ByDate = buckets(byDate)
	s.ByClient = buckets(byClient)
	s.ByProject = buckets(byProject)
	return s
}

func buckets(m map[string]float64) []HoursBucket {
	out := make([]HoursBucket, 0, len(m))
	for k, v := range m {
		out = append(out, HoursBucket{Key: k, Hours: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (e Engine) TimeSummary(ctx context.Context, period string, ref time.Time) (TimeSummary, error) {
	if period == "" {
		period = PeriodWeek
	}
	if ref.IsZero() {
		ref = e.now()
	}
	from, to, err := PeriodRange(period, ref.In(e.Location()), e.Config.WeekStart())
	if err != nil {
		return TimeSummary{}, err
	}
	entries, err := e.Repo.ListTimeEntries(ctx, repo.TimeEntryFilters{
		From: from.Format(domain.DateLayout),
		To:   to.Format(domain.DateLayout),
	})
	if err != nil {
		return TimeSummary{}, err
	}
	s := Summarize(entries)
	s.Period = period
	s.From = from.Format(domain.DateLayout)
	s.To = to.Format(domain.DateLayout)
	return s, nil
}
