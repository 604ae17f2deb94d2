package engine

import (
	"context"
	"sort"
	"time"

	"planner/internal/domain"
	"planner/internal/ranking"
	"planner/internal/repo"
)

// NextStep is one entry of the dashboard's next-step panel.
type NextStep struct {
	Kind     string           `json:"kind"`
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Step     string           `json:"step"`
	Due      *time.Time       `json:"due,omitempty"`
	DueClass ranking.DueClass `json:"due_class"`
}

type DashboardMetrics struct {
	ActiveProjects    int     `json:"active_projects"`
	PlannedProjects   int     `json:"planned_projects"`
	Clients           int     `json:"clients"`
	OpenOpportunities int     `json:"open_opportunities"`
	OpenTasks         int     `json:"open_tasks"`
	OpenRAID          int     `json:"open_raid"`
	WeightedPipeline  float64 `json:"weighted_pipeline"`
	HoursToday        float64 `json:"hours_today"`
	TargetHours       float64 `json:"target_hours"`
}

type Dashboard struct {
	Date         string           `json:"date"`
	Today        []domain.Task    `json:"today"`
	Week         []domain.Task    `json:"week"`
	Overdue      []domain.Task    `json:"overdue"`
	OverdueCount int              `json:"overdue_count"`
	NextSteps    []NextStep       `json:"next_steps"`
	Metrics      DashboardMetrics `json:"metrics"`
}

// TaskViews splits tasks into today, this-week and overdue lists. Suppressed
// tasks are dropped; each list is ranked.
func TaskViews(tasks []domain.Task, now time.Time, soonDays int) (today, week, overdue []domain.Task) {
	today, week, overdue = []domain.Task{}, []domain.Task{}, []domain.Task{}
	for _, t := range tasks {
		if ranking.Suppressed(t.Status) || t.Due == nil {
			continue
		}
		switch ranking.Classify(t.Due, now) {
		case ranking.Overdue:
			overdue = append(overdue, t)
		case ranking.Today:
			today = append(today, t)
		default:
			if ranking.DaysUntil(*t.Due, now) <= soonDays {
				week = append(week, t)
			}
		}
	}
	ranking.Sort(today)
	ranking.Sort(week)
	ranking.Sort(overdue)
	return today, week, overdue
}

// SortNextSteps orders by due ascending with undated entries last.
func SortNextSteps(steps []NextStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		a, b := steps[i].Due, steps[j].Due
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

func (e Engine) NextSteps(ctx context.Context) ([]NextStep, error) {
	now := e.now()
	var steps []NextStep
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{NextStepOnly: true, ExcludeDone: true})
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		steps = append(steps, NextStep{Kind: domain.KindTask, ID: t.ID, Title: t.Title, Step: t.Title, Due: t.Due})
	}
	clients, err := e.Repo.ListClients(ctx, repo.ClientFilters{HasNextStep: true})
	if err != nil {
		return nil, err
	}
	for _, c := range clients {
		steps = append(steps, NextStep{Kind: domain.KindClient, ID: c.ID, Title: c.Name, Step: c.NextStep, Due: c.NextStepDue})
	}
	projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{HasNextStep: true})
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		steps = append(steps, NextStep{Kind: domain.KindProject, ID: p.ID, Title: p.Title, Step: p.NextStep, Due: p.NextStepDue})
	}
	opps, err := e.Repo.ListOpportunities(ctx, repo.OpportunityFilters{OpenOnly: true})
	if err != nil {
		return nil, err
	}
	for _, o := range opps {
		if o.NextStep == "" {
			continue
		}
		steps = append(steps, NextStep{Kind: domain.KindOpportunity, ID: o.ID, Title: o.Name, Step: o.NextStep, Due: o.NextStepDue})
	}
	for i := range steps {
		steps[i].DueClass = ranking.Classify(steps[i].Due, now)
	}
	SortNextSteps(steps)
	if steps == nil {
		steps = []NextStep{}
	}
	return steps, nil
}

func (e Engine) Dashboard(ctx context.Context) (Dashboard, error) {
	now := e.now()
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ExcludeDone: true})
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{Date: now.Format(domain.DateLayout)}
	d.Today, d.Week, d.Overdue = TaskViews(tasks, now, e.Config.Tasks.SoonDays)
	d.OverdueCount = ranking.CountOverdue(tasks, now)
	if d.NextSteps, err = e.NextSteps(ctx); err != nil {
		return Dashboard{}, err
	}
	counts, err := e.Repo.Counts(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	d.Metrics = DashboardMetrics{
		ActiveProjects:    counts["active_projects"],
		PlannedProjects:   counts["planned_projects"],
		Clients:           counts["clients"],
		OpenOpportunities: counts["open_opportunities"],
		OpenTasks:         counts["open_tasks"],
		OpenRAID:          counts["open_raid"],
		TargetHours:       e.Config.Time.TargetHours,
	}
	pipeline, err := e.PipelineMetrics(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	d.Metrics.WeightedPipeline = pipeline.Weighted
	if d.Metrics.HoursToday, err = e.Repo.HoursOn(ctx, d.Date); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
