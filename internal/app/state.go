package app

import (
	"context"
	"fmt"

	"planner/internal/config"
	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

// View names a top-level screen of the planner.
type View string

const (
	ViewDashboard     View = "dashboard"
	ViewTasks         View = "tasks"
	ViewBoard         View = "board"
	ViewClients       View = "clients"
	ViewProjects      View = "projects"
	ViewNotes         View = "notes"
	ViewOpportunities View = "opportunities"
	ViewStakeholders  View = "stakeholders"
	ViewRAID          View = "raid"
	ViewTime          View = "time"
	ViewKnowledge     View = "knowledge"
	ViewSettings      View = "settings"
)

var views = []View{
	ViewDashboard, ViewTasks, ViewBoard, ViewClients, ViewProjects, ViewNotes,
	ViewOpportunities, ViewStakeholders, ViewRAID, ViewTime, ViewKnowledge, ViewSettings,
}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	for _, v := range views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown view %q", engine.ErrValidation, s)
}

// State holds the loaded entity lists and UI selections. All mutation goes
// through its methods, which call the engine and reload what changed.
type State struct {
	eng       engine.Engine
	workspace string

	View          View
	TaskFilter    engine.TaskListOptions
	ProjectFilter repo.ProjectFilters
	Display       config.Config

	Tasks         []domain.Task
	Board         []engine.BoardColumn
	Clients       []domain.Client
	Projects      []domain.Project
	Opportunities []domain.Opportunity
	Dashboard     engine.Dashboard
}

// NewState builds an empty state bound to eng. workspace is where display
// changes are saved; empty keeps them in memory.
func NewState(eng engine.Engine, workspace string) *State {
	s := &State{eng: eng, workspace: workspace, View: ViewDashboard}
	if eng.Config != nil {
		s.Display = *eng.Config
	} else {
		s.Display = *config.Default()
	}
	return s
}

// Load fills every list.
func (s *State) Load(ctx context.Context) error {
	if err := s.reloadTasks(ctx); err != nil {
		return err
	}
	if err := s.reloadClients(ctx); err != nil {
		return err
	}
	if err := s.reloadProjects(ctx); err != nil {
		return err
	}
	if err := s.reloadOpportunities(ctx); err != nil {
		return err
	}
	return s.reloadDashboard(ctx)
}

func (s *State) reloadTasks(ctx context.Context) error {
	tasks, err := s.eng.ListTasks(ctx, s.TaskFilter)
	if err != nil {
		return err
	}
	board, err := s.eng.Board(ctx, s.TaskFilter.TaskFilters)
	if err != nil {
		return err
	}
	s.Tasks, s.Board = tasks, board
	return nil
}

func (s *State) reloadClients(ctx context.Context) error {
	clients, err := s.eng.ListClients(ctx, repo.ClientFilters{})
	if err != nil {
		return err
	}
	s.Clients = clients
	return nil
}

func (s *State) reloadProjects(ctx context.Context) error {
	projects, err := s.eng.ListProjects(ctx, s.ProjectFilter)
	if err != nil {
		return err
	}
	s.Projects = projects
	return nil
}

func (s *State) reloadOpportunities(ctx context.Context) error {
	opps, err := s.eng.ListOpportunities(ctx, repo.OpportunityFilters{})
	if err != nil {
		return err
	}
	s.Opportunities = opps
	return nil
}

func (s *State) reloadDashboard(ctx context.Context) error {
	d, err := s.eng.Dashboard(ctx)
	if err != nil {
		return err
	}
	s.Dashboard = d
	return nil
}

// SetView switches the active view.
func (s *State) SetView(v View) error {
	if _, err := ParseView(string(v)); err != nil {
		return err
	}
	s.View = v
	return nil
}

// SetTaskFilter replaces the task filter and reloads the task list and
// board. The previous filter is kept when the new one is rejected.
func (s *State) SetTaskFilter(ctx context.Context, f engine.TaskListOptions) error {
	prev := s.TaskFilter
	s.TaskFilter = f
	if err := s.reloadTasks(ctx); err != nil {
		s.TaskFilter = prev
		return err
	}
	return nil
}

func (s *State) SetProjectFilter(ctx context.Context, f repo.ProjectFilters) error {
	prev := s.ProjectFilter
	s.ProjectFilter = f
	if err := s.reloadProjects(ctx); err != nil {
		s.ProjectFilter = prev
		return err
	}
	return nil
}

// SetDisplay changes one display setting and persists it when the state
// has a workspace.
func (s *State) SetDisplay(key, value string) error {
	next := s.Display
	if err := next.Set(key, value); err != nil {
		return err
	}
	if s.workspace != "" {
		if err := config.Save(s.workspace, &next); err != nil {
			return err
		}
	}
	s.Display = next
	return nil
}

func (s *State) afterTaskChange(ctx context.Context) error {
	if err := s.reloadTasks(ctx); err != nil {
		return err
	}
	return s.reloadDashboard(ctx)
}

func (s *State) CreateTask(ctx context.Context, opts engine.TaskCreateOptions) (domain.Task, error) {
	t, err := s.eng.CreateTask(ctx, opts)
	if err != nil {
		return t, err
	}
	return t, s.afterTaskChange(ctx)
}

func (s *State) UpdateTask(ctx context.Context, opts engine.TaskUpdateOptions) (domain.Task, error) {
	t, err := s.eng.UpdateTask(ctx, opts)
	if err != nil {
		return t, err
	}
	return t, s.afterTaskChange(ctx)
}

// MoveTask sets a task's status, as dragging a card across the board does.
func (s *State) MoveTask(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	return s.UpdateTask(ctx, engine.TaskUpdateOptions{ID: id, Status: &status})
}

func (s *State) CompleteTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := s.eng.CompleteTask(ctx, id, "")
	if err != nil {
		return t, err
	}
	return t, s.afterTaskChange(ctx)
}

func (s *State) DeleteTask(ctx context.Context, id string) error {
	if err := s.eng.DeleteTask(ctx, id, ""); err != nil {
		return err
	}
	return s.afterTaskChange(ctx)
}

func (s *State) CreateClient(ctx context.Context, opts engine.ClientCreateOptions) (domain.Client, error) {
	c, err := s.eng.CreateClient(ctx, opts)
	if err != nil {
		return c, err
	}
	if err := s.reloadClients(ctx); err != nil {
		return c, err
	}
	return c, s.reloadDashboard(ctx)
}

// DeleteClient also reloads tasks and projects, whose client references
// are cleared.
func (s *State) DeleteClient(ctx context.Context, id string) error {
	if err := s.eng.DeleteClient(ctx, id, ""); err != nil {
		return err
	}
	return s.Load(ctx)
}

func (s *State) CreateProject(ctx context.Context, opts engine.ProjectCreateOptions) (domain.Project, error) {
	p, err := s.eng.CreateProject(ctx, opts)
	if err != nil {
		return p, err
	}
	if err := s.reloadProjects(ctx); err != nil {
		return p, err
	}
	return p, s.reloadDashboard(ctx)
}

func (s *State) CreateOpportunity(ctx context.Context, opts engine.OpportunityCreateOptions) (domain.Opportunity, error) {
	o, err := s.eng.CreateOpportunity(ctx, opts)
	if err != nil {
		return o, err
	}
	if err := s.reloadOpportunities(ctx); err != nil {
		return o, err
	}
	return o, s.reloadDashboard(ctx)
}

// MoveOpportunity changes the pipeline stage of an opportunity.
func (s *State) MoveOpportunity(ctx context.Context, id, stage string) (domain.Opportunity, error) {
	o, err := s.eng.UpdateOpportunity(ctx, engine.OpportunityUpdateOptions{ID: id, Stage: &stage})
	if err != nil {
		return o, err
	}
	if err := s.reloadOpportunities(ctx); err != nil {
		return o, err
	}
	return o, s.reloadDashboard(ctx)
}
