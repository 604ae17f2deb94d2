package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/app"
	"planner/internal/config"
	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

func openWorkspace(t *testing.T) (*app.Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	ws, wrote, err := app.Init(context.Background(), app.Options{Workspace: dir, Timezone: "UTC"})
	require.NoError(t, err)
	require.True(t, wrote)
	t.Cleanup(func() { ws.Close() })
	ws.Engine.Now = func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }
	return ws, dir
}

func TestInitWritesConfigOnce(t *testing.T) {
	_, dir := openWorkspace(t)
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.Display.Theme)

	ws, wrote, err := app.Init(context.Background(), app.Options{Workspace: dir})
	require.NoError(t, err)
	defer ws.Close()
	assert.False(t, wrote)
}

func TestResolveConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg, err := app.ResolveConfig(app.Options{Workspace: dir, Timezone: "UTC", JWTSecret: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Time.Timezone)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)

	_, err = app.ResolveConfig(app.Options{Workspace: dir, Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestStateCommandsReload(t *testing.T) {
	ws, _ := openWorkspace(t)
	ctx := context.Background()
	s := app.NewState(ws.Engine, "")
	require.NoError(t, s.Load(ctx))
	assert.Empty(t, s.Tasks)
	assert.Len(t, s.Board, len(domain.TaskStatuses))

	due := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	task, err := s.CreateTask(ctx, engine.TaskCreateOptions{Title: "Call Dana", Due: &due})
	require.NoError(t, err)
	require.Len(t, s.Tasks, 1)
	require.Len(t, s.Dashboard.Today, 1)

	_, err = s.MoveTask(ctx, task.ID, domain.StatusBlocked)
	require.NoError(t, err)
	assert.Empty(t, s.Dashboard.Today)
	assert.Len(t, s.Board[3].Tasks, 1)

	require.NoError(t, s.SetTaskFilter(ctx, engine.TaskListOptions{TaskFilters: repo.TaskFilters{Status: string(domain.StatusTodo)}}))
	assert.Empty(t, s.Tasks)
	err = s.SetTaskFilter(ctx, engine.TaskListOptions{Sort: "random"})
	require.ErrorIs(t, err, engine.ErrValidation)
	assert.Equal(t, string(domain.StatusTodo), s.TaskFilter.Status)

	c, err := s.CreateClient(ctx, engine.ClientCreateOptions{Name: "Acme"})
	require.NoError(t, err)
	assert.Len(t, s.Clients, 1)
	assert.Equal(t, 1, s.Dashboard.Metrics.Clients)
	require.NoError(t, s.DeleteClient(ctx, c.ID))
	assert.Empty(t, s.Clients)

	o, err := s.CreateOpportunity(ctx, engine.OpportunityCreateOptions{Name: "Retainer", Amount: 1000})
	require.NoError(t, err)
	_, err = s.MoveOpportunity(ctx, o.ID, domain.StageClosedWon)
	require.NoError(t, err)
	assert.Equal(t, domain.StageClosedWon, s.Opportunities[0].Stage)
	assert.Zero(t, s.Dashboard.Metrics.WeightedPipeline)
}

func TestStateViewsAndDisplay(t *testing.T) {
	ws, dir := openWorkspace(t)
	s := app.NewState(ws.Engine, dir)
	assert.Equal(t, app.ViewDashboard, s.View)
	require.NoError(t, s.SetView(app.ViewBoard))
	assert.Error(t, s.SetView("gallery"))
	assert.Equal(t, app.ViewBoard, s.View)

	require.NoError(t, s.SetDisplay("accent", "teal"))
	assert.Equal(t, "#14B8A6", s.Display.Display.AccentColor)
	require.Error(t, s.SetDisplay("theme", "neon"))
	assert.Equal(t, "dark", s.Display.Display.Theme)

	saved, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "#14B8A6", saved.Display.AccentColor)
}
