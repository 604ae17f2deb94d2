package plannersdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
	"planner/internal/db"
	"planner/internal/engine"
	"planner/internal/engine/auth"
	"planner/internal/migrate"
	"planner/internal/server"
)

func newTestClient(t *testing.T, secret string) *Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default()
	cfg.Time.Timezone = "UTC"
	handler, err := server.New(server.Config{
		Engine:   engine.New(conn, cfg, nil),
		BasePath: "/v0",
		Auth:     server.AuthConfig{JWTSecret: secret},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		conn.Close()
	})
	return New(ts.URL)
}

func ptr[T any](v T) *T { return &v }

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "sdk-secret")

	_, err := c.ListTasks(ctx, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)

	token, err := auth.Service{Secret: "sdk-secret"}.Issue("sam", 0)
	require.NoError(t, err)
	c.BearerToken = token

	task, err := c.CreateTask(ctx, NewTask{
		Title:      "Draft proposal",
		Priority:   ptr(4),
		Impact:     ptr(3),
		Confidence: ptr(0.7),
		Effort:     ptr(2.0),
	})
	require.NoError(t, err)
	assert.InDelta(t, 4.2, task.Score, 0.001)
	assert.Equal(t, "Inbox", task.Status)

	require.NoError(t, c.StartTimer(ctx, task.ID))
	entry, err := c.StopTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.ID, entry.TaskID)
	assert.True(t, entry.Billable)
	assert.GreaterOrEqual(t, entry.Hours, 0.01)

	_, err = c.StopTimer(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 409, apiErr.StatusCode)

	done, err := c.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done", done.Status)

	open, err := c.ListTasks(ctx, url.Values{"exclude_done": {"true"}})
	require.NoError(t, err)
	assert.Empty(t, open)

	hits, err := c.Search(ctx, "proposal", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "task", hits[0].Kind)

	page, err := c.EventsPage(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "sam", page.Items[0].ActorID)

	rest, err := c.EventsPage(ctx, 50, page.NextCursor)
	require.NoError(t, err)
	require.NotEmpty(t, rest.Items)
	assert.Less(t, rest.Items[0].ID, page.Items[1].ID)
}

func TestGetMissingTaskReportsNotFound(t *testing.T) {
	c := newTestClient(t, "")
	_, err := c.CompleteTask(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}
