package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
	"planner/internal/db"
	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/engine/auth"
	"planner/internal/migrate"
)

var testNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err, "open db")
	require.NoError(t, migrate.Migrate(conn), "migrate")
	cfg := config.Default()
	cfg.Time.Timezone = "UTC"
	e := engine.New(conn, cfg, nil)
	e.Now = func() time.Time { return testNow }
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: secret}})
	require.NoError(t, err, "build handler")
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err, "listen")
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	reader := bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err, "marshal body")
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err, "new request")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err, "do request")
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err, "read body")
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env.Error.Code
}

func TestHealthAndOpenAPI(t *testing.T) {
	srv := newTestServer(t, "")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var oas map[string]any
	require.NoError(t, json.Unmarshal(data, &oas))
	paths, ok := oas["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v0/tasks")
	assert.Contains(t, paths, "/v0/timer/stop")
}

func TestTaskLifecycle(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()

	res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title": "Draft proposal",
		"due":   "today",
		"tags":  []string{"sales"},
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	task := decode[domain.Task](t, data)
	assert.Equal(t, domain.StatusInbox, task.Status)
	assert.InDelta(t, 2.52, task.Score, 1e-9)
	require.NotNil(t, task.Due)
	assert.Equal(t, "2024-06-15", task.Due.Format(domain.DateLayout))

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title":    "Send invoice",
		"priority": 5,
		"impact":   5,
		"effort":   1,
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	top := decode[domain.Task](t, data)

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	list := decode[TaskList](t, data)
	require.Len(t, list.Items, 2)
	assert.Equal(t, top.ID, list.Items[0].ID)

	res, data = doJSON(t, c, http.MethodPatch, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"effort": 1.25,
		"due":    "none",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	updated := decode[domain.Task](t, data)
	assert.InDelta(t, 5.04, updated.Score, 1e-9)
	assert.Nil(t, updated.Due)

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, domain.StatusDone, decode[domain.Task](t, data).Status)

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/tasks/board", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	board := decode[[]engine.BoardColumn](t, data)
	require.Len(t, board, len(domain.TaskStatuses))
	assert.Len(t, board[len(board)-1].Tasks, 1)

	res, _ = doJSON(t, c, http.MethodDelete, srv.URL+"/v0/tasks/"+task.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/tasks/"+task.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, data))
}

func TestBulkUpdateAndRescore(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()
	var ids []string
	for _, title := range []string{"One", "Two"} {
		res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": title}, nil)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
		ids = append(ids, decode[domain.Task](t, data).ID)
	}
	res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks/bulk", map[string]any{
		"ids":    ids,
		"update": map[string]any{"status": "Todo", "add_tags": []string{"q3"}},
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	for _, task := range decode[TaskList](t, data).Items {
		assert.Equal(t, domain.StatusTodo, task.Status)
		assert.Equal(t, []string{"q3"}, task.Tags)
	}

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks/bulk", map[string]any{
		"ids":    []string{ids[0], "missing"},
		"update": map[string]any{"status": "Doing"},
	}, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/tasks/"+ids[0], nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, domain.StatusTodo, decode[domain.Task](t, data).Status)

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks/rescore", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, 0, decode[RescoreResponse](t, data).Changed)
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()

	res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": ""}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "bad_request", errorCode(t, data))

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": "x", "client_id": "nope"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": "x", "due": "someday"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/tasks?sort=random", nil, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/raid", map[string]any{"kind": "rumor", "title": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/events?cursor=abc", nil, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestClientDeleteClearsReferences(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()
	res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/clients", map[string]any{"name": "Acme", "next_step": "Kickoff", "next_step_due": "tomorrow"}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	client := decode[domain.Client](t, data)

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/projects", map[string]any{"title": "Audit", "client_id": client.ID}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	project := decode[domain.Project](t, data)

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/next-steps", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	steps := decode[[]engine.NextStep](t, data)
	require.Len(t, steps, 1)
	assert.Equal(t, "Kickoff", steps[0].Step)

	res, _ = doJSON(t, c, http.MethodDelete, srv.URL+"/v0/clients/"+client.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/projects/"+project.ID, nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Nil(t, decode[domain.Project](t, data).ClientID)
}

func TestPipelineAndRAID(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()
	for _, body := range []map[string]any{
		{"name": "Retainer", "amount": 2000, "probability": 0.5},
		{"name": "Workshop", "amount": 1000, "stage": "Closed Won"},
	} {
		res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/opportunities", body, nil)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	}
	res, data := doJSON(t, c, http.MethodGet, srv.URL+"/v0/pipeline", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	m := decode[engine.PipelineMetrics](t, data)
	assert.InDelta(t, 2000, m.Total, 1e-9)
	assert.InDelta(t, 1000, m.Weighted, 1e-9)
	assert.InDelta(t, 1000, m.ClosedWon, 1e-9)

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/raid", map[string]any{
		"kind": "risk", "title": "Key person leaves", "severity": "High", "likelihood": "Medium",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	item := decode[RAIDResponse](t, data)
	assert.Equal(t, 6, item.RiskScore)
	assert.Equal(t, domain.LevelHigh, item.RiskBand)
	assert.Equal(t, domain.RAIDOpen, item.Status)
}

func TestTimerAndSummary(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()

	res, data := doJSON(t, c, http.MethodGet, srv.URL+"/v0/timer", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.False(t, decode[TimerResponse](t, data).Running)

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/timer/start", map[string]any{}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/timer/start", map[string]any{}, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "conflict", errorCode(t, data))

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/timer/stop", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	entry := decode[domain.TimeEntry](t, data)
	assert.Equal(t, 0.01, entry.Hours)
	assert.True(t, entry.Billable)
	res, _ = doJSON(t, c, http.MethodPost, srv.URL+"/v0/timer/stop", nil, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)

	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/time-entries", map[string]any{
		"date": "2024-06-14", "hours": 3, "billable": false,
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/time-entries/summary?period=week&date=2024-06-15", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	s := decode[engine.TimeSummary](t, data)
	assert.Equal(t, "2024-06-10", s.From)
	assert.InDelta(t, 3.01, s.Total, 1e-9)
	assert.InDelta(t, 3, s.NonBillable, 1e-9)

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/time-entries?billable=false", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[[]domain.TimeEntry](t, data), 1)
}

func TestEventsPagination(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()
	for _, name := range []string{"A", "B", "C"} {
		res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/clients", map[string]any{"name": name}, nil)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	}
	res, data := doJSON(t, c, http.MethodGet, srv.URL+"/v0/events?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	page := decode[paginatedEvents](t, data)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "client.created", page.Items[0].Type)
	assert.Greater(t, page.Items[0].ID, page.Items[1].ID)

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/events?limit=2&cursor="+page.NextCursor, nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	next := decode[paginatedEvents](t, data)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)
}

func TestSearchAndDashboard(t *testing.T) {
	srv := newTestServer(t, "")
	c := srv.Client()
	res, data := doJSON(t, c, http.MethodPost, srv.URL+"/v0/knowledge", map[string]any{"title": "Pricing playbook", "content": "Anchor high"}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": "Review pricing", "due": "yesterday"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": "Review pricing", "due": "2024-06-10"}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/search?q=PRICING", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var results []struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Len(t, results, 2)

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/search?q=pricing&kind=planet", nil, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/dashboard", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	d := decode[engine.Dashboard](t, data)
	assert.Equal(t, 1, d.OverdueCount)
	assert.Equal(t, "2024-06-15", d.Date)
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t, "s3cret")
	c := srv.Client()

	res, _ := doJSON(t, c, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, data := doJSON(t, c, http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(t, data))

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"Authorization": "Bearer junk"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))

	token, err := auth.Service{Secret: "s3cret"}.Issue("dana", time.Hour)
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + token}
	res, data = doJSON(t, c, http.MethodPost, srv.URL+"/v0/clients", map[string]any{"name": "Acme"}, headers)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, c, http.MethodGet, srv.URL+"/v0/events?entity_kind=client", nil, headers)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	page := decode[paginatedEvents](t, data)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "dana", page.Items[0].ActorID)
}
