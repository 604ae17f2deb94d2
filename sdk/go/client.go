// Package plannersdk is a small client for the planner HTTP API.
package plannersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal planner HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client for the API served under /v0 at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Priority   int      `json:"priority"`
	Impact     int      `json:"impact"`
	Confidence float64  `json:"confidence"`
	Effort     float64  `json:"effort"`
	Score      float64  `json:"score"`
	Due        string   `json:"due,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
	ProjectID  string   `json:"project_id,omitempty"`
	IsNextStep bool     `json:"is_next_step"`
	Tags       []string `json:"tags"`
}

// NewTask is the body of CreateTask. Nil scoring fields take the
// workspace defaults.
type NewTask struct {
	Title      string   `json:"title"`
	Priority   *int     `json:"priority,omitempty"`
	Impact     *int     `json:"impact,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Effort     *float64 `json:"effort,omitempty"`
	Due        string   `json:"due,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
	ProjectID  string   `json:"project_id,omitempty"`
	IsNextStep bool     `json:"is_next_step,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// TimeEntry represents a booked time entry (partial).
type TimeEntry struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
	Billable bool    `json:"billable"`
	TaskID   string  `json:"task_id,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// SearchResult is one hit of Search.
type SearchResult struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp, err
}

// ListTasks returns tasks ranked by score. Query keys follow the API
// (status, client_id, project_id, tag, next_step, exclude_done, sort).
func (c *Client) ListTasks(ctx context.Context, query url.Values) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	endpoint := "tasks"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%s/complete", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// StartTimer starts the workspace timer, optionally for a task.
func (c *Client) StartTimer(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "timer/start", map[string]string{"task_id": taskID}, nil)
}

// StopTimer stops the timer and returns the booked entry.
func (c *Client) StopTimer(ctx context.Context) (TimeEntry, error) {
	var resp TimeEntry
	err := c.do(ctx, http.MethodPost, "timer/stop", nil, &resp)
	return resp, err
}

// Search runs a text search across entity kinds.
func (c *Client) Search(ctx context.Context, term string, limit int) ([]SearchResult, error) {
	q := url.Values{"q": {term}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []SearchResult
	err := c.do(ctx, http.MethodGet, "search?"+q.Encode(), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
