package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

// TimerResponse reports the running timer, if any.
type TimerResponse struct {
	Running   bool       `json:"running"`
	TaskID    *string    `json:"task_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Elapsed   float64    `json:"elapsed_hours"`
}

func registerTime(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-time-entry",
		Method:        http.MethodPost,
		Path:          "/time-entries",
		Summary:       "Log hours; billable unless stated otherwise",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTimeEntryRequest `json:"body"`
	}) (*output[domain.TimeEntry], error) {
		billable := true
		if input.Body.Billable != nil {
			billable = *input.Body.Billable
		}
		te, err := e.AddTimeEntry(ctx, engine.TimeEntryCreateOptions{
			Date:      input.Body.Date,
			Hours:     input.Body.Hours,
			Billable:  billable,
			ClientID:  input.Body.ClientID,
			ProjectID: input.Body.ProjectID,
			TaskID:    input.Body.TaskID,
			Notes:     input.Body.Notes,
			ActorID:   actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(te), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-time-entries",
		Method:      http.MethodGet,
		Path:        "/time-entries",
		Summary:     "List time entries in a date range",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From      string `query:"from" doc:"YYYY-MM-DD, inclusive"`
		To        string `query:"to" doc:"YYYY-MM-DD, inclusive"`
		ClientID  string `query:"client_id"`
		ProjectID string `query:"project_id"`
		TaskID    string `query:"task_id"`
		Billable  string `query:"billable" doc:"true or false; empty lists both"`
	}) (*output[[]domain.TimeEntry], error) {
		f := repo.TimeEntryFilters{
			From:      input.From,
			To:        input.To,
			ClientID:  input.ClientID,
			ProjectID: input.ProjectID,
			TaskID:    input.TaskID,
		}
		if input.Billable != "" {
			b, err := strconv.ParseBool(input.Billable)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "billable must be true or false", nil)
			}
			f.Billable = &b
		}
		items, err := e.ListTimeEntries(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return out(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-time-summary",
		Method:      http.MethodGet,
		Path:        "/time-entries/summary",
		Summary:     "Hours, billable split and utilization for a day, week or month",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Period string `query:"period" default:"week" enum:"day,week,month"`
		Date   string `query:"date" doc:"reference day, YYYY-MM-DD; defaults to today"`
	}) (*output[engine.TimeSummary], error) {
		var ref time.Time
		if input.Date != "" {
			t, err := time.ParseInLocation(domain.DateLayout, input.Date, e.Location())
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD", map[string]any{"date": input.Date})
			}
			ref = t
		}
		s, err := e.TimeSummary(ctx, input.Period, ref)
		if err != nil {
			return nil, handleError(err)
		}
		return out(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-time-entry",
		Method:      http.MethodGet,
		Path:        "/time-entries/{id}",
		Summary:     "Get a time entry",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.TimeEntry], error) {
		te, err := e.GetTimeEntry(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(te), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-time-entry",
		Method:      http.MethodPatch,
		Path:        "/time-entries/{id}",
		Summary:     "Update a time entry",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body UpdateTimeEntryRequest `json:"body"`
	}) (*output[domain.TimeEntry], error) {
		te, err := e.UpdateTimeEntry(ctx, engine.TimeEntryUpdateOptions{
			ID:        input.ID,
			Date:      input.Body.Date,
			Hours:     input.Body.Hours,
			Billable:  input.Body.Billable,
			ClientID:  input.Body.ClientID,
			ProjectID: input.Body.ProjectID,
			TaskID:    input.Body.TaskID,
			Notes:     input.Body.Notes,
			ActorID:   actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(te), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-time-entry",
		Method:        http.MethodDelete,
		Path:          "/time-entries/{id}",
		Summary:       "Delete a time entry",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteTimeEntry(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-timer",
		Method:      http.MethodGet,
		Path:        "/timer",
		Summary:     "Show the running timer",
	}, func(ctx context.Context, _ *struct{}) (*output[TimerResponse], error) {
		tm, err := e.Timer(ctx)
		if errors.Is(err, engine.ErrNoTimer) {
			return out(TimerResponse{}), nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		started := tm.StartedAt
		return out(TimerResponse{
			Running:   true,
			TaskID:    tm.TaskID,
			StartedAt: &started,
			Elapsed:   engine.TimerHours(e.Clock().Sub(tm.StartedAt)),
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-timer",
		Method:        http.MethodPost,
		Path:          "/timer/start",
		Summary:       "Start the workspace timer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body *StartTimerRequest `json:"body,omitempty" required:"false"`
	}) (*output[domain.Timer], error) {
		taskID := ""
		if input.Body != nil {
			taskID = input.Body.TaskID
		}
		tm, err := e.StartTimer(ctx, taskID, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return out(tm), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-timer",
		Method:      http.MethodPost,
		Path:        "/timer/stop",
		Summary:     "Stop the timer and book the elapsed hours",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*output[domain.TimeEntry], error) {
		te, err := e.StopTimer(ctx, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return out(te), nil
	})
}

func registerKnowledge(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-knowledge-item",
		Method:        http.MethodPost,
		Path:          "/knowledge",
		Summary:       "Add a knowledge base entry",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateKnowledgeRequest `json:"body"`
	}) (*output[domain.KnowledgeItem], error) {
		k, err := e.CreateKnowledge(ctx, engine.KnowledgeCreateOptions{
			Title:    input.Body.Title,
			Content:  input.Body.Content,
			Category: input.Body.Category,
			Tags:     input.Body.Tags,
			IsPublic: input.Body.IsPublic,
			ActorID:  actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(k), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-knowledge-items",
		Method:      http.MethodGet,
		Path:        "/knowledge",
		Summary:     "List knowledge base entries",
	}, func(ctx context.Context, input *struct {
		Category   string `query:"category"`
		Tag        string `query:"tag"`
		PublicOnly bool   `query:"public"`
	}) (*output[[]domain.KnowledgeItem], error) {
		items, err := e.ListKnowledge(ctx, repo.KnowledgeFilters{
			Category:   input.Category,
			Tag:        input.Tag,
			PublicOnly: input.PublicOnly,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-knowledge-item",
		Method:      http.MethodGet,
		Path:        "/knowledge/{id}",
		Summary:     "Read a knowledge base entry and mark it accessed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.KnowledgeItem], error) {
		k, err := e.GetKnowledge(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(k), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-knowledge-item",
		Method:      http.MethodPatch,
		Path:        "/knowledge/{id}",
		Summary:     "Update a knowledge base entry",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body UpdateKnowledgeRequest `json:"body"`
	}) (*output[domain.KnowledgeItem], error) {
		k, err := e.UpdateKnowledge(ctx, engine.KnowledgeUpdateOptions{
			ID:       input.ID,
			Title:    input.Body.Title,
			Content:  input.Body.Content,
			Category: input.Body.Category,
			Tags:     input.Body.Tags,
			IsPublic: input.Body.IsPublic,
			ActorID:  actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(k), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-knowledge-item",
		Method:        http.MethodDelete,
		Path:          "/knowledge/{id}",
		Summary:       "Delete a knowledge base entry",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteKnowledge(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}
