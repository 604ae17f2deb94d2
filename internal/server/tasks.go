package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

type taskQuery struct {
	Status      string `query:"status"`
	ClientID    string `query:"client_id"`
	ProjectID   string `query:"project_id"`
	Tag         string `query:"tag"`
	NextStep    bool   `query:"next_step"`
	ExcludeDone bool   `query:"exclude_done"`
}

func (q taskQuery) filters() repo.TaskFilters {
	return repo.TaskFilters{
		Status:       q.Status,
		ClientID:     q.ClientID,
		ProjectID:    q.ProjectID,
		Tag:          q.Tag,
		NextStepOnly: q.NextStep,
		ExcludeDone:  q.ExcludeDone,
	}
}

func taskUpdateOptions(e engine.Engine, id string, req UpdateTaskRequest) (engine.TaskUpdateOptions, error) {
	opts := engine.TaskUpdateOptions{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Effort:      req.Effort,
		Impact:      req.Impact,
		Confidence:  req.Confidence,
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		IsNextStep:  req.IsNextStep,
		Tags:        req.Tags,
		AddTags:     req.AddTags,
		RemoveTags:  req.RemoveTags,
	}
	if req.Status != nil {
		st := domain.TaskStatus(*req.Status)
		opts.Status = &st
	}
	due, clear, err := patchDate(e, req.Due)
	if err != nil {
		return opts, err
	}
	opts.Due, opts.ClearDue = due, clear
	return opts, nil
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*output[domain.Task], error) {
		due, err := parseDate(e, input.Body.Due)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Status:      domain.TaskStatus(input.Body.Status),
			Priority:    input.Body.Priority,
			Effort:      input.Body.Effort,
			Impact:      input.Body.Impact,
			Confidence:  input.Body.Confidence,
			Due:         due,
			ClientID:    input.Body.ClientID,
			ProjectID:   input.Body.ProjectID,
			IsNextStep:  input.Body.IsNextStep,
			Tags:        input.Body.Tags,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks ranked by score",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		taskQuery
		Sort string `query:"sort" doc:"rank (default), due or priority"`
	}) (*output[TaskList], error) {
		tasks, err := e.ListTasks(ctx, engine.TaskListOptions{TaskFilters: input.filters(), Sort: input.Sort})
		if err != nil {
			return nil, handleError(err)
		}
		return out(TaskList{Items: tasks}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/tasks/board",
		Summary:     "Kanban columns Inbox..Done, each ranked",
	}, func(ctx context.Context, input *struct {
		taskQuery
	}) (*output[[]engine.BoardColumn], error) {
		cols, err := e.Board(ctx, input.filters())
		if err != nil {
			return nil, handleError(err)
		}
		return out(cols), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-update-tasks",
		Method:      http.MethodPost,
		Path:        "/tasks/bulk",
		Summary:     "Apply one patch to several tasks atomically",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body BulkUpdateTasksRequest `json:"body"`
	}) (*output[TaskList], error) {
		opts, err := taskUpdateOptions(e, "", input.Body.Update)
		if err != nil {
			return nil, handleError(err)
		}
		opts.ActorID = actorID(ctx)
		tasks, err := e.BulkUpdateTasks(ctx, input.Body.IDs, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return out(TaskList{Items: tasks}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rescore-tasks",
		Method:      http.MethodPost,
		Path:        "/tasks/rescore",
		Summary:     "Recompute every stored task score",
	}, func(ctx context.Context, _ *struct{}) (*output[RescoreResponse], error) {
		n, err := e.RescoreTasks(ctx, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return out(RescoreResponse{Changed: n}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.Task], error) {
		t, err := e.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update a task; scoring changes recompute the score",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*output[domain.Task], error) {
		opts, err := taskUpdateOptions(e, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		opts.ActorID = actorID(ctx)
		t, err := e.UpdateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return out(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/complete",
		Summary:     "Mark a task done",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.Task], error) {
		t, err := e.CompleteTask(ctx, input.ID, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return out(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete a task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}
