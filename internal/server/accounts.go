package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create a client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest `json:"body"`
	}) (*output[domain.Client], error) {
		due, err := parseDate(e, input.Body.NextStepDue)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.CreateClient(ctx, engine.ClientCreateOptions{
			Name:         input.Body.Name,
			Industry:     input.Body.Industry,
			Website:      input.Body.Website,
			Phone:        input.Body.Phone,
			Email:        input.Body.Email,
			Address:      input.Body.Address,
			IsKeyAccount: input.Body.IsKeyAccount,
			NextStep:     input.Body.NextStep,
			NextStepDue:  due,
			Tags:         input.Body.Tags,
			ActorID:      actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, input *struct {
		KeyAccount  bool   `query:"key_account"`
		Tag         string `query:"tag"`
		HasNextStep bool   `query:"has_next_step"`
	}) (*output[[]domain.Client], error) {
		items, err := e.ListClients(ctx, repo.ClientFilters{
			KeyAccountOnly: input.KeyAccount,
			Tag:            input.Tag,
			HasNextStep:    input.HasNextStep,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get a client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.Client], error) {
		c, err := e.GetClient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPatch,
		Path:        "/clients/{id}",
		Summary:     "Update a client",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateClientRequest `json:"body"`
	}) (*output[domain.Client], error) {
		due, clear, err := patchDate(e, input.Body.NextStepDue)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.UpdateClient(ctx, engine.ClientUpdateOptions{
			ID:               input.ID,
			Name:             input.Body.Name,
			Industry:         input.Body.Industry,
			Website:          input.Body.Website,
			Phone:            input.Body.Phone,
			Email:            input.Body.Email,
			Address:          input.Body.Address,
			IsKeyAccount:     input.Body.IsKeyAccount,
			NextStep:         input.Body.NextStep,
			NextStepDue:      due,
			ClearNextStepDue: clear,
			Tags:             input.Body.Tags,
			ActorID:          actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(c), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-client",
		Method:        http.MethodDelete,
		Path:          "/clients/{id}",
		Summary:       "Delete a client and clear references to it",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteClient(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create a project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*output[domain.Project], error) {
		due, err := parseDate(e, input.Body.Due)
		if err != nil {
			return nil, handleError(err)
		}
		stepDue, err := parseDate(e, input.Body.NextStepDue)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			ClientID:    input.Body.ClientID,
			Kind:        input.Body.Kind,
			Due:         due,
			NextStep:    input.Body.NextStep,
			NextStepDue: stepDue,
			Tags:        input.Body.Tags,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, input *struct {
		ClientID    string `query:"client_id"`
		Kind        string `query:"kind"`
		Tag         string `query:"tag"`
		HasNextStep bool   `query:"has_next_step"`
	}) (*output[[]domain.Project], error) {
		items, err := e.ListProjects(ctx, repo.ProjectFilters{
			ClientID:    input.ClientID,
			Kind:        input.Kind,
			Tag:         input.Tag,
			HasNextStep: input.HasNextStep,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.Project], error) {
		p, err := e.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update a project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*output[domain.Project], error) {
		due, clearDue, err := patchDate(e, input.Body.Due)
		if err != nil {
			return nil, handleError(err)
		}
		stepDue, clearStep, err := patchDate(e, input.Body.NextStepDue)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:               input.ID,
			Title:            input.Body.Title,
			Description:      input.Body.Description,
			ClientID:         input.Body.ClientID,
			Kind:             input.Body.Kind,
			Due:              due,
			ClearDue:         clearDue,
			NextStep:         input.Body.NextStep,
			NextStepDue:      stepDue,
			ClearNextStepDue: clearStep,
			Tags:             input.Body.Tags,
			ActorID:          actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}",
		Summary:       "Delete a project and clear references to it",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteProject(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-note",
		Method:        http.MethodPost,
		Path:          "/notes",
		Summary:       "Create a note",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateNoteRequest `json:"body"`
	}) (*output[domain.Note], error) {
		n, err := e.CreateNote(ctx, engine.NoteCreateOptions{
			Title:       input.Body.Title,
			Content:     input.Body.Content,
			ClientID:    input.Body.ClientID,
			ProjectID:   input.Body.ProjectID,
			LinkedTasks: input.Body.LinkedTasks,
			Tags:        input.Body.Tags,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(n), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/notes",
		Summary:     "List notes",
	}, func(ctx context.Context, input *struct {
		ClientID  string `query:"client_id"`
		ProjectID string `query:"project_id"`
		TaskID    string `query:"task_id"`
		Tag       string `query:"tag"`
	}) (*output[[]domain.Note], error) {
		items, err := e.ListNotes(ctx, repo.NoteFilters{
			ClientID:  input.ClientID,
			ProjectID: input.ProjectID,
			TaskID:    input.TaskID,
			Tag:       input.Tag,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-note",
		Method:      http.MethodGet,
		Path:        "/notes/{id}",
		Summary:     "Get a note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.Note], error) {
		n, err := e.GetNote(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(n), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-note",
		Method:      http.MethodPatch,
		Path:        "/notes/{id}",
		Summary:     "Update a note and its task links",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateNoteRequest `json:"body"`
	}) (*output[domain.Note], error) {
		n, err := e.UpdateNote(ctx, engine.NoteUpdateOptions{
			ID:          input.ID,
			Title:       input.Body.Title,
			Content:     input.Body.Content,
			ClientID:    input.Body.ClientID,
			ProjectID:   input.Body.ProjectID,
			LinkedTasks: input.Body.LinkedTasks,
			LinkTasks:   input.Body.LinkTasks,
			UnlinkTasks: input.Body.UnlinkTasks,
			Tags:        input.Body.Tags,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(n), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-note",
		Method:        http.MethodDelete,
		Path:          "/notes/{id}",
		Summary:       "Delete a note",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteNote(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}
