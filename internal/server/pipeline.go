package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planner/internal/domain"
	"planner/internal/engine"
	"planner/internal/repo"
)

// RAIDResponse adds the computed risk score and band to a RAID item.
type RAIDResponse struct {
	domain.RAIDItem
	RiskScore int    `json:"risk_score"`
	RiskBand  string `json:"risk_band"`
}

func raidResponse(r domain.RAIDItem) RAIDResponse {
	score := engine.RiskScore(r.Severity, r.Likelihood)
	return RAIDResponse{RAIDItem: r, RiskScore: score, RiskBand: engine.RiskBand(score)}
}

func registerOpportunities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-opportunity",
		Method:        http.MethodPost,
		Path:          "/opportunities",
		Summary:       "Create an opportunity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateOpportunityRequest `json:"body"`
	}) (*output[domain.Opportunity], error) {
		due, err := parseDate(e, input.Body.NextStepDue)
		if err != nil {
			return nil, handleError(err)
		}
		o, err := e.CreateOpportunity(ctx, engine.OpportunityCreateOptions{
			Name:        input.Body.Name,
			ClientID:    input.Body.ClientID,
			ProjectID:   input.Body.ProjectID,
			Stage:       input.Body.Stage,
			Amount:      input.Body.Amount,
			Probability: input.Body.Probability,
			NextStep:    input.Body.NextStep,
			NextStepDue: due,
			Notes:       input.Body.Notes,
			Tags:        input.Body.Tags,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(o), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-opportunities",
		Method:      http.MethodGet,
		Path:        "/opportunities",
		Summary:     "List opportunities",
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
		Stage    string `query:"stage"`
		OpenOnly bool   `query:"open"`
		Tag      string `query:"tag"`
	}) (*output[[]domain.Opportunity], error) {
		items, err := e.ListOpportunities(ctx, repo.OpportunityFilters{
			ClientID: input.ClientID,
			Stage:    input.Stage,
			OpenOnly: input.OpenOnly,
			Tag:      input.Tag,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/pipeline",
		Summary:     "Pipeline totals per stage, weighted pipeline and win rate",
	}, func(ctx context.Context, _ *struct{}) (*output[engine.PipelineMetrics], error) {
		m, err := e.PipelineMetrics(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return out(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-opportunity",
		Method:      http.MethodGet,
		Path:        "/opportunities/{id}",
		Summary:     "Get an opportunity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.Opportunity], error) {
		o, err := e.GetOpportunity(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(o), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-opportunity",
		Method:      http.MethodPatch,
		Path:        "/opportunities/{id}",
		Summary:     "Update an opportunity or move it between stages",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body UpdateOpportunityRequest `json:"body"`
	}) (*output[domain.Opportunity], error) {
		due, clear, err := patchDate(e, input.Body.NextStepDue)
		if err != nil {
			return nil, handleError(err)
		}
		o, err := e.UpdateOpportunity(ctx, engine.OpportunityUpdateOptions{
			ID:               input.ID,
			Name:             input.Body.Name,
			ClientID:         input.Body.ClientID,
			ProjectID:        input.Body.ProjectID,
			Stage:            input.Body.Stage,
			Amount:           input.Body.Amount,
			Probability:      input.Body.Probability,
			NextStep:         input.Body.NextStep,
			NextStepDue:      due,
			ClearNextStepDue: clear,
			Notes:            input.Body.Notes,
			Tags:             input.Body.Tags,
			ActorID:          actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(o), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-opportunity",
		Method:        http.MethodDelete,
		Path:          "/opportunities/{id}",
		Summary:       "Delete an opportunity",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteOpportunity(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerStakeholders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-stakeholder",
		Method:        http.MethodPost,
		Path:          "/stakeholders",
		Summary:       "Create a stakeholder",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateStakeholderRequest `json:"body"`
	}) (*output[domain.Stakeholder], error) {
		s, err := e.CreateStakeholder(ctx, engine.StakeholderCreateOptions{
			Name:      input.Body.Name,
			Role:      input.Body.Role,
			Email:     input.Body.Email,
			Phone:     input.Body.Phone,
			ClientID:  input.Body.ClientID,
			Influence: input.Body.Influence,
			Attitude:  input.Body.Attitude,
			Notes:     input.Body.Notes,
			ActorID:   actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stakeholders",
		Method:      http.MethodGet,
		Path:        "/stakeholders",
		Summary:     "List stakeholders",
	}, func(ctx context.Context, input *struct {
		ClientID  string `query:"client_id"`
		Influence string `query:"influence"`
		Attitude  string `query:"attitude"`
	}) (*output[[]domain.Stakeholder], error) {
		items, err := e.ListStakeholders(ctx, repo.StakeholderFilters{
			ClientID:  input.ClientID,
			Influence: input.Influence,
			Attitude:  input.Attitude,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stakeholder",
		Method:      http.MethodGet,
		Path:        "/stakeholders/{id}",
		Summary:     "Get a stakeholder",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[domain.Stakeholder], error) {
		s, err := e.GetStakeholder(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stakeholder",
		Method:      http.MethodPatch,
		Path:        "/stakeholders/{id}",
		Summary:     "Update a stakeholder",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body UpdateStakeholderRequest `json:"body"`
	}) (*output[domain.Stakeholder], error) {
		s, err := e.UpdateStakeholder(ctx, engine.StakeholderUpdateOptions{
			ID:        input.ID,
			Name:      input.Body.Name,
			Role:      input.Body.Role,
			Email:     input.Body.Email,
			Phone:     input.Body.Phone,
			ClientID:  input.Body.ClientID,
			Influence: input.Body.Influence,
			Attitude:  input.Body.Attitude,
			Notes:     input.Body.Notes,
			ActorID:   actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-stakeholder",
		Method:        http.MethodDelete,
		Path:          "/stakeholders/{id}",
		Summary:       "Delete a stakeholder",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteStakeholder(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerRAID(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-raid-item",
		Method:        http.MethodPost,
		Path:          "/raid",
		Summary:       "Log a risk, assumption, issue, dependency or decision",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateRAIDRequest `json:"body"`
	}) (*output[RAIDResponse], error) {
		due, err := parseDate(e, input.Body.Due)
		if err != nil {
			return nil, handleError(err)
		}
		r, err := e.CreateRAID(ctx, engine.RAIDCreateOptions{
			Kind:        input.Body.Kind,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Severity:    input.Body.Severity,
			Likelihood:  input.Body.Likelihood,
			Status:      input.Body.Status,
			Owner:       input.Body.Owner,
			Due:         due,
			Resolution:  input.Body.Resolution,
			ProjectID:   input.Body.ProjectID,
			ClientID:    input.Body.ClientID,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(raidResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-raid-items",
		Method:      http.MethodGet,
		Path:        "/raid",
		Summary:     "List RAID items",
	}, func(ctx context.Context, input *struct {
		Kind      string `query:"kind"`
		Status    string `query:"status"`
		ProjectID string `query:"project_id"`
		ClientID  string `query:"client_id"`
		OpenOnly  bool   `query:"open"`
	}) (*output[[]RAIDResponse], error) {
		items, err := e.ListRAID(ctx, repo.RAIDFilters{
			Kind:      input.Kind,
			Status:    input.Status,
			ProjectID: input.ProjectID,
			ClientID:  input.ClientID,
			OpenOnly:  input.OpenOnly,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := make([]RAIDResponse, 0, len(items))
		for _, r := range items {
			resp = append(resp, raidResponse(r))
		}
		return out(resp), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-raid-item",
		Method:      http.MethodGet,
		Path:        "/raid/{id}",
		Summary:     "Get a RAID item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*output[RAIDResponse], error) {
		r, err := e.GetRAID(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return out(raidResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-raid-item",
		Method:      http.MethodPatch,
		Path:        "/raid/{id}",
		Summary:     "Update a RAID item",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateRAIDRequest `json:"body"`
	}) (*output[RAIDResponse], error) {
		due, clear, err := patchDate(e, input.Body.Due)
		if err != nil {
			return nil, handleError(err)
		}
		r, err := e.UpdateRAID(ctx, engine.RAIDUpdateOptions{
			ID:          input.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Severity:    input.Body.Severity,
			Likelihood:  input.Body.Likelihood,
			Status:      input.Body.Status,
			Owner:       input.Body.Owner,
			Due:         due,
			ClearDue:    clear,
			Resolution:  input.Body.Resolution,
			ProjectID:   input.Body.ProjectID,
			ClientID:    input.Body.ClientID,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return out(raidResponse(r)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-raid-item",
		Method:        http.MethodDelete,
		Path:          "/raid/{id}",
		Summary:       "Delete a RAID item",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteRAID(ctx, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}
