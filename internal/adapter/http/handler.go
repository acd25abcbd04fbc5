package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/propertiq/internal/app"
	"github.com/neomorfeo/propertiq/internal/domain"
)

// Actions accepted by the intervention action endpoint.
const (
	ActionApprove           = "approve"
	ActionReject            = "reject"
	ActionRequestScheduling = "request_scheduling"
	ActionSchedule          = "schedule"
	ActionStart             = "start"
	ActionComplete          = "complete"
	ActionFinalize          = "finalize"
	ActionCancel            = "cancel"
	ActionValidate          = "validate"
	ActionContest           = "contest"
	ActionClose             = "close"
	ActionAssignProvider    = "assign_provider"
	ActionUnassignProvider  = "unassign_provider"
)

// --- Create Intervention ---

type CreateInterventionInput struct {
	UserID string `header:"X-User-ID" required:"true" doc:"Acting user"`
	Role   string `header:"X-User-Role" required:"true" enum:"admin,manager,provider,tenant" doc:"Role of the acting user"`
	Body   struct {
		LotID                    string   `json:"lot_id,omitempty" doc:"Lot concerned; omit for building-wide work"`
		BuildingID               string   `json:"building_id,omitempty" doc:"Required when no lot is given"`
		RequestedBy              string   `json:"requested_by,omitempty" doc:"Defaults to the acting user"`
		Title                    string   `json:"title" minLength:"1" maxLength:"255"`
		Description              string   `json:"description,omitempty"`
		Category                 string   `json:"category,omitempty"`
		Priority                 string   `json:"priority,omitempty" enum:"low,medium,high,urgent" doc:"Defaults to medium"`
		EstimatedDuration        int      `json:"estimated_duration,omitempty" minimum:"0" doc:"Minutes"`
		QuoteAmount              *float64 `json:"quote_amount,omitempty" minimum:"0"`
		RequiresTenantValidation bool     `json:"requires_tenant_validation,omitempty"`
	}
}

type InterventionOutput struct {
	Body InterventionResponse
}

// --- Get Intervention ---

type GetInterventionInput struct {
	ID string `path:"id" doc:"Intervention ID"`
}

// --- List Interventions ---

type ListInterventionsInput struct {
	Status     string `query:"status" required:"false" doc:"Filter by status"`
	LotID      string `query:"lot_id" required:"false"`
	BuildingID string `query:"building_id" required:"false"`
	TeamID     string `query:"team_id" required:"false"`
	AssigneeID string `query:"assignee_id" required:"false" doc:"Only interventions assigned to this user"`
	Limit      int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset     int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListInterventionsOutput struct {
	Body []InterventionResponse
}

// --- Update Intervention ---

type UpdateInterventionInput struct {
	ID     string `path:"id" doc:"Intervention ID"`
	UserID string `header:"X-User-ID" required:"true"`
	Role   string `header:"X-User-Role" required:"true" enum:"admin,manager,provider,tenant"`
	Body   struct {
		Title             *string    `json:"title,omitempty"`
		Description       *string    `json:"description,omitempty"`
		Category          *string    `json:"category,omitempty"`
		Priority          *string    `json:"priority,omitempty" enum:"low,medium,high,urgent"`
		EstimatedDuration *int       `json:"estimated_duration,omitempty"`
		QuoteAmount       *float64   `json:"quote_amount,omitempty"`
		Notes             *string    `json:"notes,omitempty" doc:"Appended to the existing notes"`
		Status            *string    `json:"status,omitempty" doc:"Target status, reached through the workflow"`
		Reason            string     `json:"reason,omitempty" doc:"Required when the status change is a reject, cancel or contest"`
		ScheduledDate     *time.Time `json:"scheduled_date,omitempty" doc:"Required when the status change schedules the intervention"`
	}
}

// --- Delete Intervention ---

type DeleteInterventionInput struct {
	ID     string `path:"id" doc:"Intervention ID"`
	UserID string `header:"X-User-ID" required:"true"`
	Role   string `header:"X-User-Role" required:"true" enum:"admin,manager,provider,tenant"`
}

// --- Workflow Action ---

// ActionBody carries the parameters of every workflow action; each action reads
// only the fields it needs.
type ActionBody struct {
	Comment        string     `json:"comment,omitempty"`
	Reason         string     `json:"reason,omitempty" doc:"Required for reject, cancel and contest"`
	ScheduledDate  *time.Time `json:"scheduled_date,omitempty" doc:"Required for schedule"`
	ActualDuration int        `json:"actual_duration,omitempty" doc:"Minutes, for complete"`
	Report         string     `json:"report,omitempty" doc:"Provider report, for complete"`
	FinalAmount    *float64   `json:"final_amount,omitempty" doc:"Required for finalize"`
	ProviderID     string     `json:"provider_id,omitempty" doc:"For assign_provider and unassign_provider"`
}

type ActionInput struct {
	ID     string      `path:"id" doc:"Intervention ID"`
	Action string      `path:"action" enum:"approve,reject,request_scheduling,schedule,start,complete,finalize,cancel,validate,contest,close,assign_provider,unassign_provider"`
	UserID string      `header:"X-User-ID" required:"true"`
	Role   string      `header:"X-User-Role" required:"true" enum:"admin,manager,provider,tenant"`
	Body   *ActionBody `required:"false"`
}

// Register adds all intervention API routes to the Huma API.
func Register(api huma.API, svc *app.InterventionService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-intervention",
		Method:        http.MethodPost,
		Path:          "/api/v1/interventions",
		Summary:       "Request a new intervention",
		Tags:          []string{"Interventions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateInterventionInput) (*InterventionOutput, error) {
		iv, err := svc.Create(ctx, actor(input.UserID, input.Role), app.CreateInterventionInput{
			LotID:                    input.Body.LotID,
			BuildingID:               input.Body.BuildingID,
			RequestedBy:              input.Body.RequestedBy,
			Title:                    input.Body.Title,
			Description:              input.Body.Description,
			Category:                 input.Body.Category,
			Priority:                 domain.Priority(input.Body.Priority),
			EstimatedDuration:        input.Body.EstimatedDuration,
			QuoteAmount:              input.Body.QuoteAmount,
			RequiresTenantValidation: input.Body.RequiresTenantValidation,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return withAssignments(ctx, svc, iv)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-intervention",
		Method:      http.MethodGet,
		Path:        "/api/v1/interventions/{id}",
		Summary:     "Get an intervention with its assignments",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *GetInterventionInput) (*InterventionOutput, error) {
		iv, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return withAssignments(ctx, svc, iv)
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-interventions",
		Method:      http.MethodGet,
		Path:        "/api/v1/interventions",
		Summary:     "List interventions",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *ListInterventionsInput) (*ListInterventionsOutput, error) {
		filter := domain.InterventionFilter{
			LotID:      input.LotID,
			BuildingID: input.BuildingID,
			TeamID:     input.TeamID,
			AssigneeID: input.AssigneeID,
			Limit:      input.Limit,
			Offset:     input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		interventions, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]InterventionResponse, len(interventions))
		for i, iv := range interventions {
			resp[i] = toInterventionResponse(iv)
		}
		return &ListInterventionsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-intervention",
		Method:      http.MethodPatch,
		Path:        "/api/v1/interventions/{id}",
		Summary:     "Edit an intervention or move it through the workflow",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *UpdateInterventionInput) (*InterventionOutput, error) {
		patch := app.InterventionPatch{
			Title:             input.Body.Title,
			Description:       input.Body.Description,
			Category:          input.Body.Category,
			EstimatedDuration: input.Body.EstimatedDuration,
			QuoteAmount:       input.Body.QuoteAmount,
			Notes:             input.Body.Notes,
			Reason:            input.Body.Reason,
			ScheduledDate:     input.Body.ScheduledDate,
		}
		if input.Body.Priority != nil {
			p := domain.Priority(*input.Body.Priority)
			patch.Priority = &p
		}
		if input.Body.Status != nil {
			s := domain.Status(*input.Body.Status)
			patch.Status = &s
		}

		iv, err := svc.Update(ctx, actor(input.UserID, input.Role), input.ID, patch)
		if err != nil {
			return nil, toHumaError(err)
		}
		return withAssignments(ctx, svc, iv)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-intervention",
		Method:      http.MethodDelete,
		Path:        "/api/v1/interventions/{id}",
		Summary:     "Delete a pending, approved or cancelled intervention",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *DeleteInterventionInput) (*struct{}, error) {
		if err := svc.Delete(ctx, actor(input.UserID, input.Role), input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "intervention-action",
		Method:      http.MethodPost,
		Path:        "/api/v1/interventions/{id}/actions/{action}",
		Summary:     "Run a workflow action",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *ActionInput) (*InterventionOutput, error) {
		body := ActionBody{}
		if input.Body != nil {
			body = *input.Body
		}

		iv, err := runAction(ctx, svc, actor(input.UserID, input.Role), input.ID, input.Action, body)
		if err != nil {
			return nil, toHumaError(err)
		}
		return withAssignments(ctx, svc, iv)
	})
}

func runAction(ctx context.Context, svc *app.InterventionService, a domain.Actor, id, action string, body ActionBody) (domain.Intervention, error) {
	switch action {
	case ActionApprove:
		return svc.Approve(ctx, a, id, body.Comment)
	case ActionReject:
		return svc.Reject(ctx, a, id, body.Reason)
	case ActionRequestScheduling:
		return svc.RequestScheduling(ctx, a, id)
	case ActionSchedule:
		var date time.Time
		if body.ScheduledDate != nil {
			date = *body.ScheduledDate
		}
		return svc.Schedule(ctx, a, id, date)
	case ActionStart:
		return svc.StartExecution(ctx, a, id)
	case ActionComplete:
		return svc.CompleteExecution(ctx, a, id, app.CompleteInput{ActualDuration: body.ActualDuration, Report: body.Report})
	case ActionFinalize:
		if body.FinalAmount == nil {
			return domain.Intervention{}, domain.Invalid("final_amount", nil, "a final amount is required")
		}
		return svc.Finalize(ctx, a, id, *body.FinalAmount, body.Comment)
	case ActionCancel:
		return svc.Cancel(ctx, a, id, body.Reason)
	case ActionValidate:
		return svc.ValidateByTenant(ctx, a, id, body.Comment)
	case ActionContest:
		return svc.ContestByTenant(ctx, a, id, body.Reason)
	case ActionClose:
		return svc.Close(ctx, a, id)
	case ActionAssignProvider, ActionUnassignProvider:
		var err error
		if action == ActionAssignProvider {
			err = svc.AssignProvider(ctx, a, id, body.ProviderID)
		} else {
			err = svc.UnassignProvider(ctx, a, id, body.ProviderID)
		}
		if err != nil {
			return domain.Intervention{}, err
		}
		return svc.GetByID(ctx, id)
	}
	return domain.Intervention{}, domain.Invalid("action", action, "unknown action")
}

func withAssignments(ctx context.Context, svc *app.InterventionService, iv domain.Intervention) (*InterventionOutput, error) {
	assignments, err := svc.Assignments(ctx, iv.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	resp := toInterventionResponse(iv)
	resp.Assignments = toAssignmentResponses(assignments)
	return &InterventionOutput{Body: resp}, nil
}

func actor(userID, role string) domain.Actor {
	return domain.Actor{ID: userID, Role: domain.Role(role)}
}
