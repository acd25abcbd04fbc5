package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/propertiq/internal/app"
	"github.com/neomorfeo/propertiq/internal/domain"
)

// CompositeResponse is the API envelope of a multi-step operation. It always
// carries the journal, and on failure the compensations that ran.
type CompositeResponse[T any] struct {
	Success            bool                `json:"success"`
	Data               T                   `json:"data"`
	Error              *domain.ErrorInfo   `json:"error,omitempty"`
	Operations         []app.Operation     `json:"operations"`
	RollbackOperations []app.Operation     `json:"rollback_operations,omitempty"`
	RollbackErrors     []app.RollbackError `json:"rollback_errors,omitempty"`
	PartialSuccess     bool                `json:"partial_success,omitempty"`
}

// CompositeOutput reports the envelope with a status derived from its outcome.
type CompositeOutput[T any] struct {
	Status int
	Body   CompositeResponse[T]
}

func toCompositeOutput[T, R any](r app.CompositeResult[T], okStatus int, convert func(T) R) *CompositeOutput[R] {
	status := okStatus
	switch {
	case r.Success:
	case r.PartialSuccess:
		status = http.StatusMultiStatus
	default:
		status = statusFor(r.Error)
	}
	return &CompositeOutput[R]{
		Status: status,
		Body: CompositeResponse[R]{
			Success:            r.Success,
			Data:               convert(r.Data),
			Error:              r.Error,
			Operations:         r.Operations,
			RollbackOperations: r.RollbackOperations,
			RollbackErrors:     r.RollbackErrors,
			PartialSuccess:     r.PartialSuccess,
		},
	}
}

// --- Create Property ---

type BuildingBody struct {
	TeamID      string `json:"team_id" minLength:"1"`
	Name        string `json:"name" minLength:"1" maxLength:"255"`
	Address     string `json:"address" minLength:"1"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country,omitempty"`
	Description string `json:"description,omitempty"`
}

type LotBody struct {
	Reference  string  `json:"reference" minLength:"1"`
	Floor      int     `json:"floor,omitempty"`
	Category   string  `json:"category,omitempty" enum:"apartment,commercial,parking,storage,other"`
	TenantID   string  `json:"tenant_id,omitempty"`
	Surface    float64 `json:"surface,omitempty" minimum:"0"`
	RentAmount float64 `json:"rent_amount,omitempty" minimum:"0"`
}

type ContactBody struct {
	UserID    string `json:"user_id" minLength:"1"`
	Role      string `json:"role" enum:"manager,provider,tenant,owner,syndic,other"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

type CreatePropertyInput struct {
	Body struct {
		Building    BuildingBody             `json:"building"`
		Contacts    []ContactBody            `json:"contacts,omitempty"`
		Lots        []LotBody                `json:"lots,omitempty"`
		LotContacts map[string][]ContactBody `json:"lot_contacts,omitempty" doc:"Contacts keyed by the index of the lot in lots"`
	}
}

// PropertyResponse is a building with its lots and contacts.
type PropertyResponse struct {
	Building    *BuildingResponse            `json:"building,omitempty"`
	Contacts    []ContactResponse            `json:"contacts,omitempty"`
	Lots        []LotResponse                `json:"lots,omitempty"`
	LotContacts map[string][]ContactResponse `json:"lot_contacts,omitempty" doc:"Contacts keyed by lot ID"`
}

func toPropertyResponse(d app.PropertyData) PropertyResponse {
	var resp PropertyResponse
	if d.Building != nil {
		b := toBuildingResponse(*d.Building)
		resp.Building = &b
	}
	resp.Contacts = toContactResponses(d.BuildingContacts)
	for _, l := range d.Lots {
		resp.Lots = append(resp.Lots, toLotResponse(l))
	}
	if len(d.LotContacts) > 0 {
		resp.LotContacts = make(map[string][]ContactResponse, len(d.LotContacts))
		for lotID, contacts := range d.LotContacts {
			resp.LotContacts[lotID] = toContactResponses(contacts)
		}
	}
	return resp
}

func toContactAssignments(in []ContactBody) []app.ContactAssignment {
	out := make([]app.ContactAssignment, len(in))
	for i, c := range in {
		out[i] = app.ContactAssignment{UserID: c.UserID, Role: domain.ContactRole(c.Role), IsPrimary: c.IsPrimary}
	}
	return out
}

// --- Transfer Lot Tenant ---

type TransferLotInput struct {
	ID   string `path:"id" doc:"Lot ID"`
	Body struct {
		FromTenantID string `json:"from_tenant_id,omitempty" doc:"Current tenant; empty when the lot is vacant"`
		ToTenantID   string `json:"to_tenant_id" minLength:"1"`
	}
}

// --- Team Stats ---

type TeamStatsInput struct {
	ID string `path:"id" doc:"Team ID"`
}

// TeamStatsResponse aggregates counts over a team's portfolio.
type TeamStatsResponse struct {
	TeamID                string                       `json:"team_id,omitempty"`
	TeamName              string                       `json:"team_name,omitempty"`
	BuildingCount         int                          `json:"building_count"`
	LotCount              int                          `json:"lot_count"`
	OccupiedLots          int                          `json:"occupied_lots"`
	UserCount             int                          `json:"user_count"`
	InterventionsByStatus map[string]int               `json:"interventions_by_status,omitempty"`
	Errors                map[string]*domain.ErrorInfo `json:"errors,omitempty" doc:"Sources that could not be read"`
}

func toTeamStatsResponse(s app.TeamStats) TeamStatsResponse {
	resp := TeamStatsResponse{
		BuildingCount: s.BuildingCount,
		LotCount:      s.LotCount,
		OccupiedLots:  s.OccupiedLots,
		UserCount:     s.UserCount,
		Errors:        s.Errors,
	}
	if s.Team != nil {
		resp.TeamID = s.Team.ID
		resp.TeamName = s.Team.Name
	}
	if len(s.InterventionsByStatus) > 0 {
		resp.InterventionsByStatus = make(map[string]int, len(s.InterventionsByStatus))
		for status, n := range s.InterventionsByStatus {
			resp.InterventionsByStatus[string(status)] = n
		}
	}
	return resp
}

// --- Invite Team Contacts ---

type InviteContactsInput struct {
	ID   string `path:"id" doc:"Team ID"`
	Body struct {
		Contacts []struct {
			Email string `json:"email" format:"email"`
			Name  string `json:"name" minLength:"1"`
			Role  string `json:"role" enum:"manager,provider,tenant"`
			Phone string `json:"phone,omitempty"`
		} `json:"contacts" minItems:"1"`
	}
}

// InviteResponse lists the invitations sent and the contacts that failed.
type InviteResponse struct {
	Invitations []InvitationResponse `json:"invitations"`
	Failures    []app.InviteFailure  `json:"failures,omitempty"`
}

type InvitationResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func toInviteResponse(d app.InviteData) InviteResponse {
	resp := InviteResponse{Invitations: make([]InvitationResponse, len(d.Invitations)), Failures: d.Failures}
	for i, inv := range d.Invitations {
		resp.Invitations[i] = InvitationResponse{UserID: inv.UserID, Email: inv.Email, Role: string(inv.Role)}
	}
	return resp
}

// RegisterProperties adds the multi-step property and team routes to the Huma API.
func RegisterProperties(api huma.API, svc *app.CompositeService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-property",
		Method:      http.MethodPost,
		Path:        "/api/v1/properties",
		Summary:     "Create a building with its lots and contacts",
		Description: "Runs every step in order. If one fails, the completed steps are undone in reverse order.",
		Tags:        []string{"Properties"},
	}, func(ctx context.Context, input *CreatePropertyInput) (*CompositeOutput[PropertyResponse], error) {
		in := app.CompletePropertyInput{
			Building: app.CreateBuildingInput{
				TeamID:      input.Body.Building.TeamID,
				Name:        input.Body.Building.Name,
				Address:     input.Body.Building.Address,
				City:        input.Body.Building.City,
				PostalCode:  input.Body.Building.PostalCode,
				Country:     input.Body.Building.Country,
				Description: input.Body.Building.Description,
			},
			BuildingContacts: toContactAssignments(input.Body.Contacts),
		}
		for _, l := range input.Body.Lots {
			in.Lots = append(in.Lots, app.CreateLotInput{
				Reference:  l.Reference,
				Floor:      l.Floor,
				Category:   domain.LotCategory(l.Category),
				TenantID:   l.TenantID,
				Surface:    l.Surface,
				RentAmount: l.RentAmount,
			})
		}
		if len(input.Body.LotContacts) > 0 {
			in.LotContacts = make(map[int][]app.ContactAssignment, len(input.Body.LotContacts))
			for key, contacts := range input.Body.LotContacts {
				idx, err := strconv.Atoi(key)
				if err != nil {
					return nil, huma.Error422UnprocessableEntity("lot_contacts keys must be lot indices, got " + strconv.Quote(key))
				}
				in.LotContacts[idx] = toContactAssignments(contacts)
			}
		}

		result := svc.CreateCompleteProperty(ctx, in)
		return toCompositeOutput(result, http.StatusCreated, toPropertyResponse), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transfer-lot-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/lots/{id}/transfer",
		Summary:     "Move a lot to a new tenant",
		Tags:        []string{"Properties"},
	}, func(ctx context.Context, input *TransferLotInput) (*CompositeOutput[*LotResponse], error) {
		result := svc.TransferLotTenant(ctx, input.ID, input.Body.FromTenantID, input.Body.ToTenantID)
		return toCompositeOutput(result, http.StatusOK, func(l *domain.Lot) *LotResponse {
			if l == nil {
				return nil
			}
			resp := toLotResponse(*l)
			return &resp
		}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "team-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams/{id}/stats",
		Summary:     "Portfolio and workflow counts for a team",
		Tags:        []string{"Teams"},
	}, func(ctx context.Context, input *TeamStatsInput) (*CompositeOutput[TeamStatsResponse], error) {
		result := svc.CompositeStats(ctx, input.ID)
		return toCompositeOutput(result, http.StatusOK, toTeamStatsResponse), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "invite-team-contacts",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/{id}/invitations",
		Summary:     "Create and invite contacts into a team",
		Description: "Each contact is handled independently; one failure does not undo the others.",
		Tags:        []string{"Teams"},
	}, func(ctx context.Context, input *InviteContactsInput) (*CompositeOutput[InviteResponse], error) {
		contacts := make([]app.ContactInvite, len(input.Body.Contacts))
		for i, c := range input.Body.Contacts {
			contacts[i] = app.ContactInvite{Email: c.Email, Name: c.Name, Role: domain.Role(c.Role), Phone: c.Phone}
		}
		result := svc.InviteTeamContacts(ctx, input.ID, contacts)
		return toCompositeOutput(result, http.StatusOK, toInviteResponse), nil
	})
}
