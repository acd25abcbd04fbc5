package http

import (
	"time"

	"github.com/neomorfeo/propertiq/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// InterventionResponse is the API representation of an intervention.
type InterventionResponse struct {
	ID                       string               `json:"id" doc:"Unique identifier"`
	LotID                    string               `json:"lot_id,omitempty" doc:"Lot concerned, empty for building-wide work"`
	BuildingID               string               `json:"building_id"`
	TeamID                   string               `json:"team_id"`
	RequestedBy              string               `json:"requested_by"`
	Status                   string               `json:"status" doc:"Workflow state"`
	Priority                 string               `json:"priority"`
	Category                 string               `json:"category,omitempty"`
	Title                    string               `json:"title"`
	Description              string               `json:"description,omitempty"`
	ScheduledDate            string               `json:"scheduled_date,omitempty" doc:"Scheduled date (ISO 8601)"`
	CompletedDate            string               `json:"completed_date,omitempty" doc:"Completion date (ISO 8601)"`
	EstimatedDuration        int                  `json:"estimated_duration,omitempty" doc:"Minutes"`
	ActualDuration           int                  `json:"actual_duration,omitempty" doc:"Minutes"`
	Notes                    string               `json:"notes,omitempty" doc:"Workflow journal, one tagged line per action"`
	QuoteAmount              *float64             `json:"quote_amount,omitempty"`
	FinalAmount              *float64             `json:"final_amount,omitempty"`
	RequiresTenantValidation bool                 `json:"requires_tenant_validation"`
	Assignments              []AssignmentResponse `json:"assignments,omitempty"`
	CreatedAt                string               `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt                string               `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

// AssignmentResponse is a user assigned to an intervention.
type AssignmentResponse struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	IsPrimary  bool   `json:"is_primary"`
	AssignedAt string `json:"assigned_at"`
}

func toInterventionResponse(iv domain.Intervention) InterventionResponse {
	return InterventionResponse{
		ID:                       iv.ID,
		LotID:                    iv.LotID,
		BuildingID:               iv.BuildingID,
		TeamID:                   iv.TeamID,
		RequestedBy:              iv.RequestedBy,
		Status:                   string(iv.Status),
		Priority:                 string(iv.Priority),
		Category:                 iv.Category,
		Title:                    iv.Title,
		Description:              iv.Description,
		ScheduledDate:            formatTimePtr(iv.ScheduledDate),
		CompletedDate:            formatTimePtr(iv.CompletedDate),
		EstimatedDuration:        iv.EstimatedDuration,
		ActualDuration:           iv.ActualDuration,
		Notes:                    iv.Notes,
		QuoteAmount:              iv.QuoteAmount,
		FinalAmount:              iv.FinalAmount,
		RequiresTenantValidation: iv.RequiresTenantValidation,
		CreatedAt:                formatTime(iv.CreatedAt),
		UpdatedAt:                formatTime(iv.UpdatedAt),
	}
}

func toAssignmentResponses(assignments []domain.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, len(assignments))
	for i, a := range assignments {
		out[i] = AssignmentResponse{
			UserID:     a.UserID,
			Role:       string(a.Role),
			IsPrimary:  a.IsPrimary,
			AssignedAt: formatTime(a.AssignedAt),
		}
	}
	return out
}

// BuildingResponse is the API representation of a building.
type BuildingResponse struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toBuildingResponse(b domain.Building) BuildingResponse {
	return BuildingResponse{
		ID:          b.ID,
		TeamID:      b.TeamID,
		Name:        b.Name,
		Address:     b.Address,
		City:        b.City,
		PostalCode:  b.PostalCode,
		Country:     b.Country,
		Description: b.Description,
		CreatedAt:   formatTime(b.CreatedAt),
	}
}

// LotResponse is the API representation of a lot.
type LotResponse struct {
	ID         string  `json:"id"`
	BuildingID string  `json:"building_id"`
	Reference  string  `json:"reference"`
	Floor      int     `json:"floor"`
	Category   string  `json:"category"`
	TenantID   string  `json:"tenant_id,omitempty"`
	Surface    float64 `json:"surface,omitempty"`
	RentAmount float64 `json:"rent_amount,omitempty"`
	UpdatedAt  string  `json:"updated_at"`
}

func toLotResponse(l domain.Lot) LotResponse {
	return LotResponse{
		ID:         l.ID,
		BuildingID: l.BuildingID,
		Reference:  l.Reference,
		Floor:      l.Floor,
		Category:   string(l.Category),
		TenantID:   l.TenantID,
		Surface:    l.Surface,
		RentAmount: l.RentAmount,
		UpdatedAt:  formatTime(l.UpdatedAt),
	}
}

// ContactResponse is a role-tagged user attached to a building or a lot.
type ContactResponse struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	IsPrimary bool   `json:"is_primary"`
}

func toContactResponses(contacts []domain.Contact) []ContactResponse {
	out := make([]ContactResponse, len(contacts))
	for i, c := range contacts {
		out[i] = ContactResponse{UserID: c.UserID, Role: string(c.Role), IsPrimary: c.IsPrimary}
	}
	return out
}
