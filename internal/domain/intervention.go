package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of an intervention.
type Status string

const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusScheduling        Status = "scheduling"
	StatusScheduled         Status = "scheduled"
	StatusInProgress        Status = "in_progress"
	StatusProviderCompleted Status = "provider_completed"
	StatusTenantValidated   Status = "tenant_validated"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// IsTerminal reports whether no further transition may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Deletable reports whether an intervention in this status may be hard-deleted.
func (s Status) Deletable() bool {
	return s == StatusPending || s == StatusApproved || s == StatusCancelled
}

// Event represents a workflow action that triggers a state transition.
type Event string

const (
	EventCreate              Event = "create"
	EventApprove             Event = "approve"
	EventReject              Event = "reject"
	EventRequestScheduling   Event = "request_scheduling"
	EventSchedule            Event = "schedule"
	EventStart               Event = "start"
	EventComplete            Event = "complete"
	EventSubmitForValidation Event = "submit_for_validation"
	EventValidateByTenant    Event = "validate_by_tenant"
	EventContestByTenant     Event = "contest_by_tenant"
	EventClose               Event = "close"
	EventFinalize            Event = "finalize"
	EventCancel              Event = "cancel"
	EventUpdate              Event = "update"
	EventDelete              Event = "delete"
)

// Transition defines a valid state change: an event moves an intervention from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid status changes of the intervention workflow.
// The base pending/approved/in_progress/completed/cancelled path is a subset.
var Transitions = []Transition{
	{Event: EventApprove, Src: StatusPending, Dst: StatusApproved},
	{Event: EventReject, Src: StatusPending, Dst: StatusCancelled},
	{Event: EventReject, Src: StatusApproved, Dst: StatusCancelled},
	{Event: EventRequestScheduling, Src: StatusApproved, Dst: StatusScheduling},
	{Event: EventSchedule, Src: StatusApproved, Dst: StatusScheduled},
	{Event: EventSchedule, Src: StatusScheduling, Dst: StatusScheduled},
	{Event: EventStart, Src: StatusApproved, Dst: StatusInProgress},
	{Event: EventStart, Src: StatusScheduled, Dst: StatusInProgress},
	{Event: EventComplete, Src: StatusInProgress, Dst: StatusCompleted},
	{Event: EventSubmitForValidation, Src: StatusInProgress, Dst: StatusProviderCompleted},
	{Event: EventValidateByTenant, Src: StatusProviderCompleted, Dst: StatusTenantValidated},
	{Event: EventContestByTenant, Src: StatusProviderCompleted, Dst: StatusInProgress},
	{Event: EventClose, Src: StatusTenantValidated, Dst: StatusCompleted},
	{Event: EventCancel, Src: StatusPending, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusApproved, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusScheduling, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusScheduled, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusInProgress, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusProviderCompleted, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusTenantValidated, Dst: StatusCancelled},
}

// EventFor returns the event that moves an intervention from src to dst.
// Cancel is preferred over reject where both share an edge.
func EventFor(src, dst Status) (Event, bool) {
	var found Event
	for _, t := range Transitions {
		if t.Src != src || t.Dst != dst {
			continue
		}
		if found == "" || t.Event == EventCancel {
			found = t.Event
		}
	}
	return found, found != ""
}

// TargetOf returns the destination of an event when it is the same from every
// source state, or "" when the event is unknown or ambiguous.
func TargetOf(event Event) Status {
	var dst Status
	for _, t := range Transitions {
		if t.Event != event {
			continue
		}
		if dst != "" && dst != t.Dst {
			return ""
		}
		dst = t.Dst
	}
	return dst
}

// Priority of an intervention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Intervention is a maintenance work order on a lot or a whole building.
type Intervention struct {
	ID                       string
	LotID                    string
	BuildingID               string
	TeamID                   string
	RequestedBy              string
	Status                   Status
	Priority                 Priority
	Category                 string
	Title                    string
	Description              string
	ScheduledDate            *time.Time
	CompletedDate            *time.Time
	EstimatedDuration        int
	ActualDuration           int
	Notes                    string
	QuoteAmount              *float64
	FinalAmount              *float64
	RequiresTenantValidation bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// NewIntervention creates an intervention in the initial "pending" state.
func NewIntervention(id, requestedBy, title string, now time.Time) Intervention {
	now = now.UTC()
	return Intervention{
		ID:          id,
		RequestedBy: requestedBy,
		Title:       title,
		Status:      StatusPending,
		Priority:    PriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppendNote adds a tagged line to the notes, keeping what was already there.
func (i *Intervention) AppendNote(tag string, role Role, text string) {
	text = strings.TrimSpace(text)
	line := fmt.Sprintf("[%s par %s]", tag, role)
	if text != "" {
		line += " " + text
	}
	if i.Notes == "" {
		i.Notes = line
		return
	}
	i.Notes += "\n" + line
}

// Assignment links a user to an intervention with a role.
type Assignment struct {
	InterventionID string
	UserID         string
	Role           Role
	IsPrimary      bool
	AssignedAt     time.Time
}

// Actor identifies who performs a workflow action.
type Actor struct {
	ID   string
	Role Role
}
