package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// InterventionDeps lists the adapters the intervention service needs.
type InterventionDeps struct {
	Interventions domain.InterventionRepository
	Assignments   domain.AssignmentRepository
	Lots          domain.LotRepository
	Buildings     domain.BuildingRepository
	Users         domain.UserRepository
	Contacts      domain.ContactRepository
	Publisher     domain.EventPublisher
	Validator     domain.TransitionValidator
}

// InterventionService owns the work-order lifecycle. Every status change goes
// through the transition validator and the role gate; nothing writes Status
// directly.
type InterventionService struct {
	repo        domain.InterventionRepository
	assignments domain.AssignmentRepository
	lots        domain.LotRepository
	buildings   domain.BuildingRepository
	users       domain.UserRepository
	contacts    domain.ContactRepository
	publisher   domain.EventPublisher
	validator   domain.TransitionValidator
	stamps
}

// NewInterventionService creates a service with the given adapters.
func NewInterventionService(deps InterventionDeps, opts ...Option) *InterventionService {
	return &InterventionService{
		repo:        deps.Interventions,
		assignments: deps.Assignments,
		lots:        deps.Lots,
		buildings:   deps.Buildings,
		users:       deps.Users,
		contacts:    deps.Contacts,
		publisher:   deps.Publisher,
		validator:   deps.Validator,
		stamps:      newStamps(opts),
	}
}

// CreateInterventionInput carries the fields of a new intervention.
// LotID may be empty for building-wide work, in which case BuildingID is required.
type CreateInterventionInput struct {
	LotID                    string
	BuildingID               string
	RequestedBy              string
	Title                    string
	Description              string
	Category                 string
	Priority                 domain.Priority
	EstimatedDuration        int
	QuoteAmount              *float64
	RequiresTenantValidation bool
}

// InterventionPatch lists the fields to change. Notes are appended, never replaced.
// A Status change runs the same workflow step as the dedicated method, so
// Reason and ScheduledDate are required where that method requires them.
type InterventionPatch struct {
	Title             *string
	Description       *string
	Category          *string
	Priority          *domain.Priority
	EstimatedDuration *int
	QuoteAmount       *float64
	Notes             *string
	Status            *domain.Status
	Reason            string
	ScheduledDate     *time.Time
}

func (p InterventionPatch) hasFields() bool {
	return p.Title != nil || p.Description != nil || p.Category != nil || p.Priority != nil ||
		p.EstimatedDuration != nil || p.QuoteAmount != nil || p.Notes != nil
}

// CompleteInput is reported by the provider when work is done.
type CompleteInput struct {
	ActualDuration int
	Report         string
}

// Create validates references and persists a pending intervention.
func (s *InterventionService) Create(ctx context.Context, actor domain.Actor, in CreateInterventionInput) (domain.Intervention, error) {
	if !domain.CanPerform(actor.Role, domain.EventCreate) {
		return domain.Intervention{}, deny(actor, domain.EventCreate)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Intervention{}, domain.Invalid("title", in.Title, "is required")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return domain.Intervention{}, domain.Invalid("priority", in.Priority, "unknown priority %q", in.Priority)
	}
	if in.EstimatedDuration < 0 {
		return domain.Intervention{}, domain.Invalid("estimated_duration", in.EstimatedDuration, "must not be negative")
	}

	buildingID := in.BuildingID
	if in.LotID != "" {
		lot, err := s.lots.GetByID(ctx, in.LotID)
		if err != nil {
			return domain.Intervention{}, err
		}
		buildingID = lot.BuildingID
	}
	if buildingID == "" {
		return domain.Intervention{}, domain.Invalid("building_id", "", "a lot or a building is required")
	}
	building, err := s.buildings.GetByID(ctx, buildingID)
	if err != nil {
		return domain.Intervention{}, err
	}

	requester := in.RequestedBy
	if requester == "" {
		requester = actor.ID
	}
	if _, err := s.users.GetByID(ctx, requester); err != nil {
		return domain.Intervention{}, err
	}

	iv := domain.NewIntervention(s.newID(), requester, title, s.timestamp())
	iv.LotID = in.LotID
	iv.BuildingID = building.ID
	iv.TeamID = building.TeamID
	iv.Description = strings.TrimSpace(in.Description)
	iv.Category = strings.TrimSpace(in.Category)
	iv.Priority = in.Priority
	iv.EstimatedDuration = in.EstimatedDuration
	iv.QuoteAmount = in.QuoteAmount
	iv.RequiresTenantValidation = in.RequiresTenantValidation

	if err := s.repo.Create(ctx, iv); err != nil {
		return domain.Intervention{}, fmt.Errorf("creating intervention: %w", err)
	}

	s.autoAssignManager(ctx, iv)

	if err := s.publisher.Publish(ctx, domain.EventCreate, iv); err != nil {
		return domain.Intervention{}, fmt.Errorf("publishing creation event: %w", err)
	}
	return iv, nil
}

// autoAssignManager assigns the building's primary manager. It is best-effort:
// failures are logged and never fail the creation.
func (s *InterventionService) autoAssignManager(ctx context.Context, iv domain.Intervention) {
	manager, err := primaryManager(ctx, s.contacts, iv.BuildingID)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "auto-assign manager: listing building contacts",
			"intervention_id", iv.ID, "building_id", iv.BuildingID, "error", err)
		return
	}

	err = s.assignments.Assign(ctx, domain.Assignment{
		InterventionID: iv.ID,
		UserID:         manager.UserID,
		Role:           domain.RoleManager,
		IsPrimary:      true,
		AssignedAt:     s.timestamp(),
	})
	if err != nil {
		slog.WarnContext(ctx, "auto-assign manager failed",
			"intervention_id", iv.ID, "manager_id", manager.UserID, "error", err)
	}
}

// GetByID returns an intervention by its identifier.
func (s *InterventionService) GetByID(ctx context.Context, id string) (domain.Intervention, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns interventions matching the given filter.
func (s *InterventionService) List(ctx context.Context, filter domain.InterventionFilter) ([]domain.Intervention, error) {
	return s.repo.List(ctx, filter)
}

// Assignments returns the users assigned to an intervention.
func (s *InterventionService) Assignments(ctx context.Context, id string) ([]domain.Assignment, error) {
	return s.assignments.ListByIntervention(ctx, id)
}

// CountByStatus returns intervention counts per status for a team.
func (s *InterventionService) CountByStatus(ctx context.Context, teamID string) (map[domain.Status]int, error) {
	return s.repo.CountByStatus(ctx, teamID)
}

// Update patches fields of an intervention. A status change is resolved to
// its workflow event and runs the same step as the dedicated method: role
// gate, parameter checks, validator and notes.
func (s *InterventionService) Update(ctx context.Context, actor domain.Actor, id string, patch InterventionPatch) (domain.Intervention, error) {
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}

	if patch.hasFields() {
		if !actor.Role.IsManagement() && !(actor.ID == iv.RequestedBy && iv.Status == domain.StatusPending) {
			return domain.Intervention{}, &domain.PermissionError{
				Resource: "intervention", Action: "update", UserID: actor.ID, Role: actor.Role,
			}
		}
		if err := applyPatch(&iv, actor, patch); err != nil {
			return domain.Intervention{}, err
		}
	}

	if patch.Status == nil || *patch.Status == iv.Status {
		return s.save(ctx, domain.EventUpdate, iv)
	}

	event, ok := domain.EventFor(iv.Status, *patch.Status)
	if !ok {
		return domain.Intervention{}, &domain.TransitionError{From: iv.Status, To: *patch.Status}
	}
	if event == domain.EventComplete || event == domain.EventSubmitForValidation {
		event = completionEvent(iv)
	}

	params := stepParams{Reason: patch.Reason, ActualDuration: iv.ActualDuration}
	if patch.ScheduledDate != nil {
		params.ScheduledDate = *patch.ScheduledDate
	}
	mutate, err := s.prepare(actor, event, params)
	if err != nil {
		return domain.Intervention{}, err
	}
	return s.apply(ctx, actor, iv, event, mutate)
}

// stepParams carries the inputs a workflow event may record on the intervention.
type stepParams struct {
	Comment        string
	Reason         string
	ScheduledDate  time.Time
	ActualDuration int
	Report         string
}

// prepare checks the parameters event requires and returns the mutation that
// records them. Every status change, dedicated or patched, goes through it.
func (s *InterventionService) prepare(actor domain.Actor, event domain.Event, p stepParams) (func(*domain.Intervention) error, error) {
	note := func(tag, text string) func(*domain.Intervention) error {
		return func(iv *domain.Intervention) error {
			if strings.TrimSpace(text) != "" {
				iv.AppendNote(tag, actor.Role, text)
			}
			return nil
		}
	}
	requireReason := func(msg string) error {
		if strings.TrimSpace(p.Reason) == "" {
			return domain.Invalid("reason", p.Reason, "%s", msg)
		}
		return nil
	}

	switch event {
	case domain.EventApprove:
		return note("Approbation", p.Comment), nil
	case domain.EventReject:
		if err := requireReason("a rejection reason is required"); err != nil {
			return nil, err
		}
		return note("Rejet", p.Reason), nil
	case domain.EventCancel:
		if err := requireReason("a cancellation reason is required"); err != nil {
			return nil, err
		}
		return note("Annulation", p.Reason), nil
	case domain.EventContestByTenant:
		if err := requireReason("a contestation reason is required"); err != nil {
			return nil, err
		}
		return func(iv *domain.Intervention) error {
			iv.CompletedDate = nil
			iv.AppendNote("Contestation", actor.Role, p.Reason)
			return nil
		}, nil
	case domain.EventSchedule:
		if p.ScheduledDate.IsZero() {
			return nil, domain.Invalid("scheduled_date", p.ScheduledDate, "is required")
		}
		return func(iv *domain.Intervention) error {
			d := p.ScheduledDate.UTC()
			iv.ScheduledDate = &d
			return nil
		}, nil
	case domain.EventComplete, domain.EventSubmitForValidation:
		if p.ActualDuration < 0 {
			return nil, domain.Invalid("actual_duration", p.ActualDuration, "must not be negative")
		}
		report := note("Rapport", p.Report)
		return func(iv *domain.Intervention) error {
			now := s.timestamp()
			iv.CompletedDate = &now
			iv.ActualDuration = p.ActualDuration
			return report(iv)
		}, nil
	case domain.EventValidateByTenant:
		return note("Validation", p.Comment), nil
	}
	return nil, nil
}

// completionEvent routes the end of work to tenant validation when the
// intervention asks for it.
func completionEvent(iv domain.Intervention) domain.Event {
	if iv.RequiresTenantValidation {
		return domain.EventSubmitForValidation
	}
	return domain.EventComplete
}

func applyPatch(iv *domain.Intervention, actor domain.Actor, p InterventionPatch) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return domain.Invalid("title", *p.Title, "is required")
		}
		iv.Title = title
	}
	if p.Description != nil {
		iv.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		iv.Category = strings.TrimSpace(*p.Category)
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return domain.Invalid("priority", *p.Priority, "unknown priority %q", *p.Priority)
		}
		iv.Priority = *p.Priority
	}
	if p.EstimatedDuration != nil {
		if *p.EstimatedDuration < 0 {
			return domain.Invalid("estimated_duration", *p.EstimatedDuration, "must not be negative")
		}
		iv.EstimatedDuration = *p.EstimatedDuration
	}
	if p.QuoteAmount != nil {
		if *p.QuoteAmount < 0 {
			return domain.Invalid("quote_amount", *p.QuoteAmount, "must not be negative")
		}
		amount := *p.QuoteAmount
		iv.QuoteAmount = &amount
	}
	if p.Notes != nil && strings.TrimSpace(*p.Notes) != "" {
		iv.AppendNote("Note", actor.Role, *p.Notes)
	}
	return nil
}

// Delete hard-deletes an intervention that has not started.
func (s *InterventionService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanPerform(actor.Role, domain.EventDelete) {
		return deny(actor, domain.EventDelete)
	}
	if !iv.Status.Deletable() {
		return domain.Invalid("status", iv.Status, "cannot delete an intervention in status '%s'", iv.Status)
	}

	if err := s.assignments.DeleteByIntervention(ctx, id); err != nil {
		return fmt.Errorf("deleting assignments: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting intervention: %w", err)
	}
	if err := s.publisher.Publish(ctx, domain.EventDelete, iv); err != nil {
		return fmt.Errorf("publishing event %q: %w", domain.EventDelete, err)
	}
	return nil
}

// Approve moves a pending intervention to approved.
func (s *InterventionService) Approve(ctx context.Context, actor domain.Actor, id, comment string) (domain.Intervention, error) {
	return s.step(ctx, actor, id, domain.EventApprove, stepParams{Comment: comment})
}

// Reject cancels an intervention with a mandatory reason kept in the notes.
func (s *InterventionService) Reject(ctx context.Context, actor domain.Actor, id, reason string) (domain.Intervention, error) {
	return s.step(ctx, actor, id, domain.EventReject, stepParams{Reason: reason})
}

// RequestScheduling opens slot negotiation on an approved intervention.
func (s *InterventionService) RequestScheduling(ctx context.Context, actor domain.Actor, id string) (domain.Intervention, error) {
	return s.step(ctx, actor, id, domain.EventRequestScheduling, stepParams{})
}

// Schedule fixes the intervention date.
func (s *InterventionService) Schedule(ctx context.Context, actor domain.Actor, id string, date time.Time) (domain.Intervention, error) {
	return s.step(ctx, actor, id, domain.EventSchedule, stepParams{ScheduledDate: date})
}

// StartExecution is called by the assigned provider when work begins.
// Starting an intervention already in progress succeeds without change.
func (s *InterventionService) StartExecution(ctx context.Context, actor domain.Actor, id string) (domain.Intervention, error) {
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}
	if iv.Status == domain.StatusInProgress {
		if err := s.authorize(ctx, actor, iv, domain.EventStart); err != nil {
			return domain.Intervention{}, err
		}
		return iv, nil
	}
	return s.apply(ctx, actor, iv, domain.EventStart, nil)
}

// CompleteExecution is called by the assigned provider when work is done.
// Interventions that need tenant validation stop at provider_completed.
func (s *InterventionService) CompleteExecution(ctx context.Context, actor domain.Actor, id string, in CompleteInput) (domain.Intervention, error) {
	mutate, err := s.prepare(actor, domain.EventComplete, stepParams{ActualDuration: in.ActualDuration, Report: in.Report})
	if err != nil {
		return domain.Intervention{}, err
	}
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}
	return s.apply(ctx, actor, iv, completionEvent(iv), mutate)
}

// Finalize records the final amount of a completed intervention. The status
// stays completed.
func (s *InterventionService) Finalize(ctx context.Context, actor domain.Actor, id string, finalAmount float64, notes string) (domain.Intervention, error) {
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}
	if err := s.authorize(ctx, actor, iv, domain.EventFinalize); err != nil {
		return domain.Intervention{}, err
	}
	if iv.Status != domain.StatusCompleted {
		return domain.Intervention{}, domain.Invalid("status", iv.Status,
			"only a completed intervention can be finalized, current status is '%s'", iv.Status)
	}
	if finalAmount < 0 {
		return domain.Intervention{}, domain.Invalid("final_amount", finalAmount, "must not be negative")
	}

	iv.FinalAmount = &finalAmount
	if strings.TrimSpace(notes) != "" {
		iv.AppendNote("Finalisation", actor.Role, notes)
	}
	return s.save(ctx, domain.EventFinalize, iv)
}

// Cancel stops a non-terminal intervention; the reason is kept in the notes.
func (s *InterventionService) Cancel(ctx context.Context, actor domain.Actor, id, reason string) (domain.Intervention, error) {
	mutate, err := s.prepare(actor, domain.EventCancel, stepParams{Reason: reason})
	if err != nil {
		return domain.Intervention{}, err
	}
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}
	if iv.Status.IsTerminal() {
		return domain.Intervention{}, &domain.TransitionError{Event: domain.EventCancel, From: iv.Status, To: domain.StatusCancelled}
	}
	return s.apply(ctx, actor, iv, domain.EventCancel, mutate)
}

// ValidateByTenant lets the requesting tenant accept the provider's work.
func (s *InterventionService) ValidateByTenant(ctx context.Context, actor domain.Actor, id, comment string) (domain.Intervention, error) {
	return s.step(ctx, actor, id, domain.EventValidateByTenant, stepParams{Comment: comment})
}

// ContestByTenant reopens the work; the reason is kept in the notes.
func (s *InterventionService) ContestByTenant(ctx context.Context, actor domain.Actor, id, reason string) (domain.Intervention, error) {
	return s.step(ctx, actor, id, domain.EventContestByTenant, stepParams{Reason: reason})
}

// Close completes a tenant-validated intervention.
func (s *InterventionService) Close(ctx context.Context, actor domain.Actor, id string) (domain.Intervention, error) {
	return s.step(ctx, actor, id, domain.EventClose, stepParams{})
}

// AssignProvider attaches a provider to an intervention.
func (s *InterventionService) AssignProvider(ctx context.Context, actor domain.Actor, id, providerID string) error {
	if !actor.Role.IsManagement() {
		return &domain.PermissionError{Resource: "intervention", Action: "assign", UserID: actor.ID, Role: actor.Role}
	}
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if iv.Status.IsTerminal() {
		return domain.Invalid("status", iv.Status, "cannot assign a provider to a '%s' intervention", iv.Status)
	}
	provider, err := s.users.GetByID(ctx, providerID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.NotFoundError{Resource: "provider", ID: providerID}
	}
	if err != nil {
		return err
	}
	if provider.Role != domain.RoleProvider {
		return domain.Invalid("provider_id", providerID, "user has role %q, not provider", provider.Role)
	}

	err = s.assignments.Assign(ctx, domain.Assignment{
		InterventionID: id,
		UserID:         providerID,
		Role:           domain.RoleProvider,
		AssignedAt:     s.timestamp(),
	})
	if err != nil {
		return fmt.Errorf("assigning provider: %w", err)
	}
	return nil
}

// UnassignProvider detaches a provider from an intervention.
func (s *InterventionService) UnassignProvider(ctx context.Context, actor domain.Actor, id, providerID string) error {
	if !actor.Role.IsManagement() {
		return &domain.PermissionError{Resource: "intervention", Action: "unassign", UserID: actor.ID, Role: actor.Role}
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.assignments.Unassign(ctx, id, providerID)
}

// step checks the event parameters, loads the intervention and applies the event.
func (s *InterventionService) step(ctx context.Context, actor domain.Actor, id string, event domain.Event, p stepParams) (domain.Intervention, error) {
	mutate, err := s.prepare(actor, event, p)
	if err != nil {
		return domain.Intervention{}, err
	}
	iv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Intervention{}, err
	}
	return s.apply(ctx, actor, iv, event, mutate)
}

// apply gates, validates and persists one workflow event. The stored status
// is untouched unless every check passes.
func (s *InterventionService) apply(ctx context.Context, actor domain.Actor, iv domain.Intervention, event domain.Event, mutate func(*domain.Intervention) error) (domain.Intervention, error) {
	if err := s.authorize(ctx, actor, iv, event); err != nil {
		return domain.Intervention{}, err
	}

	next, err := s.validator.Apply(ctx, iv.Status, event)
	if err != nil {
		return domain.Intervention{}, err
	}

	iv.Status = next
	if mutate != nil {
		if err := mutate(&iv); err != nil {
			return domain.Intervention{}, err
		}
	}
	return s.save(ctx, event, iv)
}

func (s *InterventionService) save(ctx context.Context, event domain.Event, iv domain.Intervention) (domain.Intervention, error) {
	iv.UpdatedAt = s.timestamp()
	if err := s.repo.Update(ctx, iv); err != nil {
		return domain.Intervention{}, fmt.Errorf("updating intervention: %w", err)
	}
	if err := s.publisher.Publish(ctx, event, iv); err != nil {
		return domain.Intervention{}, fmt.Errorf("publishing event %q: %w", event, err)
	}
	return iv, nil
}

// authorize checks the role capability, the provider assignment and the
// tenant ownership required by event.
func (s *InterventionService) authorize(ctx context.Context, actor domain.Actor, iv domain.Intervention, event domain.Event) error {
	if actor.ID == "" || !domain.CanPerform(actor.Role, event) {
		return deny(actor, event)
	}

	if domain.RequiresAssignment(actor.Role, event) {
		assigned, err := s.assignments.ListByIntervention(ctx, iv.ID)
		if err != nil {
			return fmt.Errorf("loading assignments: %w", err)
		}
		for _, a := range assigned {
			if a.UserID == actor.ID && a.Role == domain.RoleProvider {
				return nil
			}
		}
		return deny(actor, event)
	}

	if actor.Role == domain.RoleTenant && actor.ID != iv.RequestedBy {
		return deny(actor, event)
	}
	return nil
}

func deny(actor domain.Actor, event domain.Event) error {
	return &domain.PermissionError{
		Resource: "intervention",
		Action:   string(event),
		UserID:   actor.ID,
		Role:     actor.Role,
	}
}
