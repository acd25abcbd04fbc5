package domain

import (
	"context"
	"time"
)

// InterventionRepository defines the persistence contract for interventions.
type InterventionRepository interface {
	Create(ctx context.Context, intervention Intervention) error
	GetByID(ctx context.Context, id string) (Intervention, error)
	List(ctx context.Context, filter InterventionFilter) ([]Intervention, error)
	Update(ctx context.Context, intervention Intervention) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, teamID string) (map[Status]int, error)
}

// InterventionFilter holds optional criteria for listing interventions.
type InterventionFilter struct {
	Status     *Status
	LotID      string
	BuildingID string
	TeamID     string
	AssigneeID string
	Limit      int
	Offset     int
}

// AssignmentRepository persists the intervention_assignments join relation.
type AssignmentRepository interface {
	Assign(ctx context.Context, assignment Assignment) error
	Unassign(ctx context.Context, interventionID, userID string) error
	ListByIntervention(ctx context.Context, interventionID string) ([]Assignment, error)
	DeleteByIntervention(ctx context.Context, interventionID string) error
}

// UserRepository defines the persistence contract for users.
type UserRepository interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ListByTeam(ctx context.Context, teamID string) ([]User, error)
	Update(ctx context.Context, user User) error
	Delete(ctx context.Context, id string) error
}

// TeamRepository defines the persistence contract for teams and their members.
type TeamRepository interface {
	Create(ctx context.Context, team Team) error
	GetByID(ctx context.Context, id string) (Team, error)
	GetByName(ctx context.Context, name string) (Team, error)
	Update(ctx context.Context, team Team) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, member TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	ListMembers(ctx context.Context, teamID string) ([]TeamMember, error)
}

// BuildingRepository defines the persistence contract for buildings.
type BuildingRepository interface {
	Create(ctx context.Context, building Building) error
	GetByID(ctx context.Context, id string) (Building, error)
	FindByName(ctx context.Context, teamID, name string) (Building, error)
	ListByTeam(ctx context.Context, teamID string) ([]Building, error)
	Update(ctx context.Context, building Building) error
	Delete(ctx context.Context, id string) error
}

// LotRepository defines the persistence contract for lots.
type LotRepository interface {
	Create(ctx context.Context, lot Lot) error
	GetByID(ctx context.Context, id string) (Lot, error)
	FindByReference(ctx context.Context, buildingID, reference string) (Lot, error)
	ListByBuilding(ctx context.Context, buildingID string) ([]Lot, error)
	Update(ctx context.Context, lot Lot) error
	Delete(ctx context.Context, id string) error
}

// ContactRepository persists building_contacts and lot_contacts.
type ContactRepository interface {
	InsertBuildingContacts(ctx context.Context, contacts []Contact) error
	DeleteBuildingContacts(ctx context.Context, buildingID string) error
	ListBuildingContacts(ctx context.Context, buildingID string) ([]Contact, error)
	InsertLotContacts(ctx context.Context, contacts []Contact) error
	DeleteLotContacts(ctx context.Context, lotID string) error
	ListLotContacts(ctx context.Context, lotID string) ([]Contact, error)
}

// EventPublisher defines the contract for emitting workflow events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, intervention Intervention) error
}

// TransitionValidator checks an event against the transition table and
// returns the destination status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}

// Invitation is sent to a newly created contact.
type Invitation struct {
	UserID    string
	TeamID    string
	Email     string
	Name      string
	Role      Role
	InvitedAt time.Time
}

// InvitationSender delivers contact invitations.
type InvitationSender interface {
	SendInvitation(ctx context.Context, invitation Invitation) error
}
