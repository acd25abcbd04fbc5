package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// UserManager is the user service surface the composite service relies on.
type UserManager interface {
	Create(ctx context.Context, in CreateUserInput) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	ListByTeam(ctx context.Context, teamID string) ([]domain.User, error)
	Update(ctx context.Context, id string, patch UserPatch) (domain.User, error)
	Delete(ctx context.Context, id string) error
}

// TeamManager is the team service surface the composite service relies on.
type TeamManager interface {
	Create(ctx context.Context, in CreateTeamInput) (domain.Team, error)
	GetByID(ctx context.Context, id string) (domain.Team, error)
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, teamID, userID string, role domain.Role) error
}

// BuildingManager is the building service surface the composite service relies on.
type BuildingManager interface {
	Create(ctx context.Context, in CreateBuildingInput) (domain.Building, error)
	GetByID(ctx context.Context, id string) (domain.Building, error)
	ListByTeam(ctx context.Context, teamID string) ([]domain.Building, error)
	Update(ctx context.Context, id string, patch BuildingPatch) (domain.Building, error)
	Delete(ctx context.Context, id string) error
}

// LotManager is the lot service surface the composite service relies on.
type LotManager interface {
	Create(ctx context.Context, in CreateLotInput) (domain.Lot, error)
	GetByID(ctx context.Context, id string) (domain.Lot, error)
	ListByBuilding(ctx context.Context, buildingID string) ([]domain.Lot, error)
	Update(ctx context.Context, id string, patch LotPatch) (domain.Lot, error)
	Delete(ctx context.Context, id string) error
}

// ContactManager is the contact service surface the composite service relies on.
type ContactManager interface {
	AssignBuildingContacts(ctx context.Context, buildingID string, in []ContactAssignment) ([]domain.Contact, error)
	RemoveBuildingContacts(ctx context.Context, buildingID string) error
	ReplaceBuildingContacts(ctx context.Context, buildingID string, in []ContactAssignment) ([]domain.Contact, error)
	AssignLotContacts(ctx context.Context, lotID string, in []ContactAssignment) ([]domain.Contact, error)
	RemoveLotContacts(ctx context.Context, lotID string) error
	ReplaceLotContacts(ctx context.Context, lotID string, in []ContactAssignment) ([]domain.Contact, error)
}

// StatusCounter reports intervention counts per status.
type StatusCounter interface {
	CountByStatus(ctx context.Context, teamID string) (map[domain.Status]int, error)
}

// CompositeDeps lists the collaborators of the composite service.
type CompositeDeps struct {
	Users         UserManager
	Teams         TeamManager
	Buildings     BuildingManager
	Lots          LotManager
	Contacts      ContactManager
	Interventions StatusCounter
	Invitations   domain.InvitationSender
}

// CompositeService runs multi-entity operations as journaled sagas: each step
// is recorded, and a failure triggers compensations in reverse order.
type CompositeService struct {
	users         UserManager
	teams         TeamManager
	buildings     BuildingManager
	lots          LotManager
	contacts      ContactManager
	interventions StatusCounter
	invitations   domain.InvitationSender
	stamps
}

// NewCompositeService creates a composite service.
func NewCompositeService(deps CompositeDeps, opts ...Option) *CompositeService {
	return &CompositeService{
		users:         deps.Users,
		teams:         deps.Teams,
		buildings:     deps.Buildings,
		lots:          deps.Lots,
		contacts:      deps.Contacts,
		interventions: deps.Interventions,
		invitations:   deps.Invitations,
		stamps:        newStamps(opts),
	}
}

// CompositeResult is the outcome of a composite operation. Data holds
// whatever was produced, also on failure.
type CompositeResult[T any] struct {
	Success            bool              `json:"success"`
	Data               T                 `json:"data"`
	Error              *domain.ErrorInfo `json:"error,omitempty"`
	Operations         []Operation       `json:"operations"`
	RollbackOperations []Operation       `json:"rollback_operations,omitempty"`
	RollbackErrors     []RollbackError   `json:"rollback_errors,omitempty"`
	PartialSuccess     bool              `json:"partial_success,omitempty"`
}

func succeed[T any](j *Journal, data T) CompositeResult[T] {
	return CompositeResult[T]{Success: true, Data: data, Operations: j.Operations()}
}

// abort rolls back the completed steps of j and reports err.
func abort[T any](ctx context.Context, j *Journal, data T, err error) CompositeResult[T] {
	slog.WarnContext(ctx, "composite operation failed, rolling back", "error", err)
	rollbackOps, rollbackErrs := j.Rollback(ctx)
	return CompositeResult[T]{
		Data:               data,
		Error:              domain.ToErrorInfo(err),
		Operations:         j.Operations(),
		RollbackOperations: rollbackOps,
		RollbackErrors:     rollbackErrs,
	}
}

// failed reports err without any rollback.
func failed[T any](j *Journal, data T, err error) CompositeResult[T] {
	return CompositeResult[T]{Data: data, Error: domain.ToErrorInfo(err), Operations: j.Operations()}
}

func op(t OperationType, service, entity string, data any) Operation {
	return Operation{Type: t, Service: service, Entity: entity, Data: data}
}

const (
	userService     = "users"
	teamService     = "teams"
	buildingService = "buildings"
	lotService      = "lots"
	contactService  = "contacts"
	inviteService   = "invitations"
)

// CompleteUserInput creates a user and, optionally, a team, a building and lots.
type CompleteUserInput struct {
	User     CreateUserInput
	Team     *CreateTeamInput
	Building *CreateBuildingInput
	Lots     []CreateLotInput
}

// CompleteUserData holds the entities created by CreateCompleteUser.
type CompleteUserData struct {
	User     *domain.User     `json:"user,omitempty"`
	Team     *domain.Team     `json:"team,omitempty"`
	Building *domain.Building `json:"building,omitempty"`
	Lots     []domain.Lot     `json:"lots,omitempty"`
}

// CreateCompleteUser runs user → team → user.team_id → building → lots.
// The team_id update has no compensation: deleting the team covers it.
func (s *CompositeService) CreateCompleteUser(ctx context.Context, in CompleteUserInput) CompositeResult[CompleteUserData] {
	j := newJournal(s.stamps)
	var data CompleteUserData

	err := j.Run(ctx, op(OpCreate, userService, "user", in.User), s.users.Delete,
		func(ctx context.Context) (string, error) {
			u, err := s.users.Create(ctx, in.User)
			if err != nil {
				return "", err
			}
			data.User = &u
			return u.ID, nil
		})
	if err != nil {
		return abort(ctx, j, data, err)
	}

	if in.Team != nil {
		teamIn := *in.Team
		if teamIn.CreatedBy == "" {
			teamIn.CreatedBy = data.User.ID
		}
		err = j.Run(ctx, op(OpCreate, teamService, "team", teamIn), s.teams.Delete,
			func(ctx context.Context) (string, error) {
				t, err := s.teams.Create(ctx, teamIn)
				if err != nil {
					return "", err
				}
				data.Team = &t
				return t.ID, nil
			})
		if err != nil {
			return abort(ctx, j, data, err)
		}

		teamID := data.Team.ID
		err = j.Run(ctx, op(OpUpdate, userService, "user", UserPatch{TeamID: &teamID}), nil,
			func(ctx context.Context) (string, error) {
				u, err := s.users.Update(ctx, data.User.ID, UserPatch{TeamID: &teamID})
				if err != nil {
					return data.User.ID, err
				}
				data.User = &u
				return u.ID, nil
			})
		if err != nil {
			return abort(ctx, j, data, err)
		}
	}

	if in.Building != nil {
		buildingIn := *in.Building
		if data.Team != nil {
			buildingIn.TeamID = data.Team.ID
		}
		b, err := s.createBuilding(ctx, j, buildingIn)
		if err != nil {
			return abort(ctx, j, data, err)
		}
		data.Building = &b
	}

	if len(in.Lots) > 0 {
		buildingID := ""
		if data.Building != nil {
			buildingID = data.Building.ID
		}
		lots, err := s.createLots(ctx, j, buildingID, in.Lots)
		data.Lots = lots
		if err != nil {
			return abort(ctx, j, data, err)
		}
	}

	return succeed(j, data)
}

// CompleteBuildingInput creates a building with its lots.
type CompleteBuildingInput struct {
	Building CreateBuildingInput
	Lots     []CreateLotInput
}

// CompleteBuildingData holds the entities created by CreateCompleteBuilding.
type CompleteBuildingData struct {
	Building *domain.Building `json:"building,omitempty"`
	Lots     []domain.Lot     `json:"lots,omitempty"`
}

// CreateCompleteBuilding creates a building then its lots one by one. The
// first lot failure stops the loop and rolls back everything created.
func (s *CompositeService) CreateCompleteBuilding(ctx context.Context, in CompleteBuildingInput) CompositeResult[CompleteBuildingData] {
	j := newJournal(s.stamps)
	var data CompleteBuildingData

	b, err := s.createBuilding(ctx, j, in.Building)
	if err != nil {
		return abort(ctx, j, data, err)
	}
	data.Building = &b

	lots, err := s.createLots(ctx, j, b.ID, in.Lots)
	data.Lots = lots
	if err != nil {
		return abort(ctx, j, data, err)
	}
	return succeed(j, data)
}

func (s *CompositeService) createBuilding(ctx context.Context, j *Journal, in CreateBuildingInput) (domain.Building, error) {
	var b domain.Building
	err := j.Run(ctx, op(OpCreate, buildingService, "building", in), s.buildings.Delete,
		func(ctx context.Context) (string, error) {
			var err error
			b, err = s.buildings.Create(ctx, in)
			return b.ID, err
		})
	return b, err
}

// createLots creates lots in order and returns those created before any failure.
func (s *CompositeService) createLots(ctx context.Context, j *Journal, buildingID string, in []CreateLotInput) ([]domain.Lot, error) {
	lots := make([]domain.Lot, 0, len(in))
	for _, lotIn := range in {
		if buildingID != "" {
			lotIn.BuildingID = buildingID
		}
		err := j.Run(ctx, op(OpCreate, lotService, "lot", lotIn), s.lots.Delete,
			func(ctx context.Context) (string, error) {
				lot, err := s.lots.Create(ctx, lotIn)
				if err != nil {
					return "", err
				}
				lots = append(lots, lot)
				return lot.ID, nil
			})
		if err != nil {
			return lots, err
		}
	}
	return lots, nil
}
