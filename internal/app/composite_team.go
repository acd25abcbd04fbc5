package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// ContactInvite is one person to add to a team and invite.
type ContactInvite struct {
	Email string      `yaml:"email"`
	Name  string      `yaml:"name"`
	Role  domain.Role `yaml:"role"`
	Phone string      `yaml:"phone"`
}

// InviteFailure reports an invitation that could not be completed.
type InviteFailure struct {
	Email string            `json:"email"`
	Error *domain.ErrorInfo `json:"error"`
}

// InviteData holds the outcome of InviteTeamContacts.
type InviteData struct {
	Invitations []domain.Invitation `json:"invitations"`
	Failures    []InviteFailure     `json:"failures,omitempty"`
}

// InviteTeamContacts creates, attaches and invites each contact independently.
// A failed contact never undoes the others.
func (s *CompositeService) InviteTeamContacts(ctx context.Context, teamID string, contacts []ContactInvite) CompositeResult[InviteData] {
	j := newJournal(s.stamps)
	var data InviteData

	if _, err := s.teams.GetByID(ctx, teamID); err != nil {
		return failed(j, data, err)
	}

	invitations := make([]*domain.Invitation, len(contacts))
	errs := make([]error, len(contacts))
	_ = parallel(ctx, len(contacts), func(ctx context.Context, i int) error {
		invitations[i], errs[i] = s.inviteOne(ctx, j, teamID, contacts[i])
		return errs[i]
	})

	var first error
	for i, err := range errs {
		if err != nil {
			data.Failures = append(data.Failures, InviteFailure{Email: contacts[i].Email, Error: domain.ToErrorInfo(err)})
			if first == nil {
				first = err
			}
			continue
		}
		data.Invitations = append(data.Invitations, *invitations[i])
	}

	if first == nil {
		return succeed(j, data)
	}
	res := failed(j, data, fmt.Errorf("%d of %d invitations failed: %w", len(data.Failures), len(contacts), first))
	res.PartialSuccess = len(data.Invitations) > 0
	return res
}

func (s *CompositeService) inviteOne(ctx context.Context, j *Journal, teamID string, c ContactInvite) (*domain.Invitation, error) {
	var user domain.User
	userIn := CreateUserInput{Email: c.Email, Name: c.Name, Role: c.Role, TeamID: teamID, Phone: c.Phone}
	err := j.Run(ctx, op(OpCreate, userService, "user", userIn), nil,
		func(ctx context.Context) (string, error) {
			var err error
			user, err = s.users.Create(ctx, userIn)
			return user.ID, err
		})
	if err != nil {
		return nil, err
	}

	err = j.Run(ctx, op(OpCreate, teamService, "team_member", c.Role), nil,
		func(ctx context.Context) (string, error) {
			return user.ID, s.teams.AddMember(ctx, teamID, user.ID, c.Role)
		})
	if err != nil {
		return nil, err
	}

	inv := domain.Invitation{
		UserID:    user.ID,
		TeamID:    teamID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		InvitedAt: s.timestamp(),
	}
	err = j.Run(ctx, op(OpCreate, inviteService, "invitation", inv.Email), nil,
		func(ctx context.Context) (string, error) {
			return user.ID, s.invitations.SendInvitation(ctx, inv)
		})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// TransferLotTenant moves a lot from one tenant to another after checking
// that fromTenantID is the current tenant.
func (s *CompositeService) TransferLotTenant(ctx context.Context, lotID, fromTenantID, toTenantID string) CompositeResult[*domain.Lot] {
	j := newJournal(s.stamps)

	lot, err := s.lots.GetByID(ctx, lotID)
	if err != nil {
		return failed[*domain.Lot](j, nil, err)
	}
	if lot.TenantID != fromTenantID {
		err := domain.Invalid("from_tenant_id", fromTenantID,
			"Current tenant mismatch: lot %s is held by %q", lot.ID, lot.TenantID)
		return failed(j, &lot, err)
	}
	if toTenantID == "" {
		return failed(j, &lot, domain.Invalid("to_tenant_id", toTenantID, "is required"))
	}
	if _, err := s.users.GetByID(ctx, toTenantID); err != nil {
		return failed(j, &lot, err)
	}

	patch := LotPatch{TenantID: &toTenantID}
	err = j.Run(ctx, op(OpUpdate, lotService, "lot", patch), nil,
		func(ctx context.Context) (string, error) {
			updated, err := s.lots.Update(ctx, lotID, patch)
			if err != nil {
				return lotID, err
			}
			lot = updated
			return lot.ID, nil
		})
	if err != nil {
		return failed(j, &lot, err)
	}
	return succeed(j, &lot)
}

// UserOperation is one item of BulkUserOperations. Create is used by
// OpCreate, ID and Patch by OpUpdate, ID by OpDelete.
type UserOperation struct {
	Type   OperationType
	ID     string
	Create CreateUserInput
	Patch  UserPatch
}

// UserOperationResult is the per-item outcome of BulkUserOperations.
type UserOperationResult struct {
	Index int               `json:"index"`
	Type  OperationType     `json:"type"`
	User  *domain.User      `json:"user,omitempty"`
	Error *domain.ErrorInfo `json:"error,omitempty"`
}

// BulkUserOperations applies independent user creates, updates and deletes.
func (s *CompositeService) BulkUserOperations(ctx context.Context, ops []UserOperation) CompositeResult[[]UserOperationResult] {
	j := newJournal(s.stamps)
	results := make([]UserOperationResult, len(ops))

	err := parallel(ctx, len(ops), func(ctx context.Context, i int) error {
		uop := ops[i]
		results[i] = UserOperationResult{Index: i, Type: uop.Type}
		err := s.userOperation(ctx, j, uop, &results[i])
		results[i].Error = domain.ToErrorInfo(err)
		return err
	})
	if err == nil {
		return succeed(j, results)
	}

	var ok int
	for _, r := range results {
		if r.Error == nil {
			ok++
		}
	}
	res := failed(j, results, err)
	res.PartialSuccess = ok > 0
	return res
}

func (s *CompositeService) userOperation(ctx context.Context, j *Journal, uop UserOperation, out *UserOperationResult) error {
	switch uop.Type {
	case OpCreate:
		return j.Run(ctx, op(OpCreate, userService, "user", uop.Create), nil,
			func(ctx context.Context) (string, error) {
				u, err := s.users.Create(ctx, uop.Create)
				if err != nil {
					return "", err
				}
				out.User = &u
				return u.ID, nil
			})
	case OpUpdate:
		return j.Run(ctx, op(OpUpdate, userService, "user", uop.Patch), nil,
			func(ctx context.Context) (string, error) {
				u, err := s.users.Update(ctx, uop.ID, uop.Patch)
				if err != nil {
					return uop.ID, err
				}
				out.User = &u
				return u.ID, nil
			})
	case OpDelete:
		return j.Run(ctx, op(OpDelete, userService, "user", nil), nil,
			func(ctx context.Context) (string, error) {
				return uop.ID, s.users.Delete(ctx, uop.ID)
			})
	}
	return domain.Invalid("type", uop.Type, "unknown operation type %q", uop.Type)
}

// TeamStats aggregates counts across the services of one team. Errors maps
// a failed source to its error; the other sources are still filled in.
type TeamStats struct {
	Team                  *domain.Team                 `json:"team,omitempty"`
	BuildingCount         int                          `json:"building_count"`
	LotCount              int                          `json:"lot_count"`
	UserCount             int                          `json:"user_count"`
	OccupiedLots          int                          `json:"occupied_lots"`
	InterventionsByStatus map[domain.Status]int        `json:"interventions_by_status,omitempty"`
	Errors                map[string]*domain.ErrorInfo `json:"errors,omitempty"`
}

// CompositeStats reads the team, its buildings and lots, its users and its
// intervention counts in parallel. One failing source does not block the others.
func (s *CompositeService) CompositeStats(ctx context.Context, teamID string) CompositeResult[TeamStats] {
	j := newJournal(s.stamps)
	stats := TeamStats{Errors: make(map[string]*domain.ErrorInfo)}

	var mu sync.Mutex
	record := func(source string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		stats.Errors[source] = domain.ToErrorInfo(err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		team, err := s.teams.GetByID(ctx, teamID)
		if err == nil {
			stats.Team = &team
		}
		record("team", err)
		return nil
	})
	g.Go(func() error {
		buildings, err := s.buildings.ListByTeam(ctx, teamID)
		if err != nil {
			record("buildings", err)
			return nil
		}
		stats.BuildingCount = len(buildings)
		for _, b := range buildings {
			lots, err := s.lots.ListByBuilding(ctx, b.ID)
			if err != nil {
				record("lots", err)
				return nil
			}
			stats.LotCount += len(lots)
			for _, lot := range lots {
				if lot.TenantID != "" {
					stats.OccupiedLots++
				}
			}
		}
		return nil
	})
	g.Go(func() error {
		users, err := s.users.ListByTeam(ctx, teamID)
		if err == nil {
			stats.UserCount = len(users)
		}
		record("users", err)
		return nil
	})
	if s.interventions != nil {
		g.Go(func() error {
			counts, err := s.interventions.CountByStatus(ctx, teamID)
			if err == nil {
				stats.InterventionsByStatus = counts
			}
			record("interventions", err)
			return nil
		})
	}
	_ = g.Wait()

	if len(stats.Errors) == 0 {
		stats.Errors = nil
		return succeed(j, stats)
	}

	attempted := 3
	if s.interventions != nil {
		attempted++
	}
	var first error
	for _, source := range statSources {
		if info, ok := stats.Errors[source]; ok {
			first = &domain.ErrorInfo{Code: info.Code, Message: source + ": " + info.Message, Details: info.Details}
			break
		}
	}
	res := failed(j, stats, first)
	res.PartialSuccess = len(stats.Errors) < attempted
	return res
}

var statSources = []string{"team", "buildings", "lots", "users", "interventions"}
