package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// TeamService manages teams and their membership.
type TeamService struct {
	repo  domain.TeamRepository
	users domain.UserRepository
	stamps
}

// NewTeamService creates a team service.
func NewTeamService(repo domain.TeamRepository, users domain.UserRepository, opts ...Option) *TeamService {
	return &TeamService{repo: repo, users: users, stamps: newStamps(opts)}
}

// CreateTeamInput carries the fields of a new team.
type CreateTeamInput struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	CreatedBy   string `yaml:"created_by"`
}

// Create validates and persists a team. Team names are unique.
func (s *TeamService) Create(ctx context.Context, in CreateTeamInput) (domain.Team, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Team{}, domain.Invalid("name", in.Name, "is required")
	}

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return domain.Team{}, &domain.ConflictError{Resource: "team", Field: "name", Value: name}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Team{}, fmt.Errorf("checking team name: %w", err)
	}

	now := s.timestamp()
	team := domain.Team{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, team); err != nil {
		return domain.Team{}, fmt.Errorf("creating team: %w", err)
	}
	return team, nil
}

// GetByID returns a team by its identifier.
func (s *TeamService) GetByID(ctx context.Context, id string) (domain.Team, error) {
	return s.repo.GetByID(ctx, id)
}

// Rename changes the team name, keeping names unique.
func (s *TeamService) Rename(ctx context.Context, id, name string) (domain.Team, error) {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Team{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Team{}, domain.Invalid("name", name, "is required")
	}
	if existing, err := s.repo.GetByName(ctx, name); err == nil && existing.ID != id {
		return domain.Team{}, &domain.ConflictError{Resource: "team", Field: "name", Value: name}
	}

	team.Name = name
	team.UpdatedAt = s.timestamp()
	if err := s.repo.Update(ctx, team); err != nil {
		return domain.Team{}, fmt.Errorf("updating team: %w", err)
	}
	return team, nil
}

// Delete removes a team; memberships go with it.
func (s *TeamService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting team: %w", err)
	}
	return nil
}

// AddMember attaches an existing user to a team.
func (s *TeamService) AddMember(ctx context.Context, teamID, userID string, role domain.Role) error {
	if _, err := s.repo.GetByID(ctx, teamID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if !role.Valid() {
		return domain.Invalid("role", role, "unknown role %q", role)
	}

	member := domain.TeamMember{TeamID: teamID, UserID: userID, Role: role, JoinedAt: s.timestamp()}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return fmt.Errorf("adding team member: %w", err)
	}
	return nil
}

// RemoveMember detaches a user from a team.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID string) error {
	return s.repo.RemoveMember(ctx, teamID, userID)
}

// ListMembers returns the members of a team.
func (s *TeamService) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	return s.repo.ListMembers(ctx, teamID)
}
