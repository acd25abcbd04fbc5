package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// BuildingService manages buildings.
type BuildingService struct {
	repo  domain.BuildingRepository
	teams domain.TeamRepository
	stamps
}

// NewBuildingService creates a building service.
func NewBuildingService(repo domain.BuildingRepository, teams domain.TeamRepository, opts ...Option) *BuildingService {
	return &BuildingService{repo: repo, teams: teams, stamps: newStamps(opts)}
}

// CreateBuildingInput carries the fields of a new building.
type CreateBuildingInput struct {
	TeamID      string `yaml:"team_id"`
	Name        string `yaml:"name"`
	Address     string `yaml:"address"`
	City        string `yaml:"city"`
	PostalCode  string `yaml:"postal_code"`
	Country     string `yaml:"country"`
	Description string `yaml:"description"`
}

// BuildingPatch lists the building fields to change.
type BuildingPatch struct {
	Name        *string
	Address     *string
	City        *string
	PostalCode  *string
	Country     *string
	Description *string
}

// Create validates and persists a building. Names are unique within a team.
func (s *BuildingService) Create(ctx context.Context, in CreateBuildingInput) (domain.Building, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Building{}, domain.Invalid("name", in.Name, "is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return domain.Building{}, domain.Invalid("address", in.Address, "is required")
	}
	if in.TeamID == "" {
		return domain.Building{}, domain.Invalid("team_id", in.TeamID, "is required")
	}
	if _, err := s.teams.GetByID(ctx, in.TeamID); err != nil {
		return domain.Building{}, err
	}
	if err := s.ensureUniqueName(ctx, in.TeamID, name, ""); err != nil {
		return domain.Building{}, err
	}

	now := s.timestamp()
	building := domain.Building{
		ID:          s.newID(),
		TeamID:      in.TeamID,
		Name:        name,
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		PostalCode:  strings.TrimSpace(in.PostalCode),
		Country:     strings.TrimSpace(in.Country),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, building); err != nil {
		return domain.Building{}, fmt.Errorf("creating building: %w", err)
	}
	return building, nil
}

// GetByID returns a building by its identifier.
func (s *BuildingService) GetByID(ctx context.Context, id string) (domain.Building, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByTeam returns the buildings of a team.
func (s *BuildingService) ListByTeam(ctx context.Context, teamID string) ([]domain.Building, error) {
	return s.repo.ListByTeam(ctx, teamID)
}

// Update applies a patch to a building.
func (s *BuildingService) Update(ctx context.Context, id string, patch BuildingPatch) (domain.Building, error) {
	building, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Building{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Building{}, domain.Invalid("name", *patch.Name, "is required")
		}
		if err := s.ensureUniqueName(ctx, building.TeamID, name, id); err != nil {
			return domain.Building{}, err
		}
		building.Name = name
	}
	if patch.Address != nil {
		if strings.TrimSpace(*patch.Address) == "" {
			return domain.Building{}, domain.Invalid("address", *patch.Address, "is required")
		}
		building.Address = strings.TrimSpace(*patch.Address)
	}
	if patch.City != nil {
		building.City = strings.TrimSpace(*patch.City)
	}
	if patch.PostalCode != nil {
		building.PostalCode = strings.TrimSpace(*patch.PostalCode)
	}
	if patch.Country != nil {
		building.Country = strings.TrimSpace(*patch.Country)
	}
	if patch.Description != nil {
		building.Description = strings.TrimSpace(*patch.Description)
	}
	building.UpdatedAt = s.timestamp()

	if err := s.repo.Update(ctx, building); err != nil {
		return domain.Building{}, fmt.Errorf("updating building: %w", err)
	}
	return building, nil
}

// Delete removes a building.
func (s *BuildingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting building: %w", err)
	}
	return nil
}

func (s *BuildingService) ensureUniqueName(ctx context.Context, teamID, name, selfID string) error {
	existing, err := s.repo.FindByName(ctx, teamID, name)
	if err == nil && existing.ID != selfID {
		return &domain.ConflictError{Resource: "building", Field: "name", Value: name}
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("checking building name: %w", err)
	}
	return nil
}
