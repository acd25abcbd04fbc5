package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// LotService manages lots.
type LotService struct {
	repo      domain.LotRepository
	buildings domain.BuildingRepository
	stamps
}

// NewLotService creates a lot service.
func NewLotService(repo domain.LotRepository, buildings domain.BuildingRepository, opts ...Option) *LotService {
	return &LotService{repo: repo, buildings: buildings, stamps: newStamps(opts)}
}

// CreateLotInput carries the fields of a new lot.
type CreateLotInput struct {
	BuildingID string             `yaml:"building_id"`
	Reference  string             `yaml:"reference"`
	Floor      int                `yaml:"floor"`
	Category   domain.LotCategory `yaml:"category"`
	TenantID   string             `yaml:"tenant_id"`
	Surface    float64            `yaml:"surface"`
	RentAmount float64            `yaml:"rent_amount"`
}

// LotPatch lists the lot fields to change. An empty TenantID clears the tenant.
type LotPatch struct {
	Reference  *string
	Floor      *int
	Category   *domain.LotCategory
	TenantID   *string
	Surface    *float64
	RentAmount *float64
}

// Create validates and persists a lot. References are unique within a building.
func (s *LotService) Create(ctx context.Context, in CreateLotInput) (domain.Lot, error) {
	ref := strings.TrimSpace(in.Reference)
	if ref == "" {
		return domain.Lot{}, domain.Invalid("reference", in.Reference, "is required")
	}
	if in.Category == "" {
		in.Category = domain.LotApartment
	}
	if !in.Category.Valid() {
		return domain.Lot{}, domain.Invalid("category", in.Category, "unknown lot category %q", in.Category)
	}
	if in.Surface < 0 || in.RentAmount < 0 {
		return domain.Lot{}, domain.Invalid("surface", in.Surface, "surface and rent must not be negative")
	}
	if in.BuildingID == "" {
		return domain.Lot{}, domain.Invalid("building_id", in.BuildingID, "is required")
	}
	if _, err := s.buildings.GetByID(ctx, in.BuildingID); err != nil {
		return domain.Lot{}, err
	}
	if err := s.ensureUniqueReference(ctx, in.BuildingID, ref, ""); err != nil {
		return domain.Lot{}, err
	}

	now := s.timestamp()
	lot := domain.Lot{
		ID:         s.newID(),
		BuildingID: in.BuildingID,
		Reference:  ref,
		Floor:      in.Floor,
		Category:   in.Category,
		TenantID:   in.TenantID,
		Surface:    in.Surface,
		RentAmount: in.RentAmount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, lot); err != nil {
		return domain.Lot{}, fmt.Errorf("creating lot: %w", err)
	}
	return lot, nil
}

// GetByID returns a lot by its identifier.
func (s *LotService) GetByID(ctx context.Context, id string) (domain.Lot, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByBuilding returns the lots of a building.
func (s *LotService) ListByBuilding(ctx context.Context, buildingID string) ([]domain.Lot, error) {
	return s.repo.ListByBuilding(ctx, buildingID)
}

// Update applies a patch to a lot.
func (s *LotService) Update(ctx context.Context, id string, patch LotPatch) (domain.Lot, error) {
	lot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Lot{}, err
	}

	if patch.Reference != nil {
		ref := strings.TrimSpace(*patch.Reference)
		if ref == "" {
			return domain.Lot{}, domain.Invalid("reference", *patch.Reference, "is required")
		}
		if err := s.ensureUniqueReference(ctx, lot.BuildingID, ref, id); err != nil {
			return domain.Lot{}, err
		}
		lot.Reference = ref
	}
	if patch.Floor != nil {
		lot.Floor = *patch.Floor
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return domain.Lot{}, domain.Invalid("category", *patch.Category, "unknown lot category %q", *patch.Category)
		}
		lot.Category = *patch.Category
	}
	if patch.TenantID != nil {
		lot.TenantID = *patch.TenantID
	}
	if patch.Surface != nil {
		if *patch.Surface < 0 {
			return domain.Lot{}, domain.Invalid("surface", *patch.Surface, "must not be negative")
		}
		lot.Surface = *patch.Surface
	}
	if patch.RentAmount != nil {
		if *patch.RentAmount < 0 {
			return domain.Lot{}, domain.Invalid("rent_amount", *patch.RentAmount, "must not be negative")
		}
		lot.RentAmount = *patch.RentAmount
	}
	lot.UpdatedAt = s.timestamp()

	if err := s.repo.Update(ctx, lot); err != nil {
		return domain.Lot{}, fmt.Errorf("updating lot: %w", err)
	}
	return lot, nil
}

// Delete removes a lot.
func (s *LotService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting lot: %w", err)
	}
	return nil
}

func (s *LotService) ensureUniqueReference(ctx context.Context, buildingID, ref, selfID string) error {
	existing, err := s.repo.FindByReference(ctx, buildingID, ref)
	if err == nil && existing.ID != selfID {
		return &domain.ConflictError{Resource: "lot", Field: "reference", Value: ref}
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("checking lot reference: %w", err)
	}
	return nil
}
