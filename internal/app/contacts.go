package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// ContactService manages role-tagged user assignments to buildings and lots.
type ContactService struct {
	repo  domain.ContactRepository
	users domain.UserRepository
	stamps
}

// NewContactService creates a contact service.
func NewContactService(repo domain.ContactRepository, users domain.UserRepository, opts ...Option) *ContactService {
	return &ContactService{repo: repo, users: users, stamps: newStamps(opts)}
}

// ContactAssignment is one user to attach to a building or lot.
type ContactAssignment struct {
	UserID    string             `yaml:"user_id"`
	Role      domain.ContactRole `yaml:"role"`
	IsPrimary bool               `yaml:"is_primary"`
}

// AssignBuildingContacts inserts all assignments for a building in one call.
func (s *ContactService) AssignBuildingContacts(ctx context.Context, buildingID string, in []ContactAssignment) ([]domain.Contact, error) {
	contacts, err := s.build(ctx, in, func(c *domain.Contact) { c.BuildingID = buildingID })
	if err != nil || len(contacts) == 0 {
		return nil, err
	}
	if err := s.repo.InsertBuildingContacts(ctx, contacts); err != nil {
		return nil, fmt.Errorf("assigning building contacts: %w", err)
	}
	return contacts, nil
}

// RemoveBuildingContacts deletes every contact of a building.
func (s *ContactService) RemoveBuildingContacts(ctx context.Context, buildingID string) error {
	if err := s.repo.DeleteBuildingContacts(ctx, buildingID); err != nil {
		return fmt.Errorf("removing building contacts: %w", err)
	}
	return nil
}

// ReplaceBuildingContacts deletes the current contacts of a building and inserts the new set.
func (s *ContactService) ReplaceBuildingContacts(ctx context.Context, buildingID string, in []ContactAssignment) ([]domain.Contact, error) {
	contacts, err := s.build(ctx, in, func(c *domain.Contact) { c.BuildingID = buildingID })
	if err != nil {
		return nil, err
	}
	if err := s.RemoveBuildingContacts(ctx, buildingID); err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	if err := s.repo.InsertBuildingContacts(ctx, contacts); err != nil {
		return nil, fmt.Errorf("assigning building contacts: %w", err)
	}
	return contacts, nil
}

// ListBuildingContacts returns the contacts of a building.
func (s *ContactService) ListBuildingContacts(ctx context.Context, buildingID string) ([]domain.Contact, error) {
	return s.repo.ListBuildingContacts(ctx, buildingID)
}

// AssignLotContacts inserts all assignments for a lot in one call.
func (s *ContactService) AssignLotContacts(ctx context.Context, lotID string, in []ContactAssignment) ([]domain.Contact, error) {
	contacts, err := s.build(ctx, in, func(c *domain.Contact) { c.LotID = lotID })
	if err != nil || len(contacts) == 0 {
		return nil, err
	}
	if err := s.repo.InsertLotContacts(ctx, contacts); err != nil {
		return nil, fmt.Errorf("assigning lot contacts: %w", err)
	}
	return contacts, nil
}

// RemoveLotContacts deletes every contact of a lot.
func (s *ContactService) RemoveLotContacts(ctx context.Context, lotID string) error {
	if err := s.repo.DeleteLotContacts(ctx, lotID); err != nil {
		return fmt.Errorf("removing lot contacts: %w", err)
	}
	return nil
}

// ReplaceLotContacts deletes the current contacts of a lot and inserts the new set.
func (s *ContactService) ReplaceLotContacts(ctx context.Context, lotID string, in []ContactAssignment) ([]domain.Contact, error) {
	contacts, err := s.build(ctx, in, func(c *domain.Contact) { c.LotID = lotID })
	if err != nil {
		return nil, err
	}
	if err := s.RemoveLotContacts(ctx, lotID); err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	if err := s.repo.InsertLotContacts(ctx, contacts); err != nil {
		return nil, fmt.Errorf("assigning lot contacts: %w", err)
	}
	return contacts, nil
}

// ListLotContacts returns the contacts of a lot.
func (s *ContactService) ListLotContacts(ctx context.Context, lotID string) ([]domain.Contact, error) {
	return s.repo.ListLotContacts(ctx, lotID)
}

// PrimaryManager returns the manager contact of a building, preferring the
// one flagged primary.
func (s *ContactService) PrimaryManager(ctx context.Context, buildingID string) (domain.Contact, error) {
	return primaryManager(ctx, s.repo, buildingID)
}

// primaryManager picks the first primary manager of a building, or the first
// manager when none is flagged primary.
func primaryManager(ctx context.Context, repo domain.ContactRepository, buildingID string) (domain.Contact, error) {
	contacts, err := repo.ListBuildingContacts(ctx, buildingID)
	if err != nil {
		return domain.Contact{}, err
	}
	var found *domain.Contact
	for i := range contacts {
		if contacts[i].Role != domain.ContactManager {
			continue
		}
		if found == nil || (contacts[i].IsPrimary && !found.IsPrimary) {
			found = &contacts[i]
		}
	}
	if found == nil {
		return domain.Contact{}, domain.NewNotFound("building manager", buildingID)
	}
	return *found, nil
}

func (s *ContactService) build(ctx context.Context, in []ContactAssignment, target func(*domain.Contact)) ([]domain.Contact, error) {
	now := s.timestamp()
	seen := make(map[string]bool, len(in))
	out := make([]domain.Contact, 0, len(in))
	for _, a := range in {
		if a.UserID == "" {
			return nil, domain.Invalid("user_id", a.UserID, "is required")
		}
		if !a.Role.Valid() {
			return nil, domain.Invalid("role", a.Role, "unknown contact role %q", a.Role)
		}
		key := a.UserID + "|" + string(a.Role)
		if seen[key] {
			return nil, &domain.ConflictError{Resource: "contact", Field: "user_id", Value: a.UserID}
		}
		seen[key] = true
		if _, err := s.users.GetByID(ctx, a.UserID); err != nil {
			return nil, err
		}

		c := domain.Contact{UserID: a.UserID, Role: a.Role, IsPrimary: a.IsPrimary, CreatedAt: now}
		target(&c)
		out = append(out, c)
	}
	return out, nil
}
