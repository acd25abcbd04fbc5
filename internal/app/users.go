package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// UserService manages platform users.
type UserService struct {
	repo domain.UserRepository
	stamps
}

// NewUserService creates a user service over the given repository.
func NewUserService(repo domain.UserRepository, opts ...Option) *UserService {
	return &UserService{repo: repo, stamps: newStamps(opts)}
}

// CreateUserInput carries the fields of a new user.
type CreateUserInput struct {
	Email  string
	Name   string
	Role   domain.Role
	TeamID string
	Phone  string
}

// UserPatch lists the user fields to change; nil fields are left untouched.
type UserPatch struct {
	Name   *string
	Role   *domain.Role
	TeamID *string
	Phone  *string
}

// Create validates and persists a new user. Emails are unique, ignoring case.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return domain.User{}, domain.Invalid("email", in.Email, "is not a valid email address")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, domain.Invalid("name", in.Name, "is required")
	}
	if !in.Role.Valid() {
		return domain.User{}, domain.Invalid("role", in.Role, "unknown role %q", in.Role)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return domain.User{}, &domain.ConflictError{Resource: "user", Field: "email", Value: email}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("checking email uniqueness: %w", err)
	}

	now := s.timestamp()
	user := domain.User{
		ID:        s.newID(),
		Email:     email,
		Name:      name,
		Role:      in.Role,
		TeamID:    in.TeamID,
		Phone:     strings.TrimSpace(in.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// GetByID returns a user by its identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns the user registered with the given email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// ListByTeam returns the users attached to a team.
func (s *UserService) ListByTeam(ctx context.Context, teamID string) ([]domain.User, error) {
	return s.repo.ListByTeam(ctx, teamID)
}

// Update applies a patch to an existing user.
func (s *UserService) Update(ctx context.Context, id string, patch UserPatch) (domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.User{}, domain.Invalid("name", *patch.Name, "is required")
		}
		user.Name = name
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return domain.User{}, domain.Invalid("role", *patch.Role, "unknown role %q", *patch.Role)
		}
		user.Role = *patch.Role
	}
	if patch.TeamID != nil {
		user.TeamID = *patch.TeamID
	}
	if patch.Phone != nil {
		user.Phone = strings.TrimSpace(*patch.Phone)
	}
	user.UpdatedAt = s.timestamp()

	if err := s.repo.Update(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("updating user: %w", err)
	}
	return user, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
