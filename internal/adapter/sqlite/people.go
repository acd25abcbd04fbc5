package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/propertiq/internal/domain"
)

var _ domain.UserRepository = (*UserRepository)(nil)

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	db *sql.DB
}

const userColumns = `id, email, name, role, team_id, phone, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, string(u.Role), nullString(u.TeamID), u.Phone,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "user", Field: "email", Value: u.Email}
		}
		return storeError("inserting user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.get(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.get(ctx, "email", email)
}

func (r *UserRepository) get(ctx context.Context, column, value string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.NewNotFound("user", value)
	}
	return u, err
}

func (r *UserRepository) ListByTeam(ctx context.Context, teamID string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE team_id = ? ORDER BY created_at, id`, teamID,
	)
	if err != nil {
		return nil, storeError("listing users", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, u domain.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, role = ?, team_id = ?, phone = ?, updated_at = ?
		 WHERE id = ?`,
		u.Email, u.Name, string(u.Role), nullString(u.TeamID), u.Phone, formatTime(u.UpdatedAt), u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "user", Field: "email", Value: u.Email}
		}
		return storeError("updating user", err)
	}
	return mustAffect(result, "updating user", "user", u.ID)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting user", err)
	}
	return mustAffect(result, "deleting user", "user", id)
}

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var teamID sql.NullString
	var role, createdAt, updatedAt string

	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &teamID, &u.Phone, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = domain.Role(role)
	u.TeamID = teamID.String
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

var _ domain.TeamRepository = (*TeamRepository)(nil)

// TeamRepository implements domain.TeamRepository using SQLite.
type TeamRepository struct {
	db *sql.DB
}

const teamColumns = `id, name, description, created_by, created_at, updated_at`

func (r *TeamRepository) Create(ctx context.Context, t domain.Team) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO teams (`+teamColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.CreatedBy, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "team", Field: "name", Value: t.Name}
		}
		return storeError("inserting team", err)
	}
	return nil
}

func (r *TeamRepository) GetByID(ctx context.Context, id string) (domain.Team, error) {
	return r.get(ctx, "id", id)
}

func (r *TeamRepository) GetByName(ctx context.Context, name string) (domain.Team, error) {
	return r.get(ctx, "name", name)
}

func (r *TeamRepository) get(ctx context.Context, column, value string) (domain.Team, error) {
	var t domain.Team
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE `+column+` = ?`, value,
	).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Team{}, domain.NewNotFound("team", value)
		}
		return domain.Team{}, fmt.Errorf("scanning team: %w", err)
	}

	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (r *TeamRepository) Update(ctx context.Context, t domain.Team) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Description, formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "team", Field: "name", Value: t.Name}
		}
		return storeError("updating team", err)
	}
	return mustAffect(result, "updating team", "team", t.ID)
}

func (r *TeamRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting team", err)
	}
	return mustAffect(result, "deleting team", "team", id)
}

func (r *TeamRepository) AddMember(ctx context.Context, m domain.TeamMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		m.TeamID, m.UserID, string(m.Role), formatTime(m.JoinedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "team_member", Field: "user_id", Value: m.UserID}
		}
		return storeError("inserting team member", err)
	}
	return nil
}

func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID,
	)
	if err != nil {
		return storeError("deleting team member", err)
	}
	return mustAffect(result, "deleting team member", "team_member", teamID+"/"+userID)
}

func (r *TeamRepository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT team_id, user_id, role, joined_at FROM team_members
		 WHERE team_id = ? ORDER BY joined_at, user_id`, teamID,
	)
	if err != nil {
		return nil, storeError("listing team members", err)
	}
	defer rows.Close()

	var members []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		var role, joinedAt string
		if err := rows.Scan(&m.TeamID, &m.UserID, &role, &joinedAt); err != nil {
			return nil, fmt.Errorf("scanning team member: %w", err)
		}
		m.Role = domain.Role(role)
		m.JoinedAt = parseTime(joinedAt)
		members = append(members, m)
	}
	return members, rows.Err()
}
