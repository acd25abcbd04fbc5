package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/propertiq/internal/domain"
)

var _ domain.InterventionRepository = (*InterventionRepository)(nil)

// InterventionRepository implements domain.InterventionRepository using SQLite.
type InterventionRepository struct {
	db *sql.DB
}

const interventionColumns = `id, lot_id, building_id, team_id, requested_by, status, priority,
	category, title, description, scheduled_date, completed_date, estimated_duration,
	actual_duration, notes, quote_amount, final_amount, requires_tenant_validation,
	created_at, updated_at`

func (r *InterventionRepository) Create(ctx context.Context, iv domain.Intervention) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO interventions (`+interventionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, nullString(iv.LotID), iv.BuildingID, iv.TeamID, iv.RequestedBy,
		string(iv.Status), string(iv.Priority), iv.Category, iv.Title, iv.Description,
		nullTime(iv.ScheduledDate), nullTime(iv.CompletedDate),
		iv.EstimatedDuration, iv.ActualDuration, iv.Notes,
		nullFloat(iv.QuoteAmount), nullFloat(iv.FinalAmount), iv.RequiresTenantValidation,
		formatTime(iv.CreatedAt), formatTime(iv.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "intervention", Field: "id", Value: iv.ID}
		}
		return storeError("inserting intervention", err)
	}
	return nil
}

func (r *InterventionRepository) GetByID(ctx context.Context, id string) (domain.Intervention, error) {
	iv, err := scanIntervention(r.db.QueryRowContext(ctx,
		`SELECT `+interventionColumns+` FROM interventions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Intervention{}, domain.NewNotFound("intervention", id)
	}
	return iv, err
}

func (r *InterventionRepository) List(ctx context.Context, filter domain.InterventionFilter) ([]domain.Intervention, error) {
	query := `SELECT ` + interventionColumns + ` FROM interventions WHERE 1 = 1`
	var args []any

	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.LotID != "" {
		query += ` AND lot_id = ?`
		args = append(args, filter.LotID)
	}
	if filter.BuildingID != "" {
		query += ` AND building_id = ?`
		args = append(args, filter.BuildingID)
	}
	if filter.TeamID != "" {
		query += ` AND team_id = ?`
		args = append(args, filter.TeamID)
	}
	if filter.AssigneeID != "" {
		query += ` AND id IN (SELECT intervention_id FROM intervention_assignments WHERE user_id = ?)`
		args = append(args, filter.AssigneeID)
	}

	query += ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("listing interventions", err)
	}
	defer rows.Close()

	var interventions []domain.Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, err
		}
		interventions = append(interventions, iv)
	}
	return interventions, rows.Err()
}

func (r *InterventionRepository) Update(ctx context.Context, iv domain.Intervention) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE interventions SET lot_id = ?, building_id = ?, team_id = ?, status = ?, priority = ?,
		 category = ?, title = ?, description = ?, scheduled_date = ?, completed_date = ?,
		 estimated_duration = ?, actual_duration = ?, notes = ?, quote_amount = ?, final_amount = ?,
		 requires_tenant_validation = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(iv.LotID), iv.BuildingID, iv.TeamID, string(iv.Status), string(iv.Priority),
		iv.Category, iv.Title, iv.Description, nullTime(iv.ScheduledDate), nullTime(iv.CompletedDate),
		iv.EstimatedDuration, iv.ActualDuration, iv.Notes, nullFloat(iv.QuoteAmount), nullFloat(iv.FinalAmount),
		iv.RequiresTenantValidation, formatTime(iv.UpdatedAt), iv.ID,
	)
	if err != nil {
		return storeError("updating intervention", err)
	}
	return mustAffect(result, "updating intervention", "intervention", iv.ID)
}

func (r *InterventionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM interventions WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting intervention", err)
	}
	return mustAffect(result, "deleting intervention", "intervention", id)
}

// CountByStatus returns the number of interventions per status, optionally scoped to a team.
func (r *InterventionRepository) CountByStatus(ctx context.Context, teamID string) (map[domain.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM interventions`
	var args []any
	if teamID != "" {
		query += ` WHERE team_id = ?`
		args = append(args, teamID)
	}
	query += ` GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("counting interventions", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanIntervention(row scanner) (domain.Intervention, error) {
	var iv domain.Intervention
	var lotID, scheduled, completed sql.NullString
	var quote, final sql.NullFloat64
	var status, priority, createdAt, updatedAt string

	err := row.Scan(&iv.ID, &lotID, &iv.BuildingID, &iv.TeamID, &iv.RequestedBy, &status, &priority,
		&iv.Category, &iv.Title, &iv.Description, &scheduled, &completed, &iv.EstimatedDuration,
		&iv.ActualDuration, &iv.Notes, &quote, &final, &iv.RequiresTenantValidation,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Intervention{}, err
		}
		return domain.Intervention{}, fmt.Errorf("scanning intervention: %w", err)
	}

	iv.LotID = lotID.String
	iv.Status = domain.Status(status)
	iv.Priority = domain.Priority(priority)
	iv.ScheduledDate = timePtr(scheduled)
	iv.CompletedDate = timePtr(completed)
	iv.QuoteAmount = floatPtr(quote)
	iv.FinalAmount = floatPtr(final)
	iv.CreatedAt = parseTime(createdAt)
	iv.UpdatedAt = parseTime(updatedAt)

	return iv, nil
}

var _ domain.AssignmentRepository = (*AssignmentRepository)(nil)

// AssignmentRepository implements domain.AssignmentRepository using SQLite.
type AssignmentRepository struct {
	db *sql.DB
}

func (r *AssignmentRepository) Assign(ctx context.Context, a domain.Assignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO intervention_assignments (intervention_id, user_id, role, is_primary, assigned_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.InterventionID, a.UserID, string(a.Role), a.IsPrimary, formatTime(a.AssignedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "assignment", Field: "user_id", Value: a.UserID}
		}
		return storeError("inserting assignment", err)
	}
	return nil
}

func (r *AssignmentRepository) Unassign(ctx context.Context, interventionID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM intervention_assignments WHERE intervention_id = ? AND user_id = ?`,
		interventionID, userID,
	)
	if err != nil {
		return storeError("deleting assignment", err)
	}
	return mustAffect(result, "deleting assignment", "assignment", interventionID+"/"+userID)
}

func (r *AssignmentRepository) ListByIntervention(ctx context.Context, interventionID string) ([]domain.Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT intervention_id, user_id, role, is_primary, assigned_at
		 FROM intervention_assignments WHERE intervention_id = ? ORDER BY assigned_at, user_id`,
		interventionID,
	)
	if err != nil {
		return nil, storeError("listing assignments", err)
	}
	defer rows.Close()

	var assignments []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		var role, assignedAt string
		if err := rows.Scan(&a.InterventionID, &a.UserID, &role, &a.IsPrimary, &assignedAt); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		a.Role = domain.Role(role)
		a.AssignedAt = parseTime(assignedAt)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r *AssignmentRepository) DeleteByIntervention(ctx context.Context, interventionID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM intervention_assignments WHERE intervention_id = ?`, interventionID,
	); err != nil {
		return storeError("deleting assignments", err)
	}
	return nil
}
