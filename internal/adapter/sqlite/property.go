package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/propertiq/internal/domain"
)

var _ domain.BuildingRepository = (*BuildingRepository)(nil)

// BuildingRepository implements domain.BuildingRepository using SQLite.
type BuildingRepository struct {
	db *sql.DB
}

const buildingColumns = `id, team_id, name, address, city, postal_code, country, description, created_at, updated_at`

func (r *BuildingRepository) Create(ctx context.Context, b domain.Building) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO buildings (`+buildingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.TeamID, b.Name, b.Address, b.City, b.PostalCode, b.Country, b.Description,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "building", Field: "name", Value: b.Name}
		}
		return storeError("inserting building", err)
	}
	return nil
}

func (r *BuildingRepository) GetByID(ctx context.Context, id string) (domain.Building, error) {
	b, err := scanBuilding(r.db.QueryRowContext(ctx,
		`SELECT `+buildingColumns+` FROM buildings WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Building{}, domain.NewNotFound("building", id)
	}
	return b, err
}

func (r *BuildingRepository) FindByName(ctx context.Context, teamID, name string) (domain.Building, error) {
	b, err := scanBuilding(r.db.QueryRowContext(ctx,
		`SELECT `+buildingColumns+` FROM buildings WHERE team_id = ? AND name = ?`, teamID, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Building{}, domain.NewNotFound("building", name)
	}
	return b, err
}

func (r *BuildingRepository) ListByTeam(ctx context.Context, teamID string) ([]domain.Building, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+buildingColumns+` FROM buildings WHERE team_id = ? ORDER BY name`, teamID,
	)
	if err != nil {
		return nil, storeError("listing buildings", err)
	}
	defer rows.Close()

	var buildings []domain.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

func (r *BuildingRepository) Update(ctx context.Context, b domain.Building) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE buildings SET name = ?, address = ?, city = ?, postal_code = ?, country = ?,
		 description = ?, updated_at = ? WHERE id = ?`,
		b.Name, b.Address, b.City, b.PostalCode, b.Country, b.Description, formatTime(b.UpdatedAt), b.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "building", Field: "name", Value: b.Name}
		}
		return storeError("updating building", err)
	}
	return mustAffect(result, "updating building", "building", b.ID)
}

func (r *BuildingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM buildings WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting building", err)
	}
	return mustAffect(result, "deleting building", "building", id)
}

func scanBuilding(row scanner) (domain.Building, error) {
	var b domain.Building
	var createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.TeamID, &b.Name, &b.Address, &b.City, &b.PostalCode, &b.Country,
		&b.Description, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Building{}, err
		}
		return domain.Building{}, fmt.Errorf("scanning building: %w", err)
	}

	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

var _ domain.LotRepository = (*LotRepository)(nil)

// LotRepository implements domain.LotRepository using SQLite.
type LotRepository struct {
	db *sql.DB
}

const lotColumns = `id, building_id, reference, floor, category, tenant_id, surface, rent_amount, created_at, updated_at`

func (r *LotRepository) Create(ctx context.Context, l domain.Lot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lots (`+lotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.BuildingID, l.Reference, l.Floor, string(l.Category), nullString(l.TenantID),
		l.Surface, l.RentAmount, formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "lot", Field: "reference", Value: l.Reference}
		}
		return storeError("inserting lot", err)
	}
	return nil
}

func (r *LotRepository) GetByID(ctx context.Context, id string) (domain.Lot, error) {
	l, err := scanLot(r.db.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lot{}, domain.NewNotFound("lot", id)
	}
	return l, err
}

func (r *LotRepository) FindByReference(ctx context.Context, buildingID, reference string) (domain.Lot, error) {
	l, err := scanLot(r.db.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE building_id = ? AND reference = ?`, buildingID, reference,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lot{}, domain.NewNotFound("lot", reference)
	}
	return l, err
}

func (r *LotRepository) ListByBuilding(ctx context.Context, buildingID string) ([]domain.Lot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE building_id = ? ORDER BY reference`, buildingID,
	)
	if err != nil {
		return nil, storeError("listing lots", err)
	}
	defer rows.Close()

	var lots []domain.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (r *LotRepository) Update(ctx context.Context, l domain.Lot) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lots SET reference = ?, floor = ?, category = ?, tenant_id = ?, surface = ?,
		 rent_amount = ?, updated_at = ? WHERE id = ?`,
		l.Reference, l.Floor, string(l.Category), nullString(l.TenantID), l.Surface,
		l.RentAmount, formatTime(l.UpdatedAt), l.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "lot", Field: "reference", Value: l.Reference}
		}
		return storeError("updating lot", err)
	}
	return mustAffect(result, "updating lot", "lot", l.ID)
}

func (r *LotRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lots WHERE id = ?`, id)
	if err != nil {
		return storeError("deleting lot", err)
	}
	return mustAffect(result, "deleting lot", "lot", id)
}

func scanLot(row scanner) (domain.Lot, error) {
	var l domain.Lot
	var tenantID sql.NullString
	var category, createdAt, updatedAt string

	err := row.Scan(&l.ID, &l.BuildingID, &l.Reference, &l.Floor, &category, &tenantID,
		&l.Surface, &l.RentAmount, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lot{}, err
		}
		return domain.Lot{}, fmt.Errorf("scanning lot: %w", err)
	}

	l.Category = domain.LotCategory(category)
	l.TenantID = tenantID.String
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}
