package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neomorfeo/propertiq/internal/domain"
)

var _ domain.ContactRepository = (*ContactRepository)(nil)

// ContactRepository implements domain.ContactRepository using SQLite.
// Building and lot contacts live in two tables with the same shape.
type ContactRepository struct {
	db *sql.DB
}

type contactTable struct {
	name     string
	parent   string
	resource string
}

var (
	buildingContacts = contactTable{name: "building_contacts", parent: "building_id", resource: "building_contact"}
	lotContacts      = contactTable{name: "lot_contacts", parent: "lot_id", resource: "lot_contact"}
)

func (r *ContactRepository) InsertBuildingContacts(ctx context.Context, contacts []domain.Contact) error {
	return r.insert(ctx, buildingContacts, contacts, func(c domain.Contact) string { return c.BuildingID })
}

func (r *ContactRepository) DeleteBuildingContacts(ctx context.Context, buildingID string) error {
	return r.delete(ctx, buildingContacts, buildingID)
}

func (r *ContactRepository) ListBuildingContacts(ctx context.Context, buildingID string) ([]domain.Contact, error) {
	return r.list(ctx, buildingContacts, buildingID, func(c *domain.Contact, id string) { c.BuildingID = id })
}

func (r *ContactRepository) InsertLotContacts(ctx context.Context, contacts []domain.Contact) error {
	return r.insert(ctx, lotContacts, contacts, func(c domain.Contact) string { return c.LotID })
}

func (r *ContactRepository) DeleteLotContacts(ctx context.Context, lotID string) error {
	return r.delete(ctx, lotContacts, lotID)
}

func (r *ContactRepository) ListLotContacts(ctx context.Context, lotID string) ([]domain.Contact, error) {
	return r.list(ctx, lotContacts, lotID, func(c *domain.Contact, id string) { c.LotID = id })
}

// insert writes all contacts in one transaction: either every row lands or none does.
func (r *ContactRepository) insert(ctx context.Context, t contactTable, contacts []domain.Contact, parentOf func(domain.Contact) string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("beginning transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s, user_id, role, is_primary, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.name, t.parent,
	))
	if err != nil {
		return storeError("preparing contact insert", err)
	}
	defer stmt.Close()

	for _, c := range contacts {
		if _, err := stmt.ExecContext(ctx, parentOf(c), c.UserID, string(c.Role), c.IsPrimary, formatTime(c.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return &domain.ConflictError{Resource: t.resource, Field: "user_id", Value: c.UserID}
			}
			return storeError("inserting "+t.resource, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("committing "+t.resource, err)
	}
	return nil
}

func (r *ContactRepository) delete(ctx context.Context, t contactTable, parentID string) error {
	if _, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, t.name, t.parent), parentID,
	); err != nil {
		return storeError("deleting "+t.resource, err)
	}
	return nil
}

func (r *ContactRepository) list(ctx context.Context, t contactTable, parentID string, setParent func(*domain.Contact, string)) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT user_id, role, is_primary, created_at FROM %s
		 WHERE %s = ? ORDER BY is_primary DESC, created_at, user_id`,
		t.name, t.parent,
	), parentID)
	if err != nil {
		return nil, storeError("listing "+t.resource, err)
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var c domain.Contact
		var role, createdAt string
		if err := rows.Scan(&c.UserID, &role, &c.IsPrimary, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", t.resource, err)
		}
		setParent(&c, parentID)
		c.Role = domain.ContactRole(role)
		c.CreatedAt = parseTime(createdAt)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
