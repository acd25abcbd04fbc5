package domain

import "time"

// User is a person with a platform role.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	TeamID    string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Team groups the managers, buildings and contacts of one agency.
type Team struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID   string
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// Building belongs to a team and holds lots.
type Building struct {
	ID          string
	TeamID      string
	Name        string
	Address     string
	City        string
	PostalCode  string
	Country     string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LotCategory classifies a rentable unit.
type LotCategory string

const (
	LotApartment  LotCategory = "apartment"
	LotCommercial LotCategory = "commercial"
	LotParking    LotCategory = "parking"
	LotStorage    LotCategory = "storage"
	LotOther      LotCategory = "other"
)

// Valid reports whether c is a known lot category.
func (c LotCategory) Valid() bool {
	switch c {
	case LotApartment, LotCommercial, LotParking, LotStorage, LotOther:
		return true
	}
	return false
}

// Lot is a rentable unit within a building.
type Lot struct {
	ID         string
	BuildingID string
	Reference  string
	Floor      int
	Category   LotCategory
	TenantID   string
	Surface    float64
	RentAmount float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ContactRole tags how a user relates to a building or lot.
type ContactRole string

const (
	ContactManager  ContactRole = "manager"
	ContactProvider ContactRole = "provider"
	ContactTenant   ContactRole = "tenant"
	ContactOwner    ContactRole = "owner"
	ContactSyndic   ContactRole = "syndic"
	ContactOther    ContactRole = "other"
)

// Valid reports whether r is a known contact role.
func (r ContactRole) Valid() bool {
	switch r {
	case ContactManager, ContactProvider, ContactTenant, ContactOwner, ContactSyndic, ContactOther:
		return true
	}
	return false
}

// Contact is a role-tagged assignment of a user to a building or a lot.
// Exactly one of BuildingID and LotID is set.
type Contact struct {
	BuildingID string
	LotID      string
	UserID     string
	Role       ContactRole
	IsPrimary  bool
	CreatedAt  time.Time
}
