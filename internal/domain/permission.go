package domain

// Role is the platform role of a user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleProvider Role = "provider"
	RoleTenant   Role = "tenant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleProvider, RoleTenant:
		return true
	}
	return false
}

// IsManagement reports whether r is manager or admin.
func (r Role) IsManagement() bool {
	return r == RoleAdmin || r == RoleManager
}

var management = []Role{RoleAdmin, RoleManager}

// capabilities lists which roles may trigger each workflow event.
var capabilities = map[Event][]Role{
	EventCreate:              {RoleAdmin, RoleManager, RoleTenant},
	EventApprove:             management,
	EventReject:              management,
	EventClose:               management,
	EventFinalize:            management,
	EventDelete:              management,
	EventRequestScheduling:   {RoleAdmin, RoleManager, RoleProvider},
	EventSchedule:            {RoleAdmin, RoleManager, RoleProvider},
	EventCancel:              {RoleAdmin, RoleManager, RoleProvider},
	EventStart:               {RoleProvider},
	EventComplete:            {RoleProvider},
	EventSubmitForValidation: {RoleProvider},
	EventValidateByTenant:    {RoleTenant},
	EventContestByTenant:     {RoleTenant},
}

// CanPerform reports whether role may trigger event at all.
// Provider capabilities additionally require an assignment, see RequiresAssignment.
func CanPerform(role Role, event Event) bool {
	for _, r := range capabilities[event] {
		if r == role {
			return true
		}
	}
	return false
}

// RequiresAssignment reports whether role must be assigned to the
// intervention before it may trigger event.
func RequiresAssignment(role Role, event Event) bool {
	return role == RoleProvider && CanPerform(role, event)
}
