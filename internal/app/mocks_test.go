package app_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neomorfeo/propertiq/internal/app"
	"github.com/neomorfeo/propertiq/internal/domain"
)

// --- Fault injection ---

// faults counts calls per method and fails the ones a test asks for.
type faults struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]func(call int) error
}

func (f *faults) hit(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
	if fn, ok := f.fail[method]; ok {
		return fn(f.calls[method])
	}
	return nil
}

// failOn makes method fail with err on its n-th call, or on every call when n is 0.
func (f *faults) failOn(method string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = make(map[string]func(int) error)
	}
	f.fail[method] = func(call int) error {
		if n == 0 || call == n {
			return err
		}
		return nil
	}
}

func (f *faults) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

var errStore = &domain.RepositoryError{Op: "store", Code: "SQLITE_BUSY", Message: "database is locked", Details: "busy"}

// --- Mocks ---

type mockInterventions struct {
	faults
	mu    sync.Mutex
	items map[string]domain.Intervention
}

func newMockInterventions() *mockInterventions {
	return &mockInterventions{items: make(map[string]domain.Intervention)}
}

func (m *mockInterventions) Create(_ context.Context, iv domain.Intervention) error {
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[iv.ID] = iv
	return nil
}

func (m *mockInterventions) GetByID(_ context.Context, id string) (domain.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.items[id]
	if !ok {
		return domain.Intervention{}, domain.NewNotFound("intervention", id)
	}
	return iv, nil
}

func (m *mockInterventions) List(_ context.Context, f domain.InterventionFilter) ([]domain.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Intervention
	for _, iv := range m.items {
		if f.Status != nil && iv.Status != *f.Status {
			continue
		}
		if f.TeamID != "" && iv.TeamID != f.TeamID {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}

func (m *mockInterventions) Update(_ context.Context, iv domain.Intervention) error {
	if err := m.hit("Update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[iv.ID]; !ok {
		return domain.NewNotFound("intervention", iv.ID)
	}
	m.items[iv.ID] = iv
	return nil
}

func (m *mockInterventions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFound("intervention", id)
	}
	delete(m.items, id)
	return nil
}

func (m *mockInterventions) CountByStatus(_ context.Context, teamID string) (map[domain.Status]int, error) {
	if err := m.hit("CountByStatus"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.Status]int)
	for _, iv := range m.items {
		if iv.TeamID == teamID {
			out[iv.Status]++
		}
	}
	return out, nil
}

func (m *mockInterventions) put(iv domain.Intervention) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[iv.ID] = iv
}

type mockAssignments struct {
	faults
	mu    sync.Mutex
	items map[string][]domain.Assignment
}

func newMockAssignments() *mockAssignments {
	return &mockAssignments{items: make(map[string][]domain.Assignment)}
}

func (m *mockAssignments) Assign(_ context.Context, a domain.Assignment) error {
	if err := m.hit("Assign"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items[a.InterventionID] {
		if existing.UserID == a.UserID {
			return &domain.ConflictError{Resource: "assignment", Field: "user_id", Value: a.UserID}
		}
	}
	m.items[a.InterventionID] = append(m.items[a.InterventionID], a)
	return nil
}

func (m *mockAssignments) Unassign(_ context.Context, interventionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.items[interventionID]
	for i, a := range list {
		if a.UserID == userID {
			m.items[interventionID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFound("assignment", userID)
}

func (m *mockAssignments) ListByIntervention(_ context.Context, interventionID string) ([]domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Assignment(nil), m.items[interventionID]...), nil
}

func (m *mockAssignments) DeleteByIntervention(_ context.Context, interventionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, interventionID)
	return nil
}

type mockUsers struct {
	faults
	mu    sync.Mutex
	items map[string]domain.User
}

func newMockUsers() *mockUsers {
	return &mockUsers{items: make(map[string]domain.User)}
}

func (m *mockUsers) Create(_ context.Context, u domain.User) error {
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.Email == u.Email {
			return &domain.ConflictError{Resource: "user", Field: "email", Value: u.Email}
		}
	}
	m.items[u.ID] = u
	return nil
}

func (m *mockUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	if err := m.hit("GetByID"); err != nil {
		return domain.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return domain.User{}, domain.NewNotFound("user", id)
	}
	return u, nil
}

func (m *mockUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.NewNotFound("user", email)
}

func (m *mockUsers) ListByTeam(_ context.Context, teamID string) ([]domain.User, error) {
	if err := m.hit("ListByTeam"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.items {
		if u.TeamID == teamID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUsers) Update(_ context.Context, u domain.User) error {
	if err := m.hit("Update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[u.ID] = u
	return nil
}

func (m *mockUsers) Delete(_ context.Context, id string) error {
	if err := m.hit("Delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFound("user", id)
	}
	delete(m.items, id)
	return nil
}

func (m *mockUsers) put(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[u.ID] = u
}

type mockTeams struct {
	faults
	mu      sync.Mutex
	items   map[string]domain.Team
	members map[string][]domain.TeamMember
}

func newMockTeams() *mockTeams {
	return &mockTeams{items: make(map[string]domain.Team), members: make(map[string][]domain.TeamMember)}
}

func (m *mockTeams) Create(_ context.Context, t domain.Team) error {
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[t.ID] = t
	return nil
}

func (m *mockTeams) GetByID(_ context.Context, id string) (domain.Team, error) {
	if err := m.hit("GetByID"); err != nil {
		return domain.Team{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok {
		return domain.Team{}, domain.NewNotFound("team", id)
	}
	return t, nil
}

func (m *mockTeams) GetByName(_ context.Context, name string) (domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.items {
		if t.Name == name {
			return t, nil
		}
	}
	return domain.Team{}, domain.NewNotFound("team", name)
}

func (m *mockTeams) Update(_ context.Context, t domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[t.ID] = t
	return nil
}

func (m *mockTeams) Delete(_ context.Context, id string) error {
	if err := m.hit("Delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFound("team", id)
	}
	delete(m.items, id)
	delete(m.members, id)
	return nil
}

func (m *mockTeams) AddMember(_ context.Context, member domain.TeamMember) error {
	if err := m.hit("AddMember"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.TeamID] = append(m.members[member.TeamID], member)
	return nil
}

func (m *mockTeams) RemoveMember(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.members[teamID]
	for i, member := range list {
		if member.UserID == userID {
			m.members[teamID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFound("team member", userID)
}

func (m *mockTeams) ListMembers(_ context.Context, teamID string) ([]domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TeamMember(nil), m.members[teamID]...), nil
}

type mockBuildings struct {
	faults
	mu    sync.Mutex
	items map[string]domain.Building
}

func newMockBuildings() *mockBuildings {
	return &mockBuildings{items: make(map[string]domain.Building)}
}

func (m *mockBuildings) Create(_ context.Context, b domain.Building) error {
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[b.ID] = b
	return nil
}

func (m *mockBuildings) GetByID(_ context.Context, id string) (domain.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return domain.Building{}, domain.NewNotFound("building", id)
	}
	return b, nil
}

func (m *mockBuildings) FindByName(_ context.Context, teamID, name string) (domain.Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.items {
		if b.TeamID == teamID && b.Name == name {
			return b, nil
		}
	}
	return domain.Building{}, domain.NewNotFound("building", name)
}

func (m *mockBuildings) ListByTeam(_ context.Context, teamID string) ([]domain.Building, error) {
	if err := m.hit("ListByTeam"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Building
	for _, b := range m.items {
		if b.TeamID == teamID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBuildings) Update(_ context.Context, b domain.Building) error {
	if err := m.hit("Update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[b.ID] = b
	return nil
}

func (m *mockBuildings) Delete(_ context.Context, id string) error {
	if err := m.hit("Delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFound("building", id)
	}
	delete(m.items, id)
	return nil
}

func (m *mockBuildings) put(b domain.Building) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[b.ID] = b
}

type mockLots struct {
	faults
	mu    sync.Mutex
	items map[string]domain.Lot
}

func newMockLots() *mockLots {
	return &mockLots{items: make(map[string]domain.Lot)}
}

func (m *mockLots) Create(_ context.Context, lot domain.Lot) error {
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[lot.ID] = lot
	return nil
}

func (m *mockLots) GetByID(_ context.Context, id string) (domain.Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lot, ok := m.items[id]
	if !ok {
		return domain.Lot{}, domain.NewNotFound("lot", id)
	}
	return lot, nil
}

func (m *mockLots) FindByReference(_ context.Context, buildingID, ref string) (domain.Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lot := range m.items {
		if lot.BuildingID == buildingID && lot.Reference == ref {
			return lot, nil
		}
	}
	return domain.Lot{}, domain.NewNotFound("lot", ref)
}

func (m *mockLots) ListByBuilding(_ context.Context, buildingID string) ([]domain.Lot, error) {
	if err := m.hit("ListByBuilding"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lot
	for _, lot := range m.items {
		if lot.BuildingID == buildingID {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (m *mockLots) Update(_ context.Context, lot domain.Lot) error {
	if err := m.hit("Update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[lot.ID] = lot
	return nil
}

func (m *mockLots) Delete(_ context.Context, id string) error {
	if err := m.hit("Delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.NewNotFound("lot", id)
	}
	delete(m.items, id)
	return nil
}

func (m *mockLots) put(lot domain.Lot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[lot.ID] = lot
}

func (m *mockLots) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type mockContacts struct {
	faults
	mu        sync.Mutex
	buildings map[string][]domain.Contact
	lots      map[string][]domain.Contact
}

func newMockContacts() *mockContacts {
	return &mockContacts{buildings: make(map[string][]domain.Contact), lots: make(map[string][]domain.Contact)}
}

func (m *mockContacts) InsertBuildingContacts(_ context.Context, contacts []domain.Contact) error {
	if err := m.hit("InsertBuildingContacts"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range contacts {
		m.buildings[c.BuildingID] = append(m.buildings[c.BuildingID], c)
	}
	return nil
}

func (m *mockContacts) DeleteBuildingContacts(_ context.Context, buildingID string) error {
	if err := m.hit("DeleteBuildingContacts"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buildings, buildingID)
	return nil
}

func (m *mockContacts) ListBuildingContacts(_ context.Context, buildingID string) ([]domain.Contact, error) {
	if err := m.hit("ListBuildingContacts"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Contact(nil), m.buildings[buildingID]...), nil
}

func (m *mockContacts) InsertLotContacts(_ context.Context, contacts []domain.Contact) error {
	if err := m.hit("InsertLotContacts"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range contacts {
		m.lots[c.LotID] = append(m.lots[c.LotID], c)
	}
	return nil
}

func (m *mockContacts) DeleteLotContacts(_ context.Context, lotID string) error {
	if err := m.hit("DeleteLotContacts"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lots, lotID)
	return nil
}

func (m *mockContacts) ListLotContacts(_ context.Context, lotID string) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Contact(nil), m.lots[lotID]...), nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	event        domain.Event
	intervention domain.Intervention
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event, iv domain.Intervention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{event: e, intervention: iv})
	return nil
}

func (m *mockPublisher) last() domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return ""
	}
	return m.events[len(m.events)-1].event
}

type mockInvitations struct {
	faults
	mu   sync.Mutex
	sent []domain.Invitation
}

func (m *mockInvitations) SendInvitation(_ context.Context, inv domain.Invitation) error {
	if err := m.hit("SendInvitation"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, inv)
	return nil
}

// tableValidator walks domain.Transitions; the looplab-backed validator is
// covered in the fsm adapter.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	for _, t := range domain.Transitions {
		if t.Event == event && t.Src == current {
			return t.Dst, nil
		}
	}
	return current, &domain.TransitionError{Event: event, From: current, To: domain.TargetOf(event)}
}

// --- Fixture ---

// sequence returns a deterministic identifier generator: prefix-1, prefix-2, ...
func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	interventions *mockInterventions
	assignments   *mockAssignments
	users         *mockUsers
	teams         *mockTeams
	buildings     *mockBuildings
	lots          *mockLots
	contacts      *mockContacts
	publisher     *mockPublisher
	invitations   *mockInvitations

	userSvc         *app.UserService
	teamSvc         *app.TeamService
	buildingSvc     *app.BuildingService
	lotSvc          *app.LotService
	contactSvc      *app.ContactService
	interventionSvc *app.InterventionService
	composite       *app.CompositeService
}

func newFixture() *fixture {
	f := &fixture{
		interventions: newMockInterventions(),
		assignments:   newMockAssignments(),
		users:         newMockUsers(),
		teams:         newMockTeams(),
		buildings:     newMockBuildings(),
		lots:          newMockLots(),
		contacts:      newMockContacts(),
		publisher:     &mockPublisher{},
		invitations:   &mockInvitations{},
	}
	opts := func(prefix string) []app.Option {
		return []app.Option{app.WithClock(clock), app.WithIDGenerator(sequence(prefix))}
	}

	f.userSvc = app.NewUserService(f.users, opts("user")...)
	f.teamSvc = app.NewTeamService(f.teams, f.users, opts("team")...)
	f.buildingSvc = app.NewBuildingService(f.buildings, f.teams, opts("building")...)
	f.lotSvc = app.NewLotService(f.lots, f.buildings, opts("lot")...)
	f.contactSvc = app.NewContactService(f.contacts, f.users, opts("contact")...)
	f.interventionSvc = app.NewInterventionService(app.InterventionDeps{
		Interventions: f.interventions,
		Assignments:   f.assignments,
		Lots:          f.lots,
		Buildings:     f.buildings,
		Users:         f.users,
		Contacts:      f.contacts,
		Publisher:     f.publisher,
		Validator:     tableValidator{},
	}, opts("iv")...)
	f.composite = app.NewCompositeService(app.CompositeDeps{
		Users:         f.userSvc,
		Teams:         f.teamSvc,
		Buildings:     f.buildingSvc,
		Lots:          f.lotSvc,
		Contacts:      f.contactSvc,
		Interventions: f.interventionSvc,
		Invitations:   f.invitations,
	}, opts("op")...)
	return f
}

// seedProperty stores a team, a building, a lot, a manager, a tenant and a provider.
func (f *fixture) seedProperty() {
	f.teams.items["T1"] = domain.Team{ID: "T1", Name: "Agence Centre"}
	f.buildings.put(domain.Building{ID: "B1", TeamID: "T1", Name: "Les Tilleuls", Address: "3 rue des Lilas"})
	f.lots.put(domain.Lot{ID: "L1", BuildingID: "B1", Reference: "A-101", Category: domain.LotApartment, TenantID: "tenant-1"})
	f.users.put(domain.User{ID: "manager-1", Email: "manager@example.com", Name: "Manon", Role: domain.RoleManager, TeamID: "T1"})
	f.users.put(domain.User{ID: "tenant-1", Email: "tenant@example.com", Name: "Théo", Role: domain.RoleTenant, TeamID: "T1"})
	f.users.put(domain.User{ID: "tenant-2", Email: "tenant2@example.com", Name: "Inès", Role: domain.RoleTenant, TeamID: "T1"})
	f.users.put(domain.User{ID: "provider-1", Email: "plombier@example.com", Name: "Paul", Role: domain.RoleProvider})
}

var (
	manager  = domain.Actor{ID: "manager-1", Role: domain.RoleManager}
	tenant   = domain.Actor{ID: "tenant-1", Role: domain.RoleTenant}
	stranger = domain.Actor{ID: "tenant-2", Role: domain.RoleTenant}
	provider = domain.Actor{ID: "provider-1", Role: domain.RoleProvider}
)
