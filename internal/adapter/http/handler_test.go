package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/neomorfeo/propertiq/internal/adapter/fsm"
	adapter "github.com/neomorfeo/propertiq/internal/adapter/http"
	"github.com/neomorfeo/propertiq/internal/adapter/sqlite"
	"github.com/neomorfeo/propertiq/internal/app"
	"github.com/neomorfeo/propertiq/internal/domain"
)

// noopPublisher is a no-op EventPublisher for tests.
type noopPublisher struct{}

func (p *noopPublisher) Publish(_ context.Context, _ domain.Event, _ domain.Intervention) error {
	return nil
}

// noopSender is a no-op InvitationSender for tests.
type noopSender struct{}

func (s *noopSender) SendInvitation(_ context.Context, _ domain.Invitation) error {
	return nil
}

type actorHeaders struct {
	id   string
	role domain.Role
}

var (
	asManager  = actorHeaders{"manager-1", domain.RoleManager}
	asTenant   = actorHeaders{"tenant-1", domain.RoleTenant}
	asProvider = actorHeaders{"provider-1", domain.RoleProvider}
	anonymous  = actorHeaders{}
)

// newTestServer creates a full-stack httptest.Server with SQLite in-memory
// and a seeded team, building and lot.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	seed(t, store)

	interventions := app.NewInterventionService(app.InterventionDeps{
		Interventions: store.Interventions(),
		Assignments:   store.Assignments(),
		Lots:          store.Lots(),
		Buildings:     store.Buildings(),
		Users:         store.Users(),
		Contacts:      store.Contacts(),
		Publisher:     &noopPublisher{},
		Validator:     fsm.New(),
	})
	composite := app.NewCompositeService(app.CompositeDeps{
		Users:         app.NewUserService(store.Users()),
		Teams:         app.NewTeamService(store.Teams(), store.Users()),
		Buildings:     app.NewBuildingService(store.Buildings(), store.Teams()),
		Lots:          app.NewLotService(store.Lots(), store.Buildings()),
		Contacts:      app.NewContactService(store.Contacts(), store.Users()),
		Interventions: interventions,
		Invitations:   &noopSender{},
	})

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("propertiq", "0.1.0"))
	adapter.Register(api, interventions)
	adapter.RegisterProperties(api, composite)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	steps := []error{
		store.Teams().Create(ctx, domain.Team{ID: "T1", Name: "Agence Centre", CreatedAt: now, UpdatedAt: now}),
		store.Users().Create(ctx, domain.User{ID: "manager-1", Email: "m@example.com", Name: "Marc", Role: domain.RoleManager, TeamID: "T1", CreatedAt: now, UpdatedAt: now}),
		store.Users().Create(ctx, domain.User{ID: "tenant-1", Email: "t@example.com", Name: "Toni", Role: domain.RoleTenant, TeamID: "T1", CreatedAt: now, UpdatedAt: now}),
		store.Users().Create(ctx, domain.User{ID: "tenant-2", Email: "t2@example.com", Name: "Tara", Role: domain.RoleTenant, TeamID: "T1", CreatedAt: now, UpdatedAt: now}),
		store.Users().Create(ctx, domain.User{ID: "provider-1", Email: "p@example.com", Name: "Paul", Role: domain.RoleProvider, CreatedAt: now, UpdatedAt: now}),
		store.Buildings().Create(ctx, domain.Building{ID: "B1", TeamID: "T1", Name: "Les Tilleuls", Address: "3 rue des Lilas", CreatedAt: now, UpdatedAt: now}),
		store.Lots().Create(ctx, domain.Lot{ID: "L1", BuildingID: "B1", Reference: "A-101", Category: domain.LotApartment, TenantID: "tenant-1", CreatedAt: now, UpdatedAt: now}),
	}
	for _, err := range steps {
		if err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, body string, as actorHeaders) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if as.id != "" {
		req.Header.Set("X-User-ID", as.id)
		req.Header.Set("X-User-Role", string(as.role))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

// mustCreateIntervention creates an intervention on L1 as the tenant.
func mustCreateIntervention(t *testing.T, srv *httptest.Server, body string) adapter.InterventionResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions", body, asTenant)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create intervention: status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	return decode[adapter.InterventionResponse](t, resp)
}

// mustAct runs a workflow action and returns the updated intervention.
func mustAct(t *testing.T, srv *httptest.Server, id, action, body string, as actorHeaders) adapter.InterventionResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+id+"/actions/"+action, body, as)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s: status = %d, want %d: %s", action, resp.StatusCode, http.StatusOK, raw)
	}
	return decode[adapter.InterventionResponse](t, resp)
}

func act(t *testing.T, srv *httptest.Server, id, action, body string, as actorHeaders) int {
	t.Helper()
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions/"+id+"/actions/"+action, body, as)
	resp.Body.Close()
	return resp.StatusCode
}

const leakBody = `{"lot_id":"L1","title":"Fuite sous l'évier","priority":"high"}`

// --- Create ---

func TestCreateIntervention(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, leakBody)

	if iv.ID == "" {
		t.Error("ID should not be empty")
	}
	if iv.Status != "pending" {
		t.Errorf("Status = %q, want %q", iv.Status, "pending")
	}
	if iv.BuildingID != "B1" || iv.TeamID != "T1" {
		t.Errorf("BuildingID/TeamID = %q/%q, want B1/T1", iv.BuildingID, iv.TeamID)
	}
	if iv.RequestedBy != "tenant-1" {
		t.Errorf("RequestedBy = %q, want tenant-1", iv.RequestedBy)
	}
	if iv.Priority != "high" {
		t.Errorf("Priority = %q, want high", iv.Priority)
	}
}

func TestCreateIntervention_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		as   actorHeaders
		want int
	}{
		{"missing title", `{"lot_id":"L1"}`, asTenant, http.StatusUnprocessableEntity},
		{"bad priority", `{"lot_id":"L1","title":"x","priority":"whenever"}`, asTenant, http.StatusUnprocessableEntity},
		{"unknown lot", `{"lot_id":"L9","title":"x"}`, asTenant, http.StatusNotFound},
		{"provider may not create", leakBody, asProvider, http.StatusForbidden},
		{"missing actor headers", leakBody, anonymous, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/interventions", tt.body, tt.as)
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

// --- Get / List ---

func TestGetIntervention(t *testing.T) {
	srv := newTestServer(t)
	created := mustCreateIntervention(t, srv, leakBody)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions/"+created.ID, "", anonymous)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	got := decode[adapter.InterventionResponse](t, resp)
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
}

func TestGetIntervention_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions/nonexistent", "", anonymous)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestListInterventions_FilterByStatus(t *testing.T) {
	srv := newTestServer(t)
	first := mustCreateIntervention(t, srv, leakBody)
	mustCreateIntervention(t, srv, `{"lot_id":"L1","title":"Volet bloqué"}`)

	mustAct(t, srv, first.ID, "approve", "", asManager)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions?status=approved", "", anonymous)
	defer resp.Body.Close()

	list := decode[[]adapter.InterventionResponse](t, resp)
	if len(list) != 1 {
		t.Fatalf("got %d interventions, want 1", len(list))
	}
	if list[0].ID != first.ID {
		t.Errorf("ID = %q, want %q", list[0].ID, first.ID)
	}
}

// --- Workflow ---

func TestWorkflow_FullLifecycle(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, leakBody)

	iv = mustAct(t, srv, iv.ID, "approve", `{"comment":"OK pour intervention"}`, asManager)
	if iv.Status != "approved" {
		t.Fatalf("after approve: Status = %q", iv.Status)
	}

	iv = mustAct(t, srv, iv.ID, "request_scheduling", "", asManager)
	iv = mustAct(t, srv, iv.ID, "assign_provider", `{"provider_id":"provider-1"}`, asManager)
	if len(iv.Assignments) != 1 || iv.Assignments[0].UserID != "provider-1" {
		t.Fatalf("assignments = %+v", iv.Assignments)
	}

	iv = mustAct(t, srv, iv.ID, "schedule", `{"scheduled_date":"2026-04-01T09:00:00Z"}`, asProvider)
	if iv.Status != "scheduled" || iv.ScheduledDate != "2026-04-01T09:00:00Z" {
		t.Fatalf("after schedule: Status = %q, ScheduledDate = %q", iv.Status, iv.ScheduledDate)
	}

	iv = mustAct(t, srv, iv.ID, "start", "", asProvider)
	iv = mustAct(t, srv, iv.ID, "complete", `{"actual_duration":90,"report":"Joint remplacé"}`, asProvider)
	if iv.Status != "completed" || iv.CompletedDate == "" || iv.ActualDuration != 90 {
		t.Fatalf("after complete: %+v", iv)
	}

	iv = mustAct(t, srv, iv.ID, "finalize", `{"final_amount":180.5}`, asManager)
	if iv.FinalAmount == nil || *iv.FinalAmount != 180.5 {
		t.Errorf("FinalAmount = %v, want 180.5", iv.FinalAmount)
	}
	if iv.Status != "completed" {
		t.Errorf("Status = %q, want completed", iv.Status)
	}
	for _, tag := range []string{"[Approbation par manager]", "[Rapport par provider]"} {
		if !strings.Contains(iv.Notes, tag) {
			t.Errorf("notes missing %q: %q", tag, iv.Notes)
		}
	}
}

func TestWorkflow_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		action string
		body   string
		as     actorHeaders
		want   int
	}{
		{"tenant cannot approve", "approve", "", asTenant, http.StatusForbidden},
		{"unassigned provider cannot start", "start", "", asProvider, http.StatusForbidden},
		{"close from pending", "close", "", asManager, http.StatusUnprocessableEntity},
		{"reject without reason", "reject", "", asManager, http.StatusUnprocessableEntity},
		{"finalize without amount", "finalize", "", asManager, http.StatusUnprocessableEntity},
		{"unknown action", "teleport", "", asManager, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			iv := mustCreateIntervention(t, srv, leakBody)

			if got := act(t, srv, iv.ID, tt.action, tt.body, tt.as); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWorkflow_UnknownIntervention(t *testing.T) {
	srv := newTestServer(t)

	if got := act(t, srv, "nonexistent", "approve", "", asManager); got != http.StatusNotFound {
		t.Errorf("status = %d, want %d", got, http.StatusNotFound)
	}
}

func TestUpdateIntervention_StatusGoesThroughWorkflow(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, leakBody)

	resp := doRequest(t, http.MethodPatch, srv.URL+"/api/v1/interventions/"+iv.ID, `{"status":"approved","notes":"vu avec le syndic"}`, asManager)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	got := decode[adapter.InterventionResponse](t, resp)
	if got.Status != "approved" {
		t.Errorf("Status = %q, want approved", got.Status)
	}
	if !strings.Contains(got.Notes, "vu avec le syndic") {
		t.Errorf("Notes = %q", got.Notes)
	}

	resp2 := doRequest(t, http.MethodPatch, srv.URL+"/api/v1/interventions/"+iv.ID, `{"status":"completed"}`, asManager)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("skipping states: status = %d, want %d", resp2.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestUpdateIntervention_StatusNeedsStepParameters(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, leakBody)
	url := srv.URL + "/api/v1/interventions/" + iv.ID

	resp := doRequest(t, http.MethodPatch, url, `{"status":"cancelled"}`, asManager)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("cancel without reason: status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	resp = doRequest(t, http.MethodPatch, url, `{"status":"approved"}`, asManager)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPatch, url, `{"status":"scheduled"}`, asManager)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("schedule without date: status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	resp = doRequest(t, http.MethodPatch, url, `{"status":"scheduled","scheduled_date":"2026-04-01T09:00:00Z"}`, asManager)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("schedule: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	got := decode[adapter.InterventionResponse](t, resp)
	if got.Status != "scheduled" || got.ScheduledDate != "2026-04-01T09:00:00Z" {
		t.Errorf("Status/ScheduledDate = %q/%q", got.Status, got.ScheduledDate)
	}

	resp2 := doRequest(t, http.MethodPatch, url, `{"status":"cancelled","reason":"locataire absent"}`, asManager)
	defer resp2.Body.Close()
	got = decode[adapter.InterventionResponse](t, resp2)
	if got.Status != "cancelled" || !strings.Contains(got.Notes, "[Annulation par manager] locataire absent") {
		t.Errorf("Status/Notes = %q/%q", got.Status, got.Notes)
	}
}

// --- Delete ---

func TestDeleteIntervention(t *testing.T) {
	srv := newTestServer(t)
	iv := mustCreateIntervention(t, srv, leakBody)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/interventions/"+iv.ID, "", asTenant)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("tenant delete: status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/interventions/"+iv.ID, "", asManager)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("manager delete: status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/interventions/"+iv.ID, "", anonymous)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete: status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
