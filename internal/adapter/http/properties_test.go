package http_test

import (
	"net/http"
	"testing"

	adapter "github.com/neomorfeo/propertiq/internal/adapter/http"
)

const propertyBody = `{
	"building": {"team_id": "T1", "name": "Le Phare", "address": "1 quai Ouest", "city": "Lyon"},
	"contacts": [{"user_id": "manager-1", "role": "manager", "is_primary": true}],
	"lots": [
		{"reference": "B-201", "category": "apartment", "tenant_id": "tenant-2"},
		{"reference": "P-01", "category": "parking"}
	],
	"lot_contacts": {"0": [{"user_id": "tenant-2", "role": "tenant"}]}
}`

func TestCreateProperty(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/properties", propertyBody, anonymous)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	got := decode[adapter.CompositeResponse[adapter.PropertyResponse]](t, resp)
	if !got.Success {
		t.Fatalf("expected success, got error %+v", got.Error)
	}
	if got.Data.Building == nil || got.Data.Building.Name != "Le Phare" {
		t.Errorf("building = %+v", got.Data.Building)
	}
	if len(got.Data.Lots) != 2 {
		t.Errorf("got %d lots, want 2", len(got.Data.Lots))
	}
	if len(got.Data.Contacts) != 1 || len(got.Data.LotContacts) != 1 {
		t.Errorf("contacts = %+v, lot contacts = %+v", got.Data.Contacts, got.Data.LotContacts)
	}
	if len(got.Operations) == 0 {
		t.Error("expected the journal in the response")
	}
}

func TestCreateProperty_RollsBackOnFailure(t *testing.T) {
	srv := newTestServer(t)

	// The second lot reuses the first lot's reference.
	body := `{
		"building": {"team_id": "T1", "name": "Le Phare", "address": "1 quai Ouest"},
		"lots": [{"reference": "B-201"}, {"reference": "B-201"}]
	}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/properties", body, anonymous)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	got := decode[adapter.CompositeResponse[adapter.PropertyResponse]](t, resp)
	if got.Success || got.Error == nil || got.Error.Code != "CONFLICT" {
		t.Fatalf("result = %+v", got)
	}
	if len(got.RollbackOperations) == 0 {
		t.Error("expected compensations to run")
	}

	// The building was removed, so the same name is free again.
	retry := doRequest(t, http.MethodPost, srv.URL+"/api/v1/properties", propertyBody, anonymous)
	defer retry.Body.Close()
	if retry.StatusCode != http.StatusCreated {
		t.Errorf("retry: status = %d, want %d", retry.StatusCode, http.StatusCreated)
	}
}

func TestCreateProperty_BadLotContactKey(t *testing.T) {
	srv := newTestServer(t)

	body := `{
		"building": {"team_id": "T1", "name": "Le Phare", "address": "1 quai Ouest"},
		"lot_contacts": {"first": [{"user_id": "tenant-2", "role": "tenant"}]}
	}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/properties", body, anonymous)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestTransferLot(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"moves the tenant", `{"from_tenant_id":"tenant-1","to_tenant_id":"tenant-2"}`, http.StatusOK},
		{"current tenant mismatch", `{"from_tenant_id":"tenant-2","to_tenant_id":"tenant-2"}`, http.StatusUnprocessableEntity},
		{"unknown new tenant", `{"from_tenant_id":"tenant-1","to_tenant_id":"ghost"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/lots/L1/transfer", tt.body, anonymous)
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			got := decode[adapter.CompositeResponse[*adapter.LotResponse]](t, resp)
			if tt.want == http.StatusOK && (got.Data == nil || got.Data.TenantID != "tenant-2") {
				t.Errorf("lot = %+v", got.Data)
			}
		})
	}
}

func TestTeamStats(t *testing.T) {
	srv := newTestServer(t)
	mustCreateIntervention(t, srv, leakBody)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/teams/T1/stats", "", anonymous)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	got := decode[adapter.CompositeResponse[adapter.TeamStatsResponse]](t, resp)
	stats := got.Data
	if stats.TeamName != "Agence Centre" {
		t.Errorf("TeamName = %q", stats.TeamName)
	}
	if stats.BuildingCount != 1 || stats.LotCount != 1 || stats.OccupiedLots != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.UserCount != 3 {
		t.Errorf("UserCount = %d, want 3", stats.UserCount)
	}
	if stats.InterventionsByStatus["pending"] != 1 {
		t.Errorf("InterventionsByStatus = %v", stats.InterventionsByStatus)
	}
}

func TestInviteTeamContacts(t *testing.T) {
	srv := newTestServer(t)

	body := `{"contacts": [
		{"email": "plombier@example.com", "name": "Plombier", "role": "provider"},
		{"email": "t@example.com", "name": "Doublon", "role": "tenant"}
	]}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/teams/T1/invitations", body, anonymous)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMultiStatus)
	}
	got := decode[adapter.CompositeResponse[adapter.InviteResponse]](t, resp)
	if !got.PartialSuccess {
		t.Error("expected partial success")
	}
	if len(got.Data.Invitations) != 1 || got.Data.Invitations[0].Email != "plombier@example.com" {
		t.Errorf("invitations = %+v", got.Data.Invitations)
	}
	if len(got.Data.Failures) != 1 || got.Data.Failures[0].Email != "t@example.com" {
		t.Errorf("failures = %+v", got.Data.Failures)
	}
}
