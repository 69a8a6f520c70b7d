package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"lfpappeals/web/internal/apiclient"
	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/appealstore"
)

type memoryStore struct {
	mu        sync.Mutex
	appeals   map[string]appeal.Appeal
	companies map[string]string
	penalties map[string]appeal.PenaltyList
	pingErr   error
	failWith  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		appeals:   map[string]appeal.Appeal{},
		companies: map[string]string{"SC000123": "Acme Ltd"},
		penalties: map[string]appeal.PenaltyList{
			"SC000123": {TotalResults: 1, Items: []appeal.Penalty{{ID: "A1234567", Type: "penalty", OriginalAmount: 150}}},
		},
	}
}

func (m *memoryStore) CreateAppeal(_ context.Context, a appeal.Appeal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", m.failWith
	}
	for _, existing := range m.appeals {
		if existing.PenaltyIdentifier.CompanyNumber == a.PenaltyIdentifier.CompanyNumber &&
			existing.PenaltyIdentifier.PenaltyReference == a.PenaltyIdentifier.PenaltyReference {
			return "", appealstore.ErrDuplicate
		}
	}
	a.ID = "appeal-" + a.PenaltyIdentifier.PenaltyReference
	m.appeals[a.ID] = a
	return a.ID, nil
}

func (m *memoryStore) FindAppeal(_ context.Context, companyNumber, penaltyReference string) (appeal.Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appeals {
		if a.PenaltyIdentifier.CompanyNumber == companyNumber && a.PenaltyIdentifier.PenaltyReference == penaltyReference {
			return a, nil
		}
	}
	return appeal.Appeal{}, appealstore.ErrNotFound
}

func (m *memoryStore) GetAppeal(_ context.Context, companyNumber, id string) (appeal.Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appeals[id]
	if !ok || a.PenaltyIdentifier.CompanyNumber != companyNumber {
		return appeal.Appeal{}, appealstore.ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) LatePenalties(_ context.Context, companyNumber string) (appeal.PenaltyList, error) {
	list, ok := m.penalties[companyNumber]
	if !ok {
		return appeal.PenaltyList{}, appealstore.ErrNotFound
	}
	return list, nil
}

func (m *memoryStore) CompanyName(_ context.Context, companyNumber string) (string, error) {
	name, ok := m.companies[companyNumber]
	if !ok {
		return "", appealstore.ErrNotFound
	}
	return name, nil
}

func (m *memoryStore) Ping(context.Context) error { return m.pingErr }

func newTestServer(t *testing.T, store *memoryStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(store, "tok").Routes())
	t.Cleanup(srv.Close)
	return srv
}

func otherAppeal() appeal.Appeal {
	a := appeal.Appeal{
		PenaltyIdentifier: appeal.PenaltyIdentifier{CompanyNumber: "SC000123", PenaltyReference: "A1234567"},
	}.SetReason(appeal.ReasonOther)
	a.Reasons.Other.Title = "Flood"
	a.Reasons.Other.Description = "The office flooded"
	return a
}

func TestAppealsRoundTripThroughClient(t *testing.T) {
	store := newMemoryStore()
	srv := newTestServer(t, store)
	client := apiclient.NewAppealsClient(srv.URL, srv.Client())
	ctx := context.Background()

	exists, err := client.HasExistingAppeal(ctx, "tok", "SC000123", "A1234567")
	if err != nil || exists {
		t.Fatalf("HasExistingAppeal before create = %v, %v", exists, err)
	}

	id, err := client.CreateAppeal(ctx, "tok", otherAppeal())
	if err != nil {
		t.Fatalf("CreateAppeal: %v", err)
	}
	if id != "appeal-A1234567" {
		t.Fatalf("unexpected id %q", id)
	}

	exists, err = client.HasExistingAppeal(ctx, "tok", "SC000123", "A1234567")
	if err != nil || !exists {
		t.Fatalf("HasExistingAppeal after create = %v, %v", exists, err)
	}

	_, err = client.CreateAppeal(ctx, "tok", otherAppeal())
	var statusErr *apiclient.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusConflict {
		t.Fatalf("expected 409 status error, got %v", err)
	}
}

func TestPenaltiesAndProfileThroughClients(t *testing.T) {
	srv := newTestServer(t, newMemoryStore())
	ctx := context.Background()

	penalties := apiclient.NewPenaltiesClient(srv.URL, srv.Client())
	list, err := penalties.LatePenalties(ctx, "tok", "SC000123")
	if err != nil || list.TotalResults != 1 || list.Items[0].ID != "A1234567" {
		t.Fatalf("LatePenalties = %+v, %v", list, err)
	}
	list, err = penalties.LatePenalties(ctx, "tok", "00000000")
	if err != nil || len(list.Items) != 0 {
		t.Fatalf("unknown company should have no penalties, got %+v, %v", list, err)
	}

	profiles := apiclient.NewCompanyProfileClient(srv.URL, srv.Client())
	name, err := profiles.CompanyName(ctx, "tok", "SC000123")
	if err != nil || name != "Acme Ltd" {
		t.Fatalf("CompanyName = %q, %v", name, err)
	}
}

func TestRejectsMissingOrWrongToken(t *testing.T) {
	srv := newTestServer(t, newMemoryStore())
	for _, header := range []string{"", "Bearer nope", "tok"} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/company/SC000123", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.StatusCode)
		}
	}
}

func TestCreateAppealValidation(t *testing.T) {
	srv := newTestServer(t, newMemoryStore())
	cases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"bad json", "/companies/SC000123/appeals", "{", http.StatusBadRequest},
		{"path mismatch", "/companies/00000001/appeals", `{"penaltyIdentifier":{"companyNumber":"SC000123","penaltyReference":"A1234567"},"currentReasonType":"other","reasons":{"other":{"title":"x"}}}`, http.StatusUnprocessableEntity},
		{"no reference", "/companies/SC000123/appeals", `{"penaltyIdentifier":{"companyNumber":"SC000123"},"currentReasonType":"other","reasons":{"other":{"title":"x"}}}`, http.StatusUnprocessableEntity},
		{"missing reason", "/companies/SC000123/appeals", `{"penaltyIdentifier":{"companyNumber":"SC000123","penaltyReference":"A1234567"},"currentReasonType":"illness","reasons":{}}`, http.StatusUnprocessableEntity},
		{"unknown reason", "/companies/SC000123/appeals", `{"penaltyIdentifier":{"companyNumber":"SC000123","penaltyReference":"A1234567"},"currentReasonType":"weather","reasons":{}}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+tc.path, strings.NewReader(tc.body))
			req.Header.Set("Authorization", "Bearer tok")
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestGetAppealAndStoreFailures(t *testing.T) {
	store := newMemoryStore()
	srv := newTestServer(t, store)
	ctx := context.Background()
	client := apiclient.NewAppealsClient(srv.URL, srv.Client())
	if _, err := client.CreateAppeal(ctx, "tok", otherAppeal()); err != nil {
		t.Fatalf("CreateAppeal: %v", err)
	}

	get := func(path string) int {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		req.Header.Set("Authorization", "Bearer tok")
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if status := get("/companies/SC000123/appeals/appeal-A1234567"); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if status := get("/companies/00000001/appeals/appeal-A1234567"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for other company, got %d", status)
	}
	if status := get("/companies/SC000123/appeals"); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without penaltyReference, got %d", status)
	}

	store.failWith = errors.New("connection reset")
	a := otherAppeal()
	a.PenaltyIdentifier.PenaltyReference = "A7654321"
	if _, err := client.CreateAppeal(ctx, "tok", a); err == nil {
		t.Fatal("expected error when the store fails")
	}
}

func TestHealth(t *testing.T) {
	store := newMemoryStore()
	srv := newTestServer(t, store)

	resp, err := srv.Client().Get(srv.URL + "/healthcheck")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	store.pingErr = errors.New("down")
	resp, err = srv.Client().Get(srv.URL + "/healthcheck")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
