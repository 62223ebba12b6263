package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ratehive/ratehive/internal/app/award"
	"github.com/ratehive/ratehive/internal/app/badges"
	"github.com/ratehive/ratehive/internal/domain"
	"github.com/ratehive/ratehive/internal/infra/memstore"
)

func newTestServer(t *testing.T) (*Server, *memstore.Store) {
	t.Helper()
	store := memstore.New()

	coord, err := award.NewCoordinator(store, badges.NewCatalog(store, time.Hour), award.Config{})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	return NewServer(coord, store), store
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// ─── Health Check ───────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want \"ok\"", body["status"])
	}
}

// ─── POST /v1/awards ────────────────────────────────────────────────────────

func TestAPI_Award_Accepted(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "POST", "/v1/awards",
		`{"user_id":"u1","action_type":"review","reference_id":"brand-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusOK, w.Body)
	}

	var res domain.AwardResult
	json.NewDecoder(w.Body).Decode(&res)
	if !res.Accepted {
		t.Error("accepted = false, want true")
	}
	if res.NewTotalPoints != 10 {
		t.Errorf("new_total_points = %d, want 10", res.NewTotalPoints)
	}
}

func TestAPI_Award_DuplicateIsOK(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"user_id":"u1","action_type":"rating","reference_id":"brand-1"}`
	doJSON(t, srv, "POST", "/v1/awards", body)

	w := doJSON(t, srv, "POST", "/v1/awards", body)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d, want %d", w.Code, http.StatusOK)
	}

	var res domain.AwardResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.Accepted {
		t.Error("duplicate was accepted")
	}
	if res.NewTotalPoints != 5 {
		t.Errorf("new_total_points = %d, want 5", res.NewTotalPoints)
	}
}

func TestAPI_Award_UnknownAction(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "POST", "/v1/awards",
		`{"user_id":"u1","action_type":"teleport"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestAPI_Award_MissingUser(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "POST", "/v1/awards", `{"action_type":"rating"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPI_Award_StoreDownRetryable(t *testing.T) {
	srv, store := newTestServer(t)
	store.Hook = func(op string) error {
		return domain.ErrLockWaitExceeded // stand-in for any transient failure
	}

	w := doJSON(t, srv, "POST", "/v1/awards",
		`{"user_id":"u1","action_type":"comment"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header on retryable failure")
	}
}

// ─── GET /v1/users/{id} ─────────────────────────────────────────────────────

func TestAPI_UserStats(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, "POST", "/v1/awards", `{"user_id":"u1","action_type":"review","reference_id":"b1"}`)
	doJSON(t, srv, "POST", "/v1/awards", `{"user_id":"u1","action_type":"rating","reference_id":"b1"}`)

	w := doJSON(t, srv, "GET", "/v1/users/u1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats domain.UserStats
	json.NewDecoder(w.Body).Decode(&stats)
	if stats.TotalPoints != 15 {
		t.Errorf("total_points = %d, want 15", stats.TotalPoints)
	}
	if stats.TotalActions != 2 {
		t.Errorf("total_actions = %d, want 2", stats.TotalActions)
	}
}

func TestAPI_UserBadges_EmptyArray(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "GET", "/v1/users/nobody/badges", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"badges":[]`) {
		t.Errorf("body = %s, want empty badges array", w.Body)
	}
}

// ─── Badge Catalog CRUD ─────────────────────────────────────────────────────

func TestAPI_BadgeCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create with a generated id.
	w := doJSON(t, srv, "POST", "/v1/badges",
		`{"name":"Reviewer","unlock_condition":{"kind":"reviews","threshold":3}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (%s)", w.Code, http.StatusCreated, w.Body)
	}
	var created domain.Badge
	json.NewDecoder(w.Body).Decode(&created)
	if created.ID == "" {
		t.Fatal("create did not assign an id")
	}

	// Update.
	w = doJSON(t, srv, "PUT", "/v1/badges/"+created.ID,
		`{"name":"Prolific Reviewer","unlock_condition":{"kind":"reviews","threshold":10}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d (%s)", w.Code, http.StatusOK, w.Body)
	}

	// List reflects the update.
	w = doJSON(t, srv, "GET", "/v1/badges", "")
	if !strings.Contains(w.Body.String(), "Prolific Reviewer") {
		t.Errorf("list = %s, missing updated badge", w.Body)
	}

	// Delete, then a second delete 404s.
	w = doJSON(t, srv, "DELETE", "/v1/badges/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusOK)
	}
	w = doJSON(t, srv, "DELETE", "/v1/badges/"+created.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAPI_CreateBadge_InvalidCondition(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, "POST", "/v1/badges",
		`{"name":"Broken","unlock_condition":{"kind":"karma","threshold":1}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestAPI_CreateBadge_DuplicateID(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"id":"b1","name":"One","unlock_condition":{"kind":"points","threshold":1}}`
	doJSON(t, srv, "POST", "/v1/badges", body)

	w := doJSON(t, srv, "POST", "/v1/badges", body)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}
