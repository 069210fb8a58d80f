package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"hackgate/internal/profile"
	registrymodels "hackgate/internal/registry/models"
	registryservice "hackgate/internal/registry/service"
	teamStore "hackgate/internal/registry/store/team"
	"hackgate/internal/selection/service"
	id "hackgate/pkg/domain"
	"hackgate/pkg/requestcontext"
)

var selectionOpens = time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

func newSelectionFixture(t *testing.T) (chi.Router, *teamStore.InMemoryStore) {
	t.Helper()
	teams := teamStore.NewInMemoryStore()
	registry := registryservice.New(teams, profile.NewInMemoryStore())
	svc := service.New(registry, selectionOpens)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	h.Register(r)
	return r, teams
}

// seedNominatedTeam stores a team already past the nomination gate.
func seedNominatedTeam(t *testing.T, teams *teamStore.InMemoryStore) id.TeamID {
	t.Helper()
	now := selectionOpens.Add(-30 * 24 * time.Hour)
	leader := registrymodels.MemberRef{UserID: id.NewUserID(), Name: "asha", Email: "asha@example.edu", Gender: id.GenderFemale}
	team, err := registrymodels.NewTeam(id.NewTeamID(), "alpha", "IIT Indore", leader, now)
	if err != nil {
		t.Fatalf("failed to build team: %v", err)
	}
	if err := team.SetProblemStatement(id.NewProblemID(), id.CategorySoftware, now); err != nil {
		t.Fatalf("failed to set problem statement: %v", err)
	}
	team.MarkNominated(now)
	if err := teams.Create(context.Background(), team); err != nil {
		t.Fatalf("failed to store team: %v", err)
	}
	return team.ID
}

func adminAt(req *http.Request, at time.Time) *http.Request {
	ctx := requestcontext.WithRole(req.Context(), requestcontext.RoleAdmin)
	ctx = requestcontext.WithTime(ctx, at)
	return req.WithContext(ctx)
}

func statusBody(status string) []byte {
	body, _ := json.Marshal(map[string]string{"status": status})
	return body
}

func TestSetSelectionViaHandler(t *testing.T) {
	router, teams := newSelectionFixture(t)
	teamID := seedNominatedTeam(t, teams)

	req := adminAt(httptest.NewRequest(http.MethodPost, "/teams/"+teamID.String()+"/selection", bytes.NewReader(statusBody("university"))), selectionOpens.Add(time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 recording selection, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SelectionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "university" {
		t.Fatalf("expected university status, got %q", resp.Status)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/teams/"+teamID.String()+"/selection", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 reading selection, got %d", getRec.Code)
	}
}

func TestSelectionLockedBeforeOpening(t *testing.T) {
	router, teams := newSelectionFixture(t)
	teamID := seedNominatedTeam(t, teams)

	req := adminAt(httptest.NewRequest(http.MethodPost, "/teams/"+teamID.String()+"/selection", bytes.NewReader(statusBody("university"))), selectionOpens.Add(-time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before the selection window opens, got %d", rec.Code)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if errResp.Error != "selection_locked" {
		t.Fatalf("expected selection_locked, got %q", errResp.Error)
	}
}

func TestSelectionRejectsUnknownStatus(t *testing.T) {
	router, teams := newSelectionFixture(t)
	teamID := seedNominatedTeam(t, teams)

	req := adminAt(httptest.NewRequest(http.MethodPost, "/teams/"+teamID.String()+"/selection", bytes.NewReader(statusBody("galactic"))), selectionOpens.Add(time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestSelectionForbiddenForNonAdmin(t *testing.T) {
	router, teams := newSelectionFixture(t)
	teamID := seedNominatedTeam(t, teams)

	req := httptest.NewRequest(http.MethodPost, "/teams/"+teamID.String()+"/selection", bytes.NewReader(statusBody("university")))
	ctx := requestcontext.WithRole(req.Context(), requestcontext.RoleSPOC)
	ctx = requestcontext.WithTime(ctx, selectionOpens.Add(time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for SPOC selection write, got %d", rec.Code)
	}
}
