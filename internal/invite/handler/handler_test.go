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

	"github.com/go-chi/chi/v5"

	inviteservice "hackgate/internal/invite/service"
	inviteStore "hackgate/internal/invite/store"
	"hackgate/internal/profile"
	registrymodels "hackgate/internal/registry/models"
	registryservice "hackgate/internal/registry/service"
	teamStore "hackgate/internal/registry/store/team"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/keylock"
	"hackgate/pkg/requestcontext"
)

type inviteFixture struct {
	router   chi.Router
	profiles *profile.InMemoryStore
	registry *registryservice.Service
}

func newInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()
	profiles := profile.NewInMemoryStore()
	tokens := inviteStore.NewInMemoryStore()
	registry := registryservice.New(teamStore.NewInMemoryStore(), profiles,
		registryservice.WithInviteRevoker(tokens))
	svc := inviteservice.New(tokens, registry, keylock.New())
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	r := chi.NewRouter()
	h.Register(r)
	return &inviteFixture{router: r, profiles: profiles, registry: registry}
}

func (f *inviteFixture) createTeam(t *testing.T, leaderID id.UserID) string {
	t.Helper()
	team, err := f.registry.CreateTeam(context.Background(), "bitcrushers",
		registrymodels.MemberRef{UserID: leaderID, Name: "asha", Email: "asha@example.edu", Gender: id.GenderFemale})
	if err != nil {
		t.Fatalf("failed to create team: %v", err)
	}
	return team.ID.String()
}

func (f *inviteFixture) seedUser(name string) id.UserID {
	userID := id.NewUserID()
	f.profiles.Seed(profile.Profile{
		ID:        userID,
		Name:      name,
		Email:     name + "@example.edu",
		Gender:    id.GenderMale,
		Institute: "IIT Indore",
	})
	return userID
}

func asUser(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

func joinBody(token, name string) []byte {
	body, _ := json.Marshal(map[string]any{
		"token": token,
		"member": map[string]string{
			"name":   name,
			"email":  name + "@example.edu",
			"gender": "M",
		},
	})
	return body
}

func TestIssueAndJoinViaHandlers(t *testing.T) {
	f := newInviteFixture(t)
	leaderID := f.seedUser("asha")
	joinerID := f.seedUser("ravi")

	team := f.createTeam(t, leaderID)

	issueReq := asUser(httptest.NewRequest(http.MethodPost, "/teams/"+team+"/invites", nil), leaderID)
	issueRec := httptest.NewRecorder()
	f.router.ServeHTTP(issueRec, issueReq)
	if issueRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 issuing invite, got %d: %s", issueRec.Code, issueRec.Body.String())
	}

	var issued struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(issueRec.Body).Decode(&issued); err != nil {
		t.Fatalf("failed to decode issue response: %v", err)
	}
	if issued.Token == "" {
		t.Fatalf("expected raw token in response")
	}

	joinReq := asUser(httptest.NewRequest(http.MethodPost, "/join", bytes.NewReader(joinBody(issued.Token, "ravi"))), joinerID)
	joinRec := httptest.NewRecorder()
	f.router.ServeHTTP(joinRec, joinReq)
	if joinRec.Code != http.StatusOK {
		t.Fatalf("expected 200 joining, got %d: %s", joinRec.Code, joinRec.Body.String())
	}

	var joined struct {
		Members []struct {
			UserID string `json:"user_id"`
		} `json:"members"`
	}
	if err := json.NewDecoder(joinRec.Body).Decode(&joined); err != nil {
		t.Fatalf("failed to decode join response: %v", err)
	}
	if len(joined.Members) != 2 {
		t.Fatalf("expected 2 roster members after join, got %d", len(joined.Members))
	}

	// The token is spent: a second join must lose.
	again := f.seedUser("mira")
	retryReq := asUser(httptest.NewRequest(http.MethodPost, "/join", bytes.NewReader(joinBody(issued.Token, "mira"))), again)
	retryRec := httptest.NewRecorder()
	f.router.ServeHTTP(retryRec, retryReq)
	if retryRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for spent token, got %d", retryRec.Code)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(retryRec.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if errResp.Error != "token_already_used" {
		t.Fatalf("expected token_already_used, got %q", errResp.Error)
	}
}

func TestIssueForbiddenForNonLeader(t *testing.T) {
	f := newInviteFixture(t)
	leaderID := f.seedUser("asha")
	outsiderID := f.seedUser("ravi")
	team := f.createTeam(t, leaderID)

	req := asUser(httptest.NewRequest(http.MethodPost, "/teams/"+team+"/invites", nil), outsiderID)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-leader issuance, got %d", rec.Code)
	}
}

func TestJoinWithGarbageToken(t *testing.T) {
	f := newInviteFixture(t)
	joinerID := f.seedUser("ravi")

	req := asUser(httptest.NewRequest(http.MethodPost, "/join", bytes.NewReader(joinBody("not-a-real-token", "ravi"))), joinerID)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for garbage token, got %d", rec.Code)
	}
}
