package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hackgate/internal/eligibility"
	"hackgate/internal/profile"
	"hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/httputil"
	"hackgate/pkg/platform/sentinel"
)

// TeamSource provides the team snapshot the evaluator runs against.
type TeamSource interface {
	GetTeam(ctx context.Context, teamID id.TeamID) (*models.Team, error)
}

// Handler serves the registration report for a team.
type Handler struct {
	teams    TeamSource
	profiles profile.Store
	logger   *slog.Logger
}

// New constructs an eligibility handler.
func New(teams TeamSource, profiles profile.Store, logger *slog.Logger) *Handler {
	return &Handler{
		teams:    teams,
		profiles: profiles,
		logger:   logger,
	}
}

// Register mounts the eligibility endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/teams/{teamID}/eligibility", h.HandleReport)
}

// HandleReport handles GET /teams/{teamID}/eligibility requests.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	team, err := h.teams.GetTeam(ctx, teamID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profiles := make(map[id.UserID]profile.Profile, team.RosterSize())
	for _, userID := range team.MemberIDs() {
		p, err := h.profiles.GetProfile(ctx, userID)
		if err != nil {
			// Dangling roster references do not count toward the predicates.
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "profile lookup failed"))
			return
		}
		profiles[userID] = p
	}

	report := eligibility.Evaluate(team, profiles)
	h.logger.DebugContext(ctx, "eligibility evaluated",
		"team_id", teamID,
		"registered", report.Registered,
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}
