package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hackgate/internal/invite/metrics"
	"hackgate/internal/invite/models"
	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/httputil"
	"hackgate/pkg/requestcontext"
)

// Service defines the interface for invite token operations.
type Service interface {
	Issue(ctx context.Context, teamID id.TeamID) (string, error)
	ConsumeAndJoin(ctx context.Context, rawToken string, member registrymodels.MemberRef) (*registrymodels.Team, error)
	Revoke(ctx context.Context, inviteID id.InviteID) error
	ListByTeam(ctx context.Context, teamID id.TeamID) ([]*models.Token, error)
}

// Handler wires invite endpoints to the invite service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs an invite handler with its dependencies.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts invite endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/teams/{teamID}/invites", h.HandleIssue)
	r.Get("/teams/{teamID}/invites", h.HandleList)
	r.Post("/join", h.HandleJoin)
	r.Delete("/invites/{inviteID}", h.HandleRevoke)
}

// HandleIssue handles POST /teams/{teamID}/invites requests. Only the team
// leader may issue; the raw token appears in this response and nowhere else.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	token, err := h.service.Issue(ctx, teamID)
	if err != nil {
		h.logger.ErrorContext(ctx, "invite issue failed",
			"request_id", requestID,
			"team_id", teamID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "invite issued",
		"request_id", requestID,
		"team_id", teamID,
		"issuer_id", userID,
	)
	httputil.WriteJSON(w, http.StatusCreated, IssueResponse{Token: token})
}

// HandleJoin handles POST /join requests, consuming an invite token and
// adding the authenticated user to its team in one step.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeValid[JoinRequest](w, r, h.logger)
	if !ok {
		return
	}

	team, err := h.service.ConsumeAndJoin(ctx, req.Token, req.Member.MemberRef(userID))
	if err != nil {
		h.logger.WarnContext(ctx, "join failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "member joined via invite",
		"request_id", requestID,
		"team_id", team.ID,
		"user_id", userID,
		"roster_size", team.RosterSize(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleList handles GET /teams/{teamID}/invites requests. Hashes only; raw
// secrets are not recoverable after issuance.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	tokens, err := h.service.ListByTeam(ctx, teamID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTokens(tokens))
}

// HandleRevoke handles DELETE /invites/{inviteID} requests.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	inviteID, err := id.ParseInviteID(chi.URLParam(r, "inviteID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid invite id"))
		return
	}

	if err := h.service.Revoke(ctx, inviteID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "invite revoked",
		"request_id", requestID,
		"invite_id", inviteID,
	)
	w.WriteHeader(http.StatusNoContent)
}
