package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hackgate/internal/registry/metrics"
	"hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/httputil"
	"hackgate/pkg/requestcontext"
)

// Service defines the interface for team registry operations.
type Service interface {
	CreateTeam(ctx context.Context, name string, leader models.MemberRef) (*models.Team, error)
	GetTeam(ctx context.Context, teamID id.TeamID) (*models.Team, error)
	GetTeamByMember(ctx context.Context, userID id.UserID) (*models.Team, error)
	ListByInstitute(ctx context.Context, institute string) ([]*models.Team, error)
	RemoveMember(ctx context.Context, teamID id.TeamID, userID id.UserID) (*models.Team, error)
	DeleteTeam(ctx context.Context, teamID id.TeamID) error
	SetProblemStatement(ctx context.Context, teamID id.TeamID, problemID id.ProblemID, category id.Category) (*models.Team, error)
	Rename(ctx context.Context, teamID id.TeamID, name string) (*models.Team, error)
}

// Handler wires team registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a registry handler with its dependencies.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/teams", h.HandleCreateTeam)
	r.Get("/teams", h.HandleListByInstitute)
	r.Get("/teams/mine", h.HandleGetMyTeam)
	r.Get("/teams/{teamID}", h.HandleGetTeam)
	r.Patch("/teams/{teamID}", h.HandleRename)
	r.Delete("/teams/{teamID}", h.HandleDeleteTeam)
	r.Put("/teams/{teamID}/problem-statement", h.HandleSetProblemStatement)
	r.Delete("/teams/{teamID}/members/{userID}", h.HandleRemoveMember)
}

// HandleCreateTeam handles POST /teams requests. The authenticated user
// becomes the team leader.
func (h *Handler) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeValid[CreateTeamRequest](w, r, h.logger)
	if !ok {
		return
	}

	team, err := h.service.CreateTeam(ctx, req.Name, req.Leader.MemberRef(userID))
	if err != nil {
		h.logger.ErrorContext(ctx, "team creation failed",
			"request_id", requestID,
			"user_id", userID,
			"team_name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "team created",
		"request_id", requestID,
		"team_id", team.ID,
		"leader_id", userID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, team)
}

// HandleGetTeam handles GET /teams/{teamID} requests.
func (h *Handler) HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	team, err := h.service.GetTeam(ctx, teamID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleGetMyTeam handles GET /teams/mine requests, resolving the team from
// the authenticated user's membership.
func (h *Handler) HandleGetMyTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	team, err := h.service.GetTeamByMember(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleListByInstitute handles GET /teams?institute= requests.
func (h *Handler) HandleListByInstitute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	institute := r.URL.Query().Get("institute")
	if institute == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "institute query parameter is required"))
		return
	}

	teams, err := h.service.ListByInstitute(ctx, institute)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, teams)
}

// HandleRename handles PATCH /teams/{teamID} requests.
func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	req, ok := httputil.DecodeValid[RenameTeamRequest](w, r, h.logger)
	if !ok {
		return
	}

	team, err := h.service.Rename(ctx, teamID, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "team renamed",
		"request_id", requestID,
		"team_id", teamID,
	)
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleDeleteTeam handles DELETE /teams/{teamID} requests.
func (h *Handler) HandleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	if err := h.service.DeleteTeam(ctx, teamID); err != nil {
		h.logger.ErrorContext(ctx, "team deletion failed",
			"request_id", requestID,
			"team_id", teamID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "team deleted",
		"request_id", requestID,
		"team_id", teamID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetProblemStatement handles PUT /teams/{teamID}/problem-statement.
func (h *Handler) HandleSetProblemStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	req, ok := httputil.DecodeValid[ProblemStatementRequest](w, r, h.logger)
	if !ok {
		return
	}

	team, err := h.service.SetProblemStatement(ctx, teamID, req.ParsedProblemID(), req.ParsedCategory())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "problem statement set",
		"request_id", requestID,
		"team_id", teamID,
		"category", team.Category,
	)
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleRemoveMember handles DELETE /teams/{teamID}/members/{userID}.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	team, err := h.service.RemoveMember(ctx, teamID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "member removed",
		"request_id", requestID,
		"team_id", teamID,
		"user_id", userID,
		"roster_size", team.RosterSize(),
	)
	httputil.WriteJSON(w, http.StatusOK, team)
}
