package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/httputil"
	"hackgate/pkg/requestcontext"
)

// Service defines the interface for selection recording.
type Service interface {
	SetSelectionStatus(ctx context.Context, teamID id.TeamID, status id.SelectionStatus) (*registrymodels.Team, error)
	GetSelection(ctx context.Context, teamID id.TeamID) (id.SelectionStatus, error)
}

// Handler wires selection endpoints to the selection service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a selection handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts selection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/teams/{teamID}/selection", h.HandleSetStatus)
	r.Get("/teams/{teamID}/selection", h.HandleGetStatus)
}

// SetStatusRequest is the HTTP request body for POST /teams/{teamID}/selection.
type SetStatusRequest struct {
	Status string `json:"status"`

	parsedStatus id.SelectionStatus
}

// Validate validates and parses the request.
func (r *SetStatusRequest) Validate() error {
	status, err := id.ParseSelectionStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// SelectionResponse reports a team's recorded selection outcome.
type SelectionResponse struct {
	TeamID string `json:"team_id"`
	Status string `json:"status"`
}

// HandleSetStatus handles POST /teams/{teamID}/selection requests. The date
// gate and admin check live in the service.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	req, ok := httputil.DecodeValid[SetStatusRequest](w, r, h.logger)
	if !ok {
		return
	}

	team, err := h.service.SetSelectionStatus(ctx, teamID, req.parsedStatus)
	if err != nil {
		h.logger.WarnContext(ctx, "selection update rejected",
			"request_id", requestID,
			"team_id", teamID,
			"status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "selection recorded",
		"request_id", requestID,
		"team_id", teamID,
		"status", team.SelectionStatus,
	)
	httputil.WriteJSON(w, http.StatusOK, SelectionResponse{
		TeamID: team.ID.String(),
		Status: string(team.SelectionStatus),
	})
}

// HandleGetStatus handles GET /teams/{teamID}/selection requests.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	status, err := h.service.GetSelection(ctx, teamID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SelectionResponse{
		TeamID: teamID.String(),
		Status: string(status),
	})
}
