package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"hackgate/internal/jury/metrics"
	"hackgate/internal/jury/models"
	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/httputil"
	"hackgate/pkg/requestcontext"
)

// Service defines the interface for jury panel operations.
type Service interface {
	CreateDraft(ctx context.Context, name string, members []models.Member, coordinator *string) (*models.Panel, error)
	GetPanel(ctx context.Context, panelID id.PanelID) (*models.Panel, error)
	ListPanels(ctx context.Context) ([]*models.Panel, error)
	UpdateDraft(ctx context.Context, panelID id.PanelID, members []models.Member, coordinator *string) (*models.Panel, error)
	Finalize(ctx context.Context, panelID id.PanelID) (*models.Panel, error)
	ReplaceMember(ctx context.Context, panelID id.PanelID, index int, member models.Member) (*models.Panel, error)
	AssignTeam(ctx context.Context, panelID id.PanelID, teamID id.TeamID) (*registrymodels.Team, error)
	Delete(ctx context.Context, panelID id.PanelID) error
}

// Handler wires jury panel endpoints to the jury service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a jury handler with its dependencies.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts jury panel endpoints on the router. All panel management is
// an admin surface.
func (h *Handler) Register(r chi.Router) {
	r.Post("/panels", h.HandleCreateDraft)
	r.Get("/panels", h.HandleListPanels)
	r.Get("/panels/{panelID}", h.HandleGetPanel)
	r.Put("/panels/{panelID}", h.HandleUpdateDraft)
	r.Delete("/panels/{panelID}", h.HandleDelete)
	r.Post("/panels/{panelID}/finalize", h.HandleFinalize)
	r.Put("/panels/{panelID}/members/{index}", h.HandleReplaceMember)
	r.Post("/panels/{panelID}/assign", h.HandleAssignTeam)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, ctx context.Context) bool {
	if requestcontext.UserRole(ctx) != requestcontext.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
		return false
	}
	return true
}

func panelIDParam(w http.ResponseWriter, r *http.Request) (id.PanelID, bool) {
	panelID, err := id.ParsePanelID(chi.URLParam(r, "panelID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid panel id"))
		return id.PanelID{}, false
	}
	return panelID, true
}

// HandleCreateDraft handles POST /panels requests.
func (h *Handler) HandleCreateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	req, ok := httputil.DecodeValid[PanelRequest](w, r, h.logger)
	if !ok {
		return
	}

	panel, err := h.service.CreateDraft(ctx, req.Name, req.DomainMembers(), req.StudentCoordinator)
	if err != nil {
		h.logger.WarnContext(ctx, "panel draft rejected",
			"request_id", requestID,
			"panel_name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "panel draft created",
		"request_id", requestID,
		"panel_id", panel.ID,
		"members", len(panel.Members),
	)
	httputil.WriteJSON(w, http.StatusCreated, panel)
}

// HandleGetPanel handles GET /panels/{panelID} requests.
func (h *Handler) HandleGetPanel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	panelID, ok := panelIDParam(w, r)
	if !ok {
		return
	}

	panel, err := h.service.GetPanel(ctx, panelID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, panel)
}

// HandleListPanels handles GET /panels requests.
func (h *Handler) HandleListPanels(w http.ResponseWriter, r *http.Request) {
	panels, err := h.service.ListPanels(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, panels)
}

// HandleUpdateDraft handles PUT /panels/{panelID} requests.
func (h *Handler) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	panelID, ok := panelIDParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeValid[PanelRequest](w, r, h.logger)
	if !ok {
		return
	}

	panel, err := h.service.UpdateDraft(ctx, panelID, req.DomainMembers(), req.StudentCoordinator)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "panel draft updated",
		"request_id", requestID,
		"panel_id", panelID,
		"members", len(panel.Members),
	)
	httputil.WriteJSON(w, http.StatusOK, panel)
}

// HandleFinalize handles POST /panels/{panelID}/finalize requests.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if !h.requireAdmin(w, ctx) {
		return
	}

	panelID, ok := panelIDParam(w, r)
	if !ok {
		return
	}

	panel, err := h.service.Finalize(ctx, panelID)
	if err != nil {
		h.logger.ErrorContext(ctx, "panel finalize failed",
			"request_id", requestID,
			"panel_id", panelID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "panel finalized",
		"request_id", requestID,
		"panel_id", panelID,
		"members", len(panel.Members),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, panel)
}

// HandleReplaceMember handles PUT /panels/{panelID}/members/{index} requests.
func (h *Handler) HandleReplaceMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	panelID, ok := panelIDParam(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member index"))
		return
	}

	req, ok := httputil.DecodeValid[ReplaceMemberRequest](w, r, h.logger)
	if !ok {
		return
	}

	panel, err := h.service.ReplaceMember(ctx, panelID, index, req.Member.Member())
	if err != nil {
		h.logger.WarnContext(ctx, "panel member replacement failed",
			"request_id", requestID,
			"panel_id", panelID,
			"index", index,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "panel member replaced",
		"request_id", requestID,
		"panel_id", panelID,
		"index", index,
	)
	httputil.WriteJSON(w, http.StatusOK, panel)
}

// HandleAssignTeam handles POST /panels/{panelID}/assign requests.
func (h *Handler) HandleAssignTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	panelID, ok := panelIDParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeValid[AssignTeamRequest](w, r, h.logger)
	if !ok {
		return
	}
	teamID, err := id.ParseTeamID(req.TeamID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "team_id must be a valid UUID"))
		return
	}

	team, err := h.service.AssignTeam(ctx, panelID, teamID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "team assigned to panel",
		"request_id", requestID,
		"panel_id", panelID,
		"team_id", teamID,
	)
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleDelete handles DELETE /panels/{panelID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	panelID, ok := panelIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, panelID); err != nil {
		h.logger.ErrorContext(ctx, "panel deletion failed",
			"request_id", requestID,
			"panel_id", panelID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "panel deleted",
		"request_id", requestID,
		"panel_id", panelID,
	)
	w.WriteHeader(http.StatusNoContent)
}
