package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hackgate/internal/nomination/metrics"
	"hackgate/internal/nomination/models"
	"hackgate/internal/nomination/service"
	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/httputil"
	"hackgate/pkg/requestcontext"
)

// Service defines the interface for nomination and institute operations.
type Service interface {
	Nominate(ctx context.Context, teamID id.TeamID) (*registrymodels.Team, error)
	Withdraw(ctx context.Context, teamID id.TeamID) (*registrymodels.Team, error)
	ListNominated(ctx context.Context, institute string) ([]*registrymodels.Team, error)
	Usage(ctx context.Context, instituteID id.InstituteID) ([]service.QuotaUsage, error)
	CreateInstitute(ctx context.Context, name string, limitSoftware, limitHardware int, multiRound bool) (*models.Institute, error)
	GetInstitute(ctx context.Context, instituteID id.InstituteID) (*models.Institute, error)
	ListInstitutes(ctx context.Context) ([]*models.Institute, error)
	SetEvaluationDates(ctx context.Context, instituteID id.InstituteID, dates []time.Time) (*models.Institute, error)
	SetLimits(ctx context.Context, instituteID id.InstituteID, limitSoftware, limitHardware int) (*models.Institute, error)
}

// Handler wires nomination endpoints to the nomination service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a nomination handler with its dependencies.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts nomination endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/teams/{teamID}/nominate", h.HandleNominate)
	r.Post("/teams/{teamID}/withdraw", h.HandleWithdraw)
	r.Get("/nominations", h.HandleListNominated)

	r.Post("/institutes", h.HandleCreateInstitute)
	r.Get("/institutes", h.HandleListInstitutes)
	r.Get("/institutes/{instituteID}", h.HandleGetInstitute)
	r.Put("/institutes/{instituteID}/evaluation-dates", h.HandleSetEvaluationDates)
	r.Put("/institutes/{instituteID}/limits", h.HandleSetLimits)
	r.Get("/institutes/{instituteID}/usage", h.HandleUsage)
}

// requireSPOC allows SPOC and admin callers through. Participant tokens may
// read but never move nominations.
func (h *Handler) requireSPOC(w http.ResponseWriter, ctx context.Context) bool {
	switch requestcontext.UserRole(ctx) {
	case requestcontext.RoleSPOC, requestcontext.RoleAdmin:
		return true
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "SPOC role required"))
		return false
	}
}

func (h *Handler) requireAdmin(w http.ResponseWriter, ctx context.Context) bool {
	if requestcontext.UserRole(ctx) != requestcontext.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
		return false
	}
	return true
}

// HandleNominate handles POST /teams/{teamID}/nominate requests.
func (h *Handler) HandleNominate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if !h.requireSPOC(w, ctx) {
		return
	}

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	team, err := h.service.Nominate(ctx, teamID)
	if err != nil {
		h.logger.WarnContext(ctx, "nomination rejected",
			"request_id", requestID,
			"team_id", teamID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "team nominated",
		"request_id", requestID,
		"team_id", teamID,
		"institute", team.Institute,
		"category", team.Category,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleWithdraw handles POST /teams/{teamID}/withdraw requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireSPOC(w, ctx) {
		return
	}

	teamID, err := id.ParseTeamID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}

	team, err := h.service.Withdraw(ctx, teamID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "nomination withdrawn",
		"request_id", requestID,
		"team_id", teamID,
	)
	httputil.WriteJSON(w, http.StatusOK, team)
}

// HandleListNominated handles GET /nominations?institute= requests.
func (h *Handler) HandleListNominated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	institute := r.URL.Query().Get("institute")
	if institute == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "institute query parameter is required"))
		return
	}

	teams, err := h.service.ListNominated(ctx, institute)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, teams)
}

// HandleCreateInstitute handles POST /institutes requests.
func (h *Handler) HandleCreateInstitute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	req, ok := httputil.DecodeValid[CreateInstituteRequest](w, r, h.logger)
	if !ok {
		return
	}

	institute, err := h.service.CreateInstitute(ctx, req.Name, req.LimitSoftware, req.LimitHardware, req.MultiRound)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "institute created",
		"request_id", requestID,
		"institute_id", institute.ID,
		"name", institute.Name,
	)
	httputil.WriteJSON(w, http.StatusCreated, institute)
}

// HandleListInstitutes handles GET /institutes requests.
func (h *Handler) HandleListInstitutes(w http.ResponseWriter, r *http.Request) {
	institutes, err := h.service.ListInstitutes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, institutes)
}

// HandleGetInstitute handles GET /institutes/{instituteID} requests.
func (h *Handler) HandleGetInstitute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	instituteID, err := id.ParseInstituteID(chi.URLParam(r, "instituteID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid institute id"))
		return
	}

	institute, err := h.service.GetInstitute(ctx, instituteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, institute)
}

// HandleSetEvaluationDates handles PUT /institutes/{instituteID}/evaluation-dates.
func (h *Handler) HandleSetEvaluationDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	instituteID, err := id.ParseInstituteID(chi.URLParam(r, "instituteID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid institute id"))
		return
	}

	req, ok := httputil.DecodeValid[SetEvaluationDatesRequest](w, r, h.logger)
	if !ok {
		return
	}

	institute, err := h.service.SetEvaluationDates(ctx, instituteID, req.Dates)
	if err != nil {
		h.logger.WarnContext(ctx, "evaluation date update rejected",
			"request_id", requestID,
			"institute_id", instituteID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "evaluation dates set",
		"request_id", requestID,
		"institute_id", instituteID,
		"dates", len(institute.EvaluationDates),
	)
	httputil.WriteJSON(w, http.StatusOK, institute)
}

// HandleSetLimits handles PUT /institutes/{instituteID}/limits.
func (h *Handler) HandleSetLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx) {
		return
	}

	instituteID, err := id.ParseInstituteID(chi.URLParam(r, "instituteID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid institute id"))
		return
	}

	req, ok := httputil.DecodeValid[SetLimitsRequest](w, r, h.logger)
	if !ok {
		return
	}

	institute, err := h.service.SetLimits(ctx, instituteID, req.LimitSoftware, req.LimitHardware)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "nomination limits set",
		"request_id", requestID,
		"institute_id", instituteID,
	)
	httputil.WriteJSON(w, http.StatusOK, institute)
}

// HandleUsage handles GET /institutes/{instituteID}/usage requests.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	instituteID, err := id.ParseInstituteID(chi.URLParam(r, "instituteID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid institute id"))
		return
	}

	usage, err := h.service.Usage(ctx, instituteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usage)
}
