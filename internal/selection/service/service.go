// Package service gates the final selection outcome behind the global
// selection date. Before the boundary every write fails; after it an admin
// may set and re-set a nominated team's terminal status.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"hackgate/internal/notify"
	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/audit"
	"hackgate/pkg/requestcontext"
)

// TeamRegistry is the slice of the team registry the selection flow needs.
type TeamRegistry interface {
	GetTeam(ctx context.Context, teamID id.TeamID) (*registrymodels.Team, error)
	Mutate(ctx context.Context, teamID id.TeamID, fn func(*registrymodels.Team) error) (*registrymodels.Team, error)
}

// Service is the selection state machine.
type Service struct {
	registry TeamRegistry
	opensAt  time.Time

	logger         *slog.Logger
	auditPublisher audit.Publisher
	notifier       notify.Enqueuer
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithNotifier(n notify.Enqueuer) Option {
	return func(s *Service) { s.notifier = n }
}

// New constructs the selection service. opensAt is the global boundary before
// which every selection write fails; a zero opensAt keeps selection locked
// until an opening time is configured.
func New(registry TeamRegistry, opensAt time.Time, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		opensAt:  opensAt,
		tracer:   otel.Tracer("hackgate/selection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSelectionStatus records a nominated team's terminal outcome. Admin only,
// after the global selection date; overwrites are idempotent and unlimited.
func (s *Service) SetSelectionStatus(ctx context.Context, teamID id.TeamID, status id.SelectionStatus) (*registrymodels.Team, error) {
	ctx, span := s.tracer.Start(ctx, "selection.SetSelectionStatus")
	defer span.End()

	if requestcontext.UserRole(ctx) != requestcontext.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "selection status is admin-only")
	}

	now := requestcontext.Now(ctx)
	if s.opensAt.IsZero() || now.Before(s.opensAt) {
		return nil, dErrors.New(dErrors.CodeSelectionLocked, "selection has not opened yet")
	}

	team, err := s.registry.Mutate(ctx, teamID, func(t *registrymodels.Team) error {
		return t.SetSelectionStatus(status, now)
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionSelectionStatusSet,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    teamID.String(),
		Subject:   string(status),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.notifier != nil {
		s.notifier.Enqueue(notify.Message{
			Recipient: team.Leader.Email,
			Kind:      notify.KindSelectionRecorded,
			Payload:   map[string]any{"team": team.Name, "status": string(status)},
		})
	}
	return team, nil
}

// GetSelection reads a team's current selection status.
func (s *Service) GetSelection(ctx context.Context, teamID id.TeamID) (id.SelectionStatus, error) {
	team, err := s.registry.GetTeam(ctx, teamID)
	if err != nil {
		return id.SelectionUnset, err
	}
	return team.SelectionStatus, nil
}
