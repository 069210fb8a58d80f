// Package service orchestrates the team registry: roster lifecycle, problem
// statement selection, and the write side shared with the nomination and
// selection flows.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"hackgate/internal/profile"
	"hackgate/internal/registry/metrics"
	"hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/audit"
	"hackgate/pkg/platform/sentinel"
)

// TeamStore is the persistence the registry needs. Both the in-memory and
// Postgres stores satisfy it.
type TeamStore interface {
	Create(ctx context.Context, team *models.Team) error
	FindByID(ctx context.Context, teamID id.TeamID) (*models.Team, error)
	FindByMember(ctx context.Context, userID id.UserID) (*models.Team, error)
	ListByInstitute(ctx context.Context, institute string) ([]*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, teamID id.TeamID) error
	CountNominated(ctx context.Context, institute string, bucket id.Category) (int, error)
}

// InviteRevoker lets team deletion invalidate outstanding invites without the
// registry importing the invite module.
type InviteRevoker interface {
	DeleteByTeam(ctx context.Context, teamID id.TeamID) error
}

// Service is the team registry.
type Service struct {
	teams    TeamStore
	profiles profile.Store
	invites  InviteRevoker

	logger         *slog.Logger
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer

	// updateRetries bounds internal retries of version-conflicted writes
	// before surfacing contention to the caller.
	updateRetries int
}

// Option configures the service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithInviteRevoker(r InviteRevoker) Option {
	return func(s *Service) { s.invites = r }
}

func WithUpdateRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.updateRetries = n
		}
	}
}

// New constructs the registry service.
func New(teams TeamStore, profiles profile.Store, opts ...Option) *Service {
	s := &Service{
		teams:         teams,
		profiles:      profiles,
		tracer:        otel.Tracer("hackgate/registry"),
		updateRetries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying team store to sibling modules (nomination,
// selection, jury) that share the team document.
func (s *Service) Store() TeamStore { return s.teams }

// Mutate applies fn to a team under the same version-retry discipline as the
// registry's own writes. Sibling modules use it for their team-side state
// (nomination flag, panel assignment, selection status).
func (s *Service) Mutate(ctx context.Context, teamID id.TeamID, fn func(*models.Team) error) (*models.Team, error) {
	return s.updateWithRetry(ctx, teamID, fn)
}

// updateWithRetry re-reads the team and applies mutate until the version
// check passes or retries are exhausted. Every retry re-reads current state,
// so the mutation re-validates its preconditions each attempt.
func (s *Service) updateWithRetry(ctx context.Context, teamID id.TeamID, mutate func(*models.Team) error) (*models.Team, error) {
	var lastErr error
	for attempt := 0; attempt <= s.updateRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeContention, "team update abandoned")
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}

		team, err := s.teams.FindByID(ctx, teamID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "team not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load team")
		}

		if err := mutate(team); err != nil {
			return nil, err
		}

		if err := s.teams.Update(ctx, team); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				lastErr = err
				continue
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "team not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update team")
		}
		return team, nil
	}
	return nil, dErrors.Wrap(lastErr, dErrors.CodeContention, "team update kept losing version checks")
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	audit.Emit(ctx, s.logger, s.auditPublisher, event)
}
