// Package service issues and consumes single-use invite tokens.
//
// Consume-and-join is the central race this module exists to close: the token
// transition and the roster mutation happen inside one per-team critical
// section, so two tokens consumed at the same instant cannot together overfill
// a team, and two consumers of one token resolve to exactly one winner.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"hackgate/internal/invite/metrics"
	"hackgate/internal/invite/models"
	"hackgate/internal/notify"
	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/audit"
	"hackgate/pkg/platform/keylock"
	"hackgate/pkg/platform/sentinel"
	"hackgate/pkg/requestcontext"
	"hackgate/pkg/secrets"
)

// TokenStore is the persistence the invite service needs. The in-memory and
// Redis stores satisfy it; Consume must be atomic per token.
type TokenStore interface {
	Create(ctx context.Context, token *models.Token) error
	Find(ctx context.Context, inviteID id.InviteID) (*models.Token, error)
	Consume(ctx context.Context, inviteID id.InviteID, userID id.UserID, now time.Time) error
	Unconsume(ctx context.Context, inviteID id.InviteID) error
	Delete(ctx context.Context, inviteID id.InviteID) error
	ListByTeam(ctx context.Context, teamID id.TeamID) ([]*models.Token, error)
	DeleteByTeam(ctx context.Context, teamID id.TeamID) error
}

// Registry is the slice of the team registry the join flow needs.
type Registry interface {
	GetTeam(ctx context.Context, teamID id.TeamID) (*registrymodels.Team, error)
	AddMember(ctx context.Context, teamID id.TeamID, member registrymodels.MemberRef) (*registrymodels.Team, error)
}

// Service implements the invite token lifecycle.
type Service struct {
	tokens   TokenStore
	registry Registry
	teamLock *keylock.Keyed

	logger         *slog.Logger
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n notify.Enqueuer) Option {
	return func(s *Service) { s.notifier = n }
}

// New constructs the invite service. The keyed lock serializes joins per
// team; pass the same instance to every replica-local consumer of the store.
func New(tokens TokenStore, registry Registry, teamLock *keylock.Keyed, opts ...Option) *Service {
	s := &Service{
		tokens:   tokens,
		registry: registry,
		teamLock: teamLock,
		tracer:   otel.Tracer("hackgate/invite"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a new single-use token for the team. Only the team leader may
// issue invites. The returned string is the full join credential; the secret
// half is never stored in clear.
func (s *Service) Issue(ctx context.Context, teamID id.TeamID) (string, error) {
	ctx, span := s.tracer.Start(ctx, "invite.Issue")
	defer span.End()

	team, err := s.registry.GetTeam(ctx, teamID)
	if err != nil {
		return "", err
	}
	if team.Leader.UserID != requestcontext.UserID(ctx) {
		return "", dErrors.New(dErrors.CodeForbidden, "only the team leader issues invites")
	}
	if team.RosterSize() >= registrymodels.MaxRosterSize {
		return "", dErrors.New(dErrors.CodeTeamFull, "team roster is full")
	}

	secret, err := secrets.Generate()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate invite secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash invite secret")
	}

	token := &models.Token{
		ID:         id.NewInviteID(),
		TeamID:     teamID,
		SecretHash: hash,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invite")
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionInviteIssued,
		Timestamp: token.CreatedAt,
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    teamID.String(),
		Subject:   token.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementInvitesIssued()
	}
	return token.ID.String() + "." + secret, nil
}

// ConsumeAndJoin spends a token and adds the caller to its team as one atomic
// unit. Outcomes:
//   - exactly one of N concurrent consumers of the same token succeeds, the
//     rest receive token_already_used
//   - concurrent joins through distinct tokens serialize on the team lock, so
//     the last roster slot goes to exactly one of them (team_full for the rest)
//   - if the roster mutation fails after the token was spent, the consumption
//     is rolled back so the invite is not burned by a failed join
func (s *Service) ConsumeAndJoin(ctx context.Context, rawToken string, member registrymodels.MemberRef) (*registrymodels.Team, error) {
	ctx, span := s.tracer.Start(ctx, "invite.ConsumeAndJoin")
	defer span.End()
	start := time.Now()

	inviteID, secret, err := splitToken(rawToken)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Find(ctx, inviteID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeTokenNotFound, "invite token not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invite")
	}
	if err := secrets.Verify(secret, token.SecretHash); err != nil {
		// An unverifiable secret is indistinguishable from a garbage token.
		return nil, dErrors.New(dErrors.CodeTokenNotFound, "invite token not found")
	}

	release, err := s.teamLock.Acquire(ctx, "team:"+token.TeamID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeContention, "join is contended, retry")
	}
	defer release()

	now := requestcontext.Now(ctx)
	if err := s.tokens.Consume(ctx, inviteID, member.UserID, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			if s.metrics != nil {
				s.metrics.IncrementTokenConflicts()
			}
			return nil, dErrors.New(dErrors.CodeTokenAlreadyUsed, "invite token already used")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeTokenNotFound, "invite token not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume invite")
		}
	}

	team, err := s.registry.AddMember(ctx, token.TeamID, member)
	if err != nil {
		// The join failed after the token was spent; restore it so the
		// invite survives for another attempt.
		if rollbackErr := s.tokens.Unconsume(ctx, inviteID); rollbackErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "invite consume rollback failed",
				"invite_id", inviteID, "error", rollbackErr)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveJoin(start)
	}
	if s.notifier != nil {
		s.notifier.Enqueue(notify.Message{
			Recipient: team.Leader.Email,
			Kind:      notify.KindMemberJoined,
			Payload:   map[string]any{"team": team.Name, "member": member.Name},
		})
	}
	return team, nil
}

// Revoke deletes an unconsumed token. Only the team leader may revoke.
func (s *Service) Revoke(ctx context.Context, inviteID id.InviteID) error {
	token, err := s.tokens.Find(ctx, inviteID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeTokenNotFound, "invite token not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invite")
	}

	team, err := s.registry.GetTeam(ctx, token.TeamID)
	if err != nil {
		return err
	}
	if team.Leader.UserID != requestcontext.UserID(ctx) {
		return dErrors.New(dErrors.CodeForbidden, "only the team leader revokes invites")
	}

	if err := s.tokens.Delete(ctx, inviteID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete invite")
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionInviteRevoked,
		Timestamp: requestcontext.Now(ctx),
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    token.TeamID.String(),
		Subject:   inviteID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// ListByTeam returns a team's outstanding and consumed tokens.
func (s *Service) ListByTeam(ctx context.Context, teamID id.TeamID) ([]*models.Token, error) {
	tokens, err := s.tokens.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invites")
	}
	return tokens, nil
}

// DeleteByTeam revokes every token of a team; the registry calls this when a
// team is deleted.
func (s *Service) DeleteByTeam(ctx context.Context, teamID id.TeamID) error {
	if err := s.tokens.DeleteByTeam(ctx, teamID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete team invites")
	}
	return nil
}

func splitToken(raw string) (id.InviteID, string, error) {
	idPart, secret, found := strings.Cut(raw, ".")
	if !found || secret == "" {
		return id.InviteID{}, "", dErrors.New(dErrors.CodeTokenNotFound, "invite token not found")
	}
	inviteID, err := id.ParseInviteID(idPart)
	if err != nil {
		return id.InviteID{}, "", dErrors.New(dErrors.CodeTokenNotFound, "invite token not found")
	}
	return inviteID, secret, nil
}
