// Package service enforces per-institute, per-category nomination ceilings.
//
// The quota counter is derived live from nominated team records, never stored.
// The quota check and the nomination write happen inside one keyed critical
// section per institute and bucket, so concurrent nominations cannot both
// observe a free slot and overshoot the ceiling together.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"hackgate/internal/eligibility"
	"hackgate/internal/nomination/metrics"
	"hackgate/internal/nomination/models"
	"hackgate/internal/notify"
	"hackgate/internal/profile"
	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/audit"
	"hackgate/pkg/platform/keylock"
	"hackgate/pkg/platform/sentinel"
	"hackgate/pkg/requestcontext"
)

// InstituteStore is the persistence the quota manager needs for institutes.
type InstituteStore interface {
	Create(ctx context.Context, institute *models.Institute) error
	FindByID(ctx context.Context, instituteID id.InstituteID) (*models.Institute, error)
	FindByName(ctx context.Context, name string) (*models.Institute, error)
	List(ctx context.Context) ([]*models.Institute, error)
	Update(ctx context.Context, institute *models.Institute) error
	Delete(ctx context.Context, instituteID id.InstituteID) error
}

// TeamRegistry is the slice of the team registry the nomination flow needs:
// reads, version-retried writes, and the live nominated count.
type TeamRegistry interface {
	GetTeam(ctx context.Context, teamID id.TeamID) (*registrymodels.Team, error)
	ListByInstitute(ctx context.Context, institute string) ([]*registrymodels.Team, error)
	Mutate(ctx context.Context, teamID id.TeamID, fn func(*registrymodels.Team) error) (*registrymodels.Team, error)
}

// NominationCounter derives the live count of nominated teams per institute
// and quota bucket. The team stores implement it directly against their data.
type NominationCounter interface {
	CountNominated(ctx context.Context, institute string, bucket id.Category) (int, error)
}

// Service is the nomination quota manager.
type Service struct {
	institutes InstituteStore
	registry   TeamRegistry
	counter    NominationCounter
	profiles   profile.Store
	quotaLock  *keylock.Keyed

	// windowStart/windowEnd bound every institute's evaluation schedule.
	windowStart time.Time
	windowEnd   time.Time

	logger         *slog.Logger
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
	notifier       notify.Enqueuer
	tracer         trace.Tracer

	updateRetries int
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

// WithEvaluationWindow sets the global bounds every evaluation schedule must
// fall inside.
func WithEvaluationWindow(start, end time.Time) Option {
	return func(s *Service) {
		s.windowStart = start
		s.windowEnd = end
	}
}

func WithUpdateRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.updateRetries = n
		}
	}
}

// New constructs the quota manager. The keyed lock serializes the quota
// critical section per institute and bucket.
func New(institutes InstituteStore, registry TeamRegistry, counter NominationCounter, profiles profile.Store, quotaLock *keylock.Keyed, opts ...Option) *Service {
	s := &Service{
		institutes:    institutes,
		registry:      registry,
		counter:       counter,
		profiles:      profiles,
		quotaLock:     quotaLock,
		tracer:        otel.Tracer("hackgate/nomination"),
		updateRetries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nominate advances a team to the university round if its institute still has
// room in the team's quota bucket.
//
// Preconditions checked before the critical section: the team is fully
// registered, its category is set, and the institute's nomination window is
// open. The count-versus-limit check itself runs under the keyed lock with a
// fresh read, so stale reads cannot overshoot the ceiling.
func (s *Service) Nominate(ctx context.Context, teamID id.TeamID) (*registrymodels.Team, error) {
	ctx, span := s.tracer.Start(ctx, "nomination.Nominate")
	defer span.End()
	start := time.Now()

	team, err := s.registry.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Nominated {
		// Re-nominating holds no new quota slot.
		return team, nil
	}
	if !team.Category.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "team has no problem statement category")
	}

	profiles, err := s.memberProfiles(ctx, team)
	if err != nil {
		return nil, err
	}
	if !eligibility.IsRegistered(team, profiles) {
		return nil, dErrors.New(dErrors.CodeValidation, "team is not fully registered")
	}

	institute, err := s.institutes.FindByName(ctx, team.Institute)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "institute not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institute")
	}

	now := requestcontext.Now(ctx)
	if !institute.NominationOpen(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "nomination opens after the institute's second evaluation date")
	}

	bucket := team.Category.QuotaBucket()
	release, err := s.quotaLock.Acquire(ctx, quotaKey(team.Institute, bucket))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeContention, "nomination is contended, retry")
	}
	defer release()

	count, err := s.counter.CountNominated(ctx, team.Institute, bucket)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count nominations")
	}
	if count >= institute.Limit(bucket) {
		if s.metrics != nil {
			s.metrics.IncrementQuotaRejection(string(bucket))
		}
		return nil, dErrors.New(dErrors.CodeQuotaExceeded, "institute nomination quota is full for this category")
	}

	team, err = s.registry.Mutate(ctx, teamID, func(t *registrymodels.Team) error {
		if t.Nominated {
			return nil
		}
		if t.Category.QuotaBucket() != bucket {
			// The category moved since the precondition read; the count above
			// covered the wrong bucket.
			return dErrors.New(dErrors.CodeContention, "team category changed during nomination")
		}
		t.MarkNominated(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionTeamNominated,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    teamID.String(),
		Subject:   string(bucket),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementAccepted(string(bucket))
		s.metrics.ObserveNominate(start)
	}
	if s.notifier != nil {
		s.notifier.Enqueue(notify.Message{
			Recipient: team.Leader.Email,
			Kind:      notify.KindTeamNominated,
			Payload:   map[string]any{"team": team.Name, "bucket": string(bucket)},
		})
	}
	return team, nil
}

// Withdraw releases a team's nomination and frees its quota slot. Withdrawing
// a team that was never nominated is a no-op success.
func (s *Service) Withdraw(ctx context.Context, teamID id.TeamID) (*registrymodels.Team, error) {
	ctx, span := s.tracer.Start(ctx, "nomination.Withdraw")
	defer span.End()

	now := requestcontext.Now(ctx)
	wasNominated := false
	team, err := s.registry.Mutate(ctx, teamID, func(t *registrymodels.Team) error {
		wasNominated = t.Nominated
		if t.Nominated {
			t.ClearNomination(now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !wasNominated {
		return team, nil
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionNominationWithdrawn,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    teamID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementWithdrawals()
	}
	return team, nil
}

// ListNominated returns an institute's currently nominated teams for the SPOC
// view.
func (s *Service) ListNominated(ctx context.Context, institute string) ([]*registrymodels.Team, error) {
	teams, err := s.registry.ListByInstitute(ctx, institute)
	if err != nil {
		return nil, err
	}
	nominated := teams[:0:0]
	for _, t := range teams {
		if t.Nominated {
			nominated = append(nominated, t)
		}
	}
	return nominated, nil
}

// QuotaUsage reports an institute's live count against its limit for one
// bucket.
type QuotaUsage struct {
	Bucket id.Category `json:"bucket"`
	Used   int         `json:"used"`
	Limit  int         `json:"limit"`
}

// Usage reports both quota buckets for an institute.
func (s *Service) Usage(ctx context.Context, instituteID id.InstituteID) ([]QuotaUsage, error) {
	institute, err := s.GetInstitute(ctx, instituteID)
	if err != nil {
		return nil, err
	}
	usage := make([]QuotaUsage, 0, 2)
	for _, bucket := range []id.Category{id.CategorySoftware, id.CategoryHardware} {
		count, err := s.counter.CountNominated(ctx, institute.Name, bucket)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count nominations")
		}
		usage = append(usage, QuotaUsage{Bucket: bucket, Used: count, Limit: institute.Limit(bucket)})
	}
	return usage, nil
}

// CreateInstitute registers a new institute with its nomination ceilings.
func (s *Service) CreateInstitute(ctx context.Context, name string, limitSoftware, limitHardware int, multiRound bool) (*models.Institute, error) {
	institute, err := models.NewInstitute(id.NewInstituteID(), name, limitSoftware, limitHardware, multiRound, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.institutes.Create(ctx, institute); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "institute already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create institute")
	}
	return institute, nil
}

// GetInstitute returns an institute by id.
func (s *Service) GetInstitute(ctx context.Context, instituteID id.InstituteID) (*models.Institute, error) {
	institute, err := s.institutes.FindByID(ctx, instituteID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "institute not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institute")
	}
	return institute, nil
}

// ListInstitutes returns every institute.
func (s *Service) ListInstitutes(ctx context.Context) ([]*models.Institute, error) {
	institutes, err := s.institutes.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list institutes")
	}
	return institutes, nil
}

// SetEvaluationDates installs an institute's evaluation schedule.
func (s *Service) SetEvaluationDates(ctx context.Context, instituteID id.InstituteID, dates []time.Time) (*models.Institute, error) {
	now := requestcontext.Now(ctx)
	institute, err := s.mutateInstitute(ctx, instituteID, func(i *models.Institute) error {
		return i.SetEvaluationDates(dates, s.windowStart, s.windowEnd, now)
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionEvaluationDatesSet,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		Subject:   instituteID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return institute, nil
}

// SetLimits updates an institute's nomination ceilings.
func (s *Service) SetLimits(ctx context.Context, instituteID id.InstituteID, limitSoftware, limitHardware int) (*models.Institute, error) {
	now := requestcontext.Now(ctx)
	institute, err := s.mutateInstitute(ctx, instituteID, func(i *models.Institute) error {
		return i.SetLimits(limitSoftware, limitHardware, now)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	return institute, nil
}

// mutateInstitute re-reads and applies fn until the version check passes or
// retries are exhausted.
func (s *Service) mutateInstitute(ctx context.Context, instituteID id.InstituteID, fn func(*models.Institute) error) (*models.Institute, error) {
	var lastErr error
	for attempt := 0; attempt <= s.updateRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeContention, "institute update abandoned")
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}

		institute, err := s.institutes.FindByID(ctx, instituteID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "institute not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institute")
		}

		if err := fn(institute); err != nil {
			return nil, err
		}

		if err := s.institutes.Update(ctx, institute); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				lastErr = err
				continue
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "institute not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update institute")
		}
		return institute, nil
	}
	return nil, dErrors.Wrap(lastErr, dErrors.CodeContention, "institute update kept losing version checks")
}

func (s *Service) memberProfiles(ctx context.Context, team *registrymodels.Team) (map[id.UserID]profile.Profile, error) {
	profiles := make(map[id.UserID]profile.Profile, team.RosterSize())
	for _, userID := range team.MemberIDs() {
		p, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Dangling roster identity: the member does not count toward
				// the eligibility quotas.
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member profile")
		}
		profiles[userID] = p
	}
	return profiles, nil
}

func quotaKey(institute string, bucket id.Category) string {
	return "quota:" + institute + ":" + string(bucket)
}
