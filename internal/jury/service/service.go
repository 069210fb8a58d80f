// Package service runs the jury panel lifecycle: draft editing, the one-way
// finalize transition with external account provisioning, active-panel member
// replacement, and team assignment.
//
// Finalize is the delicate operation: it crosses into the external identity
// provider and must never leave a panel half-active. Any provisioning failure
// rolls back the accounts created in that attempt and leaves the panel in
// draft, where finalize can be retried.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"hackgate/internal/identity"
	"hackgate/internal/jury/metrics"
	"hackgate/internal/jury/models"
	"hackgate/internal/notify"
	registrymodels "hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/audit"
	"hackgate/pkg/platform/sentinel"
	"hackgate/pkg/requestcontext"
)

// PanelStore is the persistence the jury lifecycle needs.
type PanelStore interface {
	Create(ctx context.Context, panel *models.Panel) error
	FindByID(ctx context.Context, panelID id.PanelID) (*models.Panel, error)
	List(ctx context.Context) ([]*models.Panel, error)
	Update(ctx context.Context, panel *models.Panel) error
	Delete(ctx context.Context, panelID id.PanelID) error
}

// TeamRegistry is the slice of the team registry the assignment flow needs.
type TeamRegistry interface {
	Mutate(ctx context.Context, teamID id.TeamID, fn func(*registrymodels.Team) error) (*registrymodels.Team, error)
}

// Service is the jury panel lifecycle.
type Service struct {
	panels      PanelStore
	provisioner identity.Provisioner
	registry    TeamRegistry

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

func WithUpdateRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.updateRetries = n
		}
	}
}

// New constructs the jury service.
func New(panels PanelStore, provisioner identity.Provisioner, registry TeamRegistry, opts ...Option) *Service {
	s := &Service{
		panels:        panels,
		provisioner:   provisioner,
		registry:      registry,
		tracer:        otel.Tracer("hackgate/jury"),
		updateRetries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDraft registers a new draft panel.
func (s *Service) CreateDraft(ctx context.Context, name string, members []models.Member, coordinator *string) (*models.Panel, error) {
	ctx, span := s.tracer.Start(ctx, "jury.CreateDraft")
	defer span.End()

	now := requestcontext.Now(ctx)
	panel, err := models.NewPanel(id.NewPanelID(), name, members, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	panel.SetStudentCoordinator(coordinator, now)

	if err := s.panels.Create(ctx, panel); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "panel already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create panel")
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionPanelCreated,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		Subject:   panel.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return panel, nil
}

// GetPanel returns a panel by id.
func (s *Service) GetPanel(ctx context.Context, panelID id.PanelID) (*models.Panel, error) {
	panel, err := s.panels.FindByID(ctx, panelID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "panel not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load panel")
	}
	return panel, nil
}

// ListPanels returns every panel.
func (s *Service) ListPanels(ctx context.Context) ([]*models.Panel, error) {
	panels, err := s.panels.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list panels")
	}
	return panels, nil
}

// UpdateDraft replaces a draft panel's member list and coordinator.
func (s *Service) UpdateDraft(ctx context.Context, panelID id.PanelID, members []models.Member, coordinator *string) (*models.Panel, error) {
	now := requestcontext.Now(ctx)
	return s.mutatePanel(ctx, panelID, func(p *models.Panel) error {
		if err := p.SetMembers(members, now); err != nil {
			return err
		}
		p.SetStudentCoordinator(coordinator, now)
		return nil
	})
}

// Finalize provisions an external account for every member and transitions
// the panel to active.
//
// Members that already carry an identity are skipped, so a retry after a
// partial failure does not provision twice. On any provisioning failure the
// accounts created in this attempt are disabled again (best effort) and the
// panel stays in draft. Finalizing an already active panel is a no-op
// success.
func (s *Service) Finalize(ctx context.Context, panelID id.PanelID) (*models.Panel, error) {
	ctx, span := s.tracer.Start(ctx, "jury.Finalize")
	defer span.End()
	start := time.Now()

	panel, err := s.GetPanel(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if panel.Status == models.StatusActive {
		return panel, nil
	}

	provisioned, err := s.provisionMembers(ctx, panel.Members)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementProvisioningFailures()
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	panel, err = s.mutatePanel(ctx, panelID, func(p *models.Panel) error {
		if p.Status == models.StatusActive {
			return nil
		}
		for n := range p.Members {
			if p.Members[n].Provisioned() {
				continue
			}
			identityID, ok := provisioned[memberKey(p.Members[n])]
			if !ok {
				// The roster changed between the read and this write; the
				// accounts from this attempt no longer line up.
				return dErrors.New(dErrors.CodeContention, "panel members changed during finalize")
			}
			p.Members[n].IdentityID = &identityID
		}
		return p.MarkActive(now)
	})
	if err != nil {
		s.rollbackAccounts(ctx, provisioned)
		return nil, err
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionPanelFinalized,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		Subject:   panelID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementFinalized()
		s.metrics.ObserveFinalize(start)
	}
	if s.notifier != nil {
		for _, m := range panel.Members {
			s.notifier.Enqueue(notify.Message{
				Recipient: m.Email,
				Kind:      notify.KindPanelActivated,
				Payload:   map[string]any{"panel": panel.Name},
			})
		}
	}
	return panel, nil
}

// provisionMembers creates accounts for every member lacking one. On failure
// the accounts created so far in this attempt are rolled back.
func (s *Service) provisionMembers(ctx context.Context, members []models.Member) (map[string]id.IdentityID, error) {
	provisioned := make(map[string]id.IdentityID)
	for _, m := range members {
		if m.Provisioned() {
			continue
		}
		identityID, err := s.provisioner.CreateAccount(ctx, m.Name, m.Email)
		if err != nil {
			s.rollbackAccounts(ctx, provisioned)
			if dErrors.HasCode(err, dErrors.CodeProvisioningFailed) {
				return nil, err
			}
			return nil, dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to provision jury account")
		}
		provisioned[memberKey(m)] = identityID
		if s.metrics != nil {
			s.metrics.IncrementAccountsProvisioned()
		}
	}
	return provisioned, nil
}

func (s *Service) rollbackAccounts(ctx context.Context, provisioned map[string]id.IdentityID) {
	for email, identityID := range provisioned {
		if err := s.provisioner.DisableAccount(ctx, identityID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "jury account rollback failed",
				"email", email, "identity_id", identityID, "error", err)
		}
	}
}

// ReplaceMember swaps one member on an active panel: the new account is
// created first, then the panel is written, then the outgoing account is
// disabled. A failure before the write leaves the panel untouched; a failure
// disabling the old account is logged and does not undo the replacement.
func (s *Service) ReplaceMember(ctx context.Context, panelID id.PanelID, index int, member models.Member) (*models.Panel, error) {
	ctx, span := s.tracer.Start(ctx, "jury.ReplaceMember")
	defer span.End()

	panel, err := s.GetPanel(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if panel.Status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "only active panels replace members")
	}

	identityID, err := s.provisioner.CreateAccount(ctx, member.Name, member.Email)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementProvisioningFailures()
		}
		if dErrors.HasCode(err, dErrors.CodeProvisioningFailed) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to provision jury account")
	}
	member.IdentityID = &identityID
	if s.metrics != nil {
		s.metrics.IncrementAccountsProvisioned()
	}

	now := requestcontext.Now(ctx)
	var outgoing models.Member
	panel, err = s.mutatePanel(ctx, panelID, func(p *models.Panel) error {
		var replaceErr error
		outgoing, replaceErr = p.ReplaceMember(index, member, now)
		return replaceErr
	})
	if err != nil {
		s.rollbackAccounts(ctx, map[string]id.IdentityID{member.Email: identityID})
		return nil, err
	}

	if outgoing.IdentityID != nil {
		if err := s.provisioner.DisableAccount(ctx, *outgoing.IdentityID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "outgoing jury account disable failed",
				"identity_id", *outgoing.IdentityID, "error", err)
		}
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionPanelMemberReplaced,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		Subject:   panelID.String(),
		Reason:    member.Email,
		RequestID: requestcontext.RequestID(ctx),
	})
	return panel, nil
}

// AssignTeam points a nominated team at an active panel. Reassignment
// overwrites the previous panel linkage.
func (s *Service) AssignTeam(ctx context.Context, panelID id.PanelID, teamID id.TeamID) (*registrymodels.Team, error) {
	ctx, span := s.tracer.Start(ctx, "jury.AssignTeam")
	defer span.End()

	panel, err := s.GetPanel(ctx, panelID)
	if err != nil {
		return nil, err
	}
	if panel.Status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "teams are assigned to active panels only")
	}

	now := requestcontext.Now(ctx)
	team, err := s.registry.Mutate(ctx, teamID, func(t *registrymodels.Team) error {
		if !t.Nominated {
			return dErrors.New(dErrors.CodeInvariantViolation, "only nominated teams are assigned to panels")
		}
		t.AssignPanel(panelID, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionTeamAssignedToPanel,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    teamID.String(),
		Subject:   panelID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return team, nil
}

// Delete removes a panel. Active panels have their jury accounts disabled
// first; a disable failure aborts the delete so no live account is orphaned.
func (s *Service) Delete(ctx context.Context, panelID id.PanelID) error {
	ctx, span := s.tracer.Start(ctx, "jury.Delete")
	defer span.End()

	panel, err := s.GetPanel(ctx, panelID)
	if err != nil {
		return err
	}

	if panel.Status == models.StatusActive {
		for _, identityID := range panel.IdentityIDs() {
			if err := s.provisioner.DisableAccount(ctx, identityID); err != nil {
				if dErrors.HasCode(err, dErrors.CodeProvisioningFailed) {
					return err
				}
				return dErrors.Wrap(err, dErrors.CodeProvisioningFailed, "failed to disable jury account")
			}
		}
	}

	if err := s.panels.Delete(ctx, panelID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "panel not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete panel")
	}

	audit.Emit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    audit.ActionPanelDeleted,
		Timestamp: requestcontext.Now(ctx),
		ActorID:   requestcontext.UserID(ctx),
		Subject:   panelID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// mutatePanel re-reads and applies fn until the version check passes or
// retries are exhausted.
func (s *Service) mutatePanel(ctx context.Context, panelID id.PanelID, fn func(*models.Panel) error) (*models.Panel, error) {
	var lastErr error
	for attempt := 0; attempt <= s.updateRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeContention, "panel update abandoned")
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}

		panel, err := s.panels.FindByID(ctx, panelID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "panel not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load panel")
		}

		if err := fn(panel); err != nil {
			return nil, err
		}

		if err := s.panels.Update(ctx, panel); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				lastErr = err
				continue
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "panel not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update panel")
		}
		return panel, nil
	}
	return nil, dErrors.Wrap(lastErr, dErrors.CodeContention, "panel update kept losing version checks")
}

func memberKey(m models.Member) string { return m.Email }
