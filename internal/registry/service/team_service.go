package service

import (
	"context"
	"errors"
	"time"

	"hackgate/internal/registry/models"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/audit"
	"hackgate/pkg/platform/sentinel"
	"hackgate/pkg/requestcontext"
)

// CreateTeam registers a new team with the caller as leader. The leader's
// institute becomes the team's institute.
func (s *Service) CreateTeam(ctx context.Context, name string, leader models.MemberRef) (*models.Team, error) {
	ctx, span := s.tracer.Start(ctx, "registry.CreateTeam")
	defer span.End()
	start := time.Now()

	leaderProfile, err := s.profiles.GetProfile(ctx, leader.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "leader profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load leader profile")
	}
	if err := s.requireUnaffiliated(ctx, leader.UserID, leaderProfile.TeamID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	team, err := models.NewTeam(id.NewTeamID(), name, leaderProfile.Institute, leader, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.teams.Create(ctx, team); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "team already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create team")
	}

	if err := s.profiles.SetTeamLink(ctx, leader.UserID, &team.ID); err != nil {
		// The team exists; linkage is re-derivable from the roster. Log and
		// continue rather than failing the registration.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "leader team linkage write failed",
				"team_id", team.ID, "user_id", leader.UserID, "error", err)
		}
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionTeamCreated,
		Timestamp: now,
		ActorID:   leader.UserID,
		TeamID:    team.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementTeamsCreated()
		s.metrics.ObserveCreateTeam(start)
	}
	return team, nil
}

// GetTeam returns a team by id.
func (s *Service) GetTeam(ctx context.Context, teamID id.TeamID) (*models.Team, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "team not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load team")
	}
	return team, nil
}

// GetTeamByMember returns the team containing the given identity.
func (s *Service) GetTeamByMember(ctx context.Context, userID id.UserID) (*models.Team, error) {
	team, err := s.teams.FindByMember(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no team for member")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load team")
	}
	return team, nil
}

// ListByInstitute returns an institute's teams for SPOC views.
func (s *Service) ListByInstitute(ctx context.Context, institute string) ([]*models.Team, error) {
	teams, err := s.teams.ListByInstitute(ctx, institute)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list teams")
	}
	return teams, nil
}

// AddMember appends a member to the roster. It is called from the invite
// consume flow, which holds the per-team lock; the aggregate and the version
// check still guard the roster bound in depth.
func (s *Service) AddMember(ctx context.Context, teamID id.TeamID, member models.MemberRef) (*models.Team, error) {
	ctx, span := s.tracer.Start(ctx, "registry.AddMember")
	defer span.End()

	if err := s.requireUnaffiliated(ctx, member.UserID, nil); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	team, err := s.updateWithRetry(ctx, teamID, func(t *models.Team) error {
		return t.AddMember(member, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.profiles.SetTeamLink(ctx, member.UserID, &team.ID); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "member team linkage write failed",
				"team_id", team.ID, "user_id", member.UserID, "error", err)
		}
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionMemberJoined,
		Timestamp: now,
		ActorID:   member.UserID,
		TeamID:    team.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementMembersJoined()
	}
	return team, nil
}

// RemoveMember drops a roster entry and detaches the member's profile
// linkage. Eligibility is never stored, so nothing here needs to invalidate
// it; the next read recomputes from the smaller roster.
func (s *Service) RemoveMember(ctx context.Context, teamID id.TeamID, userID id.UserID) (*models.Team, error) {
	ctx, span := s.tracer.Start(ctx, "registry.RemoveMember")
	defer span.End()

	now := requestcontext.Now(ctx)
	team, err := s.updateWithRetry(ctx, teamID, func(t *models.Team) error {
		return t.RemoveMember(userID, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.profiles.SetTeamLink(ctx, userID, nil); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "member team linkage detach failed",
				"team_id", teamID, "user_id", userID, "error", err)
		}
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionMemberRemoved,
		Timestamp: now,
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    team.ID.String(),
		Subject:   userID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return team, nil
}

// DeleteTeam removes the team record after detaching every member's profile
// linkage and revoking outstanding invites. The nomination quota reservation
// is freed implicitly: the counter is derived live from stored teams, and
// this one ceases to exist.
func (s *Service) DeleteTeam(ctx context.Context, teamID id.TeamID) error {
	ctx, span := s.tracer.Start(ctx, "registry.DeleteTeam")
	defer span.End()

	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}

	for _, userID := range team.MemberIDs() {
		if err := s.profiles.SetTeamLink(ctx, userID, nil); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "team linkage detach failed during delete",
					"team_id", teamID, "user_id", userID, "error", err)
			}
		}
	}

	if s.invites != nil {
		if err := s.invites.DeleteByTeam(ctx, teamID); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "invite revocation failed during delete",
					"team_id", teamID, "error", err)
			}
		}
	}

	if err := s.teams.Delete(ctx, teamID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "team not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete team")
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionTeamDeleted,
		Timestamp: requestcontext.Now(ctx),
		ActorID:   requestcontext.UserID(ctx),
		TeamID:    teamID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// SetProblemStatement records a team's problem selection and derives its
// category. Locked once the team is nominated.
func (s *Service) SetProblemStatement(ctx context.Context, teamID id.TeamID, problemID id.ProblemID, category id.Category) (*models.Team, error) {
	now := requestcontext.Now(ctx)
	return s.updateWithRetry(ctx, teamID, func(t *models.Team) error {
		return t.SetProblemStatement(problemID, category, now)
	})
}

// Rename updates the team's display name.
func (s *Service) Rename(ctx context.Context, teamID id.TeamID, name string) (*models.Team, error) {
	now := requestcontext.Now(ctx)
	team, err := s.updateWithRetry(ctx, teamID, func(t *models.Team) error {
		return t.Rename(name, now)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	return team, nil
}

// requireUnaffiliated fails with duplicate_membership when the identity
// already belongs to any team. The profile linkage is checked as a fast path
// when available; the roster index is authoritative.
func (s *Service) requireUnaffiliated(ctx context.Context, userID id.UserID, linkedTeam *id.TeamID) error {
	if linkedTeam != nil {
		return dErrors.New(dErrors.CodeDuplicateMembership, "identity already belongs to a team")
	}
	_, err := s.teams.FindByMember(ctx, userID)
	if err == nil {
		return dErrors.New(dErrors.CodeDuplicateMembership, "identity already belongs to a team")
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	return nil
}
