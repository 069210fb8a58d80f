package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	inviteStore "hackgate/internal/invite/store"
	"hackgate/internal/profile"
	registrymodels "hackgate/internal/registry/models"
	registryservice "hackgate/internal/registry/service"
	teamStore "hackgate/internal/registry/store/team"
	id "hackgate/pkg/domain"
	dErrors "hackgate/pkg/domain-errors"
	"hackgate/pkg/platform/keylock"
	"hackgate/pkg/requestcontext"
)

// =============================================================================
// Invite Service Test Suite
// =============================================================================
// Justification for unit tests: the consume-and-join flow is the single most
// race-sensitive path in the system. The concurrency outcomes (single token
// winner, last-slot winner, rollback on failed join) must be pinned down here
// where we control the stores directly.

type InviteServiceSuite struct {
	suite.Suite
	tokens   *inviteStore.InMemoryStore
	teams    *teamStore.InMemoryStore
	profiles *profile.InMemoryStore
	registry *registryservice.Service
	service  *Service

	leaderID id.UserID
	teamID   id.TeamID
}

func TestInviteServiceSuite(t *testing.T) {
	suite.Run(t, new(InviteServiceSuite))
}

func (s *InviteServiceSuite) SetupTest() {
	s.tokens = inviteStore.NewInMemoryStore()
	s.teams = teamStore.NewInMemoryStore()
	s.profiles = profile.NewInMemoryStore()
	s.registry = registryservice.New(s.teams, s.profiles)
	s.service = New(s.tokens, s.registry, keylock.New())

	s.leaderID = id.NewUserID()
	s.profiles.Seed(profile.Profile{
		ID:        s.leaderID,
		Name:      "Asha Rao",
		Email:     "asha@example.edu",
		Gender:    id.GenderFemale,
		Institute: "IIT Indore",
		Role:      string(requestcontext.RoleParticipant),
	})

	team, err := s.registry.CreateTeam(s.leaderCtx(), "bitcrushers", registrymodels.MemberRef{
		UserID: s.leaderID,
		Name:   "Asha Rao",
		Email:  "asha@example.edu",
		Gender: id.GenderFemale,
	})
	s.Require().NoError(err)
	s.teamID = team.ID
}

func (s *InviteServiceSuite) leaderCtx() context.Context {
	return requestcontext.WithUserID(context.Background(), s.leaderID)
}

func (s *InviteServiceSuite) seedJoiner(name string) registrymodels.MemberRef {
	userID := id.NewUserID()
	s.profiles.Seed(profile.Profile{
		ID:        userID,
		Name:      name,
		Email:     name + "@example.edu",
		Gender:    id.GenderMale,
		Institute: "IIT Indore",
		Role:      string(requestcontext.RoleParticipant),
	})
	return registrymodels.MemberRef{
		UserID: userID,
		Name:   name,
		Email:  name + "@example.edu",
		Gender: id.GenderMale,
	}
}

// =============================================================================
// Issue Tests
// =============================================================================

func (s *InviteServiceSuite) TestIssue() {
	s.Run("leader receives an id.secret token", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.NoError(err)
		s.NotEmpty(token)

		inviteID, secret, err := splitToken(token)
		s.NoError(err)
		s.NotEmpty(secret)

		stored, err := s.tokens.Find(context.Background(), inviteID)
		s.NoError(err)
		s.Equal(s.teamID, stored.TeamID)
		// Only the hash is persisted.
		s.NotContains(stored.SecretHash, secret)
	})

	s.Run("non-leader is forbidden", func() {
		stranger := requestcontext.WithUserID(context.Background(), id.NewUserID())
		_, err := s.service.Issue(stranger, s.teamID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown team is not found", func() {
		_, err := s.service.Issue(s.leaderCtx(), id.NewTeamID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("full roster refuses new invites", func() {
		for i := 0; i < registrymodels.MaxRosterSize-1; i++ {
			token, err := s.service.Issue(s.leaderCtx(), s.teamID)
			s.Require().NoError(err)
			member := s.seedJoiner(fmt.Sprintf("filler-%d", i))
			_, err = s.service.ConsumeAndJoin(context.Background(), token, member)
			s.Require().NoError(err)
		}

		_, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.True(dErrors.HasCode(err, dErrors.CodeTeamFull))
	})
}

// =============================================================================
// ConsumeAndJoin Tests
// =============================================================================

func (s *InviteServiceSuite) TestConsumeAndJoin() {
	s.Run("valid token adds the member", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.Require().NoError(err)

		member := s.seedJoiner("ravi")
		team, err := s.service.ConsumeAndJoin(context.Background(), token, member)
		s.NoError(err)
		s.True(team.HasMember(member.UserID))

		p, err := s.profiles.GetProfile(context.Background(), member.UserID)
		s.NoError(err)
		s.Require().NotNil(p.TeamID)
		s.Equal(s.teamID, *p.TeamID)
	})

	s.Run("second use of the same token fails", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.Require().NoError(err)

		_, err = s.service.ConsumeAndJoin(context.Background(), token, s.seedJoiner("first"))
		s.Require().NoError(err)

		_, err = s.service.ConsumeAndJoin(context.Background(), token, s.seedJoiner("second"))
		s.True(dErrors.HasCode(err, dErrors.CodeTokenAlreadyUsed))
	})

	s.Run("wrong secret reads as token not found", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.Require().NoError(err)
		inviteID, _, err := splitToken(token)
		s.Require().NoError(err)

		_, err = s.service.ConsumeAndJoin(context.Background(), inviteID.String()+".wrong-secret", s.seedJoiner("spoof"))
		s.True(dErrors.HasCode(err, dErrors.CodeTokenNotFound))
	})

	s.Run("malformed token reads as token not found", func() {
		_, err := s.service.ConsumeAndJoin(context.Background(), "garbage", s.seedJoiner("mal"))
		s.True(dErrors.HasCode(err, dErrors.CodeTokenNotFound))
	})

	s.Run("already affiliated joiner rolls the token back", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.Require().NoError(err)

		// The leader already belongs to the team, so AddMember fails after
		// the token is consumed.
		leaderRef := registrymodels.MemberRef{UserID: s.leaderID, Name: "Asha Rao"}
		_, err = s.service.ConsumeAndJoin(context.Background(), token, leaderRef)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateMembership))

		// The rollback restored the token for a legitimate joiner.
		team, err := s.service.ConsumeAndJoin(context.Background(), token, s.seedJoiner("retry"))
		s.NoError(err)
		s.Equal(2, team.RosterSize())
	})
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func (s *InviteServiceSuite) TestConcurrentConsume() {
	s.Run("exactly one of N consumers of one token wins", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.Require().NoError(err)

		const n = 16
		members := make([]registrymodels.MemberRef, n)
		for i := range members {
			members[i] = s.seedJoiner(fmt.Sprintf("racer-%d", i))
		}

		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.service.ConsumeAndJoin(context.Background(), token, members[i])
			}(i)
		}
		wg.Wait()

		wins, used := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case dErrors.HasCode(err, dErrors.CodeTokenAlreadyUsed):
				used++
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}
		s.Equal(1, wins)
		s.Equal(n-1, used)
	})

	s.Run("last roster slot goes to exactly one of many distinct tokens", func() {
		// Fill to one slot short of the cap.
		for i := 0; i < registrymodels.MaxRosterSize-2; i++ {
			token, err := s.service.Issue(s.leaderCtx(), s.teamID)
			s.Require().NoError(err)
			_, err = s.service.ConsumeAndJoin(context.Background(), token, s.seedJoiner(fmt.Sprintf("early-%d", i)))
			s.Require().NoError(err)
		}

		const n = 8
		tokens := make([]string, n)
		for i := range tokens {
			var err error
			tokens[i], err = s.service.Issue(s.leaderCtx(), s.teamID)
			s.Require().NoError(err)
		}
		members := make([]registrymodels.MemberRef, n)
		for i := range members {
			members[i] = s.seedJoiner(fmt.Sprintf("late-%d", i))
		}

		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.service.ConsumeAndJoin(context.Background(), tokens[i], members[i])
			}(i)
		}
		wg.Wait()

		wins, full := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case dErrors.HasCode(err, dErrors.CodeTeamFull):
				full++
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}
		s.Equal(1, wins)
		s.Equal(n-1, full)

		team, err := s.registry.GetTeam(context.Background(), s.teamID)
		s.NoError(err)
		s.Equal(registrymodels.MaxRosterSize, team.RosterSize())
	})
}

// =============================================================================
// Revoke Tests
// =============================================================================

func (s *InviteServiceSuite) TestRevoke() {
	s.Run("leader revokes an outstanding token", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.Require().NoError(err)
		inviteID, _, err := splitToken(token)
		s.Require().NoError(err)

		s.NoError(s.service.Revoke(s.leaderCtx(), inviteID))

		_, err = s.service.ConsumeAndJoin(context.Background(), token, s.seedJoiner("late"))
		s.True(dErrors.HasCode(err, dErrors.CodeTokenNotFound))
	})

	s.Run("non-leader cannot revoke", func() {
		token, err := s.service.Issue(s.leaderCtx(), s.teamID)
		s.Require().NoError(err)
		inviteID, _, err := splitToken(token)
		s.Require().NoError(err)

		stranger := requestcontext.WithUserID(context.Background(), id.NewUserID())
		err = s.service.Revoke(stranger, inviteID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown token is token_not_found", func() {
		err := s.service.Revoke(s.leaderCtx(), id.NewInviteID())
		s.True(dErrors.HasCode(err, dErrors.CodeTokenNotFound))
	})
}

// =============================================================================
// Team Deletion Cascade Tests
// =============================================================================

func (s *InviteServiceSuite) TestDeleteByTeam() {
	token, err := s.service.Issue(s.leaderCtx(), s.teamID)
	s.Require().NoError(err)

	s.NoError(s.service.DeleteByTeam(context.Background(), s.teamID))

	_, err = s.service.ConsumeAndJoin(context.Background(), token, s.seedJoiner("orphan"))
	s.True(dErrors.HasCode(err, dErrors.CodeTokenNotFound))

	tokens, err := s.service.ListByTeam(context.Background(), s.teamID)
	s.NoError(err)
	s.Empty(tokens)
}
