package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hackgate/internal/nomination/models"
	nominationStore "hackgate/internal/nomination/store"
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
// Nomination Service Test Suite
// =============================================================================
// Justification for unit tests: the quota ceiling is the invariant this whole
// module exists for. The overshoot property (N concurrent nominations against
// a limit of k admit exactly k) has to be exercised with controlled stores.

type NominationServiceSuite struct {
	suite.Suite
	institutes *nominationStore.InMemoryStore
	teams      *teamStore.InMemoryStore
	profiles   *profile.InMemoryStore
	registry   *registryservice.Service
	service    *Service

	institute *models.Institute
	now       time.Time
}

func TestNominationServiceSuite(t *testing.T) {
	suite.Run(t, new(NominationServiceSuite))
}

func (s *NominationServiceSuite) SetupTest() {
	s.institutes = nominationStore.NewInMemoryStore()
	s.teams = teamStore.NewInMemoryStore()
	s.profiles = profile.NewInMemoryStore()
	s.registry = registryservice.New(s.teams, s.profiles)
	s.now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	s.service = New(s.institutes, s.registry, s.teams, s.profiles, keylock.New(),
		WithEvaluationWindow(
			time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		))

	institute, err := s.service.CreateInstitute(context.Background(), "IIT Indore", 2, 2, false)
	s.Require().NoError(err)
	// Both evaluation dates are in the past relative to s.now, so the
	// nomination window is open.
	institute, err = s.service.SetEvaluationDates(context.Background(), institute.ID, []time.Time{
		s.now.Add(-48 * time.Hour),
		s.now.Add(-24 * time.Hour),
	})
	s.Require().NoError(err)
	s.institute = institute
}

func (s *NominationServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

// seedRegisteredTeam stores a team that satisfies every registration
// predicate: full roster, a female member, institute majority, problem set.
func (s *NominationServiceSuite) seedRegisteredTeam(name string, category id.Category) *registrymodels.Team {
	leader := s.seedProfile(name+"-leader", id.GenderFemale, "IIT Indore")
	team, err := registrymodels.NewTeam(id.NewTeamID(), name, "IIT Indore", leader, s.now)
	s.Require().NoError(err)
	for i := 0; i < registrymodels.MaxRosterSize-1; i++ {
		member := s.seedProfile(fmt.Sprintf("%s-m%d", name, i), id.GenderMale, "IIT Indore")
		s.Require().NoError(team.AddMember(member, s.now))
	}
	s.Require().NoError(team.SetProblemStatement(id.NewProblemID(), category, s.now))
	s.Require().NoError(s.teams.Create(context.Background(), team))
	return team
}

func (s *NominationServiceSuite) seedProfile(name string, gender id.Gender, institute string) registrymodels.MemberRef {
	userID := id.NewUserID()
	s.profiles.Seed(profile.Profile{
		ID:        userID,
		Name:      name,
		Email:     name + "@example.edu",
		Gender:    gender,
		Institute: institute,
		Role:      string(requestcontext.RoleParticipant),
	})
	return registrymodels.MemberRef{UserID: userID, Name: name, Gender: gender}
}

// =============================================================================
// Nominate Tests
// =============================================================================

func (s *NominationServiceSuite) TestNominate() {
	s.Run("registered team under quota succeeds", func() {
		team := s.seedRegisteredTeam("alpha", id.CategorySoftware)
		nominated, err := s.service.Nominate(s.ctx(), team.ID)
		s.NoError(err)
		s.True(nominated.Nominated)
	})

	s.Run("re-nominating an already nominated team is a no-op success", func() {
		team := s.seedRegisteredTeam("beta", id.CategorySoftware)
		_, err := s.service.Nominate(s.ctx(), team.ID)
		s.Require().NoError(err)

		nominated, err := s.service.Nominate(s.ctx(), team.ID)
		s.NoError(err)
		s.True(nominated.Nominated)

		count, err := s.teams.CountNominated(context.Background(), "IIT Indore", id.CategorySoftware)
		s.NoError(err)
		s.Equal(2, count) // alpha from the previous subtest plus beta, once each
	})

	s.Run("team without a category is rejected", func() {
		leader := s.seedProfile("catless-leader", id.GenderFemale, "IIT Indore")
		team, err := registrymodels.NewTeam(id.NewTeamID(), "catless", "IIT Indore", leader, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.teams.Create(context.Background(), team))

		_, err = s.service.Nominate(s.ctx(), team.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("incomplete roster is rejected", func() {
		leader := s.seedProfile("small-leader", id.GenderFemale, "IIT Indore")
		team, err := registrymodels.NewTeam(id.NewTeamID(), "small", "IIT Indore", leader, s.now)
		s.Require().NoError(err)
		s.Require().NoError(team.SetProblemStatement(id.NewProblemID(), id.CategorySoftware, s.now))
		s.Require().NoError(s.teams.Create(context.Background(), team))

		_, err = s.service.Nominate(s.ctx(), team.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("nomination before the second evaluation date is rejected", func() {
		team := s.seedRegisteredTeam("early", id.CategorySoftware)
		early := requestcontext.WithTime(context.Background(), s.now.Add(-36*time.Hour))
		_, err := s.service.Nominate(early, team.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown team is not found", func() {
		_, err := s.service.Nominate(s.ctx(), id.NewTeamID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown institute is not found", func() {
		leader := s.seedProfile("lost-leader", id.GenderFemale, "Nowhere College")
		team, err := registrymodels.NewTeam(id.NewTeamID(), "lost", "Nowhere College", leader, s.now)
		s.Require().NoError(err)
		for i := 0; i < registrymodels.MaxRosterSize-1; i++ {
			member := s.seedProfile(fmt.Sprintf("lost-m%d", i), id.GenderMale, "Nowhere College")
			s.Require().NoError(team.AddMember(member, s.now))
		}
		s.Require().NoError(team.SetProblemStatement(id.NewProblemID(), id.CategorySoftware, s.now))
		s.Require().NoError(s.teams.Create(context.Background(), team))

		_, err = s.service.Nominate(s.ctx(), team.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Quota Tests
// =============================================================================

func (s *NominationServiceSuite) TestQuota() {
	s.Run("nomination over the ceiling fails with quota_exceeded", func() {
		for i := 0; i < 2; i++ {
			team := s.seedRegisteredTeam(fmt.Sprintf("filled-%d", i), id.CategorySoftware)
			_, err := s.service.Nominate(s.ctx(), team.ID)
			s.Require().NoError(err)
		}

		extra := s.seedRegisteredTeam("extra", id.CategorySoftware)
		_, err := s.service.Nominate(s.ctx(), extra.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
	})

	s.Run("buckets are independent", func() {
		team := s.seedRegisteredTeam("hw", id.CategoryHardware)
		_, err := s.service.Nominate(s.ctx(), team.ID)
		s.NoError(err)
	})

	s.Run("hardware and software combined teams count against the hardware bucket", func() {
		combo := s.seedRegisteredTeam("combo", id.CategoryHardwareSoftware)
		_, err := s.service.Nominate(s.ctx(), combo.ID)
		s.Require().NoError(err)

		// hw + combo fill the hardware ceiling of 2.
		another := s.seedRegisteredTeam("hw-late", id.CategoryHardware)
		_, err = s.service.Nominate(s.ctx(), another.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
	})

	s.Run("withdrawal frees the slot", func() {
		nominated, err := s.service.ListNominated(s.ctx(), "IIT Indore")
		s.Require().NoError(err)
		var victim *registrymodels.Team
		for _, t := range nominated {
			if t.Category == id.CategorySoftware {
				victim = t
				break
			}
		}
		s.Require().NotNil(victim)

		_, err = s.service.Withdraw(s.ctx(), victim.ID)
		s.Require().NoError(err)

		replacement := s.seedRegisteredTeam("replacement", id.CategorySoftware)
		_, err = s.service.Nominate(s.ctx(), replacement.ID)
		s.NoError(err)
	})
}

func (s *NominationServiceSuite) TestQuotaOvershootProperty() {
	// N concurrent nominations against a ceiling of k admit exactly k.
	const n = 8
	const limit = 2

	teams := make([]*registrymodels.Team, n)
	for i := range teams {
		teams[i] = s.seedRegisteredTeam(fmt.Sprintf("racer-%d", i), id.CategorySoftware)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.Nominate(s.ctx(), teams[i].ID)
		}(i)
	}
	wg.Wait()

	wins, rejections := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case dErrors.HasCode(err, dErrors.CodeQuotaExceeded):
			rejections++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(limit, wins)
	s.Equal(n-limit, rejections)

	count, err := s.teams.CountNominated(context.Background(), "IIT Indore", id.CategorySoftware)
	s.NoError(err)
	s.Equal(limit, count)
}

// =============================================================================
// Withdraw Tests
// =============================================================================

func (s *NominationServiceSuite) TestWithdraw() {
	s.Run("withdrawing a nominated team clears the flag and status", func() {
		team := s.seedRegisteredTeam("gamma", id.CategorySoftware)
		_, err := s.service.Nominate(s.ctx(), team.ID)
		s.Require().NoError(err)

		withdrawn, err := s.service.Withdraw(s.ctx(), team.ID)
		s.NoError(err)
		s.False(withdrawn.Nominated)
		s.Equal(id.SelectionUnset, withdrawn.SelectionStatus)
	})

	s.Run("withdrawing a never-nominated team is a no-op success", func() {
		team := s.seedRegisteredTeam("delta", id.CategorySoftware)
		withdrawn, err := s.service.Withdraw(s.ctx(), team.ID)
		s.NoError(err)
		s.False(withdrawn.Nominated)
	})

	s.Run("unknown team is not found", func() {
		_, err := s.service.Withdraw(s.ctx(), id.NewTeamID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Evaluation Schedule Tests
// =============================================================================

func (s *NominationServiceSuite) TestSetEvaluationDates() {
	base := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

	s.Run("two strictly increasing dates inside the window are accepted", func() {
		institute, err := s.service.SetEvaluationDates(s.ctx(), s.institute.ID, []time.Time{
			base, base.Add(24 * time.Hour),
		})
		s.NoError(err)
		s.Len(institute.EvaluationDates, 2)
	})

	s.Run("wrong date count is invalid", func() {
		_, err := s.service.SetEvaluationDates(s.ctx(), s.institute.ID, []time.Time{base})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDateSet))

		_, err = s.service.SetEvaluationDates(s.ctx(), s.institute.ID, []time.Time{
			base, base.Add(time.Hour), base.Add(2 * time.Hour), base.Add(3 * time.Hour),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDateSet))
	})

	s.Run("multi-round institute takes four dates", func() {
		multi, err := s.service.CreateInstitute(context.Background(), "IIT Bombay", 4, 4, true)
		s.Require().NoError(err)

		_, err = s.service.SetEvaluationDates(s.ctx(), multi.ID, []time.Time{
			base, base.Add(time.Hour), base.Add(2 * time.Hour), base.Add(3 * time.Hour),
		})
		s.NoError(err)

		_, err = s.service.SetEvaluationDates(s.ctx(), multi.ID, []time.Time{base, base.Add(time.Hour)})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDateSet))
	})

	s.Run("non-increasing dates are invalid", func() {
		_, err := s.service.SetEvaluationDates(s.ctx(), s.institute.ID, []time.Time{base, base})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDateSet))

		_, err = s.service.SetEvaluationDates(s.ctx(), s.institute.ID, []time.Time{base.Add(time.Hour), base})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDateSet))
	})

	s.Run("an unconfigured window accepts any ordered schedule", func() {
		unbounded := New(s.institutes, s.registry, s.teams, s.profiles, keylock.New())
		institute, err := unbounded.CreateInstitute(context.Background(), "NIT Trichy", 2, 2, false)
		s.Require().NoError(err)

		institute, err = unbounded.SetEvaluationDates(s.ctx(), institute.ID, []time.Time{
			s.now, s.now.Add(24 * time.Hour),
		})
		s.NoError(err)
		s.Len(institute.EvaluationDates, 2)
	})

	s.Run("dates outside the global window are invalid", func() {
		_, err := s.service.SetEvaluationDates(s.ctx(), s.institute.ID, []time.Time{
			time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
			base,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDateSet))

		_, err = s.service.SetEvaluationDates(s.ctx(), s.institute.ID, []time.Time{
			base,
			time.Date(2027, time.June, 1, 0, 0, 0, 0, time.UTC),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidDateSet))
	})

	s.Run("unknown institute is not found", func() {
		_, err := s.service.SetEvaluationDates(s.ctx(), id.NewInstituteID(), []time.Time{base, base.Add(time.Hour)})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Usage Tests
// =============================================================================

func (s *NominationServiceSuite) TestUsage() {
	team := s.seedRegisteredTeam("usage", id.CategorySoftware)
	_, err := s.service.Nominate(s.ctx(), team.ID)
	s.Require().NoError(err)

	usage, err := s.service.Usage(s.ctx(), s.institute.ID)
	s.NoError(err)
	s.Require().Len(usage, 2)
	s.Equal(id.CategorySoftware, usage[0].Bucket)
	s.Equal(1, usage[0].Used)
	s.Equal(2, usage[0].Limit)
	s.Equal(id.CategoryHardware, usage[1].Bucket)
	s.Equal(0, usage[1].Used)
}
