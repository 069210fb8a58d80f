//go:build integration

package team_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hackgate/internal/registry/models"
	"hackgate/internal/registry/store/team"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
	"hackgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *team.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = team.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "team_members", "teams")
	s.Require().NoError(err)
}

func newStoredTeam(s *PostgresStoreSuite, name string) *models.Team {
	now := time.Now().UTC().Truncate(time.Microsecond)
	leader := models.MemberRef{
		UserID: id.NewUserID(),
		Name:   "Asha Rao",
		Email:  "asha@example.edu",
		Gender: id.GenderFemale,
	}
	t, err := models.NewTeam(id.NewTeamID(), name, "IIT Indore", leader, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), t))
	return t
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundtrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created := newStoredTeam(s, "Roundtrip")
	s.Require().NoError(created.AddMember(models.MemberRef{
		UserID: id.NewUserID(),
		Name:   "Dev Mehta",
		Email:  "dev@example.edu",
		Gender: id.GenderMale,
	}, now))
	s.Require().NoError(created.SetProblemStatement(id.NewProblemID(), id.CategorySoftware, now))
	s.Require().NoError(s.store.Update(ctx, created))

	found, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
	s.Equal(created.Name, found.Name)
	s.Equal(created.Institute, found.Institute)
	s.Equal(created.Leader, found.Leader)
	s.Equal(created.Members, found.Members)
	s.Equal(id.CategorySoftware, found.Category)
	s.Require().NotNil(found.ProblemID)
	s.Equal(*created.ProblemID, *found.ProblemID)
	s.False(found.Nominated)
	s.Equal(int64(2), found.Version)
}

func (s *PostgresStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(context.Background(), id.NewTeamID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByMemberUsesSideTable() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created := newStoredTeam(s, "Side Table")
	joiner := models.MemberRef{
		UserID: id.NewUserID(),
		Name:   "Ravi Iyer",
		Email:  "ravi@example.edu",
		Gender: id.GenderMale,
	}
	s.Require().NoError(created.AddMember(joiner, now))
	s.Require().NoError(s.store.Update(ctx, created))

	byLeader, err := s.store.FindByMember(ctx, created.Leader.UserID)
	s.Require().NoError(err)
	s.Equal(created.ID, byLeader.ID)

	byJoiner, err := s.store.FindByMember(ctx, joiner.UserID)
	s.Require().NoError(err)
	s.Equal(created.ID, byJoiner.ID)

	_, err = s.store.FindByMember(ctx, id.NewUserID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateStaleVersionConflict() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created := newStoredTeam(s, "Stale")
	stale := *created

	s.Require().NoError(created.Rename("Fresh", now))
	s.Require().NoError(s.store.Update(ctx, created))

	s.Require().NoError(stale.Rename("Too Late", now))
	err := s.store.Update(ctx, &stale)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	found, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("Fresh", found.Name)
}

// TestConcurrentJoinSingleWinner verifies that one identity cannot land on
// two teams: concurrent roster writes adding the same user resolve to exactly
// one success through the unique index on team_members.
func (s *PostgresStoreSuite) TestConcurrentJoinSingleWinner() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	joiner := models.MemberRef{
		UserID: id.NewUserID(),
		Name:   "Hot Commodity",
		Email:  "wanted@example.edu",
		Gender: id.GenderOther,
	}

	const teams = 10
	candidates := make([]*models.Team, teams)
	for i := range candidates {
		candidates[i] = newStoredTeam(s, "Rival "+id.NewTeamID().String())
	}

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32
	for _, candidate := range candidates {
		wg.Add(1)
		go func(t *models.Team) {
			defer wg.Done()
			if err := t.AddMember(joiner, now); err != nil {
				return
			}
			err := s.store.Update(ctx, t)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}(candidate)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(teams-1), conflictCount.Load())

	winner, err := s.store.FindByMember(ctx, joiner.UserID)
	s.Require().NoError(err)
	s.Equal(2, winner.RosterSize())
}

func (s *PostgresStoreSuite) TestCountNominatedBuckets() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	nominate := func(name string, category id.Category) {
		t := newStoredTeam(s, name)
		s.Require().NoError(t.SetProblemStatement(id.NewProblemID(), category, now))
		t.MarkNominated(now)
		s.Require().NoError(s.store.Update(ctx, t))
	}
	nominate("Soft One", id.CategorySoftware)
	nominate("Hard One", id.CategoryHardware)
	nominate("Mixed One", id.CategoryHardwareSoftware)

	// An un-nominated team never counts against the quota.
	pending := newStoredTeam(s, "Pending")
	s.Require().NoError(pending.SetProblemStatement(id.NewProblemID(), id.CategoryHardware, now))
	s.Require().NoError(s.store.Update(ctx, pending))

	software, err := s.store.CountNominated(ctx, "IIT Indore", id.CategorySoftware)
	s.Require().NoError(err)
	s.Equal(1, software)

	// The hardware bucket absorbs hardware_software teams.
	hardware, err := s.store.CountNominated(ctx, "IIT Indore", id.CategoryHardware)
	s.Require().NoError(err)
	s.Equal(2, hardware)

	elsewhere, err := s.store.CountNominated(ctx, "IIT Bombay", id.CategoryHardware)
	s.Require().NoError(err)
	s.Equal(0, elsewhere)
}

func (s *PostgresStoreSuite) TestListByInstitute() {
	ctx := context.Background()

	first := newStoredTeam(s, "Alpha")
	time.Sleep(2 * time.Millisecond)
	second := newStoredTeam(s, "Beta")

	teams, err := s.store.ListByInstitute(ctx, "IIT Indore")
	s.Require().NoError(err)
	s.Require().Len(teams, 2)
	s.Equal(first.ID, teams[0].ID)
	s.Equal(second.ID, teams[1].ID)

	none, err := s.store.ListByInstitute(ctx, "IIT Bombay")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *PostgresStoreSuite) TestDeleteCascadesMembership() {
	ctx := context.Background()

	created := newStoredTeam(s, "Doomed")
	s.Require().NoError(s.store.Delete(ctx, created.ID))

	_, err := s.store.FindByID(ctx, created.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByMember(ctx, created.Leader.UserID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, created.ID), sentinel.ErrNotFound)
}
