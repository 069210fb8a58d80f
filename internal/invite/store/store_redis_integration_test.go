//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hackgate/internal/invite/models"
	"hackgate/internal/invite/store"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
	"hackgate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = store.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func newStoredToken(s *RedisStoreSuite, teamID id.TeamID) *models.Token {
	token := &models.Token{
		ID:         id.NewInviteID(),
		TeamID:     teamID,
		SecretHash: "sha256:deadbeef",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Create(context.Background(), token))
	return token
}

func (s *RedisStoreSuite) TestCreateAndFindRoundtrip() {
	ctx := context.Background()

	created := newStoredToken(s, id.NewTeamID())

	found, err := s.store.Find(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
	s.Equal(created.TeamID, found.TeamID)
	s.Equal(created.SecretHash, found.SecretHash)
	s.True(created.CreatedAt.Equal(found.CreatedAt))
	s.False(found.Consumed())
}

func (s *RedisStoreSuite) TestFindNotFound() {
	_, err := s.store.Find(context.Background(), id.NewInviteID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConsumeOnce() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := id.NewUserID()

	created := newStoredToken(s, id.NewTeamID())
	s.Require().NoError(s.store.Consume(ctx, created.ID, userID, now))

	found, err := s.store.Find(ctx, created.ID)
	s.Require().NoError(err)
	s.Require().True(found.Consumed())
	s.True(now.Equal(*found.ConsumedAt))
	s.Equal(userID, *found.ConsumedBy)

	err = s.store.Consume(ctx, created.ID, id.NewUserID(), now)
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	err = s.store.Consume(ctx, id.NewInviteID(), userID, now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentConsumeSingleWinner verifies the Lua consume script: many
// racing joiners on one token resolve to exactly one success.
func (s *RedisStoreSuite) TestConcurrentConsumeSingleWinner() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	created := newStoredToken(s, id.NewTeamID())
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var usedCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Consume(ctx, created.ID, id.NewUserID(), now)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				usedCount.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), usedCount.Load())
}

func (s *RedisStoreSuite) TestUnconsumeRevertsRollback() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	created := newStoredToken(s, id.NewTeamID())
	s.Require().NoError(s.store.Consume(ctx, created.ID, id.NewUserID(), now))
	s.Require().NoError(s.store.Unconsume(ctx, created.ID))

	found, err := s.store.Find(ctx, created.ID)
	s.Require().NoError(err)
	s.False(found.Consumed())
	s.Nil(found.ConsumedBy)

	// The token is spendable again after the rollback.
	s.Require().NoError(s.store.Consume(ctx, created.ID, id.NewUserID(), now))

	s.Require().ErrorIs(s.store.Unconsume(ctx, id.NewInviteID()), sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestListByTeam() {
	ctx := context.Background()
	teamID := id.NewTeamID()

	first := newStoredToken(s, teamID)
	second := newStoredToken(s, teamID)
	newStoredToken(s, id.NewTeamID())

	tokens, err := s.store.ListByTeam(ctx, teamID)
	s.Require().NoError(err)
	s.Require().Len(tokens, 2)
	seen := map[id.InviteID]bool{}
	for _, token := range tokens {
		seen[token.ID] = true
	}
	s.True(seen[first.ID])
	s.True(seen[second.ID])
}

func (s *RedisStoreSuite) TestDeleteRemovesFromTeamSet() {
	ctx := context.Background()
	teamID := id.NewTeamID()

	created := newStoredToken(s, teamID)
	s.Require().NoError(s.store.Delete(ctx, created.ID))

	_, err := s.store.Find(ctx, created.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	tokens, err := s.store.ListByTeam(ctx, teamID)
	s.Require().NoError(err)
	s.Empty(tokens)

	s.Require().ErrorIs(s.store.Delete(ctx, created.ID), sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDeleteByTeam() {
	ctx := context.Background()
	teamID := id.NewTeamID()

	first := newStoredToken(s, teamID)
	second := newStoredToken(s, teamID)
	other := newStoredToken(s, id.NewTeamID())

	s.Require().NoError(s.store.DeleteByTeam(ctx, teamID))

	for _, inviteID := range []id.InviteID{first.ID, second.ID} {
		_, err := s.store.Find(ctx, inviteID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	}
	_, err := s.store.Find(ctx, other.ID)
	s.Require().NoError(err)
}
