package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackgate/internal/invite/models"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

func newToken(teamID id.TeamID) *models.Token {
	return &models.Token{
		ID:         id.NewInviteID(),
		TeamID:     teamID,
		SecretHash: "hash",
		CreatedAt:  time.Now(),
	}
}

func TestInMemoryStoreConsume(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	teamID := id.NewTeamID()
	token := newToken(teamID)
	require.NoError(t, store.Create(ctx, token))

	t.Run("first consume wins, second sees already used", func(t *testing.T) {
		require.NoError(t, store.Consume(ctx, token.ID, id.NewUserID(), time.Now()))
		assert.ErrorIs(t, store.Consume(ctx, token.ID, id.NewUserID(), time.Now()), sentinel.ErrAlreadyUsed)

		found, err := store.Find(ctx, token.ID)
		require.NoError(t, err)
		assert.True(t, found.Consumed())
		assert.NotNil(t, found.ConsumedBy)
	})

	t.Run("unconsume restores the token", func(t *testing.T) {
		require.NoError(t, store.Unconsume(ctx, token.ID))
		found, err := store.Find(ctx, token.ID)
		require.NoError(t, err)
		assert.False(t, found.Consumed())
		require.NoError(t, store.Consume(ctx, token.ID, id.NewUserID(), time.Now()))
	})

	t.Run("missing token is not found", func(t *testing.T) {
		assert.ErrorIs(t, store.Consume(ctx, id.NewInviteID(), id.NewUserID(), time.Now()), sentinel.ErrNotFound)
	})
}

func TestInMemoryStoreConsumeRace(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	token := newToken(id.NewTeamID())
	require.NoError(t, store.Create(ctx, token))

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Consume(ctx, token.ID, id.NewUserID(), time.Now())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestInMemoryStoreTeamScope(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	teamA, teamB := id.NewTeamID(), id.NewTeamID()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Create(ctx, newToken(teamA)))
	}
	keeper := newToken(teamB)
	require.NoError(t, store.Create(ctx, keeper))

	tokens, err := store.ListByTeam(ctx, teamA)
	require.NoError(t, err)
	assert.Len(t, tokens, 3)

	require.NoError(t, store.DeleteByTeam(ctx, teamA))
	tokens, err = store.ListByTeam(ctx, teamA)
	require.NoError(t, err)
	assert.Empty(t, tokens)

	// The other team's token survives.
	_, err = store.Find(ctx, keeper.ID)
	assert.NoError(t, err)
}
