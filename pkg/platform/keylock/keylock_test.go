package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	k := New()
	release, err := k.Acquire(context.Background(), "institute-1:software")
	require.NoError(t, err)
	release()

	// Releasing twice is harmless.
	release()

	release, err = k.Acquire(context.Background(), "institute-1:software")
	require.NoError(t, err)
	release()
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	k := New()
	release, err := k.Acquire(context.Background(), "key")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = k.Acquire(ctx, "key")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDistinctKeysDoNotContend(t *testing.T) {
	k := New()
	releaseA, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	releaseB, err := k.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestMutualExclusionUnderContention(t *testing.T) {
	k := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "shared")
			if err != nil {
				return
			}
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestEntriesAreReclaimed(t *testing.T) {
	k := New()
	for i := 0; i < 10; i++ {
		release, err := k.Acquire(context.Background(), "transient")
		require.NoError(t, err)
		release()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries)
}
