package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearGateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HACKGATE_SELECTION_OPENS_AT",
		"HACKGATE_EVALUATION_WINDOW_START",
		"HACKGATE_EVALUATION_WINDOW_END",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearGateEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 3*time.Second, cfg.LockTimeout)
	require.Equal(t, 3, cfg.UpdateRetries)

	// Unset gates stay zero: selection remains locked and the evaluation
	// window is unbounded. Neither default opens a gate.
	require.True(t, cfg.SelectionOpensAt.IsZero())
	require.True(t, cfg.EvaluationWindowStart.IsZero())
	require.True(t, cfg.EvaluationWindowEnd.IsZero())
}

func TestFromEnvParsesGates(t *testing.T) {
	clearGateEnv(t)
	t.Setenv("HACKGATE_SELECTION_OPENS_AT", "2026-04-01T00:00:00Z")
	t.Setenv("HACKGATE_EVALUATION_WINDOW_START", "2026-01-01T00:00:00Z")
	t.Setenv("HACKGATE_EVALUATION_WINDOW_END", "2026-12-31T00:00:00Z")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), cfg.SelectionOpensAt)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), cfg.EvaluationWindowStart)
	require.Equal(t, time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), cfg.EvaluationWindowEnd)
}

func TestFromEnvRejectsMalformedGates(t *testing.T) {
	for _, key := range []string{
		"HACKGATE_SELECTION_OPENS_AT",
		"HACKGATE_EVALUATION_WINDOW_START",
		"HACKGATE_EVALUATION_WINDOW_END",
	} {
		t.Run(key, func(t *testing.T) {
			clearGateEnv(t)
			t.Setenv(key, "2026-04-01")

			_, err := FromEnv()
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestFromEnvRejectsInvertedWindow(t *testing.T) {
	clearGateEnv(t)
	t.Setenv("HACKGATE_EVALUATION_WINDOW_START", "2026-12-31T00:00:00Z")
	t.Setenv("HACKGATE_EVALUATION_WINDOW_END", "2026-01-01T00:00:00Z")

	_, err := FromEnv()
	require.Error(t, err)
}
