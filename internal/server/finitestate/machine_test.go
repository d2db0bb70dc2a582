package finitestate

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(t *testing.T) Machine {
	t.Helper()
	m, err := New(slog.Default().Handler())
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	t.Parallel()
	m := newMachine(t)
	assert.Equal(t, StatusNew, m.GetState())
	require.NoError(t, m.Transition(StatusBooting))
	require.NoError(t, m.Transition(StatusRunning))
	assert.Error(t, m.Transition(StatusNew))
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	t.Run("from running", func(t *testing.T) {
		t.Parallel()
		m := newMachine(t)
		require.NoError(t, m.Transition(StatusBooting))
		require.NoError(t, m.Transition(StatusRunning))
		require.NoError(t, Shutdown(m))
		assert.Equal(t, StatusStopped, m.GetState())
	})

	t.Run("already stopping", func(t *testing.T) {
		t.Parallel()
		m := newMachine(t)
		require.NoError(t, m.Transition(StatusBooting))
		require.NoError(t, m.Transition(StatusRunning))
		require.NoError(t, m.Transition(StatusStopping))
		require.NoError(t, Shutdown(m))
		assert.Equal(t, StatusStopped, m.GetState())
	})

	t.Run("from new is rejected", func(t *testing.T) {
		t.Parallel()
		m := newMachine(t)
		assert.Error(t, Shutdown(m))
	})
}

func TestFail(t *testing.T) {
	t.Parallel()
	m := newMachine(t)
	require.NoError(t, m.Transition(StatusBooting))
	Fail(m, slog.Default())
	assert.Equal(t, StatusError, m.GetState())
}
