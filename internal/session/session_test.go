package session_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/snippet-runner/internal/apperror"
	"github.com/sakif/snippet-runner/internal/executor"
	"github.com/sakif/snippet-runner/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStore_Transitions(t *testing.T) {
	s := session.NewStore(testLogger())

	snap := s.Current()
	assert.Equal(t, session.Idle, snap.State)
	assert.Nil(t, snap.Result)

	runID := s.StartRun()
	require.NotEmpty(t, runID)
	snap = s.Current()
	assert.Equal(t, session.Running, snap.State)
	assert.Equal(t, runID, snap.RunID)
	require.NotNil(t, snap.Result)
	assert.Equal(t, session.RunningPlaceholder, snap.Result.Content)

	assert.True(t, s.Complete(runID, executor.Console("done", false)))
	snap = s.Current()
	assert.Equal(t, session.Completed, snap.State)
	assert.Equal(t, "done", snap.Result.Content)
	assert.Equal(t, runID, snap.Result.RunID)

	s.Clear()
	snap = s.Current()
	assert.Equal(t, session.Idle, snap.State)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.RunID)
}

func TestStore_StartRunDiscardsPrevious(t *testing.T) {
	s := session.NewStore(testLogger())

	first := s.StartRun()
	s.Complete(first, executor.Console("first", false))

	s.StartRun()
	snap := s.Current()
	assert.Equal(t, session.Running, snap.State)
	assert.Equal(t, session.RunningPlaceholder, snap.Result.Content)
}

func TestStore_SequentialRuns(t *testing.T) {
	s := session.NewStore(testLogger())

	first := s.StartRun()
	s.Complete(first, executor.Console("first", false))
	second := s.StartRun()
	s.Complete(second, executor.Console("second", false))

	snap := s.Current()
	assert.Equal(t, "second", snap.Result.Content)
	assert.Equal(t, second, snap.RunID)
}

func TestStore_LastWriteWins(t *testing.T) {
	s := session.NewStore(testLogger())

	first := s.StartRun()
	second := s.StartRun()

	assert.True(t, s.Complete(second, executor.Console("second", false)))
	assert.False(t, s.Complete(first, executor.Console("first", false)))

	snap := s.Current()
	assert.Equal(t, "first", snap.Result.Content)
	assert.Equal(t, first, snap.RunID)
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	s := session.NewStore(testLogger())
	runID := s.StartRun()
	s.Complete(runID, executor.Console("kept", false))

	snap := s.Current()
	snap.Result.Content = "mutated"
	assert.Equal(t, "kept", s.Current().Result.Content)
}

func TestStore_Subscribe(t *testing.T) {
	s := session.NewStore(testLogger())
	ch, unsubscribe := s.Subscribe()

	initial := <-ch
	assert.Equal(t, session.Idle, initial.State)

	runID := s.StartRun()
	running := <-ch
	assert.Equal(t, session.Running, running.State)
	assert.Greater(t, running.Version, initial.Version)

	s.Complete(runID, executor.Console("out", false))
	done := <-ch
	assert.Equal(t, session.Completed, done.State)
	assert.Equal(t, "out", done.Result.Content)

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	unsubscribe()
}

func TestStore_SlowSubscriberSeesNewest(t *testing.T) {
	s := session.NewStore(testLogger())
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	for range 5 {
		id := s.StartRun()
		s.Complete(id, executor.Console("latest", false))
	}

	snap := <-ch
	assert.Equal(t, session.Completed, snap.State)
	assert.Equal(t, uint64(10), snap.Version)
}

func TestManager(t *testing.T) {
	m := session.NewManager(time.Minute, testLogger())
	defer m.Stop()

	id, store := m.Create()
	require.NotEmpty(t, id)

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, store, got)
	assert.Equal(t, 1, m.Len())

	_, err = m.Get("missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	ch, _ := store.Subscribe()
	<-ch

	require.NoError(t, m.Delete(id))
	_, open := <-ch
	assert.False(t, open, "deleting a session closes its subscriptions")

	assert.True(t, errors.Is(m.Delete(id), apperror.ErrNotFound))
	assert.Equal(t, 0, m.Len())
}

func TestManager_Sweep(t *testing.T) {
	m := session.NewManager(time.Minute, testLogger())
	defer m.Stop()

	m.Create()
	m.Create()

	assert.Equal(t, 0, m.Sweep(time.Now()))
	assert.Equal(t, 2, m.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, m.Len())
}

func TestManager_NoTTL(t *testing.T) {
	m := session.NewManager(0, testLogger())
	defer m.Stop()

	m.Create()
	assert.Equal(t, 0, m.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, m.Len())
}
