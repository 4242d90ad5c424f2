// Package session holds the current result of each viewer's runs.
//
// A Store is a single slot: it holds nothing, the "Running..." placeholder,
// or one completed result. There is no history. Starting a run always
// discards whatever was held, and completions are last-write-wins.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-runner/internal/executor"
)

// RunningPlaceholder is shown while a run is in flight.
const RunningPlaceholder = "Running..."

// State is the slot's position in Idle → Running → Completed.
type State int

const (
	Idle State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "idle"
	}
}

// MarshalJSON renders the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the names MarshalJSON writes.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*s = Idle
	case "running":
		*s = Running
	case "completed":
		*s = Completed
	default:
		return fmt.Errorf("unknown state %q", name)
	}
	return nil
}

// Snapshot is a copy of the slot at one point in time.
type Snapshot struct {
	State State `json:"state"`
	// RunID names the run that set the slot; empty when Idle.
	RunID string `json:"runId,omitempty"`
	// Result is the placeholder while Running and nil when Idle.
	Result *executor.ExecutionResult `json:"result,omitempty"`
	// Version increases with every transition.
	Version uint64 `json:"version"`
}

// Store is the per-session Result Store. It is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	logger     *slog.Logger
	snap       Snapshot
	lastActive time.Time
	subs       map[int]chan Snapshot
	nextSub    int
	closed     bool
}

// NewStore creates an Idle store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger:     logger,
		lastActive: time.Now(),
		subs:       make(map[int]chan Snapshot),
	}
}

// StartRun discards the held value, shows the placeholder and returns the
// new run's ID.
func (s *Store) StartRun() string {
	runID := xid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholder := executor.Console(RunningPlaceholder, false)
	placeholder.RunID = runID
	s.set(Snapshot{State: Running, RunID: runID, Result: &placeholder})
	return runID
}

// Complete stores res as the held result and reports whether runID was still
// the current run. A stale completion still replaces the held value.
func (s *Store) Complete(runID string, res executor.ExecutionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snap.State == Running && s.snap.RunID == runID
	if !current {
		s.logger.Debug("stale run completed",
			slog.String("runId", runID),
			slog.String("currentRunId", s.snap.RunID),
			slog.String("state", s.snap.State.String()),
		)
	}

	res.RunID = runID
	s.set(Snapshot{State: Completed, RunID: runID, Result: &res})
	return current
}

// Clear resets the store to Idle.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(Snapshot{State: Idle})
}

// Current returns a copy of the held value.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	return s.snap.clone()
}

// Subscribe returns a channel that receives the current snapshot and then
// every transition. A subscriber that falls behind only sees the newest
// snapshot. The channel is closed by the returned func or when the store is
// closed.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snap.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// close ends every subscription. Further transitions are still recorded.
func (s *Store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

func (s *Store) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// set must be called with mu held.
func (s *Store) set(next Snapshot) {
	next.Version = s.snap.Version + 1
	s.snap = next
	s.lastActive = time.Now()

	for _, ch := range s.subs {
		publish(ch, next.clone())
	}
}

func publish(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	// Drop the stale snapshot the subscriber has not read yet.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (s Snapshot) clone() Snapshot {
	if s.Result != nil {
		res := *s.Result
		s.Result = &res
	}
	return s
}
