package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-runner/internal/apperror"
)

// Manager owns one Store per session and expires idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Store
	ttl      time.Duration
	logger   *slog.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewManager creates a Manager. Sessions untouched for ttl are removed by
// Sweep; a zero ttl keeps them forever.
func NewManager(ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Store),
		ttl:      ttl,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Create opens a new session.
func (m *Manager) Create() (string, *Store) {
	id := xid.New().String()
	store := NewStore(m.logger.With(slog.String("sessionId", id)))

	m.mu.Lock()
	m.sessions[id] = store
	m.mu.Unlock()

	m.logger.Info("session created", slog.String("id", id))
	return id, store
}

// Get returns the session's store, or apperror.ErrNotFound.
func (m *Manager) Get(id string) (*Store, error) {
	m.mu.RLock()
	store, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	store.touch()
	return store, nil
}

// Delete removes a session and closes its subscriptions.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	store, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return apperror.NotFound("session", id)
	}
	store.close()
	m.logger.Info("session deleted", slog.String("id", id))
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle since before now-ttl and returns how many it
// removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)

	var expired []*Store
	m.mu.Lock()
	for id, store := range m.sessions {
		if store.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, store)
		}
	}
	m.mu.Unlock()

	for _, store := range expired {
		store.close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Start sweeps on interval until Stop is called.
func (m *Manager) Start(interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				m.Sweep(now)
			case <-m.done:
				return
			}
		}
	}()
}

// Stop ends the sweeper and closes every session's subscriptions.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()

		m.mu.Lock()
		defer m.mu.Unlock()
		for _, store := range m.sessions {
			store.close()
		}
	})
}
