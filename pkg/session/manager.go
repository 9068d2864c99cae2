package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks. Non-positive values keep the default.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithClock sets the time source for new sessions and recorded questions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (domain.SessionState, error) {
	var state domain.SessionState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// LoadOrStart tries to load a session. If not found, it initializes a new one.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string) (domain.SessionState, error) {
	var state domain.SessionState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.loadOrStart(ctx, sessionID)
		return err
	})
	return state, err
}

func (m *Manager) loadOrStart(ctx context.Context, sessionID string) (domain.SessionState, error) {
	state, err := m.store.Load(ctx, sessionID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return state, fmt.Errorf("failed to check session existence: %w", err)
	}

	state = domain.NewSessionState(sessionID, m.now())

	// Persist immediately to reserve the ID
	if err := m.store.Save(ctx, sessionID, state); err != nil {
		return state, fmt.Errorf("failed to initialize session: %w", err)
	}
	m.logger.Debug("Session started", "session_id", sessionID)
	return state, nil
}

// Save persists the session state.
func (m *Manager) Save(ctx context.Context, sessionID string, state domain.SessionState) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, state)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The turn's ctx may already be cancelled; releasing must still happen.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Recorder persists what a turn event changes in the session. It returns the
// diff that was saved, or nil when the event carries no session change.
type Recorder func(ev domain.StreamEvent) (*domain.SessionDiff, error)

// Turn runs fn with exclusive access to the session. fn receives the current
// state (a new session when none exists) and a Recorder bound to message, the
// user's text for this turn. Turns of the same session never overlap.
func (m *Manager) Turn(ctx context.Context, sessionID, message string, fn func(ctx context.Context, state domain.SessionState, record Recorder) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := m.loadOrStart(ctx, sessionID)
		if err != nil {
			return err
		}

		current := state
		record := func(ev domain.StreamEvent) (*domain.SessionDiff, error) {
			next, ok := m.apply(current, message, ev)
			if !ok {
				return nil, nil
			}
			if err := m.store.Save(ctx, sessionID, next); err != nil {
				return nil, fmt.Errorf("failed to save session: %w", err)
			}
			diff := domain.Diff(&current, &next)
			current = next
			return diff, nil
		}
		return fn(ctx, state, record)
	})
}

// RecordClarification stores req, asked in reply to message, as the pending
// question of the session.
func (m *Manager) RecordClarification(ctx context.Context, sessionID, message string, req domain.ClarificationRequest, cls domain.Classification) (*domain.SessionDiff, error) {
	return m.record(ctx, sessionID, func(current domain.SessionState) domain.SessionState {
		return current.WithQuestion(message, req, cls, m.now())
	})
}

// RecordTurn stores the state carried by a StateUpdate event.
func (m *Manager) RecordTurn(ctx context.Context, sessionID string, state domain.SessionState) (*domain.SessionDiff, error) {
	return m.record(ctx, sessionID, func(domain.SessionState) domain.SessionState {
		return state.Clone()
	})
}

func (m *Manager) record(ctx context.Context, sessionID string, next func(domain.SessionState) domain.SessionState) (*domain.SessionDiff, error) {
	var diff *domain.SessionDiff
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		current, err := m.loadOrStart(ctx, sessionID)
		if err != nil {
			return err
		}
		updated := next(current)
		updated.SessionID = sessionID
		if err := m.store.Save(ctx, sessionID, updated); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		diff = domain.Diff(&current, &updated)
		return nil
	})
	return diff, err
}

// apply computes the session that follows ev. Only StateUpdate and
// Clarification events change a session.
func (m *Manager) apply(current domain.SessionState, message string, ev domain.StreamEvent) (domain.SessionState, bool) {
	switch ev.Kind {
	case domain.EventStateUpdate:
		if ev.State == nil {
			return current, false
		}
		next := ev.State.Clone()
		next.SessionID = current.SessionID
		return next, true

	case domain.EventClarification:
		if ev.Clarification == nil {
			return current, false
		}
		var cls domain.Classification
		if ev.Classification != nil {
			cls = *ev.Classification
		}
		return current.WithQuestion(message, *ev.Clarification, cls, m.now()), true
	}
	return current, false
}
