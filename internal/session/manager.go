package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/consentgate/internal/consent"
	"github.com/MrSnakeDoc/consentgate/internal/kv"
	"github.com/MrSnakeDoc/consentgate/internal/logger"
	"github.com/MrSnakeDoc/consentgate/internal/policy"
)

const (
	// DefaultMaxSessions caps concurrently open sessions
	DefaultMaxSessions = 10000
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrInvalidVisitor  = errors.New("invalid visitor id")
	ErrTooManySessions = errors.New("too many open sessions")
)

var visitorIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Observer is notified of the open session count (metrics gauge). It is
// called with the manager's lock held, so counts arrive in the order the
// session map changed; it must not call back into the Manager.
type Observer interface {
	SetActiveSessions(n int)
}

type nopObserver struct{}

func (nopObserver) SetActiveSessions(int) {}

// Config wires a Manager.
type Config struct {
	Store       kv.Scoper
	Scheduler   consent.Scheduler
	Policy      *policy.Policy
	MaxSessions int
	Logger      logger.Logger
	Recorder    consent.Recorder // optional
	Observer    Observer         // optional
}

// Manager owns the open sessions. Every path that drops a session tears
// its controller down so no banner task outlives it.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	policy   *policy.Policy

	store       kv.Scoper
	scheduler   consent.Scheduler
	maxSessions int
	logger      logger.Logger
	recorder    consent.Recorder
	observer    Observer
	now         func() time.Time
}

// NewManager creates an empty session manager
func NewManager(cfg Config) *Manager {
	if cfg.Scheduler == nil {
		cfg.Scheduler = consent.SystemScheduler{}
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.Default()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Recorder == nil {
		cfg.Recorder = consent.NopRecorder{}
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	return &Manager{
		sessions:    make(map[string]*Session),
		policy:      cfg.Policy,
		store:       cfg.Store,
		scheduler:   cfg.Scheduler,
		maxSessions: cfg.MaxSessions,
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
		observer:    cfg.Observer,
		now:         time.Now,
	}
}

// ValidVisitorID reports whether id can scope a visitor's storage.
func ValidVisitorID(id string) bool {
	return visitorIDPattern.MatchString(id)
}

// Open starts a page session for visitorID under the current policy.
func (m *Manager) Open(ctx context.Context, visitorID string) (*Session, error) {
	if !ValidVisitorID(visitorID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVisitor, visitorID)
	}

	m.mu.RLock()
	pol := m.policy
	full := len(m.sessions) >= m.maxSessions
	m.mu.RUnlock()
	if full {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	log := m.logger.With(logger.String("session_id", id), logger.String("visitor_id", visitorID))

	globals := consent.NewGlobals(pol.BootstrapDirectives()...)
	repo := consent.NewRepository(m.store.Scope(visitorID), pol.Keys(), log, m.recorder)
	ctrl := consent.NewController(
		repo,
		consent.NewGlobalSignaler(globals, pol.Analytics.PropertyID, pol.Signals.ExplicitOptIn),
		m.scheduler,
		pol.ControllerOptions(),
		log,
		m.recorder,
	)

	if err := ctrl.Start(ctx); err != nil {
		ctrl.Teardown()
		return nil, fmt.Errorf("failed to start consent controller: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:         id,
		VisitorID:  visitorID,
		CreatedAt:  now,
		Controller: ctrl,
		Globals:    globals,
	}
	s.touch(now)

	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		ctrl.Teardown()
		return nil, ErrTooManySessions
	}
	m.sessions[id] = s
	m.observer.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	log.Debug("session opened", logger.Stringer("state", ctrl.State()))
	return s, nil
}

// Get returns an open session and marks it as seen.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Close tears a session down and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.observer.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Controller.Teardown()
	return nil
}

// CloseIdle tears down sessions not seen for longer than idleTTL.
func (m *Manager) CloseIdle(now time.Time, idleTTL time.Duration) int {
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > idleTTL {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	if len(idle) > 0 {
		m.observer.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Controller.Teardown()
	}
	return len(idle)
}

// CloseAll tears every session down (shutdown).
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.observer.SetActiveSessions(0)
	m.mu.Unlock()

	for _, s := range all {
		s.Controller.Teardown()
	}
	return len(all)
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SetPolicy replaces the policy used by sessions opened from now on.
// Open sessions keep the policy they started with.
func (m *Manager) SetPolicy(p *policy.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

// Policy returns the current policy
func (m *Manager) Policy() *policy.Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}
