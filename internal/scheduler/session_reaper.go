package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/logger"
)

const (
	// DefaultIdleTTL is how long a session may go unseen before it is torn down
	DefaultIdleTTL = 30 * time.Minute
)

// IdleCloser is the part of the session manager the reaper drives.
type IdleCloser interface {
	CloseIdle(now time.Time, idleTTL time.Duration) int
}

// ReapObserver is told how many sessions each sweep closed.
type ReapObserver interface {
	AddReaped(n int)
}

// SessionReaper tears down sessions nobody has touched for a while,
// the way a browser drops a page that was closed without unloading.
type SessionReaper struct {
	sessions IdleCloser
	observer ReapObserver
	logger   logger.Logger
	interval time.Duration
	idleTTL  time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewSessionReaper creates a new session reaper
func NewSessionReaper(
	sessions IdleCloser,
	observer ReapObserver,
	log logger.Logger,
	interval time.Duration,
	idleTTL time.Duration,
) *SessionReaper {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	return &SessionReaper{
		sessions: sessions,
		observer: observer,
		logger:   log,
		interval: interval,
		idleTTL:  idleTTL,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (r *SessionReaper) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reaper
func (r *SessionReaper) Stop() {
	close(r.stopCh)
}

// Sweep closes idle sessions once and returns how many were closed.
func (r *SessionReaper) Sweep() int {
	closed := r.sessions.CloseIdle(r.now(), r.idleTTL)

	if closed > 0 {
		if r.observer != nil {
			r.observer.AddReaped(closed)
		}
		r.logger.Info("idle sessions reaped",
			logger.Int("closed", closed),
			logger.Duration("idle_ttl", r.idleTTL))
	} else {
		r.logger.Debug("no idle sessions to reap")
	}

	return closed
}
