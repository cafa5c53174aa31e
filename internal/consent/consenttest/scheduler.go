// Package consenttest provides a deterministic consent.Scheduler for tests.
package consenttest

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/consent"
)

// ManualScheduler fires tasks only when Advance moves its clock past them.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*task
}

type task struct {
	s       *ManualScheduler
	at      time.Duration
	f       func()
	fired   bool
	stopped bool
}

func (t *task) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// AfterFunc implements consent.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) consent.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &task{s: s, at: s.now + d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock and runs every task that became due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []func()
	for _, t := range s.tasks {
		if !t.fired && !t.stopped && t.at <= s.now {
			t.fired = true
			due = append(due, t.f)
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		f()
	}
}

// Pending counts tasks neither fired nor stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}
