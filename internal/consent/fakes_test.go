package consent_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/consent"
	"github.com/MrSnakeDoc/consentgate/internal/domain"
	"github.com/MrSnakeDoc/consentgate/internal/kv"
)

// racyScheduler hands out tasks whose Stop always loses the race, so the
// callback still runs when the test triggers it.
type racyScheduler struct {
	callbacks []func()
}

type racyTask struct{}

func (racyTask) Stop() bool { return false }

func (s *racyScheduler) AfterFunc(_ time.Duration, f func()) consent.Task {
	s.callbacks = append(s.callbacks, f)
	return racyTask{}
}

func (s *racyScheduler) FireAll() {
	for _, f := range s.callbacks {
		f()
	}
}

// recordingSignaler remembers every ApplyPreferences call.
type recordingSignaler struct {
	mu    sync.Mutex
	calls []domain.Preferences
}

func (s *recordingSignaler) ApplyPreferences(prefs domain.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, prefs)
}

func (s *recordingSignaler) Calls() []domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Preferences(nil), s.calls...)
}

// brokenStore fails every operation, like storage disabled by the browser.
type brokenStore struct{}

var errBroken = errors.New("storage disabled")

func (brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (brokenStore) Set(context.Context, string, string) error         { return errBroken }

var _ kv.Store = brokenStore{}

// countingRecorder counts Recorder observations.
type countingRecorder struct {
	mu        sync.Mutex
	banners   int
	decisions []domain.Decision
	failures  map[string]int
	malformed int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{failures: make(map[string]int)}
}

func (r *countingRecorder) BannerShown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banners++
}

func (r *countingRecorder) Decided(kind domain.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, kind)
}

func (r *countingRecorder) StorageFailed(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op]++
}

func (r *countingRecorder) MalformedRecord() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed++
}
