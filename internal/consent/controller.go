package consent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/domain"
	"github.com/MrSnakeDoc/consentgate/internal/logger"
)

var (
	ErrTornDown          = errors.New("consent controller torn down")
	ErrAlreadyStarted    = errors.New("consent controller already started")
	ErrNotStarted        = errors.New("consent controller not started")
	ErrInvalidTransition = errors.New("invalid consent transition")
)

// DecisionStore is the persistence the controller needs; *Repository
// implements it.
type DecisionStore interface {
	HasDecision(ctx context.Context) bool
	LoadPreferences(ctx context.Context) (domain.Preferences, bool)
	SaveDecision(ctx context.Context, prefs domain.Preferences) error
}

// Options tunes a controller.
type Options struct {
	// Delay before the banner appears for a visitor with no decision.
	Delay time.Duration
	// ReapplyOnLoad re-sends signals for a decision loaded at startup.
	ReapplyOnLoad bool
}

// DefaultOptions returns the standard 2s delay with signals sent only at
// decision time.
func DefaultOptions() Options {
	return Options{Delay: DefaultBannerDelay}
}

// Snapshot is a point-in-time copy of a controller's observable state.
type Snapshot struct {
	State         domain.State       `json:"state"`
	Preferences   domain.Preferences `json:"preferences"`
	BannerVisible bool               `json:"banner_visible"`
}

// Controller is the consent state machine of one page session.
//
// Transitions come from visitor intents and from the single deferred banner
// task. The scheduler runs that task on its own goroutine, hence the mutex.
type Controller struct {
	mu sync.Mutex

	store     DecisionStore
	signaler  Signaler
	scheduler Scheduler
	opts      Options
	logger    logger.Logger
	recorder  Recorder

	state    domain.State
	prefs    domain.Preferences
	started  bool
	tornDown bool

	// pending is the banner task; generation invalidates callbacks whose
	// Stop raced with their firing.
	pending    Task
	generation uint64
}

// NewController wires a controller. recorder may be nil.
func NewController(
	store DecisionStore,
	signaler Signaler,
	scheduler Scheduler,
	opts Options,
	log logger.Logger,
	recorder Recorder,
) *Controller {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Controller{
		store:     store,
		signaler:  signaler,
		scheduler: scheduler,
		opts:      opts,
		logger:    log,
		recorder:  recorder,
		state:     domain.StateDeciding,
		prefs:     domain.DefaultPreferences(),
	}
}

// Start runs the startup check: a stored, well-formed decision hides the
// banner for this page; anything else schedules the banner after the delay.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return ErrTornDown
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.state = domain.StateDeciding
	c.prefs = domain.DefaultPreferences()

	if c.store.HasDecision(ctx) {
		if prefs, ok := c.store.LoadPreferences(ctx); ok {
			c.prefs = prefs
			c.state = domain.StateHidden
			if c.opts.ReapplyOnLoad {
				c.signaler.ApplyPreferences(prefs)
			}
			c.logger.Debug("existing consent decision loaded",
				logger.Stringer("preferences", prefs),
				logger.Bool("reapplied", c.opts.ReapplyOnLoad))
			return nil
		}
		c.logger.Info("decision marker present but preferences unusable, asking again")
	}

	c.scheduleBannerLocked()
	return nil
}

// AcceptAll records {essential, analytics, advertising} all true.
func (c *Controller) AcceptAll(ctx context.Context) error {
	return c.decide(ctx, domain.DecisionAcceptAll, nil, func(domain.Preferences) domain.Preferences {
		return domain.AcceptAllPreferences()
	})
}

// EssentialOnly records analytics and advertising as refused.
func (c *Controller) EssentialOnly(ctx context.Context) error {
	return c.decide(ctx, domain.DecisionEssentialOnly, nil, func(domain.Preferences) domain.Preferences {
		return domain.EssentialOnlyPreferences()
	})
}

// SavePreferences records the in-memory preferences exactly as they stand.
// It needs the preferences panel open, or an earlier decision to overwrite:
// edits abandoned with Back are never saved from the banner.
func (c *Controller) SavePreferences(ctx context.Context) error {
	return c.decide(ctx, domain.DecisionCustom, savableFrom, func(current domain.Preferences) domain.Preferences {
		return current
	})
}

// Customize opens the preferences panel from the banner.
func (c *Controller) Customize() error {
	return c.transition("customize", domain.StateBannerShown, func() {
		c.state = domain.StatePreferencesShown
	})
}

// Back returns from the preferences panel to the banner without persisting.
// In-memory edits are kept for the next Customize.
func (c *Controller) Back() error {
	return c.transition("back", domain.StatePreferencesShown, func() {
		c.state = domain.StateBannerShown
	})
}

// ToggleAnalytics flips the in-memory analytics flag.
func (c *Controller) ToggleAnalytics() error {
	return c.transition("toggle analytics", domain.StatePreferencesShown, c.prefs.ToggleAnalytics)
}

// ToggleAdvertising flips the in-memory advertising flag.
func (c *Controller) ToggleAdvertising() error {
	return c.transition("toggle advertising", domain.StatePreferencesShown, c.prefs.ToggleAdvertising)
}

// Teardown releases the pending banner task. A callback already in flight
// becomes a no-op. Safe to call more than once.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return
	}
	c.tornDown = true
	c.cancelPendingLocked()
	c.logger.Debug("consent controller torn down", logger.Stringer("state", c.state))
}

// Snapshot returns the current state and in-memory preferences.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:         c.state,
		Preferences:   c.prefs,
		BannerVisible: c.state.BannerVisible(),
	}
}

// State returns the current state.
func (c *Controller) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// savableFrom lists the states SavePreferences starts from.
var savableFrom = []domain.State{domain.StatePreferencesShown, domain.StateHidden}

// decide is shared by the three decision actions. A nil from accepts any
// live state, so a second decision overwrites the first.
func (c *Controller) decide(
	ctx context.Context,
	kind domain.Decision,
	from []domain.State,
	resolve func(domain.Preferences) domain.Preferences,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.liveLocked(); err != nil {
		return err
	}
	if from != nil && !slices.Contains(from, c.state) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, kind, c.state)
	}

	c.cancelPendingLocked()
	c.prefs = resolve(c.prefs).Normalize()

	if err := c.store.SaveDecision(ctx, c.prefs); err != nil {
		// Best effort: the visitor is asked again on the next load.
		c.logger.Warn("failed to persist consent decision",
			logger.String("decision", string(kind)),
			logger.Error(err))
	}
	c.signaler.ApplyPreferences(c.prefs)
	c.state = domain.StateHidden
	c.recorder.Decided(kind)

	c.logger.Info("consent decision recorded",
		logger.String("decision", string(kind)),
		logger.Stringer("preferences", c.prefs))
	return nil
}

func (c *Controller) transition(action string, from domain.State, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.liveLocked(); err != nil {
		return err
	}
	if c.state != from {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, c.state)
	}
	apply()
	return nil
}

func (c *Controller) liveLocked() error {
	if c.tornDown {
		return ErrTornDown
	}
	if !c.started {
		return ErrNotStarted
	}
	return nil
}

func (c *Controller) scheduleBannerLocked() {
	c.generation++
	gen := c.generation
	c.pending = c.scheduler.AfterFunc(c.opts.Delay, func() { c.showBanner(gen) })
	c.logger.Debug("no consent decision, banner scheduled",
		logger.Duration("delay", c.opts.Delay))
}

func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.generation++
}

func (c *Controller) showBanner(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown || gen != c.generation || c.state != domain.StateDeciding {
		return
	}
	c.pending = nil
	c.state = domain.StateBannerShown
	c.recorder.BannerShown()
	c.logger.Debug("consent banner shown")
}
