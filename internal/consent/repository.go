package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/domain"
	"github.com/MrSnakeDoc/consentgate/internal/kv"
	"github.com/MrSnakeDoc/consentgate/internal/logger"
)

const (
	// DefaultDecisionKey marks that the visitor completed the consent flow.
	DefaultDecisionKey = "cookie-consent"
	// DefaultPreferencesKey holds the JSON-encoded preferences.
	DefaultPreferencesKey = "cookie-preferences"
)

// Keys names the two storage keys a consent record is made of.
type Keys struct {
	Decision    string
	Preferences string
}

// DefaultKeys returns the storage keys used when no policy overrides them.
func DefaultKeys() Keys {
	return Keys{Decision: DefaultDecisionKey, Preferences: DefaultPreferencesKey}
}

// Validate rejects empty or colliding keys.
func (k Keys) Validate() error {
	switch {
	case k.Decision == "":
		return errors.New("decision key must not be empty")
	case k.Preferences == "":
		return errors.New("preferences key must not be empty")
	case k.Decision == k.Preferences:
		return fmt.Errorf("decision and preferences keys must differ, both are %q", k.Decision)
	}
	return nil
}

// Repository reads and writes one visitor's consent record.
//
// Read failures never escape: an unreachable store or a corrupted value
// reads as "no decision", which sends the visitor back through the banner.
type Repository struct {
	store    kv.Store
	keys     Keys
	logger   logger.Logger
	recorder Recorder
	now      func() time.Time
}

// NewRepository creates a repository over store. recorder may be nil.
func NewRepository(store kv.Store, keys Keys, log logger.Logger, recorder Recorder) *Repository {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Repository{
		store:    store,
		keys:     keys,
		logger:   log,
		recorder: recorder,
		now:      time.Now,
	}
}

// HasDecision reports whether the decision marker exists.
func (r *Repository) HasDecision(ctx context.Context) bool {
	_, found, err := r.store.Get(ctx, r.keys.Decision)
	if err != nil {
		r.logger.Warn("failed to read consent decision marker, assuming none",
			logger.String("key", r.keys.Decision),
			logger.Error(err))
		r.recorder.StorageFailed("read")
		return false
	}
	return found
}

// LoadPreferences returns the stored preferences, or false when they are
// missing, unreadable or malformed.
func (r *Repository) LoadPreferences(ctx context.Context) (domain.Preferences, bool) {
	raw, found, err := r.store.Get(ctx, r.keys.Preferences)
	if err != nil {
		r.logger.Warn("failed to read consent preferences, assuming none",
			logger.String("key", r.keys.Preferences),
			logger.Error(err))
		r.recorder.StorageFailed("read")
		return domain.Preferences{}, false
	}
	if !found {
		return domain.Preferences{}, false
	}

	prefs, err := domain.DecodePreferences(raw)
	if err != nil {
		r.logger.Warn("discarding malformed consent preferences",
			logger.String("key", r.keys.Preferences),
			logger.Error(err))
		r.recorder.MalformedRecord()
		return domain.Preferences{}, false
	}
	return prefs, true
}

// SaveDecision writes prefs and then the decision marker, overwriting any
// previous record. The marker goes last so its presence implies the
// preferences write went through.
func (r *Repository) SaveDecision(ctx context.Context, prefs domain.Preferences) error {
	raw, err := domain.EncodePreferences(prefs)
	if err != nil {
		return err
	}

	if err := r.store.Set(ctx, r.keys.Preferences, raw); err != nil {
		r.recorder.StorageFailed("write")
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	if err := r.store.Set(ctx, r.keys.Decision, r.now().UTC().Format(time.RFC3339)); err != nil {
		r.recorder.StorageFailed("write")
		return fmt.Errorf("failed to save decision marker: %w", err)
	}
	return nil
}
