package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/consent"
)

// Policy is the site-level consent configuration (policy.yaml).
type Policy struct {
	Analytics   AnalyticsPolicy   `yaml:"analytics"`
	Advertising AdvertisingPolicy `yaml:"advertising"`
	Storage     StoragePolicy     `yaml:"storage"`
	Banner      BannerPolicy      `yaml:"banner"`
	Signals     SignalPolicy      `yaml:"signals"`
}

type AnalyticsPolicy struct {
	// PropertyID names the analytics property, ex: G-ABC123.
	// The opt-out flag is ga-disable-<PropertyID>.
	PropertyID string `yaml:"property_id"`
}

type AdvertisingPolicy struct {
	// Bootstrap directives already in the ads queue when a page starts.
	Bootstrap []DirectiveSpec `yaml:"bootstrap,omitempty"`
}

type DirectiveSpec struct {
	Key   string `yaml:"key"`
	Value int    `yaml:"value"`
}

type StoragePolicy struct {
	DecisionKey    string `yaml:"decision_key"`
	PreferencesKey string `yaml:"preferences_key"`
}

type BannerPolicy struct {
	Delay time.Duration `yaml:"delay"`
}

type SignalPolicy struct {
	ReapplyOnLoad bool `yaml:"reapply_on_load"`
	ExplicitOptIn bool `yaml:"explicit_opt_in"`
}

// Default returns the policy used when no file is configured.
func Default() *Policy {
	return &Policy{
		Analytics: AnalyticsPolicy{PropertyID: "UA-000000-0"},
		Storage: StoragePolicy{
			DecisionKey:    consent.DefaultDecisionKey,
			PreferencesKey: consent.DefaultPreferencesKey,
		},
		Banner: BannerPolicy{Delay: consent.DefaultBannerDelay},
	}
}

// Validate checks the policy is usable.
func (p *Policy) Validate() error {
	if p.Analytics.PropertyID == "" {
		return errors.New("analytics.property_id must not be empty")
	}
	if err := p.Keys().Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if p.Banner.Delay < 0 {
		return fmt.Errorf("banner.delay must be >= 0, got %v", p.Banner.Delay)
	}
	for i, d := range p.Advertising.Bootstrap {
		if d.Key == "" {
			return fmt.Errorf("advertising.bootstrap[%d].key must not be empty", i)
		}
	}
	return nil
}

// Keys returns the storage keys of the consent record.
func (p *Policy) Keys() consent.Keys {
	return consent.Keys{Decision: p.Storage.DecisionKey, Preferences: p.Storage.PreferencesKey}
}

// ControllerOptions returns the controller tuning derived from the policy.
func (p *Policy) ControllerOptions() consent.Options {
	return consent.Options{Delay: p.Banner.Delay, ReapplyOnLoad: p.Signals.ReapplyOnLoad}
}

// BootstrapDirectives converts the bootstrap ads queue.
func (p *Policy) BootstrapDirectives() []consent.Directive {
	out := make([]consent.Directive, 0, len(p.Advertising.Bootstrap))
	for _, d := range p.Advertising.Bootstrap {
		out = append(out, consent.Directive{Key: d.Key, Value: d.Value})
	}
	return out
}
