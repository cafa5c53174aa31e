package consent

import (
	"sync"

	"github.com/MrSnakeDoc/consentgate/internal/domain"
)

const (
	// AnalyticsDisablePrefix prefixes the analytics property ID to form the
	// global opt-out flag read lazily by the analytics collaborator.
	AnalyticsDisablePrefix = "ga-disable-"

	// NonPersonalizedAdsKey is the directive asking the advertising
	// collaborator for non-personalized ads.
	NonPersonalizedAdsKey = "requestNonPersonalizedAds"
)

// Signaler propagates resolved preferences to the third-party collaborators.
type Signaler interface {
	ApplyPreferences(prefs domain.Preferences)
}

// AnalyticsDisableFlag returns the global flag name for an analytics property.
func AnalyticsDisableFlag(propertyID string) string {
	return AnalyticsDisablePrefix + propertyID
}

// Directive is one entry of the advertising collaborator's command queue.
type Directive struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// Globals models the page-global state the collaborators read: boolean
// flags and the advertising queue. One instance per page session.
type Globals struct {
	mu      sync.RWMutex
	flags   map[string]bool
	adQueue []Directive
}

// NewGlobals creates an empty global scope. bootstrap seeds the advertising
// queue with directives pushed before the consent engine ran.
func NewGlobals(bootstrap ...Directive) *Globals {
	return &Globals{
		flags:   make(map[string]bool),
		adQueue: append([]Directive(nil), bootstrap...),
	}
}

// SetFlag sets a global boolean.
func (g *Globals) SetFlag(name string, value bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flags[name] = value
}

// Flag returns a global boolean and whether it was ever set.
func (g *Globals) Flag(name string) (value, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	value, ok = g.flags[name]
	return value, ok
}

// Flags returns a copy of all global booleans.
func (g *Globals) Flags() map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]bool, len(g.flags))
	for k, v := range g.flags {
		out[k] = v
	}
	return out
}

// PushAdDirective appends to the advertising queue.
func (g *Globals) PushAdDirective(d Directive) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adQueue = append(g.adQueue, d)
}

// AdQueue returns a copy of the advertising queue.
func (g *Globals) AdQueue() []Directive {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Directive{}, g.adQueue...)
}

// GlobalSignaler writes opt-out signals into a Globals.
//
// Only opt-outs are communicated: a true flag sends nothing, so flipping a
// category back on within the same page does not un-signal the collaborator.
// ExplicitOptIn closes that gap by clearing the analytics flag and queueing
// requestNonPersonalizedAds=0.
type GlobalSignaler struct {
	globals       *Globals
	propertyID    string
	explicitOptIn bool
}

// NewGlobalSignaler creates a signaler for one analytics property.
func NewGlobalSignaler(globals *Globals, analyticsPropertyID string, explicitOptIn bool) *GlobalSignaler {
	return &GlobalSignaler{
		globals:       globals,
		propertyID:    analyticsPropertyID,
		explicitOptIn: explicitOptIn,
	}
}

// ApplyPreferences implements Signaler.
func (s *GlobalSignaler) ApplyPreferences(prefs domain.Preferences) {
	flag := AnalyticsDisableFlag(s.propertyID)
	switch {
	case !prefs.Analytics:
		s.globals.SetFlag(flag, true)
	case s.explicitOptIn:
		if _, set := s.globals.Flag(flag); set {
			s.globals.SetFlag(flag, false)
		}
	}

	switch {
	case !prefs.Advertising:
		s.globals.PushAdDirective(Directive{Key: NonPersonalizedAdsKey, Value: 1})
	case s.explicitOptIn && s.nonPersonalizedRequested():
		s.globals.PushAdDirective(Directive{Key: NonPersonalizedAdsKey, Value: 0})
	}
}

// nonPersonalizedRequested reports whether the latest ads directive still
// asks for non-personalized ads.
func (s *GlobalSignaler) nonPersonalizedRequested() bool {
	queue := s.globals.AdQueue()
	for i := len(queue) - 1; i >= 0; i-- {
		if queue[i].Key == NonPersonalizedAdsKey {
			return queue[i].Value == 1
		}
	}
	return false
}
