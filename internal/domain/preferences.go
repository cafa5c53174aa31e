package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPreferences is returned when a persisted preferences value
// cannot be trusted (corrupted JSON, missing or extra fields, essential=false).
var ErrMalformedPreferences = errors.New("malformed consent preferences")

// Preferences is the visitor's consent choice.
//
// Essential covers storage required for the site to work and is always true.
// Nothing in this module can produce a Preferences with Essential=false.
type Preferences struct {
	// Essential is immutable from the visitor's point of view.
	Essential bool `json:"essential"`

	// Analytics allows behavioral analytics tracking.
	Analytics bool `json:"analytics"`

	// Advertising allows personalized-advertising cookies.
	Advertising bool `json:"advertising"`
}

// DefaultPreferences is the in-memory value used until a decision is loaded or made.
func DefaultPreferences() Preferences {
	return Preferences{Essential: true, Analytics: true, Advertising: true}
}

// AcceptAllPreferences is the value recorded by "Accept All".
func AcceptAllPreferences() Preferences {
	return Preferences{Essential: true, Analytics: true, Advertising: true}
}

// EssentialOnlyPreferences is the value recorded by "Essential Only".
func EssentialOnlyPreferences() Preferences {
	return Preferences{Essential: true, Analytics: false, Advertising: false}
}

// ToggleAnalytics flips the analytics flag.
func (p *Preferences) ToggleAnalytics() {
	p.Analytics = !p.Analytics
	p.Essential = true
}

// ToggleAdvertising flips the advertising flag.
func (p *Preferences) ToggleAdvertising() {
	p.Advertising = !p.Advertising
	p.Essential = true
}

// Normalize returns a copy with Essential forced to true.
func (p Preferences) Normalize() Preferences {
	p.Essential = true
	return p
}

func (p Preferences) String() string {
	return fmt.Sprintf("essential=%t analytics=%t advertising=%t", p.Essential, p.Analytics, p.Advertising)
}

// wirePreferences uses pointers so a missing field can be told apart from false.
type wirePreferences struct {
	Essential   *bool `json:"essential"`
	Analytics   *bool `json:"analytics"`
	Advertising *bool `json:"advertising"`
}

// EncodePreferences serializes p as a JSON object with exactly the three
// boolean fields.
func EncodePreferences(p Preferences) (string, error) {
	data, err := json.Marshal(p.Normalize())
	if err != nil {
		return "", fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return string(data), nil
}

// DecodePreferences parses a persisted preferences value.
// Any deviation from the expected shape yields ErrMalformedPreferences;
// a partially valid value is never returned.
func DecodePreferences(raw string) (Preferences, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var w wirePreferences
	if err := dec.Decode(&w); err != nil {
		return Preferences{}, fmt.Errorf("%w: %v", ErrMalformedPreferences, err)
	}
	if dec.More() {
		return Preferences{}, fmt.Errorf("%w: trailing data", ErrMalformedPreferences)
	}

	switch {
	case w.Essential == nil, w.Analytics == nil, w.Advertising == nil:
		return Preferences{}, fmt.Errorf("%w: missing field", ErrMalformedPreferences)
	case !*w.Essential:
		return Preferences{}, fmt.Errorf("%w: essential must be true", ErrMalformedPreferences)
	}

	return Preferences{
		Essential:   true,
		Analytics:   *w.Analytics,
		Advertising: *w.Advertising,
	}, nil
}
