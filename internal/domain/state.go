package domain

import "fmt"

// State is the position of a consent controller in its lifecycle.
type State int

const (
	// StateDeciding is transient: the startup check has not completed,
	// or the banner delay has not elapsed yet.
	StateDeciding State = iota
	// StateHidden means nothing is displayed (decision loaded or just made).
	StateHidden
	// StateBannerShown means the main disclosure banner is visible.
	StateBannerShown
	// StatePreferencesShown means the per-category panel is open.
	StatePreferencesShown
)

var stateNames = map[State]string{
	StateDeciding:         "deciding",
	StateHidden:           "hidden",
	StateBannerShown:      "banner_shown",
	StatePreferencesShown: "preferences_shown",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BannerVisible reports whether the disclosure UI is on screen.
func (s State) BannerVisible() bool {
	return s == StateBannerShown || s == StatePreferencesShown
}

// Decision labels how a visitor reached their preferences.
type Decision string

const (
	DecisionAcceptAll     Decision = "accept_all"
	DecisionEssentialOnly Decision = "essential_only"
	DecisionCustom        Decision = "custom"
)
