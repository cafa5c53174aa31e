package session

import (
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/consent"
)

// Session is one page load: a consent controller plus the page-global
// scope its signals are written to.
type Session struct {
	ID         string
	VisitorID  string
	CreatedAt  time.Time
	Controller *consent.Controller
	Globals    *consent.Globals

	lastSeen atomic.Int64 // unix nanos
}

// Signals is what the collaborators would read from the page globals.
type Signals struct {
	Flags   map[string]bool     `json:"flags"`
	AdQueue []consent.Directive `json:"ad_queue"`
}

// View is the presentation-facing snapshot of a session.
type View struct {
	SessionID string `json:"session_id"`
	VisitorID string `json:"visitor_id"`
	consent.Snapshot
	Signals Signals `json:"signals"`
}

// View captures the current controller state and signals.
func (s *Session) View() View {
	return View{
		SessionID: s.ID,
		VisitorID: s.VisitorID,
		Snapshot:  s.Controller.Snapshot(),
		Signals: Signals{
			Flags:   s.Globals.Flags(),
			AdQueue: s.Globals.AdQueue(),
		},
	}
}

// LastSeen returns the last time the session was accessed.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}
