package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/consentgate/internal/consent"
	"github.com/MrSnakeDoc/consentgate/internal/httpserver/deps"
	"github.com/MrSnakeDoc/consentgate/internal/logger"
	"github.com/MrSnakeDoc/consentgate/internal/session"
)

const (
	// VisitorCookie carries the visitor id that scopes stored decisions.
	VisitorCookie = "consent_vid"

	visitorCookieMaxAge = 365 * 24 * time.Hour
	maxBodyBytes        = 4 << 10
)

type openSessionRequest struct {
	VisitorID string `json:"visitor_id"`
}

// Action is a user interaction forwarded to a session's controller.
type Action func(ctx context.Context, c *consent.Controller) error

// Actions lists the interactions exposed under /api/sessions/{id}/.
var Actions = map[string]Action{
	"accept-all":         func(ctx context.Context, c *consent.Controller) error { return c.AcceptAll(ctx) },
	"essential-only":     func(ctx context.Context, c *consent.Controller) error { return c.EssentialOnly(ctx) },
	"save":               func(ctx context.Context, c *consent.Controller) error { return c.SavePreferences(ctx) },
	"customize":          func(_ context.Context, c *consent.Controller) error { return c.Customize() },
	"back":               func(_ context.Context, c *consent.Controller) error { return c.Back() },
	"toggle/analytics":   func(_ context.Context, c *consent.Controller) error { return c.ToggleAnalytics() },
	"toggle/advertising": func(_ context.Context, c *consent.Controller) error { return c.ToggleAdvertising() },
}

// OpenSession starts a page session. The visitor is taken from the request
// body, then the visitor cookie; a new one is minted when neither is present.
func OpenSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openSessionRequest
		if err := decodeOptionalBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		visitorID := req.VisitorID
		if visitorID == "" {
			if c, err := r.Cookie(VisitorCookie); err == nil && session.ValidVisitorID(c.Value) {
				visitorID = c.Value
			}
		}
		if visitorID == "" {
			visitorID = uuid.NewString()
		}

		s, err := d.Sessions.Open(r.Context(), visitorID)
		if err != nil {
			d.Logger.Warn("failed to open session",
				logger.String("visitor_id", visitorID),
				logger.Error(err))
			writeError(w, statusFor(err), err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     VisitorCookie,
			Value:    visitorID,
			Path:     "/",
			MaxAge:   int(visitorCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set("Location", "/api/sessions/"+s.ID)
		writeJSON(w, http.StatusCreated, s.View())
	}
}

// GetSession returns the session view.
func GetSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// SessionAction applies the named interaction and returns the new view.
func SessionAction(d deps.Deps, name string) http.HandlerFunc {
	action, ok := Actions[name]
	if !ok {
		panic(fmt.Sprintf("unknown session action %q", name))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}

		if err := action(r.Context(), s.Controller); err != nil {
			d.Logger.Debug("session action rejected",
				logger.String("session_id", s.ID),
				logger.String("action", name),
				logger.Error(err))
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// CloseSession tears the session down, like the page unloading.
func CloseSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Sessions.Close(chi.URLParam(r, "id")); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
