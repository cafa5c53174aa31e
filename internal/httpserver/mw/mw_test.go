package mw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func request(method, remoteAddr string) *http.Request {
	r := httptest.NewRequest(method, "/api/sessions", nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestLimitOpens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := LimitOpens(OpenLimitConfig{
		Burst:     2,
		PerMinute: 60,
		now:       func() time.Time { return now },
	})(okHandler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(http.MethodPost, "10.0.0.1:1234"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("request %d: missing X-RateLimit-Limit header", i)
		}
		if got, want := rec.Header().Get("X-RateLimit-Remaining"), strconv.Itoa(1-i); got != want {
			t.Errorf("request %d: X-RateLimit-Remaining = %q, want %q", i, got, want)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "10.0.0.1:1234"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("429 body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("429 body has no error message")
	}

	// Another client has its own budget
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "10.0.0.2:1234"))
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}

	// One second refills one token at 60/min
	now = now.Add(time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "10.0.0.1:1234"))
	if rec.Code != http.StatusOK {
		t.Errorf("after refill status = %d, want 200", rec.Code)
	}
}

func TestOpenBudgetRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewOpenBudget(OpenLimitConfig{Burst: 1, PerMinute: 6})

	if v := b.Take("a", now); !v.Allowed || v.Remaining != 0 {
		t.Fatalf("first take = %+v, want allowed with 0 remaining", v)
	}
	v := b.Take("a", now.Add(4*time.Second))
	if v.Allowed {
		t.Fatal("second take allowed, want denied")
	}
	// 6/min refills a token every 10s, 4s of it already elapsed
	if !near(v.RetryAfter, 6*time.Second) {
		t.Errorf("RetryAfter = %v, want 6s", v.RetryAfter)
	}
	if v := b.Take("a", now.Add(10*time.Second)); !v.Allowed {
		t.Errorf("take after 10s = %+v, want allowed", v)
	}
}

func TestOpenBudgetForgetsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewOpenBudget(OpenLimitConfig{Burst: 1, PerMinute: 1, IdleTTL: time.Minute})

	b.Take("a", now)
	b.Take("b", now.Add(30*time.Second))
	if got := b.Clients(); got != 2 {
		t.Fatalf("Clients() = %d, want 2", got)
	}

	b.Take("c", now.Add(90*time.Second))
	if got := b.Clients(); got != 2 {
		t.Errorf("Clients() after sweep = %d, want 2 (a forgotten)", got)
	}
}

func TestOpenBudgetMaxClientsForcesSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewOpenBudget(OpenLimitConfig{Burst: 1, PerMinute: 1, IdleTTL: time.Second, MaxClients: 2})

	b.Take("a", now)
	b.Take("b", now)
	// Within the sweep interval, but the cap is reached
	b.Take("c", now.Add(2*time.Second))
	if got := b.Clients(); got != 1 {
		t.Errorf("Clients() = %d, want 1", got)
	}
}

func TestOpenBudgetDefaults(t *testing.T) {
	b := NewOpenBudget(OpenLimitConfig{})
	if b.Burst() != 1 {
		t.Errorf("Burst() = %d, want 1", b.Burst())
	}
	now := time.Now()
	if v := b.Take("a", now); !v.Allowed {
		t.Error("first take denied with defaults")
	}
	if v := b.Take("a", now); v.Allowed || !near(v.RetryAfter, time.Minute) {
		t.Errorf("second take = %+v, want denied for 1m", v)
	}
}

func near(got, want time.Duration) bool {
	d := got - want
	return d > -time.Millisecond && d < time.Millisecond
}

func TestAllowOnlyCIDRS(t *testing.T) {
	log := logger.New("error", false)

	tests := []struct {
		name       string
		allowed    []string
		trustProxy bool
		remote     string
		xff        string
		want       int
	}{
		{name: "empty list passthrough", remote: "203.0.113.9:1", want: http.StatusOK},
		{name: "cidr match", allowed: []string{"10.0.0.0/8"}, remote: "10.1.2.3:1", want: http.StatusOK},
		{name: "exact ip match", allowed: []string{"127.0.0.1"}, remote: "127.0.0.1:1", want: http.StatusOK},
		{name: "rejected", allowed: []string{"10.0.0.0/8"}, remote: "203.0.113.9:1", want: http.StatusForbidden},
		{name: "forwarded ip trusted", allowed: []string{"10.0.0.0/8"}, trustProxy: true, remote: "127.0.0.1:1", xff: "10.9.9.9, 127.0.0.1", want: http.StatusOK},
		{name: "forwarded ip ignored", allowed: []string{"10.0.0.0/8"}, remote: "127.0.0.1:1", xff: "10.9.9.9", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, tt.trustProxy, log)(okHandler)
			r := request(http.MethodGet, tt.remote)
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://shop.example"})(okHandler)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	preflight.Header.Set("Origin", "https://shop.example")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Errorf("Allow-Origin = %q, want https://shop.example", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for unknown origin", got)
	}
}

func TestCORSPassthroughWithoutOrigins(t *testing.T) {
	h := CORS(nil)(okHandler)

	r := httptest.NewRequest(http.MethodGet, "/api/sessions/x", nil)
	r.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}

func TestLogRecordsImplicitStatus(t *testing.T) {
	h := Log(logger.New("error", false), false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "127.0.0.1:1"))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}
