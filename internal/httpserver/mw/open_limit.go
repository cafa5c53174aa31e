package mw

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/logger"
	"github.com/MrSnakeDoc/consentgate/internal/utils"
)

const forgetEvery = time.Minute

// OpenLimitConfig sizes the budget each client IP has for opening page
// sessions.
type OpenLimitConfig struct {
	Burst      int           // opens allowed back to back
	PerMinute  int           // steady refill rate
	MaxClients int           // tracked clients that force an early idle sweep, 0 = unbounded
	IdleTTL    time.Duration // untouched clients are forgotten after this
	TrustProxy bool          // resolve IP from proxy headers when true
	Logger     logger.Logger // optional, logs rejected clients
	now        func() time.Time
}

// Verdict is the outcome of spending one open.
type Verdict struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type allowance struct {
	tokens float64
	at     time.Time
}

// OpenBudget meters session opens per client with a token bucket. Every
// page load opens a session, so the budget bounds how fast one client can
// create controllers.
type OpenBudget struct {
	burst      float64
	perSecond  float64
	maxClients int
	idleTTL    time.Duration

	mu         sync.Mutex
	clients    map[string]allowance
	nextForget time.Time
}

// NewOpenBudget applies defaults: a burst and refill of at least one, and a
// 15 minute idle TTL.
func NewOpenBudget(cfg OpenLimitConfig) *OpenBudget {
	burst := max(cfg.Burst, 1)
	perMinute := max(cfg.PerMinute, 1)
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &OpenBudget{
		burst:      float64(burst),
		perSecond:  float64(perMinute) / 60,
		maxClients: cfg.MaxClients,
		idleTTL:    idleTTL,
		clients:    make(map[string]allowance),
	}
}

// Burst returns the bucket size.
func (b *OpenBudget) Burst() int { return int(b.burst) }

// Clients returns how many clients are tracked.
func (b *OpenBudget) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Take spends one open for client at now. A denied client is told how long
// until a whole token is back.
func (b *OpenBudget) Take(client string, now time.Time) Verdict {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !now.Before(b.nextForget) || (b.maxClients > 0 && len(b.clients) >= b.maxClients) {
		b.forgetIdleLocked(now)
	}

	a, seen := b.clients[client]
	if !seen {
		a = allowance{tokens: b.burst, at: now}
	}
	if elapsed := now.Sub(a.at); elapsed > 0 {
		a.tokens = math.Min(b.burst, a.tokens+elapsed.Seconds()*b.perSecond)
		a.at = now
	}

	if a.tokens < 1 {
		b.clients[client] = a
		missing := (1 - a.tokens) / b.perSecond
		return Verdict{RetryAfter: time.Duration(missing * float64(time.Second))}
	}

	a.tokens--
	b.clients[client] = a
	return Verdict{Allowed: true, Remaining: int(a.tokens)}
}

func (b *OpenBudget) forgetIdleLocked(now time.Time) {
	for client, a := range b.clients {
		if now.Sub(a.at) > b.idleTTL {
			delete(b.clients, client)
		}
	}
	b.nextForget = now.Add(forgetEvery)
}

// LimitOpens guards the session-open route with an OpenBudget per client
// IP. Spent clients get 429, a Retry-After in whole seconds and the API's
// JSON error body.
func LimitOpens(cfg OpenLimitConfig) func(http.Handler) http.Handler {
	budget := NewOpenBudget(cfg)
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	limit := strconv.Itoa(budget.Burst())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := utils.ClientIP(r, cfg.TrustProxy)
			v := budget.Take(client, now())

			w.Header().Set("X-RateLimit-Limit", limit)
			if v.Allowed {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
				next.ServeHTTP(w, r)
				return
			}

			retry := max(int(math.Ceil(v.RetryAfter.Seconds())), 1)
			if cfg.Logger != nil {
				cfg.Logger.Debug("session open rate limited",
					logger.String("remote_ip", client),
					logger.Int("retry_after_s", retry))
			}
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": fmt.Sprintf("too many session opens, retry in %ds", retry),
			})
		})
	}
}
