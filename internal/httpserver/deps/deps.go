package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/consentgate/internal/logger"
	"github.com/MrSnakeDoc/consentgate/internal/session"
)

// VisitorCounter reports how many visitors have a stored decision.
type VisitorCounter interface {
	CountVisitors(ctx context.Context) (int64, error)
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time    // for testing, defaults to time.Now
	AllowedCIDRS   []string            // IPs allowed to access infra endpoints
	TrustProxy     bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
	AllowedOrigins []string            // CORS origins allowed on /api
	RateBurst      int                 // session-open burst per client IP
	RatePerMin     int                 // session-open refill per client IP per minute
	Sessions       *session.Manager    // open page sessions
	StoreBackend   string              // "redis" | "memory"
	Visitors       VisitorCounter      // consent store, for /infra
	RedisClient    *redis.Client       // nil unless StoreBackend == "redis"
	Gatherer       prometheus.Gatherer // metrics registry served on /metrics
	ReloadTrigger  chan struct{}       // Channel to trigger manual policy reload
}
