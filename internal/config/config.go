package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store                string        // "redis" | "memory"
	PolicyFile           string        // path to policy.yaml (optional, empty = built-in defaults)
	PolicyReloadInterval time.Duration // interval to re-read the policy file (0 = only on POST /reload)
	SessionIdleTTL       time.Duration // sessions unseen for this long are torn down
	SessionSweepInterval time.Duration // how often idle sessions are looked for
	MaxSessions          int           // cap on concurrently open sessions

	// Redis (only when Store == "redis")
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedCIDRS   []string // optional, restrict infra endpoints to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy     bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	AllowedOrigins []string // CORS origins allowed on /api (empty = same-origin only)
	RateBurst      int      // session-open burst per client IP
	RatePerMin     int      // session-open refill per client IP per minute
}

func Load() *Config {
	// A missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("CONSENT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("CONSENT_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("CONSENT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("CONSENT_PRETTY_LOG", true),

		// Consent engine
		Store:                strings.ToLower(getenv("CONSENT_STORE", StoreMemory)),
		PolicyFile:           getenv("CONSENT_POLICY_FILE", ""),
		PolicyReloadInterval: mustDuration("CONSENT_POLICY_RELOAD_INTERVAL", 0),
		SessionIdleTTL:       mustDuration("CONSENT_SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepInterval: mustDuration("CONSENT_SESSION_SWEEP_INTERVAL", time.Minute),
		MaxSessions:          getenvInt("CONSENT_MAX_SESSIONS", 10000),

		// Redis timeouts, shared by every backend that dials Redis
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS:   splitAndTrim(getenv("CONSENT_ALLOWED_CIDRS", "")),
		TrustProxy:     mustBool("CONSENT_TRUST_PROXY", true),
		AllowedOrigins: splitAndTrim(getenv("CONSENT_ALLOWED_ORIGINS", "")),
		RateBurst:      getenvInt("CONSENT_RATE_BURST", 20),
		RatePerMin:     getenvInt("CONSENT_RATE_PER_MIN", 60),
	}

	switch cfg.Store {
	case StoreRedis:
		cfg.RedisAddr = requireEnv("CONSENT_REDIS_ADDR")
		cfg.RedisUser = getenv("CONSENT_REDIS_USERNAME", "default")
		cfg.RedisPassword = getenv("CONSENT_REDIS_PASSWORD", "")
		cfg.RedisDB = getenvInt("CONSENT_REDIS_DB", 0)
	case StoreMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: CONSENT_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, cfg.Store))
	}

	if cfg.SessionSweepInterval <= 0 {
		panic("❌ FATAL: CONSENT_SESSION_SWEEP_INTERVAL must be positive")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
