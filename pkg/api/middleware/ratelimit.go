package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dd0wney/gridcascade/pkg/logging"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	ClientExpiration  time.Duration // idle buckets older than this are dropped
	MaxClients        int           // bound on tracked clients
}

// DefaultRateLimitConfig suits the simulation endpoint, whose requests are
// CPU bound.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         20,
		ClientExpiration:  10 * time.Minute,
		MaxClients:        10000,
	}
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter tracks one token bucket per client.
type RateLimiter struct {
	config  RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*tokenBucket
	sweptAt time.Time
}

// NewRateLimiter creates a limiter. Zero fields take their defaults.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = def.BurstSize
	}
	if config.ClientExpiration <= 0 {
		config.ClientExpiration = def.ClientExpiration
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	return &RateLimiter{
		config:  config,
		now:     time.Now,
		clients: make(map[string]*tokenBucket),
	}
}

// Allow takes one token from clientID's bucket.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.sweptAt) > rl.config.ClientExpiration {
		rl.sweep(now)
	}

	b, ok := rl.clients[clientID]
	if !ok {
		if len(rl.clients) >= rl.config.MaxClients {
			return false
		}
		b = &tokenBucket{tokens: float64(rl.config.BurstSize), lastRefill: now}
		rl.clients[clientID] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * rl.config.RequestsPerSecond
	if limit := float64(rl.config.BurstSize); b.tokens > limit {
		b.tokens = limit
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Clients returns the number of tracked buckets.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) sweep(now time.Time) {
	for id, b := range rl.clients {
		if now.Sub(b.lastRefill) > rl.config.ClientExpiration {
			delete(rl.clients, id)
		}
	}
	rl.sweptAt = now
}

// ClientIDFunc extracts a client identifier from a request.
type ClientIDFunc func(*http.Request) string

// RemoteIP identifies clients by the connection's source address.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit answers 429 once a client's bucket is empty.
func RateLimit(limiter *RateLimiter, clientID ClientIDFunc, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		if clientID == nil {
			clientID = RemoteIP
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientID(r)
			if !limiter.Allow(id) {
				logger.Warn("rate limit exceeded",
					logging.String("client", id),
					logging.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(limiter.config.RequestsPerSecond, 'f', -1, 64))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
