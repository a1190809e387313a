package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/linkguard/internal/api/apierr"
)

// idleLimiterTTL is how long an unused per-client limiter is kept
const idleLimiterTTL = 10 * time.Minute

// RateLimitConfig bounds requests per client address
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks a token bucket per client address
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientLimiter
	pruned  time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// NewRateLimiter creates a RateLimiter. A non-positive PerSecond disables limiting.
func NewRateLimiter(cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
		logger:  logger,
	}
}

// Allow reports whether a request from client may proceed
func (l *RateLimiter) Allow(client string) bool {
	if l.cfg.PerSecond <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.pruned) > idleLimiterTTL {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(l.clients, key)
			}
		}
		l.pruned = now
	}
	c, ok := l.clients[client]
	if !ok {
		burst := l.cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.PerSecond), burst)}
		l.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddress(r)
		if !l.Allow(client) {
			l.logger.Info("request rate limited", slog.String("client", client), slog.String("path", r.URL.Path))
			apierr.WriteError(w, apierr.NewRateLimitedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
