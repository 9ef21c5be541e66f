package httpx

import (
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitExceeded is the error kind written by RateLimitMiddleware.
const RateLimitExceeded = "RATE_LIMIT_EXCEEDED"

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Rate limit classes selected by route policy.
var (
	// CriticalLimit guards authentication and workflow execution routes.
	// Override with: RATELIMIT_CRITICAL_REQUESTS, RATELIMIT_CRITICAL_WINDOW_SEC, RATELIMIT_CRITICAL_BURST
	CriticalLimit = RateLimitConfig{
		RequestsPerWindow: 20,
		Window:            time.Minute,
		Burst:             10,
	}

	// StandardLimit applies to every other authenticated route.
	// Override with: RATELIMIT_STANDARD_REQUESTS, RATELIMIT_STANDARD_WINDOW_SEC, RATELIMIT_STANDARD_BURST
	StandardLimit = RateLimitConfig{
		RequestsPerWindow: 300,
		Window:            time.Minute,
		Burst:             100,
	}
)

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_CRITICAL_REQUESTS, RATELIMIT_CRITICAL_WINDOW_SEC, RATELIMIT_CRITICAL_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, client ID, etc.)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the client address resolved by RealIP, or the
// direct peer when RealIP did not run. Forwarding headers are never read here.
func IPKeyExtractor(r *http.Request) string {
	if ip, ok := r.Context().Value(CtxKeyClientIP).(string); ok && ip != "" {
		return ip
	}
	return remoteIP(r)
}

// UserIDKeyExtractor extracts the user ID from the request context.
// Returns empty string if no user ID is found.
func UserIDKeyExtractor(r *http.Request) string {
	if userID, ok := r.Context().Value(CtxKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", IPKeyExtractor, UserIDKeyExtractor)
// would produce keys like "192.168.1.1:user123"
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// Decision is the outcome of one Limiter.Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (d Decision) RetryAfterSeconds() int {
	return max(int(math.Ceil(d.RetryAfter.Seconds())), 1)
}

// SetHeaders writes RateLimit-Limit and RateLimit-Remaining.
func (d Decision) SetHeaders(w http.ResponseWriter) {
	w.Header().Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	config   RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	now      func() time.Time

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewLimiter builds a keyed limiter for config. now may be nil.
func NewLimiter(config RateLimitConfig, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		config:      config,
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		now:         now,
		lastCleanup: now(),
	}
}

// Config returns the limits this limiter enforces.
func (l *Limiter) Config() RateLimitConfig { return l.config }

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()
	limiter := l.get(key, now)

	d := Decision{Limit: l.config.RequestsPerWindow}
	if limiter.AllowN(now, 1) {
		d.Allowed = true
		d.Remaining = max(int(limiter.TokensAt(now)), 0)
		return d
	}

	// Calculate retry-after without consuming the reservation.
	reservation := limiter.ReserveN(now, 1)
	d.RetryAfter = reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return d
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	l.maybeCleanup(now)

	limiter := rate.NewLimiter(l.rate, l.config.Burst)
	actual, _ := l.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters with full buckets so ephemeral keys do not
// accumulate.
func (l *Limiter) maybeCleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = now

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(l.config.Burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	n := 0
	l.limiters.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// WriteLimited writes the 429 envelope for a rejected decision.
func WriteLimited(w http.ResponseWriter, d Decision) {
	d.SetHeaders(w)
	WriteError(w, http.StatusTooManyRequests, ErrorEnvelope{
		Error:      RateLimitExceeded,
		Message:    "Too many requests. Please try again later.",
		RetryAfter: d.RetryAfterSeconds(),
	})
}

// RateLimitMiddleware creates a rate limiting middleware with the given configuration.
// The keyExtractor determines how requests are grouped for rate limiting.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	return LimitWith(NewLimiter(config, nil), keyExtractor)
}

// LimitWith is RateLimitMiddleware over an existing Limiter.
func LimitWith(l *Limiter, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			d := l.Allow(key)
			if !d.Allowed {
				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", d.RetryAfterSeconds(),
				)
				WriteLimited(w, d)
				return
			}

			d.SetHeaders(w)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP creates a rate limiter that limits by IP address only.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}
