package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/httputil"
	"github.com/walla-walla-travel/tourops/internal/logging"
)

// maxTrackedKeys bounds the limiter map. When it is exceeded the whole map
// is dropped; well-behaved callers refill their buckets immediately.
const maxTrackedKeys = 10000

// RateLimiter applies a per-caller token bucket. Authenticated requests are
// keyed by username so a staff member shares one budget across devices;
// anonymous requests fall back to the client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	log      *logging.Logger
}

// NewRateLimiter builds a limiter allowing perSecond sustained requests
// with the given burst per caller.
func NewRateLimiter(perSecond float64, burst int, log *logging.Logger) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		log:      log,
	}
}

// Middleware enforces the limit on every request of the wrapped router.
func (rl *RateLimiter) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.key(r)
			if !rl.limiter(key).Allow() {
				rl.log.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
					"key":  key,
					"path": r.URL.Path,
				})
				httputil.WriteServiceError(w, apperrors.RateLimitExceeded(rl.burst, "1s"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// key picks the bucket for a request: username when authenticated, client
// IP otherwise.
func (rl *RateLimiter) key(r *http.Request) string {
	if user := logging.GetUserID(r.Context()); user != "" {
		return "user:" + user
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if lim, ok := rl.limiters[key]; ok {
		return lim
	}
	if len(rl.limiters) >= maxTrackedKeys {
		rl.limiters = make(map[string]*rate.Limiter)
	}
	lim := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = lim
	return lim
}

// Size reports how many callers are currently tracked.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// StartCleanup drops the tracked buckets on an interval until ctx is
// canceled, keeping memory flat on long uptimes.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.mu.Lock()
				n := len(rl.limiters)
				rl.limiters = make(map[string]*rate.Limiter)
				rl.mu.Unlock()
				if n > 0 {
					rl.log.WithFields(map[string]interface{}{"dropped": n}).Debug("rate limiter buckets reset")
				}
			}
		}
	}()
}
