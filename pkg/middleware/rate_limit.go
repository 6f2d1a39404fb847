package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/response"
)

// Counter is the slice of the cache the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Prefix   string
	KeyFunc  func(r *http.Request) []string
}

type RateLimiter struct {
	counter Counter
	config  RateLimitConfig
}

func NewRateLimiter(counter Counter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc
	}
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}
	return &RateLimiter{counter: counter, config: config}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, key := range rl.config.KeyFunc(r) {
				if !rl.allow(r.Context(), key) {
					w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.config.Window.Seconds())))
					response.RateLimit(w, "Too many requests. Try again later.")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	hashed := fmt.Sprintf("%s:%x", rl.config.Prefix, sha256.Sum256([]byte(key)))
	count, err := rl.counter.Incr(ctx, hashed, rl.config.Window)
	if err != nil {
		// fail open
		logger.WarnContext(ctx, "rate limit check failed", "error", err)
		return true
	}
	return count <= int64(rl.config.Requests)
}

func ClientIPKeyFunc(r *http.Request) []string {
	if ip := ClientIP(r); ip != "" {
		return []string{"ip:" + ip}
	}
	return nil
}

// ClientIP is the host part of RemoteAddr. Forwarding headers only count once
// TrustedRealIP has vouched for them by rewriting RemoteAddr.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
