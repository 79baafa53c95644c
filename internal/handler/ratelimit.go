package handler

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dynupd/internal/config"
	"dynupd/internal/util"
)

// RateLimiter applies a per-client-IP token bucket to the update endpoint.
// Requests are anonymous until authenticated, so the client IP is the only
// usable key.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*ipLimiter
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

const limiterTTL = 10 * time.Minute

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:    cfg.Burst,
		limiters: make(map[string]*ipLimiter),
	}
}

// Middleware wraps next, rejecting callers that exceed their budget with 429
// and a Retry-After hint.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := util.GetClientIP(r)
		if !rl.allow(ip) {
			log.Printf("rate limit exceeded for %s", ip)
			retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	l, ok := rl.limiters[ip]
	if !ok {
		// Prune stale entries before admitting a new key so the map stays
		// bounded by the set of recently active clients.
		for k, v := range rl.limiters {
			if now.Sub(v.lastAccess) > limiterTTL {
				delete(rl.limiters, k)
			}
		}
		l = &ipLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = l
	}
	l.lastAccess = now
	return l.limiter.Allow()
}
