package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/metrics"
	"github.com/dengue-gen/denguegen-backend/internal/requestdata"
)

const (
	limiterIdleTTL     = 10 * time.Minute
	limiterPruneWindow = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller. Authenticated callers are
// keyed by user id, anonymous ones by client IP. Buckets idle for longer than
// limiterIdleTTL are dropped.
type RateLimiter struct {
	log       *logger.Logger
	limit     rate.Limit
	burst     int
	now       func() time.Time
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastPrune time.Time
}

func NewRateLimiter(perSecond float64, burst int, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		log:      log.With("Middleware", "RateLimiter"),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	rl.pruneLocked(now)
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// pruneLocked runs at most once per limiterPruneWindow.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < limiterPruneWindow {
		return
	}
	rl.lastPrune = now
	for key, e := range rl.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, key)
		}
	}
}

// Tracked returns the number of callers with a live bucket.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Limit rejects with 429 once the caller's bucket is empty.
func (rl *RateLimiter) Limit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil && rd.UserID != "" {
			key = "user:" + rd.UserID
		}

		l := rl.limiterFor(key)
		if !l.Allow() {
			metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
			rl.log.Warn("rate limit exceeded", "endpoint", endpoint, "key", key)
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
