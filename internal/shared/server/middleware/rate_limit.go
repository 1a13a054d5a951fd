package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	// idleLimiterTTL drops per-key limiters untouched for this long.
	idleLimiterTTL = 10 * time.Minute
)

type RateLimitRule struct {
	Rate  float64
	Burst int
}

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter keeps one token bucket per principal and group.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*keyedLimiter
	now       func() time.Time
	lastSweep time.Time
}

type keyedLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limiters: make(map[string]*keyedLimiter),
		now:      now,
	}
}

func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		principal := strings.TrimSpace(UserIDFromContext(c))
		if principal == "" {
			principal = strings.TrimSpace(c.ClientIP())
		}
		allowed, retryAfter := cfg.Limiter.Allow(principal+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		retryAfterMs := int(retryAfter / time.Millisecond)
		if retryAfterMs <= 0 {
			retryAfterMs = 1000
		}
		retryAfterSeconds := int(math.Ceil(float64(retryAfterMs) / 1000.0))
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"message":      "Too many requests, please try again later",
			"code":         "rate_limited",
			"retryAfterMs": retryAfterMs,
		})
	}
}

// Allow consumes one token for key, returning how long to wait when none
// are left.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedLimiter{lim: rate.NewLimiter(rate.Limit(rule.Rate), rule.Burst)}
		l.limiters[key] = entry
	}
	entry.seen = now
	l.mu.Unlock()

	if entry.lim.AllowN(now, 1) {
		return true, 0
	}
	r := entry.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleLimiterTTL {
		return
	}
	l.lastSweep = now
	for key, entry := range l.limiters {
		if now.Sub(entry.seen) > idleLimiterTTL {
			delete(l.limiters, key)
		}
	}
}
