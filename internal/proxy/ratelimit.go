package proxy

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors keeps one token bucket per client IP. Idle entries are evicted
// lazily, at most once per ttl.
type visitors struct {
	mu          sync.Mutex
	entries     map[string]*visitor
	rps         float64
	burst       int
	ttl         time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

func newVisitors(rps float64, burst int, ttl time.Duration) *visitors {
	return &visitors{
		entries: make(map[string]*visitor),
		rps:     rps,
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if now.Sub(v.lastCleanup) > v.ttl {
		for k, e := range v.entries {
			if now.Sub(e.lastSeen) > v.ttl {
				delete(v.entries, k)
			}
		}
		v.lastCleanup = now
	}

	e, ok := v.entries[ip]
	if !ok {
		e = &visitor{limiter: rate.NewLimiter(rate.Limit(v.rps), v.burst)}
		v.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// RateLimit answers 429 once a client IP exceeds rps sustained requests.
// A non-positive rps disables the limit.
func RateLimit(rps float64, burst int, logger *zap.Logger) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	store := newVisitors(rps, burst, 3*time.Minute)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.allow(ip) {
			logger.Warn("proxy rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		c.Next()
	}
}
