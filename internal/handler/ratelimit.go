package handler

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP.
type clientLimiters struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	byIP  map[string]*clientLimiter
}

func (l *clientLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl, ok := l.byIP[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.byIP[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (l *clientLimiters) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, cl := range l.byIP {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(l.byIP, ip)
		}
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Idle clients are forgotten by a sweeper that stops
// when ctx is done.
func RateLimiter(ctx context.Context, rps, burst int) gin.HandlerFunc {
	l := &clientLimiters{
		rps:   rate.Limit(rps),
		burst: burst,
		byIP:  make(map[string]*clientLimiter),
	}

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()

	limit := strconv.Itoa(rps)
	return func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", limit)
		if !l.get(c.ClientIP(), time.Now()).Allow() {
			tfRateLimitedTotal.Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
