package mw

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/ratelimit"
)

// IPRateLimiter stores a token bucket for each client IP address.
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  *sync.RWMutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		mu:  &sync.RWMutex{},
		r:   r,
		b:   b,
	}
}

// AddIP creates a new rate limiter for an IP address.
func (i *IPRateLimiter) AddIP(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, exists := i.ips[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(i.r, i.b)
	i.ips[ip] = limiter
	return limiter
}

// GetLimiter returns the rate limiter for an IP address.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.ips[ip]
	i.mu.RUnlock()

	if !exists {
		return i.AddIP(ip)
	}
	return limiter
}

// LoginRateLimiter throttles unauthenticated login attempts per client IP.
func LoginRateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		res := limiter.GetLimiter(c.ClientIP()).Reserve()
		if !res.OK() {
			Abort(c, apperr.RateLimited(time.Second))
			return
		}
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			Abort(c, apperr.RateLimited(delay))
			return
		}
		c.Next()
	}
}

// DeviceRateLimit caps requests per authenticated device. It must run after
// DeviceAuth.
func DeviceRateLimit(l ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		dc, ok := Device(c)
		if !ok {
			Abort(c, apperr.MissingToken())
			return
		}

		d, err := l.Allow(c.Request.Context(), strconv.FormatInt(dc.DeviceID, 10))
		if err != nil {
			Abort(c, apperr.Internal(err))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			Abort(c, apperr.RateLimited(d.RetryAfter))
			return
		}
		c.Next()
	}
}
