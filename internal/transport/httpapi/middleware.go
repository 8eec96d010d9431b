package httpapi

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// authenticate accepts any username with the shared API token as the
// basic-auth password. Authentication happens before the core is ever
// touched; the core itself performs none.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, password, ok := c.Request.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.APIToken)) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="termbridge"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limits.allow(clientKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// limiterPool keeps one token bucket per caller key.
type limiterPool struct {
	perSec float64
	burst  int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLimiterPool(perSec float64, burst int) *limiterPool {
	return &limiterPool{
		perSec:   perSec,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	lim, ok := p.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.perSec), p.burst)
		p.limiters[key] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
