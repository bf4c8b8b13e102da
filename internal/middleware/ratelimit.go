package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool 按客户端 IP 维护令牌桶
type limiterPool struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	lastGC   time.Time
}

func newLimiterPool(requestsPerMinute, burst int) *limiterPool {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return &limiterPool{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:    burst,
		lastGC:   time.Now(),
	}
}

func (p *limiterPool) allow(key string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastGC) > limiterIdleTTL {
		for k, v := range p.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(p.visitors, k)
			}
		}
		p.lastGC = now
	}

	v, ok := p.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit 按 IP 限流，endpoint 用于指标标签
func RateLimit(endpoint string, requestsPerMinute, burst int) gin.HandlerFunc {
	pool := newLimiterPool(requestsPerMinute, burst)

	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP(), time.Now()) {
			metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
