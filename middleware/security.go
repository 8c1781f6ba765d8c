package middleware

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"climate-repair-server/services"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// limiterIdleTTL is how long a client's limiter survives without traffic.
const limiterIdleTTL = time.Hour

// RateLimiter stores token buckets keyed by client.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mutex    sync.Mutex
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per key with a burst of the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// GetLimiter returns the limiter for key, creating it on first use.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.lastSeen[key] = rl.now()
	return limiter
}

// Cleanup removes limiters idle for more than an hour and reports how many went.
func (rl *RateLimiter) Cleanup() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	now := rl.now()
	for key, t := range rl.lastSeen {
		if now.Sub(t) > limiterIdleTTL {
			delete(rl.limiters, key)
			delete(rl.lastSeen, key)
			removed++
		}
	}
	return removed
}

// Size reports how many clients are being tracked.
func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.limiters)
}

// Middleware rejects clients that exceed the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !rl.GetLimiter(clientIP).Allow() {
			log.Printf("ratelimit: %s %s from %s rejected", c.Request.Method, c.Request.URL.Path, clientIP)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Next()
	}
}

// InputValidationMiddleware caps the body size and requires JSON on writes.
func InputValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > MaxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   string(services.KindValidation),
				"message": "request body exceeds maximum size limit",
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		}

		switch c.Request.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			if c.Request.ContentLength != 0 && !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error":   string(services.KindValidation),
					"message": "Content-Type must be application/json",
				})
				return
			}
		}

		c.Next()
	}
}

// AuditLogMiddleware logs failed requests and mutations.
func AuditLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		actor := "anonymous"
		if a, ok := ActorFrom(c); ok {
			actor = a.Login
		}
		switch {
		case status >= 400:
			log.Printf("audit: %s %s by %s returned %d in %v", c.Request.Method, c.Request.URL.Path, actor, status, time.Since(start))
		case c.Request.Method != http.MethodGet && c.Request.Method != http.MethodOptions:
			log.Printf("audit: %s %s by %s returned %d", c.Request.Method, c.Request.URL.Path, actor, status)
		}
	}
}

// redactedQueryParams never reach the access log. The live feed carries its
// bearer token in ?token=.
var redactedQueryParams = []string{"token"}

// AccessLogger is gin's request logger with credentials stripped from the query.
func AccessLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output: out,
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
				param.TimeStamp.Format("2006/01/02 - 15:04:05"),
				param.StatusCode,
				param.Latency,
				param.ClientIP,
				param.Method,
				redactURL(param.Request.URL),
				param.ErrorMessage,
			)
		},
	})
}

func redactURL(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	query := u.Query()
	for _, key := range redactedQueryParams {
		if query.Has(key) {
			query.Set(key, "REDACTED")
		}
	}
	return u.Path + "?" + query.Encode()
}
