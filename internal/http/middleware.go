package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"conduit-api/internal/auth"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "requestID"
	ctxUserID       = "userID"
	ctxToken        = "token"
)

func corsMiddleware() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	return cors.New(config)
}

// logRequests tags each request with an id and logs one line when it completes.
func logRequests(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		entry := requestLogger(c, log).WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}

func requestLogger(c *gin.Context, log logrus.FieldLogger) logrus.FieldLogger {
	return log.WithFields(logrus.Fields{
		"request_id": c.GetString(ctxRequestID),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	})
}

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

// ipLimiter hands out one token bucket per client address. Buckets idle for longer than
// the TTL are swept, so the set stays bounded by the clients seen recently.
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	limiters *gocache.Cache
}

func newIPLimiter(rps float64, burst int, idle time.Duration) *ipLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = limiterIdleTTL
	}
	return &ipLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		limiters: gocache.New(idle, idle/2),
	}
}

// get returns the bucket for key and pushes its expiry out by the idle TTL.
func (l *ipLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	l.limiters.Set(key, lim, l.idle)
	return lim.(*rate.Limiter)
}

func (l *ipLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("too many requests"))
			return
		}
		c.Next()
	}
}

// requireAuth rejects requests without a valid token with an empty 401.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.FromHeader(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		userID, err := h.tokens.Verify(raw)
		if err != nil {
			requestLogger(c, h.log).WithError(err).Debug("rejected token")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxToken, raw)
		c.Next()
	}
}

// optionalAuth resolves the caller when a valid token is present and otherwise treats the
// request as anonymous.
func (h *Handler) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := auth.FromHeader(c.GetHeader("Authorization")); ok {
			if userID, err := h.tokens.Verify(raw); err == nil {
				c.Set(ctxUserID, userID)
				c.Set(ctxToken, raw)
			}
		}
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
