package authkit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LoginRateLimiterConfig bounds sign-in attempts per client IP.
type LoginRateLimiterConfig struct {
	RequestsPerMinute int
	Burst             int
	IdleTTL           time.Duration
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LoginRateLimiter keeps one token bucket per client IP.
type LoginRateLimiter struct {
	mutex    sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	clock    Clock
	logger   *zap.Logger
	metrics  MetricsRecorder
}

// NewLoginRateLimiter builds a limiter; a non-positive rate disables limiting.
func NewLoginRateLimiter(configuration LoginRateLimiterConfig, clock Clock, logger *zap.Logger, metrics MetricsRecorder) *LoginRateLimiter {
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	burst := configuration.Burst
	if burst <= 0 {
		burst = configuration.RequestsPerMinute
	}
	idleTTL := configuration.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	limit := rate.Inf
	if configuration.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(configuration.RequestsPerMinute) / 60.0)
	}
	return &LoginRateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    limit,
		burst:    burst,
		idleTTL:  idleTTL,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Allow consumes one token for clientIP.
func (limiter *LoginRateLimiter) Allow(clientIP string) bool {
	if limiter.limit == rate.Inf {
		return true
	}
	now := limiter.clock.Now()
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	limiter.purgeIdleLocked(now)
	entry, exists := limiter.limiters[clientIP]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.limiters[clientIP] = entry
	}
	entry.lastAccess = now
	return entry.limiter.AllowN(now, 1)
}

// Middleware rejects over-limit requests with 429.
func (limiter *LoginRateLimiter) Middleware() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if limiter.Allow(contextGin.ClientIP()) {
			contextGin.Next()
			return
		}
		limiter.metrics.Increment(metricRateLimited)
		limiter.logger.Warn("login rate limit exceeded",
			zap.String("code", "auth.rate_limited"),
			zap.String("ip", contextGin.ClientIP()),
		)
		retryAfterSeconds := int(math.Ceil(1.0 / float64(limiter.limit)))
		if retryAfterSeconds < 1 {
			retryAfterSeconds = 1
		}
		contextGin.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		contextGin.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many sign-in attempts"})
	}
}

func (limiter *LoginRateLimiter) purgeIdleLocked(now time.Time) {
	for clientIP, entry := range limiter.limiters {
		if now.Sub(entry.lastAccess) > limiter.idleTTL {
			delete(limiter.limiters, clientIP)
		}
	}
}
