package middleware

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdleTTL is how long a user's limiter survives without requests.
const DefaultLimiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware holds one token bucket per user. Buckets idle for
// longer than idleTTL are evicted, at most once per idleTTL.
type RateLimiterMiddleware struct {
	mu        sync.Mutex
	limiters  map[int64]*userLimiter
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
	logger    *zap.Logger
}

func NewRateLimiterMiddleware(r rate.Limit, b int, logger *zap.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		limiters:  make(map[int64]*userLimiter),
		rate:      r,
		burst:     b,
		idleTTL:   DefaultLimiterIdleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
		logger:    logger,
	}
}

// Middleware must run after AuthMiddleware.
func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !rl.limiter(userID).Allow() {
			rl.logger.Info("rate limit exceeded", zap.Int64("user_id", userID))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiterMiddleware) limiter(userID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.evictIdle(now)
	}

	entry, ok := rl.limiters[userID]
	if !ok {
		entry = &userLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evictIdle must be called with rl.mu held.
func (rl *RateLimiterMiddleware) evictIdle(now time.Time) {
	for id, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) >= rl.idleTTL {
			delete(rl.limiters, id)
		}
	}
	rl.lastSweep = now
}
