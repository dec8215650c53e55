package middleware

import (
	"net/http"
	"sync"
	"time"

	"answersheet/internal/apperrors"
	"answersheet/internal/logger"
	"answersheet/internal/response"

	"golang.org/x/time/rate"
)

// idleTTL is how long a client's bucket survives without requests.
const idleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	lastSweep time.Time
	mutex     sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		lastSweep: time.Now(),
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	return r.limiterAt(ip, time.Now())
}

// limiterAt returns the bucket of ip, dropping buckets idle for idleTTL at
// most once per idleTTL.
func (r *rateLimiter) limiterAt(ip string, now time.Time) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if now.Sub(r.lastSweep) >= idleTTL {
		cutoff := now.Add(-idleTTL)
		for key, v := range r.bucket {
			if v.lastSeen.Before(cutoff) {
				delete(r.bucket, key)
			}
		}
		r.lastSweep = now
	}

	v, exist := r.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = now

	return v.limiter
}

// RateLimit applies a token bucket per client IP.
func RateLimit(rps float64, burst int, log *logger.Logger) func(http.Handler) http.Handler {
	limiter := newRateLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.GetLimiterFrom(ip).Allow() {
				response.Error(w, r, log, apperrors.NewRateLimitedError("too many requests from "+ip))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
