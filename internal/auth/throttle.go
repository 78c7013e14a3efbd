package auth

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter is a token bucket per remote address. Buckets idle long
// enough to have refilled are dropped, so they are recreated full.
type LoginLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*loginBucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type loginBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows perMinute attempts per address with the given burst.
func NewLoginLimiter(perMinute float64, burst int) *LoginLimiter {
	idle := 10 * time.Minute
	if perMinute > 0 {
		refill := time.Duration(float64(burst) / perMinute * float64(time.Minute))
		if refill > time.Minute {
			idle = refill
		} else {
			idle = time.Minute
		}
	}
	return &LoginLimiter{
		limiters:  make(map[string]*loginBucket),
		limit:     rate.Limit(perMinute / 60),
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow consumes one token for key.
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.limiters[key]
	if !ok {
		b = &loginBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets unused for l.idle. Callers hold l.mu.
func (l *LoginLimiter) sweep(now time.Time) {
	for key, b := range l.limiters {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// Middleware answers 429 once an address exhausts its bucket.
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientAddr(r)) {
			w.Header().Set("Retry-After", "60")
			WriteError(w, http.StatusTooManyRequests, "THROTTLED", "Too many login attempts. Try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
