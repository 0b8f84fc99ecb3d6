package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-IP token-bucket rate limiter with automatic stale-entry cleanup.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	burst    int
	// trustProxy keys clients on X-Forwarded-For / X-Real-Ip. Only safe when
	// a reverse proxy overwrites those headers.
	trustProxy bool
	done       chan struct{}
}

// NewRateLimiter creates a per-IP limiter: r requests/second, burst up to burst requests.
// Clients are keyed on the connection address unless trustProxy is set.
func NewRateLimiter(r rate.Limit, burst int, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		limiters:   make(map[string]*ipLimiter),
		r:          r,
		burst:      burst,
		trustProxy: trustProxy,
		done:       make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() { close(rl.done) }

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.limiters[ip]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.limiters[ip] = &ipLimiter{limiter: l, lastSeen: time.Now()}
	return l
}

// cleanup removes stale entries every 5 minutes.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for ip, v := range rl.limiters {
			if time.Since(v.lastSeen) > 10*time.Minute {
				delete(rl.limiters, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Limit is the middleware handler that enforces the rate limit per client IP.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return rl.LimitActions()(next)
}

// LimitActions enforces the rate limit only on requests whose action query
// parameter is one of actions. With no actions every request is limited.
func (rl *RateLimiter) LimitActions(actions ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(actions))
	for _, a := range actions {
		limited[a] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 && !limited[r.URL.Query().Get("action")] {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.get(clientIP(r, rl.trustProxy)).Allow() {
				writeJSONError(w, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the connection address without its port. With trustProxy
// it prefers the first X-Forwarded-For hop, then X-Real-Ip.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xr != "" {
			return xr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
