package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// MaxTrackedClients bounds the per-client limiter table; the least recently
// seen client is evicted first.
const MaxTrackedClients = 4096

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	// PerClient keys limiters by client IP instead of sharing one.
	PerClient bool
}

// RateLimit applies a token bucket either globally or per client IP.
func RateLimit(config RateLimitConfig) Middleware {
	if !config.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	var limiterFor func(r *http.Request) *rate.Limiter
	if config.PerClient {
		clients := newClientLimiters(config.RequestsPerSecond, config.Burst, MaxTrackedClients)
		limiterFor = func(r *http.Request) *rate.Limiter {
			return clients.get(clientIP(r))
		}
	} else {
		shared := rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
		limiterFor = func(*http.Request) *rate.Limiter {
			return shared
		}
	}

	retryAfter := "1"
	if config.RequestsPerSecond > 0 && config.RequestsPerSecond < 1 {
		retryAfter = strconv.Itoa(int(1/config.RequestsPerSecond + 0.5))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(r).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				WriteError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiters struct {
	mu    sync.Mutex
	cache *lru.Cache
	rps   rate.Limit
	burst int
}

func newClientLimiters(rps float64, burst, size int) *clientLimiters {
	cache, err := lru.New(size)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &clientLimiters{cache: cache, rps: rate.Limit(rps), burst: burst}
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(c.rps, c.burst)
	c.cache.Add(ip, l)
	return l
}

func (c *clientLimiters) len() int {
	return c.cache.Len()
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
