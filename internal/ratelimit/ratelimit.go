package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type Limiter interface {
	Allow(key string) bool
}

type window struct {
	count int
	start time.Time
}

// FixedWindow allows up to max requests per key in each window.
type FixedWindow struct {
	max      int
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func New(max int, interval time.Duration) *FixedWindow {
	return &FixedWindow{
		max:      max,
		interval: interval,
		now:      time.Now,
		windows:  make(map[string]*window),
	}
}

func (l *FixedWindow) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max <= 0 {
		return false
	}

	now := l.now()
	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= l.interval {
		l.windows[key] = &window{count: 1, start: now}
		return true
	}

	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// Sweep drops windows that have expired and returns how many were removed.
func (l *FixedWindow) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.interval {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the limit with 429. keyFn picks the key;
// a nil keyFn keys on the client address.
func Middleware(l Limiter, retryAfter time.Duration, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientAddr
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(keyFn(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too many requests"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
