package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"employeehub/internal/platform/metrics"
	"employeehub/internal/transport/http/api"
)

const maxTrackedKeys = 10000

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

type LimitOption func(*limiter)

// WithKeyFunc replaces the default actor-or-IP key.
func WithKeyFunc(fn KeyFunc) LimitOption {
	return func(l *limiter) {
		if fn != nil {
			l.key = fn
		}
	}
}

// WithLimitMetrics counts rejected requests under the limiter's name.
func WithLimitMetrics(m *metrics.Metrics) LimitOption {
	return func(l *limiter) { l.metrics = m }
}

// RateLimit allows limit requests per key in each fixed window. A limit of
// zero or less disables the middleware.
func RateLimit(name string, limit int, window time.Duration, opts ...LimitOption) func(http.Handler) http.Handler {
	l := &limiter{
		name:   name,
		window: fixedWindow{limit: limit, size: window, buckets: map[string]*windowBucket{}},
		key:    ActorOrIPKey,
	}
	for _, opt := range opts {
		opt(l)
	}
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// ActorOrIPKey keys authenticated requests by user and the rest by client IP.
func ActorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return "ip:" + clientIP(r)
}

// JSONFieldKey keys by a lower-cased string field of a JSON body, falling
// back to the client IP. The body is restored for the next handler.
func JSONFieldKey(field string) KeyFunc {
	return func(r *http.Request) string {
		if v := peekJSONField(r, field); v != "" {
			return field + ":" + strings.ToLower(v)
		}
		return "ip:" + clientIP(r)
	}
}

type limiter struct {
	name    string
	window  fixedWindow
	key     KeyFunc
	metrics *metrics.Metrics
}

func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	key := l.key(r)
	remaining, reset, ok := l.window.take(key, time.Now())
	retry := secondsUntil(reset)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.window.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(retry))
	if ok {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
	slog.WarnContext(r.Context(), "rate limit exceeded", "limiter", l.name, "key", key, "path", r.URL.Path)
	l.metrics.IncRateLimited(l.name)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

type windowBucket struct {
	used  int
	reset time.Time
}

// fixedWindow is a per-key counter that resets when its window elapses.
type fixedWindow struct {
	mu      sync.Mutex
	limit   int
	size    time.Duration
	buckets map[string]*windowBucket
}

func (f *fixedWindow) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.buckets) > maxTrackedKeys {
		for k, b := range f.buckets {
			if now.After(b.reset) {
				delete(f.buckets, k)
			}
		}
	}
	b, found := f.buckets[key]
	if !found || now.After(b.reset) {
		b = &windowBucket{reset: now.Add(f.size)}
		f.buckets[key] = b
	}
	b.used++
	return max(f.limit-b.used, 0), b.reset, b.used <= f.limit
}

func secondsUntil(t time.Time) int {
	d := time.Until(t)
	if d <= 0 {
		return 0
	}
	return max(int(d.Seconds()), 1)
}

func peekJSONField(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}
