package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelqueue/platform/pkg/common/logger"
	"github.com/reelqueue/platform/pkg/gateway/auth"
)

type contextKey string

const OperatorContextKey contextKey = "operator"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// Ensure a request ID exists
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		r.Header.Set("X-Request-ID", reqID)
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Log.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"remote_addr": r.RemoteAddr,
			"request_id":  reqID,
			"duration":    time.Since(start).Milliseconds(),
		}).Info("HTTP request")
	})
}

// Recovery turns a panic into a structured 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.WithField("error", err).WithField("path", r.URL.Path).Error("Panic recovered")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error":   "internal server error",
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Authenticate requires a valid operator Bearer token. A nil manager disables the check.
func Authenticate(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtManager == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("Authorization")
			if !strings.HasPrefix(token, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(r.Context(), strings.TrimPrefix(token, "Bearer "))
			if err != nil {
				logger.Log.WithError(err).WithField("path", r.URL.Path).Warn("operator token rejected")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimit keeps a token bucket per client address. Hub deliveries from one
// publisher cannot starve another caller. trustedProxies is the number of
// reverse proxies in front of the service; with 0, X-Forwarded-For is ignored.
func RateLimit(rps, burst, trustedProxies int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	buckets := make(map[string]*bucket)
	rate := float64(rps)
	capacity := float64(burst)
	retryAfter := "1"
	if rps > 0 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / rate)))
	}

	take := func(key string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()

		b, ok := buckets[key]
		if !ok {
			if len(buckets) >= maxBuckets {
				evictIdle(buckets, now, capacity, rate)
			}
			b = &bucket{tokens: capacity, last: now}
			buckets[key] = b
		}
		b.tokens = math.Min(capacity, b.tokens+now.Sub(b.last).Seconds()*rate)
		b.last = now
		if b.tokens < 1 {
			return false
		}
		b.tokens--
		return true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientAddress(r, trustedProxies)
			if !take(client, time.Now()) {
				logger.Log.WithFields(map[string]interface{}{
					"client": client,
					"path":   r.URL.Path,
				}).Warn("rate limit exceeded")
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const maxBuckets = 4096

// evictIdle drops buckets that have refilled completely.
func evictIdle(buckets map[string]*bucket, now time.Time, capacity, rate float64) {
	for key, b := range buckets {
		if b.tokens+now.Sub(b.last).Seconds()*rate >= capacity {
			delete(buckets, key)
		}
	}
}

// clientAddress returns the remote host, or, behind trusted proxies, the
// X-Forwarded-For entry appended by the outermost trusted hop. Entries to the
// left of it are caller-controlled.
func clientAddress(r *http.Request, trustedProxies int) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if trustedProxies <= 0 {
		return host
	}
	fwd := r.Header.Values("X-Forwarded-For")
	if len(fwd) == 0 {
		return host
	}
	hops := strings.Split(strings.Join(fwd, ","), ",")
	idx := len(hops) - trustedProxies
	if idx < 0 {
		idx = 0
	}
	if addr := strings.TrimSpace(hops[idx]); addr != "" {
		return addr
	}
	return host
}
