// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"log"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// ============================================================================
// MIDDLEWARE TYPES
// ============================================================================

// Middleware is a function that wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain combines multiple middlewares into a single middleware.
// Middlewares are applied in the order they are provided:
// Chain(a, b, c) results in a(b(c(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ============================================================================
// CORS MIDDLEWARE
// ============================================================================

// CORSConfig contains CORS settings for the relay server.
//
// The relay is called from a web-rendered desktop UI running under a
// different origin, so the policy is deliberately open: any origin, any
// method, any header, with credentials. Credentialed responses cannot use
// the "*" origin form, so the caller's Origin header is echoed back instead.
type CORSConfig struct {
	// MaxAge is how long (in seconds) browsers may cache preflight results.
	MaxAge int
}

// DefaultCORSConfig returns the open CORS policy the relay serves.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		MaxAge: 3600,
	}
}

// CORSMiddleware adds CORS headers to every response and short-circuits
// preflight OPTIONS requests with 204 No Content.
func CORSMiddleware(config *CORSConfig) Middleware {
	if config == nil {
		config = DefaultCORSConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				method := r.Header.Get("Access-Control-Request-Method")
				if method == "" {
					method = "GET, POST, PUT, DELETE, OPTIONS"
				}
				w.Header().Set("Access-Control-Allow-Methods", method)

				headers := r.Header.Get("Access-Control-Request-Headers")
				if headers == "" {
					headers = "Content-Type, Authorization"
				}
				w.Header().Set("Access-Control-Allow-Headers", headers)

				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// RATE LIMITING MIDDLEWARE
// ============================================================================

// RateLimiter wraps a token bucket shared by all callers. The relay binds
// to loopback only, so every request comes from the same host and a single
// bucket is sufficient.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter allowing perSecond requests per
// second with the given burst. A burst below 1 is raised to 1 so the
// limiter can ever admit a request.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Allow reports whether a request may proceed now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// RateLimitMiddleware rejects requests over the limit with 429.
// A nil limiter disables rate limiting entirely.
func RateLimitMiddleware(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Printf("RATE_LIMIT_EXCEEDED | remote=%s path=%s", r.RemoteAddr, r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// LOGGING MIDDLEWARE
// ============================================================================

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streaming handlers can still
// flush through the logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware logs each request with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		log.Printf("%s | %s %s | %d | %.3fs",
			r.RemoteAddr,
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			duration.Seconds(),
		)
	})
}

// ============================================================================
// RECOVERY MIDDLEWARE
// ============================================================================

// RecoveryMiddleware recovers from panics in handlers and returns a 500.
// http.ErrAbortHandler is re-raised so net/http can abort the connection,
// which is how a streaming handler truncates its response mid-body.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				log.Printf("PANIC_RECOVERED | method=%s path=%s error=%v",
					r.Method, r.URL.Path, err)
				log.Printf("STACK_TRACE | %s", debug.Stack())

				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
