// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/ragstack/pkg/ratelimit"
)

type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	correlationIDKey contextKey = "correlation_id"

	headerRequestID      = "X-Request-ID"
	headerCorrelationID  = "X-Correlation-ID"
	headerResponseTimeMs = "X-Response-Time-Ms"
)

// RequestIDFrom returns the request ID stored in the context, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CorrelationIDFrom returns the correlation ID stored in the context, if any.
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// RequestID assigns a request ID, generating one when the client did
// not supply it, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationID propagates the client correlation ID, if present, so
// it can be carried through queue jobs and worker logs.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerCorrelationID)
		if id != "" {
			w.Header().Set(headerCorrelationID, id)
			r = r.WithContext(context.WithValue(r.Context(), correlationIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// timingWriter sets X-Response-Time-Ms just before the first byte of
// the response is written. Headers cannot change after WriteHeader.
type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (t *timingWriter) WriteHeader(status int) {
	if !t.wroteHeader {
		t.wroteHeader = true
		elapsed := time.Since(t.start).Milliseconds()
		t.Header().Set(headerResponseTimeMs, strconv.FormatInt(elapsed, 10))
	}
	t.ResponseWriter.WriteHeader(status)
}

func (t *timingWriter) Write(p []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	return t.ResponseWriter.Write(p)
}

// ResponseTime records handler latency on the response headers.
func ResponseTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&timingWriter{ResponseWriter: w, start: time.Now()}, r)
	})
}

// RateLimit enforces the per-client request budget. Health checks are
// exempt so orchestrator probes never get throttled.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				// Fail open: a broken counter must not take the API down.
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":   "RATE_LIMIT_EXCEEDED",
					"message": fmt.Sprintf("rate limit exceeded, retry after %d seconds", result.RetryAfter),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller address, preferring the first
// X-Forwarded-For hop when a proxy set it.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for i := 0; i < len(forwarded); i++ {
			if forwarded[i] == ',' {
				return forwarded[:i]
			}
		}
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
