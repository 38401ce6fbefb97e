package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"mercator-hq/procmetrics/pkg/telemetry/logging"
	"mercator-hq/procmetrics/pkg/telemetry/tracing"
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds request IDs accepted from clients.
const maxRequestIDLength = 128

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// requestIDMiddleware keeps the client's X-Request-ID or generates a UUID,
// stores it in the request context and echoes it in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	})
}

// loggingMiddleware logs every completed request. Server errors are logged
// at error level and client errors at warn level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		ctx := r.Context()

		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", logging.GetRequestID(ctx),
			"remote_addr", r.RemoteAddr,
		}
		if traceID := tracing.TraceID(ctx); traceID != "" {
			attrs = append(attrs, "trace_id", traceID)
		}
		s.logger.Log(ctx, level, "request completed", attrs...)
	})
}

// recoveryMiddleware turns a handler panic into a 500 response and logs the
// stack.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				s.logger.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// instrument records request metrics and span attributes for route. The
// route path, not the request path, is the route label so unmatched
// sub-paths do not add series.
func (s *Server) instrument(route Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRoute(r.Context(), route.Path)
		rw := newResponseWriter(w)

		var done func(method, route string, code int)
		if rm := s.requestMetrics.Load(); rm != nil {
			done = rm.Start()
		}

		defer func() {
			code := rw.statusCode
			p := recover()
			if p != nil {
				code = http.StatusInternalServerError
			}
			if done != nil {
				done(r.Method, route.Path, code)
			}
			tracing.SetRequestAttributes(tracing.SpanFromContext(ctx), r.Method, route.Path, code)
			if p != nil {
				panic(p)
			}
		}()

		route.Handler.ServeHTTP(rw, r.WithContext(ctx))
	})
}
