package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ProcessIDKey is the context key for the multiprocess process id.
	ProcessIDKey contextKey = "process_id"

	// RouteKey is the context key for the matched route pattern.
	RouteKey contextKey = "route"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithProcessID adds a process id to the context.
func WithProcessID(ctx context.Context, pid string) context.Context {
	return context.WithValue(ctx, ProcessIDKey, pid)
}

// GetProcessID retrieves the process id from the context.
func GetProcessID(ctx context.Context) string {
	if pid, ok := ctx.Value(ProcessIDKey).(string); ok {
		return pid
	}
	return ""
}

// WithRoute adds a route pattern to the context.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

// GetRoute retrieves the route pattern from the context.
func GetRoute(ctx context.Context) string {
	if route, ok := ctx.Value(RouteKey).(string); ok {
		return route
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if pid := GetProcessID(ctx); pid != "" {
		fields = append(fields, "process_id", pid)
	}
	if route := GetRoute(ctx); route != "" {
		fields = append(fields, "route", route)
	}

	return fields
}
