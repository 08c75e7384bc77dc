// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the service are defined here so that
// producers and consumers agree on one typed key.
package contextkeys

import (
	"context"
	"time"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string (UUID)
	// Set by: api.requestIDMiddleware
	// Used by: Logger, response headers, trace attributes
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: api.requestIDMiddleware
	// Used by: Handlers that log with request context
	LoggerKey Key = "logger"

	// SiteIDKey contains the site ID of a collect request
	// Set by: api.handleCollect
	// Used by: admission.Router logging
	SiteIDKey Key = "site_id"

	// RequestStartTimeKey contains the request start timestamp
	// Set by: httputil.LoggingMiddleware
	RequestStartTimeKey Key = "request_start_time"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithSiteID adds the site ID to the context
func WithSiteID(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, SiteIDKey, siteID)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, start)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSiteID retrieves the site ID from context
func GetSiteID(ctx context.Context) string {
	if siteID, ok := ctx.Value(SiteIDKey).(string); ok {
		return siteID
	}
	return ""
}

// GetRequestStartTime retrieves the request start time, zero when unset
func GetRequestStartTime(ctx context.Context) time.Time {
	if start, ok := ctx.Value(RequestStartTimeKey).(time.Time); ok {
		return start
	}
	return time.Time{}
}
