package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	requestIDKey contextKey = "observability.request_id"
	routeKey     contextKey = "observability.route"
	accountIDKey contextKey = "observability.account_id"
)

// WithRequestMetadata enriches context and current span with request metadata.
func WithRequestMetadata(ctx context.Context, requestID, route string) context.Context {
	requestID = strings.TrimSpace(requestID)
	route = strings.TrimSpace(route)
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if route != "" {
		ctx = context.WithValue(ctx, routeKey, route)
	}

	attrs := make([]attribute.KeyValue, 0, 2)
	if requestID != "" {
		attrs = append(attrs, attribute.String("request.id", requestID))
	}
	if route != "" {
		attrs = append(attrs, attribute.String("http.route", route))
	}
	setSpanAttributes(ctx, attrs...)
	return ctx
}

// WithAccount records the authenticated account on context and span.
func WithAccount(ctx context.Context, accountID string) context.Context {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	setSpanAttributes(ctx, attribute.String("enduser.id", accountID))
	return ctx
}

// RequestIDFromContext extracts request id.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// RouteFromContext extracts normalized route path.
func RouteFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, routeKey)
}

// AccountIDFromContext extracts the authenticated account id.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, accountIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func setSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if len(attrs) == 0 {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attrs...)
}
