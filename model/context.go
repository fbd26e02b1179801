package model

import (
	"context"
	"time"
)

// RequestContext carries attribution and tracing information for the
// lifetime of a request. It is immutable after construction and safe for
// concurrent reads.
type RequestContext struct {
	ActorID       string
	CorrelationID string
	TraceID       string
	SpanID        string
	Timezone      string
}

// Location returns the request's time zone, falling back to UTC when the zone
// is unset or unknown.
func (rc *RequestContext) Location() *time.Location {
	if rc == nil || rc.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(rc.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}

// ActorFrom returns the actor id carried by ctx, or "" when none is present.
func ActorFrom(ctx context.Context) string {
	if rctx := RequestContextFrom(ctx); rctx != nil {
		return rctx.ActorID
	}
	return ""
}
