package logger

import "context"

type contextKey struct{}

// fields are the log attributes carried on a context and stamped onto every
// record logged with it.
type fields struct {
	requestID    string
	provider     string
	connectionID string
}

func fieldsFrom(ctx context.Context) fields {
	f, _ := ctx.Value(contextKey{}).(fields)
	return f
}

func with(ctx context.Context, set func(*fields)) context.Context {
	f := fieldsFrom(ctx)
	set(&f)
	return context.WithValue(ctx, contextKey{}, f)
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, func(f *fields) { f.requestID = id })
}

// RequestID returns the request ID, or "" if none is set.
func RequestID(ctx context.Context) string {
	return fieldsFrom(ctx).requestID
}

// WithProvider returns a context whose log records carry the provider key.
func WithProvider(ctx context.Context, provider string) context.Context {
	return with(ctx, func(f *fields) { f.provider = provider })
}

// WithConnectionID returns a context whose log records carry the connection ID.
func WithConnectionID(ctx context.Context, id string) context.Context {
	return with(ctx, func(f *fields) { f.connectionID = id })
}

// appendAttrs stamps the non-empty context fields.
func (f fields) appendAttrs(add func(key, val string)) {
	if f.requestID != "" {
		add("request_id", f.requestID)
	}
	if f.provider != "" {
		add("provider", f.provider)
	}
	if f.connectionID != "" {
		add("connection_id", f.connectionID)
	}
}
