package core

import "context"

type contextKey string

const ctxKeyRequestMeta contextKey = "request_meta"

// RequestMeta identifies who triggered an export or import. It is attached
// to service log lines only; it is never written to the journal.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
	Source    string // "http" or "cli"
}

// WithRequestMeta returns a context carrying meta.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, ctxKeyRequestMeta, meta)
}

// RequestMetaFrom extracts the meta stored by WithRequestMeta.
func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(ctxKeyRequestMeta).(RequestMeta)
	return meta, ok
}

// logAttrs flattens the request meta into slog key/value pairs.
func logAttrs(ctx context.Context) []any {
	meta, ok := RequestMetaFrom(ctx)
	if !ok {
		return nil
	}
	attrs := make([]any, 0, 8)
	if meta.Source != "" {
		attrs = append(attrs, "source", meta.Source)
	}
	if meta.RequestID != "" {
		attrs = append(attrs, "request_id", meta.RequestID)
	}
	if meta.IPAddress != "" {
		attrs = append(attrs, "ip", meta.IPAddress)
	}
	if meta.UserAgent != "" {
		attrs = append(attrs, "user_agent", meta.UserAgent)
	}
	return attrs
}
