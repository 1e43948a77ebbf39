package core

import "context"

type contextKey string

const (
	ctxKeyClientIP  contextKey = "client_ip"
	ctxKeyUserAgent contextKey = "user_agent"
)

// ContextWithClient records the caller's address and user agent for import logs.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientIP, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// ClientIPFromContext returns the address stored by ContextWithClient.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext returns the user agent stored by ContextWithClient.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
