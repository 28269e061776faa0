package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	sessionIDKey  contextKey = "session_id"
	remoteAddrKey contextKey = "remote_addr"
	routeKey      contextKey = "route"
)

// WithSessionID 设置会话 ID
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID 获取会话 ID
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRemoteAddr 设置客户端地址
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey, addr)
}

// RemoteAddr 获取客户端地址
func RemoteAddr(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(remoteAddrKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRoute 设置匹配到的路由 location
func WithRoute(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, routeKey, location)
}

// Route 获取路由 location
func Route(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(routeKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
