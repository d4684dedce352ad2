package ctxutil

import "context"

type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// WithUserID 将 userID 注入到 context 中，由认证中间件在校验 token 后调用
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID 从 context 中解析 userID，未认证或为空时返回 false
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
