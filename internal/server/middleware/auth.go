package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dubber/internal/pkg/ctxutil"
	httputil "dubber/internal/pkg/http"
	"dubber/internal/pkg/jwt"
)

// ContextKeyUserID gin.Context 中的用户ID键
const ContextKeyUserID = "user_id"

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，验证后注入 user_id 到 context
func Auth(jwtUtil *jwt.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "未授权"))
			return
		}

		// Bearer {token}
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(httputil.CodeUnauthorized, "Invalid authorization header"))
			return
		}

		claims, err := jwtUtil.ValidateToken(strings.TrimSpace(tokenString))
		if err != nil {
			errorCode := httputil.CodeInvalidToken
			if errors.Is(err, jwt.ErrExpiredToken) {
				errorCode = httputil.CodeTokenExpired
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse(errorCode, "Token无效或已过期"))
			return
		}

		ctx := ctxutil.WithUserID(c.Request.Context(), claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKeyUserID, claims.UserID)

		c.Next()
	}
}
