package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dubber/internal/pkg/id"
)

// 请求ID
const (
	HeaderRequestID     = "X-Request-ID"
	ContextKeyRequestID = "request_id"
)

// RequestID 为每个请求分配ID，并把携带该ID的 logger 放入 context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = id.New()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		ctx := c.Request.Context()
		l := zerolog.Ctx(ctx).With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(l.WithContext(ctx))

		c.Next()
	}
}
