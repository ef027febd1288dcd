package middleware

import (
	"MedChat/internal/pkg/logger"
	"context"

	"github.com/gin-gonic/gin"
)

// TraceMiddleware 沿用上游的 X-Trace-ID，没有时生成 http- 前缀的新 ID
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader("X-Trace-ID"); traceID != "" {
			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
		} else {
			ctx = logger.WithTrace(ctx, "http")
		}
		traceID := logger.TraceID(ctx)

		c.Set(logger.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Trace-ID", traceID)
		c.Next()
	}
}
