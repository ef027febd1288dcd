package middleware

import (
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/pkg/redis"
	"MedChat/internal/pkg/response"
	"MedChat/internal/pkg/security"
	"context"
	log "log/slog"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 验证 JWT 并把规范化后的用户身份注入 Context
// WebSocket 握手无法设置请求头，允许通过 ?token= 传递
func AuthMiddleware(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.Unauthenticated(c)
			return
		}

		signature, err := security.ExtractSignature(tokenString)
		if err != nil {
			response.Unauthenticated(c)
			return
		}

		ctx := c.Request.Context()
		value, err := redis.GetValue(ctx, consts.TokenBlacklistKey+signature)
		if err != nil {
			log.WarnContext(ctx, "Token blacklist lookup failed", "err", err)
		}
		if value != "" {
			response.Unauthenticated(c)
			return
		}

		claims, err := security.ValidateToken(tokenString)
		if err != nil {
			response.Unauthenticated(c)
			return
		}

		user, err := resolver.Resolve(claims.DoctorID, claims.ExternalID)
		if err != nil {
			response.Unauthenticated(c)
			return
		}
		user = resolver.Canonical(ctx, user)

		c.Set(consts.CtxUserID, user)
		c.Set(consts.CtxUserName, claims.Name)
		c.Set(consts.CtxDoctorID, claims.DoctorID)
		c.Set(consts.CtxExternalID, claims.ExternalID)
		c.Set(consts.CtxToken, tokenString)

		newCtx := context.WithValue(ctx, consts.CtxUserID, user.String())
		c.Request = c.Request.WithContext(newCtx)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}
