package api

import (
	"MedChat/internal/api/middleware"
	"MedChat/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware("/api/chat/ws"))
	r.Use(middleware.CORSMiddleware(group.AllowedOrigins))
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		chatGroup := apiGroup.Group("/chat")
		{
			// 无需登录即可访问的接口
			chatGroup.POST("/demo-login", group.AuthHandler.DemoLogin)

			authGroup := chatGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware(group.Resolver))
			{
				authGroup.GET("/ws", group.WsHandler.Connect)
				authGroup.POST("/logout", group.AuthHandler.Logout)

				authGroup.GET("/messages/:counterpart", group.ChatHandler.GetHistory)
				authGroup.POST("/messages", group.ChatHandler.SendMessage)
				authGroup.POST("/messages/:counterpart/read", group.ChatHandler.MarkRead)
				authGroup.GET("/unread-counts", group.ChatHandler.GetUnreadCounts)
				authGroup.GET("/threads", group.ChatHandler.GetThreads)
				authGroup.GET("/presence/:user", group.ChatHandler.GetPresence)
				authGroup.GET("/doctors", group.ChatHandler.GetDoctors)
			}
		}
	}

	return r
}
