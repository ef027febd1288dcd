package api

import (
	"MedChat/internal/api/handler"
	"MedChat/internal/pkg/identity"
)

// HandlersGroup 封装了所有已初始化的 Handler 实例与路由需要的依赖
type HandlersGroup struct {
	ChatHandler *handler.ChatHandler
	AuthHandler *handler.AuthHandler
	WsHandler   *handler.WsHandler

	Resolver       *identity.Resolver
	AllowedOrigins []string
}
