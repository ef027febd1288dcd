package handler

import (
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/identity"
	"MedChat/internal/service"

	"github.com/gin-gonic/gin"
)

// currentSession 读取 AuthMiddleware 写入的会话
func currentSession(c *gin.Context) (*service.Session, bool) {
	value, ok := c.Get(consts.CtxUserID)
	if !ok {
		return nil, false
	}
	user, ok := value.(identity.UserID)
	if !ok || user.IsZero() {
		return nil, false
	}
	return &service.Session{User: user, Name: c.GetString(consts.CtxUserName)}, true
}
