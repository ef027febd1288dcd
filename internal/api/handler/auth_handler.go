package handler

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/response"
	"MedChat/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// DemoLogin 演示环境签发 token
func (s *AuthHandler) DemoLogin(c *gin.Context) {
	var req dto.DemoLoginReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, service.ErrParamInvalid)
			return
		}
	}

	res, err := s.authService.DemoLogin(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *AuthHandler) Logout(c *gin.Context) {
	err := s.authService.Logout(c.Request.Context(), c.GetString(consts.CtxToken))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
