package response

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/service"
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const (
	Ok                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
)

// Success 成功返回封装
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, dto.Response{
		Code:    Ok,
		Message: "success",
		Data:    data,
	})
}

// Fail 失败返回封装，4xx/5xx 业务码同时作为 HTTP 状态码
func Fail(c *gin.Context, businessCode int, message string) {
	status := http.StatusOK
	if businessCode >= 400 && businessCode < 600 {
		status = businessCode
	}
	c.JSON(status, dto.Response{
		Code:    businessCode,
		Message: message,
		Data:    nil,
	})
}

// Unauthenticated 统一的未认证响应，不透露具体原因
func Unauthenticated(c *gin.Context) {
	Fail(c, Unauthorized, "unauthorized")
	c.Abort()
}

// Error 处理错误
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		Fail(c, BadRequest, service.ErrParamInvalid.Error())
		return
	}

	var unmarshalTypeError *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeError) {
		Fail(c, BadRequest, "invalid json")
		return
	}

	for target, code := range service.ErrorMap {
		if errors.Is(err, target) {
			if code == Unauthorized {
				Unauthenticated(c)
				return
			}
			Fail(c, code, target.Error())
			return
		}
	}

	log.ErrorContext(c.Request.Context(), "Unhandled error", "err", err)
	Fail(c, InternalServerError, service.UnExpectedError.Error())
}
