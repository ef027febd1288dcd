package service

import (
	"MedChat/internal/pkg/identity"
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
)

var (
	ErrParamInvalid     = errors.New("invalid parameters")
	ErrInvalidInput     = errors.New("invalid message")
	ErrStoreUnavailable = errors.New("message store unavailable")
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrUnknownEvent     = errors.New("unknown event")
	UnExpectedError     = errors.New("unexpected error, please retry later")
)

// 身份相关错误由 identity 包定义
var (
	ErrUnauthenticated = identity.ErrUnauthenticated
	ErrInvalidReceiver = identity.ErrInvalidReceiver
)

var ErrorMap = map[error]int{
	ErrParamInvalid:     BadRequest,
	ErrInvalidInput:     BadRequest,
	ErrInvalidReceiver:  BadRequest,
	ErrUnknownEvent:     BadRequest,
	ErrUnauthenticated:  Unauthorized,
	ErrDoctorNotFound:   NotFound,
	ErrStoreUnavailable: ServiceUnavailable,
	UnExpectedError:     InternalServerError,
}
