package security

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims 会话中携带的医生身份，旧 ID 与外部 ID 至少有一个
type UserClaims struct {
	DoctorID   uint64 `json:"doctor_id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Name       string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
