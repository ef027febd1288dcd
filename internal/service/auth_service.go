package service

import (
	"MedChat/internal/api/dto"
	"MedChat/internal/pkg/consts"
	"MedChat/internal/pkg/redis"
	"MedChat/internal/pkg/security"
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const demoUserName = "Demo User"

// AuthService 演示登录与注销，正式身份由外部身份服务签发
type AuthService interface {
	DemoLogin(ctx context.Context, req *dto.DemoLoginReq) (*dto.DemoLoginResp, error)
	Logout(ctx context.Context, token string) error
}

type authServiceImpl struct {
	doctors DoctorService
}

func NewAuthService(doctors DoctorService) AuthService {
	return &authServiceImpl{doctors: doctors}
}

// DemoLogin 有数据库时以第一个拥有外部 ID 的医生登录；
// 没有数据库时按名字生成确定性的外部 ID
func (s *authServiceImpl) DemoLogin(ctx context.Context, req *dto.DemoLoginReq) (*dto.DemoLoginResp, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = demoUserName
	}

	doctor, err := s.doctors.FirstLoginCandidate(ctx)
	switch {
	case err == nil:
		token, err := security.GenerateToken(doctor.ID, *doctor.SupabaseID, doctor.DisplayName())
		if err != nil {
			return nil, err
		}
		log.InfoContext(ctx, "Demo login with doctor", "doctor_id", doctor.ID)
		return &dto.DemoLoginResp{
			Token:    token,
			UserID:   *doctor.SupabaseID,
			DoctorID: doctor.ID,
			Name:     doctor.DisplayName(),
		}, nil
	case errors.Is(err, ErrDoctorNotFound):
	default:
		return nil, err
	}

	ext := uuid.NewSHA1(demoNamespace, []byte("user-"+strings.ToLower(name))).String()
	token, err := security.GenerateToken(0, ext, name)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "Demo login without database", "user_id", ext)
	return &dto.DemoLoginResp{Token: token, UserID: ext, Name: name}, nil
}

// Logout 将 token 签名加入黑名单直到其过期
func (s *authServiceImpl) Logout(ctx context.Context, token string) error {
	claims, err := security.ValidateToken(token)
	if err != nil {
		return ErrUnauthenticated
	}
	sig, err := security.ExtractSignature(token)
	if err != nil {
		return ErrUnauthenticated
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := redis.SetWithExpiration(ctx, consts.TokenBlacklistKey+sig, 1, ttl); err != nil {
		log.ErrorContext(ctx, "Blacklist token failed", "err", err)
		return UnExpectedError
	}
	return nil
}
