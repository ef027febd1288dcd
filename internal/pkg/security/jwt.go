package security

import (
	"MedChat/internal/api/config"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSecret     = "medchat-dev-secret"
	defaultIssuer     = "MedChat"
	defaultExpiration = time.Hour * 24
)

func secret() []byte {
	if config.Cfg != nil && config.Cfg.JWT.Secret != "" {
		return []byte(config.Cfg.JWT.Secret)
	}
	return []byte(defaultSecret)
}

func issuer() string {
	if config.Cfg != nil && config.Cfg.JWT.Issuer != "" {
		return config.Cfg.JWT.Issuer
	}
	return defaultIssuer
}

func expiration() time.Duration {
	if config.Cfg != nil && config.Cfg.JWT.ExpireHours > 0 {
		return time.Duration(config.Cfg.JWT.ExpireHours) * time.Hour
	}
	return defaultExpiration
}

// GenerateToken 生成一个新的 JWT Token
func GenerateToken(doctorID uint64, externalID, name string) (string, error) {
	now := time.Now()
	claims := &UserClaims{
		DoctorID:   doctorID,
		ExternalID: externalID,
		Name:       name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secret())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken 验证 Token 字符串并解析出 Claims
func ValidateToken(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret(), nil
	}, jwt.WithIssuer(issuer()))

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("token invalid or expired")
	}

	return claims, nil
}

// ExtractSignature 从 Token 字符串中提取签名
func ExtractSignature(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", errors.New("malformed token")
	}
	return parts[2], nil
}
