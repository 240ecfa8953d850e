package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/model"
)

// Claims JWT载荷，Subject存放选民ID
type Claims struct {
	Name string     `json:"name"`
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken 为选民签发凭证
func IssueToken(voter *model.Voter) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name: voter.Name,
		Role: voter.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   voter.ID,
			Issuer:    config.AppConfig.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.JWT.Expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.AppConfig.JWT.Secret))
	if err != nil {
		return "", fmt.Errorf("签发凭证失败: %w", err)
	}
	return signed, nil
}

// ParseToken 验证凭证并解析出调用者身份
// 纯校验，不访问任何存储
// 过期返回 model.ErrTokenExpired，其余校验失败一律返回 model.ErrTokenInvalid
func ParseToken(raw string) (*model.Identity, error) {
	if raw == "" {
		return nil, model.ErrCredentialMissing
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("不支持的签名算法: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWT.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrTokenInvalid
	}

	if !token.Valid || claims.Subject == "" {
		return nil, model.ErrTokenInvalid
	}

	return &model.Identity{
		VoterID: claims.Subject,
		Name:    claims.Name,
		Role:    claims.Role,
	}, nil
}

// RequireRole 校验调用者角色，不匹配返回 model.ErrForbidden
func RequireRole(identity *model.Identity, role model.Role) error {
	if identity == nil {
		return model.ErrCredentialMissing
	}
	if identity.Role != role {
		return model.ErrForbidden
	}
	return nil
}
