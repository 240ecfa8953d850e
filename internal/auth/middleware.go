package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/openvote/internal/model"
)

// IdentityKey gin上下文中存放认证身份的键
const IdentityKey = "identity"

// Authenticate 统一的认证中间件
// 从 Authorization: Bearer <token> 解析调用者身份并写入上下文
// 过期与无效凭证区分返回，便于客户端决定重新登录还是直接拒绝
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": model.ErrCredentialMissing.Error()})
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		identity, err := ParseToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// AdminOnly 管理员角色检查中间件，必须在 Authenticate 之后使用
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if err := RequireRole(identity, model.RoleAdmin); err != nil {
			if errors.Is(err, model.ErrCredentialMissing) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// IdentityFrom 从gin上下文取出认证身份
func IdentityFrom(c *gin.Context) *model.Identity {
	value, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, ok := value.(*model.Identity)
	if !ok {
		return nil
	}
	return identity
}
