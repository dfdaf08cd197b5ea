package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/dieta_server/internal/pkg/jwt"
	"github.com/qs3c/dieta_server/internal/pkg/response"
)

const (
	CallerKey = "caller"
)

// ServiceAuth 服务令牌认证中间件，只接受带 generate 权限的令牌。
// 未配置密钥时拒绝所有请求。
func ServiceAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			response.AuthError(c, "service authentication is not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "authorization must use the Bearer scheme")
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "invalid or expired token")
			return
		}
		if claims.Scope != jwt.ScopeGenerate {
			response.AuthError(c, "token scope does not allow generation")
			return
		}

		c.Set(CallerKey, claims.Subject)
		c.Next()
	}
}

// GetCaller 从上下文获取调用方名称
func GetCaller(c *gin.Context) (string, bool) {
	caller, exists := c.Get(CallerKey)
	if !exists {
		return "", false
	}
	name, ok := caller.(string)
	return name, ok
}
