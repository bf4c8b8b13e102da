package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/model"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/jwt"
	"sudooom.im.chat/pkg/response"
)

const (
	ctxKeyUser   = "user"
	ctxKeyClaims = "claims"
)

// Authenticator 会话校验，由 service.AuthService 实现
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *jwt.Claims, error)
}

// ProtectRoute 会话认证中间件：校验 Cookie 中的 Token 并注入当前用户
func ProtectRoute(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		if token == "" {
			response.Unauthorized(c, appErrors.ErrUnauthenticated)
			return
		}

		user, claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			// Token 无效返回 401，存储异常返回 500
			response.ErrorFromAppError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxKeyUser, user)
		c.Set(ctxKeyClaims, claims)
		c.Next()
	}
}

// TokenFromRequest 优先读取 Cookie，其次是 Authorization: Bearer
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	return extractBearer(c.GetHeader("Authorization"))
}

func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// GetUser 从 context 获取当前用户
func GetUser(c *gin.Context) *model.User {
	user, exists := c.Get(ctxKeyUser)
	if !exists {
		return nil
	}
	return user.(*model.User)
}

// GetUserID 从 context 获取当前用户 ID
func GetUserID(c *gin.Context) int64 {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return 0
}

// GetClaims 从 context 获取会话声明
func GetClaims(c *gin.Context) *jwt.Claims {
	claims, exists := c.Get(ctxKeyClaims)
	if !exists {
		return nil
	}
	return claims.(*jwt.Claims)
}
