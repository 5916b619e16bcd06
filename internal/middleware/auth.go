package middleware

import (
	"strings"

	"course_studio_backend/internal/config"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"
	"course_studio_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenSource 从 cookie 中读取登录凭证
type TokenSource interface {
	Get(c *gin.Context) (string, bool)
}

// tokenFrom 依次读取 Authorization 头、?token= 参数和 cookie
func tokenFrom(c *gin.Context, cookies TokenSource) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); token != "" {
			return token
		}
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if cookies != nil {
		if token, ok := cookies.Get(c); ok {
			return token
		}
	}
	return ""
}

func AuthMiddleware(cfg *config.Config, cookies TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFrom(c, cookies)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT parse failed", zap.String("path", c.FullPath()), zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		if cfg.Backend.ForwardUserToken {
			c.Request = c.Request.WithContext(cms.WithBearer(c.Request.Context(), tokenString))
		}
		c.Next()
	}
}

// RoleMiddleware 管理员拥有所有角色的权限
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.IsAdmin()
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			logger.Log.Info("Role check failed",
				zap.Int64("user", user.UserID), zap.String("role", string(user.Role)), zap.String("path", c.FullPath()))
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
