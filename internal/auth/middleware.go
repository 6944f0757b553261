package auth

import (
	"context"
	"net/http"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextKey 上下文键类型
type ContextKey string

// PrincipalContextKey 当前操作者上下文键
const PrincipalContextKey ContextKey = "principal"

// Principal 请求发起者在当下的快照（审计日志按此记录，不再回查）
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"code":    common.CodeUnauthorized,
		"message": message,
	})
}

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Missing authentication token")
			return
		}

		token := ExtractTokenFromBearer(authHeader)
		if token == "" {
			abortUnauthorized(c, "Invalid authorization header")
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.Debug("令牌验证失败", zap.Error(err))
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		principal, err := claims.Principal()
		if err != nil {
			logger.Warn("令牌角色无法识别", zap.String("user_id", claims.UserID), zap.String("role", claims.Role))
			abortUnauthorized(c, "Unrecognized role")
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

// OptionalAuthMiddleware 可选认证中间件（公开端点，有令牌则解析）
func OptionalAuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractTokenFromBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		if claims, err := jwtService.ValidateToken(token); err == nil {
			if principal, err := claims.Principal(); err == nil {
				SetPrincipal(c, principal)
			}
		}
		c.Next()
	}
}

// RequireRole 角色检查中间件
func RequireRole(allowed ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}

		if !principal.Role.In(allowed...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"code":    common.CodeForbidden,
				"message": "Your role is not permitted to perform this action",
			})
			return
		}

		c.Next()
	}
}

// SetPrincipal 同时写入 gin 上下文与 request context
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(string(PrincipalContextKey), p)
	ctx := WithPrincipal(c.Request.Context(), p)
	ctx = logger.WithActorID(ctx, p.ID)
	c.Request = c.Request.WithContext(ctx)
}

// GetPrincipal 从 Gin Context 获取当前操作者
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	v, exists := c.Get(string(PrincipalContextKey))
	if !exists {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

// WithPrincipal 在标准 context.Context 中设置操作者
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFromContext 从标准 context.Context 获取操作者
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok && p != nil
}
