package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-table-identity/internal/core/auth"
	resp "go-table-identity/internal/transport/http/response"
)

const (
	KeyClaims = "claims"
	KeyUserID = "userId"
)

// AuthJWT 校验 Bearer 令牌；requireRole 非空时还要求令牌带该角色
func AuthJWT(j *auth.JWTer, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if requireRole != "" && !claims.HasRole(requireRole) {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UID)
		c.Next()
	}
}

// ClaimsFrom 取出 AuthJWT 写入的 claims
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*auth.Claims)
	return cl, ok
}

// RoleChecker 查询用户当前是否拥有某角色
type RoleChecker interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireStoredRole 在 AuthJWT 之后按存储中的当前角色再校验一次；
// 令牌里的 roles 在撤销后直到过期前仍然有效。
func RequireStoredRole(rc RoleChecker, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := rc.HasRole(c.Request.Context(), c.GetString(KeyUserID), role)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeStorageError, "role check failed"))
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Next()
	}
}
