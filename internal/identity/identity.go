package identity

import (
	"net/http"

	"crmbackend/internal/gates"

	"github.com/gin-gonic/gin"
)

// 上游网关在认证后注入的身份请求头
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

const actorContextKey = "actor"

// Middleware 从请求头提取租户/用户身份
//
// 租户解析与会话认证由上游网关完成，本服务只消费其注入的身份头，
// 缺失时直接拒绝。
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)
		userID := c.GetHeader(HeaderUserID)

		if tenantID == "" || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少身份信息"})
			c.Abort()
			return
		}

		c.Set(actorContextKey, gates.Actor{TenantID: tenantID, UserID: userID})
		c.Next()
	}
}

// GetActor 从请求上下文获取身份
func GetActor(c *gin.Context) (gates.Actor, bool) {
	v, exists := c.Get(actorContextKey)
	if !exists {
		return gates.Actor{}, false
	}
	actor, ok := v.(gates.Actor)
	return actor, ok
}
