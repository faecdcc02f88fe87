package middleware

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// 认证由上游网关完成，服务只信任网关注入的 X-User-ID 头
const (
	userIDHeader     = "X-User-ID"
	userIDContextKey = "user_id"
)

// IdentityMiddleware 解析网关注入的用户身份
func IdentityMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		raw := string(c.GetHeader(userIDHeader))
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(consts.StatusUnauthorized, map[string]interface{}{
				"error": map[string]interface{}{
					"code":    "UNAUTHORIZED",
					"message": "missing or invalid user identity",
				},
			})
			c.Abort()
			return
		}

		c.Set(userIDContextKey, userID)
		c.Next(ctx)
	}
}

// GetUserID 从请求上下文中获取用户ID
func GetUserID(ctx context.Context, c *app.RequestContext) (int64, bool) {
	v, exists := c.Get(userIDContextKey)
	if !exists {
		return 0, false
	}
	userID, ok := v.(int64)
	return userID, ok
}
