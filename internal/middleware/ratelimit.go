package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"

	"StillStudying/config"
	"StillStudying/pkg/logger"
	"StillStudying/storage/redis"
)

// 基于 Redis 计数器的固定窗口限流，按用户优先、无身份时按 IP

const rateLimitWindow = time.Minute

// RateLimitMiddleware 全局限流
func RateLimitMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !config.Cfg.RateLimitEnabled {
			c.Next(ctx)
			return
		}

		maxRequests := config.Cfg.RateLimitRPS * int(rateLimitWindow/time.Second)

		var subject string
		if userID, exists := GetUserID(ctx, c); exists {
			subject = "u:" + strconv.FormatInt(userID, 10)
		} else {
			subject = "ip:" + c.ClientIP()
		}

		key := redis.Key("rate", subject, strconv.FormatInt(time.Now().Unix()/int64(rateLimitWindow/time.Second), 10))

		count, err := redis.Client().Incr(ctx, key).Result()
		if err != nil {
			// 限流器故障时放行，不拿可用性换精确性
			logger.Logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next(ctx)
			return
		}
		if count == 1 {
			redis.Client().Expire(ctx, key, rateLimitWindow)
		}

		if count > int64(maxRequests) {
			c.JSON(consts.StatusTooManyRequests, map[string]interface{}{
				"error": map[string]interface{}{
					"code":    "RATE_LIMITED",
					"message": "too many requests, slow down",
				},
			})
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}
