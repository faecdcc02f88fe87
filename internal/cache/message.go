package cache

import (
	"context"
	"time"

	"StillStudying/storage/redis"
)

// 消费幂等标记
// processing: 短期占位，防止同一条消息被并发处理
// processed:  处理完成标记，防止重复投递造成二次通知

const (
	processingTTL = 5 * time.Minute
	processedTTL  = 24 * time.Hour
)

// TryMarkMessageProcessing 尝试占位，返回 false 表示已有人在处理或已处理完
func TryMarkMessageProcessing(ctx context.Context, messageID string) (bool, error) {
	processedKey := redis.Key("msg", "processed", messageID)
	exists, err := redis.Client().Exists(ctx, processedKey).Result()
	if err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}

	processingKey := redis.Key("msg", "processing", messageID)
	return redis.Client().SetNX(ctx, processingKey, "1", processingTTL).Result()
}

// UnmarkMessageProcessing 处理失败时释放占位，允许重投后重试
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	processingKey := redis.Key("msg", "processing", messageID)
	return redis.Client().Del(ctx, processingKey).Err()
}

// MarkMessageProcessed 处理成功后落终态标记
func MarkMessageProcessed(ctx context.Context, messageID string) error {
	processedKey := redis.Key("msg", "processed", messageID)
	if err := redis.Client().Set(ctx, processedKey, "1", processedTTL).Err(); err != nil {
		return err
	}

	processingKey := redis.Key("msg", "processing", messageID)
	return redis.Client().Del(ctx, processingKey).Err()
}
