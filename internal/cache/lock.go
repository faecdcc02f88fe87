package cache

import (
	"context"
	"time"

	"StillStudying/storage/redis"
)

// 基于 Redis SETNX 的轻量分布式锁，scheduler 多实例时防止并发跑同一个 job

func TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key := redis.Key("lock", name)
	return redis.Client().SetNX(ctx, key, "1", ttl).Result()
}

func Unlock(ctx context.Context, name string) error {
	key := redis.Key("lock", name)
	return redis.Client().Del(ctx, key).Err()
}
