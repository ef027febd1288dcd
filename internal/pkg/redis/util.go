package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetWithExpiration 设置键值对并设置过期时间
func SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if Rdb == nil {
		return nil
	}
	return Rdb.Set(ctx, key, value, expiration).Err()
}

// GetValue 获取字符串类型的值，不存在时返回空串
func GetValue(ctx context.Context, key string) (string, error) {
	if Rdb == nil {
		return "", nil
	}
	value, err := Rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// AddToSetWithExpiration 向集合添加成员并刷新过期时间
func AddToSetWithExpiration(ctx context.Context, key string, member string, expiration time.Duration) error {
	if Rdb == nil {
		return nil
	}
	pipe := Rdb.TxPipeline()
	pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, expiration)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveFromSet 从集合移除成员
func RemoveFromSet(ctx context.Context, key string, member string) error {
	if Rdb == nil {
		return nil
	}
	return Rdb.SRem(ctx, key, member).Err()
}

// SetCard 集合成员数
func SetCard(ctx context.Context, key string) (int64, error) {
	if Rdb == nil {
		return 0, nil
	}
	return Rdb.SCard(ctx, key).Result()
}

// Publish 发布消息到频道
func Publish(ctx context.Context, channel string, payload []byte) error {
	if Rdb == nil {
		return errors.New("redis is not initialized")
	}
	return Rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe 订阅频道
func Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return Rdb.Subscribe(ctx, channels...)
}
