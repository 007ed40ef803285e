package adapter

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"nexus-commission/internal/pkg/redis"
)

const attributedKeyPrefix = "commission:attributed:"

// RedisAttributionMarker 实现了 port.AttributionMarker。
// 标记只是一层快速路径，丢失时数据库唯一约束仍会拦住重复订单。
type RedisAttributionMarker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAttributionMarker(client *redis.Client, ttl time.Duration) *RedisAttributionMarker {
	return &RedisAttributionMarker{client: client, ttl: ttl}
}

func (m *RedisAttributionMarker) MarkAttributed(ctx context.Context, orderID string) error {
	if err := m.client.GetClient().SetNX(ctx, attributedKey(orderID), 1, m.ttl).Err(); err != nil {
		return fmt.Errorf("mark order %s attributed: %w", orderID, err)
	}
	return nil
}

func (m *RedisAttributionMarker) IsAttributed(ctx context.Context, orderID string) (bool, error) {
	_, err := m.client.GetClient().Get(ctx, attributedKey(orderID)).Result()
	switch {
	case err == nil:
		return true, nil
	case err == goredis.Nil:
		return false, nil
	default:
		return false, fmt.Errorf("check order %s marker: %w", orderID, err)
	}
}

func attributedKey(orderID string) string {
	return attributedKeyPrefix + orderID
}
