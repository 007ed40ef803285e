// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client 封装 go-redis 的 UniversalClient，单机与集群地址都可使用
type Client struct {
	client redis.UniversalClient
}

// NewClient 创建客户端并做一次连通性检查
func NewClient(ctx context.Context, addrs []string, password string) (*Client, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis: no addresses configured")
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %v: %w", addrs, err)
	}
	log.Info().Strs("addrs", addrs).Msg("✅ Successfully connected to Redis.")
	return &Client{client: rdb}, nil
}

// Wrap 复用已有的 go-redis 客户端
func Wrap(rdb redis.UniversalClient) *Client {
	return &Client{client: rdb}
}

func (c *Client) GetClient() redis.UniversalClient {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}
