package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
)

// DefaultChannel carries one message per finished batch
const DefaultChannel = "analysis_complete"

// RedisPublisher announces finished batches on a Redis channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedis connects and pings the server
func NewRedis(ctx context.Context, addr, password string, db int, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisFromClient(client, channel), nil
}

func NewRedisFromClient(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// PublishComplete implements domain.Publisher
func (p *RedisPublisher) PublishComplete(ctx context.Context, n domain.CompletionNotice) error {
	msg, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Check(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
