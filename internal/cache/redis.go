package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/intentswap/internal/constants"
	"github.com/aman-zulfiqar/intentswap/internal/models"
	"github.com/aman-zulfiqar/intentswap/internal/storage"
)

// RedisCache keeps the recent-executions list and fans out progress over Pub/Sub.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

var _ storage.ExecutionCache = (*RedisCache)(nil)

func NewRedisCache(addr string, logger *logrus.Logger) *RedisCache {
	return NewRedisCacheFromClient(redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	}), logger)
}

func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

// Client exposes the underlying connection for stores that share it.
func (r *RedisCache) Client() *redis.Client { return r.client }

func (r *RedisCache) AddRecentExecution(ctx context.Context, ev *models.ExecutionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentExecutions, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentExecutions, 0, constants.MaxRecentExecutions-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent execution: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentExecutions(ctx context.Context, limit int64) ([]*models.ExecutionEvent, error) {
	if limit <= 0 || limit > constants.MaxRecentExecutions {
		limit = constants.MaxRecentExecutions
	}
	raw, err := r.client.LRange(ctx, constants.RedisKeyRecentExecutions, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent executions: %w", err)
	}
	out := make([]*models.ExecutionEvent, 0, len(raw))
	for _, item := range raw {
		var ev models.ExecutionEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			r.logger.WithError(err).Warn("skipping malformed recent execution")
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

// PublishProgress sends p to the firehose channel and to the execution's own channel.
func (r *RedisCache) PublishProgress(ctx context.Context, p *models.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	channels := []string{
		constants.PubSubChannelProgress,
		constants.PubSubChannelProgressPrefix + p.ExecutionID,
	}
	pipe := r.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// SubscribeProgress streams progress for every execution until ctx ends.
func (r *RedisCache) SubscribeProgress(ctx context.Context) (<-chan *models.Progress, error) {
	return r.subscribe(ctx, constants.PubSubChannelProgress)
}

// SubscribeExecution streams progress for a single execution until ctx ends.
func (r *RedisCache) SubscribeExecution(ctx context.Context, executionID string) (<-chan *models.Progress, error) {
	return r.subscribe(ctx, constants.PubSubChannelProgressPrefix+executionID)
}

func (r *RedisCache) subscribe(ctx context.Context, channel string) (<-chan *models.Progress, error) {
	pubsub := r.client.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	r.logger.WithField("channel", channel).Info("subscribed")

	out := make(chan *models.Progress, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p models.Progress
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.WithError(err).Warn("error unmarshaling progress")
					continue
				}
				select {
				case out <- &p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
