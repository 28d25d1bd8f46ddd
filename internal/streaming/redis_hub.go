package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisGlobalChannel = "jobflow:events"
	redisFlowPrefix    = "jobflow:flow:"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379/0").
	URL string
	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// RedisHub is an EventHub backed by Redis pub/sub, so designer servers
// sharing a Redis instance see each other's sessions. Every event is
// published to the global channel and to its flow's channel.
type RedisHub struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisHub connects to Redis and verifies the connection.
func NewRedisHub(opts RedisOptions) (*RedisHub, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisHub{client: client, logger: opts.Logger}, nil
}

// Publish encodes event as JSON and publishes it.
func (h *RedisHub) Publish(ctx context.Context, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	pipe := h.client.Pipeline()
	pipe.Publish(ctx, redisGlobalChannel, data)
	if event.FlowID != "" {
		pipe.Publish(ctx, redisFlowPrefix+event.FlowID, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish stream event: %w", err)
	}
	return nil
}

// Subscribe listens on the flow's channel when the filter names one, else
// on the global channel. Payloads arrive decoded from JSON, so typed
// payloads come back as maps.
func (h *RedisHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	channel := redisGlobalChannel
	if filter.FlowID != "" {
		channel = redisFlowPrefix + filter.FlowID
	}

	pubsub := h.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	out := make(chan StreamEvent, defaultChannelBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(done) })
	}

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event StreamEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.Warn("dropping malformed stream event", "channel", msg.Channel, "error", err)
					continue
				}
				if !matchFilter(filter, event) {
					continue
				}
				select {
				case out <- event:
				default:
					// slow subscriber
				}
			}
		}
	}()

	return out, cancel, nil
}

// Close closes the Redis connection.
func (h *RedisHub) Close() error {
	return h.client.Close()
}
