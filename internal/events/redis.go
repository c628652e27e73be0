package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/progression/internal/logger"
)

// RedisPublisher publishes events over a Redis pub/sub channel
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher connects to addr and publishes JSON events on channel
func NewRedisPublisher(log *logger.Logger, addr, channel string) (*RedisPublisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "progression"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{
		log:     log.With("service", "RedisPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Subscribe forwards events from the channel to onEvent until ctx is done
func (p *RedisPublisher) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					p.log.Warn("bad redis event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
