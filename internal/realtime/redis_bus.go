package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBus 通过 Redis pub/sub 在多个实例之间广播事件，
// 每个实例收到后转发到自己的 Hub。
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	hub     *Hub
}

// NewRedisClient 解析 REDIS_URL 并确认连接可用。
func NewRedisClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisBus(rdb *goredis.Client, channel string, hub *Hub) (*RedisBus, error) {
	if rdb == nil {
		return nil, errors.New("redis client required")
	}
	if hub == nil {
		return nil, errors.New("hub required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "imagestudio:events"
	}
	return &RedisBus{rdb: rdb, channel: channel, hub: hub}, nil
}

// Publish 发布到 Redis；发布失败时退回本地投递。
func (b *RedisBus) Publish(ctx context.Context, event Event) {
	raw, err := json.Marshal(event)
	if err == nil {
		err = b.rdb.Publish(ctx, b.channel, raw).Err()
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": event.UserID,
			"topic":   event.Topic,
		}).Warn("realtime_redis_publish_failed")
		b.hub.Publish(ctx, event)
	}
}

// StartForwarder 订阅频道并把收到的事件交给本地 Hub，ctx 结束时退出。
func (b *RedisBus) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

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
				var event Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					logrus.WithError(err).Warn("realtime_redis_bad_payload")
					continue
				}
				b.hub.Publish(ctx, event)
			}
		}
	}()

	return nil
}
