package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sorting-hall/internal/logger"
)

// DefaultChannel is the Redis Pub/Sub channel hall changes go to.
const DefaultChannel = "hall.updated"

// RedisSink drops the cached read API responses and publishes the change
// on a Redis channel, so every server instance and display learns about
// it.  A nil client makes the sink a no-op.
type RedisSink struct {
	client      *redis.Client
	channel     string
	cachePrefix string
}

// NewRedisSink returns a RedisSink.  An empty cachePrefix skips the cache
// invalidation.
func NewRedisSink(client *redis.Client, channel, cachePrefix string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel, cachePrefix: cachePrefix}
}

// HallChanged implements Sink.
func (s *RedisSink) HallChanged(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	var errs []error
	if s.cachePrefix != "" {
		if err := s.invalidate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("invalidate cache: %w", err))
		}
	}
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.client.Publish(ctx, s.channel, stamp).Err(); err != nil {
		errs = append(errs, fmt.Errorf("publish %s: %w", s.channel, err))
	}
	return errors.Join(errs...)
}

func (s *RedisSink) invalidate(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.cachePrefix+":*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 200 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return s.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Relay forwards signals from the Redis channel to bus until ctx is
// done.  It lets local subscribers see changes made by other instances.
func Relay(ctx context.Context, client *redis.Client, channel string, bus *Bus, log logger.Logger) {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			at := time.Now().UTC()
			if ms, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
				at = time.UnixMilli(ms).UTC()
			} else {
				log.Debugf("hall relay: unexpected payload %q", msg.Payload)
			}
			bus.Publish(at)
		}
	}
}
