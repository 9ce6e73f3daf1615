package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamEntry is one message read back off a change stream.
type StreamEntry struct {
	ID     string
	Values map[string]interface{}
}

// XAddJSON appends value, JSON-encoded under the "doc" field, to stream.
// Used by the registry to publish a change record on every receipt write
// or delete.
func (c *Cache) XAddJSON(ctx context.Context, stream string, value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream entry: %w", err)
	}
	id, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"doc": data},
	}).Result()
	if err != nil {
		c.log.Error("failed to append to stream", zap.String("stream", stream), zap.Error(err))
		return "", err
	}
	return id, nil
}

// EnsureGroup creates the consumer group for stream if it does not already
// exist, starting from the beginning of the stream ("0").
func (c *Cache) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// ReadGroup blocks for up to block (0 disables blocking) waiting for new
// entries in stream for the given group/consumer, reading only entries not
// yet delivered to this consumer.
func (c *Cache) ReadGroup(ctx context.Context, stream, group, consumer string, block time.Duration, count int64) ([]StreamEntry, error) {
	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entries []StreamEntry
	for _, s := range res {
		for _, msg := range s.Messages {
			entries = append(entries, StreamEntry{ID: msg.ID, Values: msg.Values})
		}
	}
	return entries, nil
}

// Ack acknowledges processed stream entries for the consumer group.
func (c *Cache) Ack(ctx context.Context, stream, group string, ids ...string) error {
	return c.client.XAck(ctx, stream, group, ids...).Err()
}

// ScanKeys returns all keys matching pattern, used for the propagator's
// full-scan bootstrap before it starts consuming the live change stream.
func (c *Cache) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
