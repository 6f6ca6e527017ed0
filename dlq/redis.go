package dlq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

/*
Redis Schema:

- Hash:       wamp:dlq:msg:{id}  - one quarantined frame
- Sorted set: wamp:dlq:index     - message IDs scored by created_at (unix ms)
*/

// RedisClient is the subset of go-redis commands the Redis store uses.
// Supports *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
}

// RedisStore is a Redis-based DLQ store
type RedisStore struct {
	client    RedisClient
	msgPrefix string
	indexKey  string
}

// NewRedisStore creates a new Redis DLQ store
func NewRedisStore(client RedisClient) *RedisStore {
	return (&RedisStore{client: client}).WithKeyPrefix("wamp:dlq:")
}

// WithKeyPrefix sets a custom key prefix
func (s *RedisStore) WithKeyPrefix(prefix string) *RedisStore {
	s.msgPrefix = prefix + "msg:"
	s.indexKey = prefix + "index"
	return s
}

// Store adds a message to the DLQ
func (s *RedisStore) Store(ctx context.Context, msg *Message) error {
	fields := map[string]any{
		"id":         msg.ID,
		"peer_id":    msg.PeerID,
		"codec":      msg.Codec,
		"msg_id":     msg.MsgID,
		"frame":      msg.Frame,
		"kind":       msg.Kind,
		"error":      msg.Error,
		"created_at": msg.CreatedAt.UnixNano(),
	}
	if err := s.client.HSet(ctx, s.msgPrefix+msg.ID, fields).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}

	z := redis.Z{Score: float64(msg.CreatedAt.UnixMilli()), Member: msg.ID}
	if err := s.client.ZAdd(ctx, s.indexKey, z).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

// Get retrieves a single message by ID
func (s *RedisStore) Get(ctx context.Context, id string) (*Message, error) {
	fields, err := s.client.HGetAll(ctx, s.msgPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return parseMessage(fields), nil
}

func parseMessage(fields map[string]string) *Message {
	msg := &Message{
		ID:     fields["id"],
		PeerID: fields["peer_id"],
		Codec:  fields["codec"],
		MsgID:  fields["msg_id"],
		Frame:  []byte(fields["frame"]),
		Kind:   fields["kind"],
		Error:  fields["error"],
	}
	if ts, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		msg.CreatedAt = time.Unix(0, ts)
	}
	if ts, err := strconv.ParseInt(fields["retried_at"], 10, 64); err == nil {
		t := time.Unix(0, ts)
		msg.RetriedAt = &t
	}
	return msg
}

// scan returns every message in the filter's time window that matches it,
// oldest first.
func (s *RedisStore) scan(ctx context.Context, filter Filter) ([]*Message, error) {
	opt := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !filter.StartTime.IsZero() {
		opt.Min = strconv.FormatInt(filter.StartTime.UnixMilli(), 10)
	}
	if !filter.EndTime.IsZero() {
		opt.Max = strconv.FormatInt(filter.EndTime.UnixMilli(), 10)
	}

	ids, err := s.client.ZRangeByScore(ctx, s.indexKey, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}

	var messages []*Message
	for _, id := range ids {
		msg, err := s.Get(ctx, id)
		if err != nil {
			// index entry without a hash: deleted concurrently
			continue
		}
		if filter.matches(msg) {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// List returns messages matching the filter, oldest first
func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*Message, error) {
	messages, err := s.scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	return filter.page(messages), nil
}

// Count returns the number of messages matching the filter
func (s *RedisStore) Count(ctx context.Context, filter Filter) (int64, error) {
	messages, err := s.scan(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(messages)), nil
}

// MarkRetried marks a message as replayed
func (s *RedisStore) MarkRetried(ctx context.Context, id string) error {
	key := s.msgPrefix + id
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.client.HSet(ctx, key, "retried_at", time.Now().UnixNano()).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}

// Delete removes a message from the DLQ
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.ZRem(ctx, s.indexKey, id).Result()
	if err != nil {
		return fmt.Errorf("zrem: %w", err)
	}
	if err := s.client.Del(ctx, s.msgPrefix+id).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteOlderThan removes messages older than the specified age
func (s *RedisStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UnixMilli()
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore: %w", err)
	}

	var deleted int64
	for _, id := range ids {
		if err := s.Delete(ctx, id); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// Stats returns DLQ statistics
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	messages, err := s.scan(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	stats := newStats()
	for _, msg := range messages {
		stats.add(msg)
	}
	return stats, nil
}

// Compile-time checks
var _ Store = (*RedisStore)(nil)
var _ StatsProvider = (*RedisStore)(nil)
var _ RedisClient = (*redis.Client)(nil)
