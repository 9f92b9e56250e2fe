package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type (
	// RedisStore keeps the replay buffer in a redis list so history survives
	// server restarts. Values are sealed envelopes; redis never sees
	// plaintext.
	RedisStore struct {
		rdb *redis.Client
		key string
		max int64
	}
)

// NewRedisStore connects a Store to the given redis address. key names the
// list; max bounds its length.
func NewRedisStore(addr, key string, max int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisStore{rdb: rdb, key: key, max: int64(max)}
}

func (s *RedisStore) Append(ctx context.Context, sealed []byte) error {
	if err := s.rdb.RPush(ctx, s.key, sealed).Err(); err != nil {
		return fmt.Errorf("history rpush: %w", err)
	}
	if err := s.rdb.LTrim(ctx, s.key, -s.max, -1).Err(); err != nil {
		return fmt.Errorf("history ltrim: %w", err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context) ([][]byte, error) {
	vals, err := s.rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history lrange: %w", err)
	}

	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// Close releases the underlying redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
