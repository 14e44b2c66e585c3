package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"timeclock/pkg/platform/sentinel"
)

const redisKeyPrefix = "timeclock:doc:"

// writeIfVersionScript sets KEYS[1] to ARGV[1] unless the stored document
// carries a version other than ARGV[2]. Returns 1 when written.
var writeIfVersionScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, doc = pcall(cjson.decode, current)
	if ok and type(doc) == 'table' then
		local version = tonumber(doc['version']) or 0
		if version ~= tonumber(ARGV[2]) then
			return 0
		end
	end
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

// RedisBackend stores the document under a single Redis string key without expiry.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultKey
	}
	return &RedisBackend{client: client, key: redisKeyPrefix + key}
}

func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get document: %w", err)
	}
	return data, nil
}

func (b *RedisBackend) Write(ctx context.Context, data []byte) error {
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set document: %w", err)
	}
	return nil
}

// WriteIfVersion compares and sets in one server-side script.
func (b *RedisBackend) WriteIfVersion(ctx context.Context, data []byte, expected int64) error {
	written, err := writeIfVersionScript.Run(ctx, b.client, []string{b.key}, data, expected).Int()
	if err != nil {
		return fmt.Errorf("redis conditional set document: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("%w: redis document moved past version %d", sentinel.ErrConflict, expected)
	}
	return nil
}
