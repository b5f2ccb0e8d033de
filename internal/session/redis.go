package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// redisBackend はRedisのセッションバックエンドです。
// 期限切れはRedisのキーTTLに任せます。
type redisBackend struct {
	rdb *redis.Client
}

// NewRedisStore はRedisをバックエンドとするストアを作成します。
// 複数インスタンスでセッションを共有する場合はこちらを使います。
func NewRedisStore(rdb *redis.Client, ttl time.Duration, keyPairs ...[]byte) *Store {
	return newStore(&redisBackend{rdb: rdb}, ttl, keyPairs...)
}

func (b *redisBackend) save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, sessionKeyPrefix+id, data, ttl).Err()
}

func (b *redisBackend) load(ctx context.Context, id string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *redisBackend) delete(ctx context.Context, id string) error {
	return b.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}
