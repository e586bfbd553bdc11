// Package lock provides a Redis-backed mutual-exclusion lock with a
// TTL. Acquisition is SET NX EX; release is conditioned on the holder's
// token so an expired lock reacquired by someone else cannot be
// released by the original holder.
package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

type Locker struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb}
}

// Acquire takes the lock for ttl. Returns false when another holder has
// it; the caller should treat that as "a run is already in progress".
func (l *Locker) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, token, ttl).Result()
}

// Release frees the lock only if token still matches the stored value.
func (l *Locker) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
