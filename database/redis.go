package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"costtrack-backend/logger"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

var ErrLockBusy = errors.New("another operation holds the lock")

// ConnectRedis enables distributed locks. An empty address leaves them off.
func ConnectRedis(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 20,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect redis %s: %w", addr, err)
	}
	rdb = client
	locker = redislock.New(rdb)
	log := logger.WithComponent("redis")
	log.Info().Str("addr", addr).Msg("connected to redis")
	return nil
}

// CloseRedis releases the client, if any.
func CloseRedis() error {
	if rdb == nil {
		return nil
	}
	err := rdb.Close()
	rdb, locker = nil, nil
	return err
}

// WithLock runs fn while holding "lock:<name>". Without Redis fn runs
// unguarded.
func WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	lock, err := locker.Obtain(ctx, "lock:"+name, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%s: %w", name, ErrLockBusy)
	}
	if err != nil {
		return fmt.Errorf("obtain lock %s: %w", name, err)
	}
	defer func() {
		_ = lock.Release(context.Background())
	}()
	return fn(ctx)
}
