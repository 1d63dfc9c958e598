package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisMaxRetries = 8

// RedisStore keeps state as a single JSON document in Redis. Transitions
// use WATCH/MULTI so concurrent writers never lose each other's updates.
type RedisStore struct {
	redis      redis.UniversalClient
	key        string
	maxRetries int
}

// NewRedisStore returns a store that writes under <prefix>:state.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rewards"
	}
	return &RedisStore{redis: client, key: prefix + ":state", maxRetries: defaultRedisMaxRetries}
}

// Key returns the Redis key the document lives under.
func (r *RedisStore) Key() string { return r.key }

func (r *RedisStore) Load(ctx context.Context) (State, error) {
	raw, err := r.redis.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Default(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Decode(raw)
}

func (r *RedisStore) Apply(ctx context.Context, fn Transform) (State, error) {
	var next State
	txf := func(tx *redis.Tx) error {
		current := Default()
		raw, err := tx.Get(ctx, r.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		default:
			if current, err = Decode(raw); err != nil {
				return err
			}
		}

		next = fn(current).Clone()
		encoded, err := Encode(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, encoded, 0)
			return nil
		})
		return err
	}

	for i := 0; i < r.maxRetries; i++ {
		err := r.redis.Watch(ctx, txf, r.key)
		if err == nil {
			return next.Clone(), nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrCorruptState) || errors.Is(err, ErrStoreUnavailable) {
			return State{}, err
		}
		return State{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return State{}, ErrStoreConflict
}
