package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Entry is a cached payload with the time it was fetched.
type Entry[T any] struct {
	Value       T
	LastFetched time.Time
}

// Outcome classifies how Resolve served a call.
type Outcome uint8

const (
	// OutcomeHit means a fresh entry was returned.
	OutcomeHit Outcome = iota
	// OutcomeStale means a stale entry was returned and revalidation scheduled.
	OutcomeStale
	// OutcomeMiss means the payload was fetched synchronously.
	OutcomeMiss
)

// Options parameterizes one Resolve call.
type Options[T any] struct {
	Key string
	TTL time.Duration

	// Read returns the cached entry for key. A read error is treated as a miss.
	Read func(key string) (Entry[T], bool, error)
	// Fetch loads a fresh payload. Its error is the only one Resolve returns.
	Fetch func(ctx context.Context) (T, error)
	// Write stores a fresh payload. Write errors are logged and swallowed.
	Write func(key string, value T) error
	// OnRevalidate, when set, enables stale-while-revalidate. It runs after a
	// background refresh has been written.
	OnRevalidate func(old, fresh T)

	Now      func() time.Time
	Executor *Executor
	Group    *singleflight.Group
	Logger   zerolog.Logger
	Observe  func(Outcome)
}

// Resolve serves Key from cache when fresh, serves a stale value while
// revalidating in the background when OnRevalidate is set, and otherwise
// fetches, writes and returns a fresh payload.
//
// An entry is fresh while now - LastFetched <= TTL.
func Resolve[T any](ctx context.Context, opts Options[T]) (T, error) {
	var zero T
	if opts.Fetch == nil || opts.Read == nil || opts.Write == nil {
		return zero, fmt.Errorf("cache %q: read, fetch and write are required", opts.Key)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	observe := func(Outcome) {}
	if opts.Observe != nil {
		observe = opts.Observe
	}

	entry, ok, err := opts.Read(opts.Key)
	if err != nil {
		opts.Logger.Warn().Err(err).Str("key", opts.Key).Msg("cache read failed, fetching")
		ok = false
	}

	if ok {
		if now().Sub(entry.LastFetched) <= opts.TTL {
			observe(OutcomeHit)
			return entry.Value, nil
		}
		if opts.OnRevalidate != nil {
			observe(OutcomeStale)
			revalidate(context.WithoutCancel(ctx), opts, entry.Value)
			return entry.Value, nil
		}
	}

	observe(OutcomeMiss)
	fresh, err := fetch(ctx, opts)
	if err != nil {
		return zero, err
	}
	if err := opts.Write(opts.Key, fresh); err != nil {
		opts.Logger.Warn().Err(err).Str("key", opts.Key).Msg("cache write failed")
	}
	return fresh, nil
}

func fetch[T any](ctx context.Context, opts Options[T]) (T, error) {
	if opts.Group == nil {
		return opts.Fetch(ctx)
	}
	var zero T
	// The shared flight outlives any one caller; each caller stops waiting
	// when its own context ends.
	flight := context.WithoutCancel(ctx)
	ch := opts.Group.DoChan(opts.Key, func() (any, error) {
		return opts.Fetch(flight)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func revalidate[T any](ctx context.Context, opts Options[T], old T) {
	task := func(context.Context) error {
		fresh, err := fetch(ctx, opts)
		if err != nil {
			return fmt.Errorf("revalidate %q: %w", opts.Key, err)
		}
		if err := opts.Write(opts.Key, fresh); err != nil {
			return fmt.Errorf("revalidate %q: write: %w", opts.Key, err)
		}
		opts.OnRevalidate(old, fresh)
		return nil
	}

	if opts.Executor != nil {
		opts.Executor.Submit("swr:"+opts.Key, task)
		return
	}
	go func() {
		if err := task(ctx); err != nil {
			opts.Logger.Warn().Err(err).Msg("background revalidation failed")
		}
	}()
}
