package goRewards

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goRewards/internal/cache"
	"github.com/MrEthical07/goRewards/internal/flows"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Engine is the rewards controller. It owns the persisted state and is
// safe for concurrent use; state transitions are serialized by the store.
//
// Build an Engine with New().With...().Build() and release it with Close.
type Engine struct {
	config   Config
	backend  Backend
	signer   wallet.Signer
	accounts wallet.AccountSource
	store    state.Store
	log      zerolog.Logger
	gate     FeatureGate
	now      func() time.Time

	flows      flows.Service
	revalidate *cache.Executor
	geo        *cache.Single[GeoMetadata]
	geoGroup   singleflight.Group
	events     *eventDispatcher
	metrics    *Metrics

	baseCtx     context.Context
	cancel      context.CancelFunc
	unsubscribe []func()
	mu          sync.Mutex
	closed      bool
	triggers    sync.WaitGroup
	closeOnce   sync.Once
}

// Close unsubscribes from wallet events, cancels running authentication
// passes, drains queued revalidations and flushes pending events. It is
// idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		for _, unsubscribe := range e.unsubscribe {
			unsubscribe()
		}
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		if e.cancel != nil {
			e.cancel()
		}
		e.triggers.Wait()
		if e.revalidate != nil {
			e.revalidate.Close()
		}
		e.events.Close()
	})
}

// EventsDropped returns the number of events dropped because the event
// buffer was full.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

// SWRDropped returns the number of background revalidations dropped
// because the revalidation queue was full.
func (e *Engine) SWRDropped() uint64 {
	if e == nil || e.revalidate == nil {
		return 0
	}
	return e.revalidate.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
// MetricsSnapshot does not mutate shared state and can be used concurrently.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// IsFeatureEnabled reports the current value of the feature gate.
func (e *Engine) IsFeatureEnabled(ctx context.Context) bool {
	if e == nil || e.gate == nil {
		return false
	}
	return e.gate(ctx)
}

// enabled is IsFeatureEnabled plus readiness; a disabled call is counted.
func (e *Engine) enabled(ctx context.Context) bool {
	if e == nil || !e.flows.Initialized() {
		return false
	}
	if e.gate(ctx) {
		return true
	}
	e.metricInc(MetricFeatureDisabled)
	return false
}

func (e *Engine) ready() error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// State returns a copy of the persisted state without session tokens.
func (e *Engine) State(ctx context.Context) (state.State, error) {
	if err := e.ready(); err != nil {
		return state.State{}, err
	}
	st, err := e.store.Load(ctx)
	if err != nil {
		return state.State{}, err
	}
	return st.Public(), nil
}

// ResetState describes the resetstate operation and its observable behavior.
//
// ResetState replaces the persisted state with the default state and
// forgets the cached geolocation. ResetState may return an error when the
// store cannot be written.
func (e *Engine) ResetState(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.store.Apply(ctx, func(state.State) state.State { return state.Default() }); err != nil {
		return err
	}
	e.geo.Reset()
	e.events.Emit(ctx, Event{Type: EventStateReset, Metadata: map[string]string{"scope": "all"}})
	return nil
}
