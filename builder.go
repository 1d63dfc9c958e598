package goRewards

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/internal/cache"
	"github.com/MrEthical07/goRewards/internal/flows"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	backend    Backend
	httpDoer   client.Doer
	signer     wallet.Signer
	accounts   wallet.AccountSource
	subscriber wallet.Subscriber
	store      state.Store
	gate       FeatureGate
	eventSink  EventSink
	logger     *zerolog.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend uses backend instead of an HTTP client built from Config.API.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithHTTPClient sets the transport of the HTTP client built from Config.API.
func (b *Builder) WithHTTPClient(doer client.Doer) *Builder {
	b.httpDoer = doer
	return b
}

// WithSigner sets the keyring used to sign authentication messages. Required.
func (b *Builder) WithSigner(signer wallet.Signer) *Builder {
	b.signer = signer
	return b
}

// WithAccounts sets the wallet account source. Required.
func (b *Builder) WithAccounts(accounts wallet.AccountSource) *Builder {
	b.accounts = accounts
	return b
}

// WithSubscriber subscribes the engine to keyring unlock and account group
// change notifications; each one starts a background authentication pass.
func (b *Builder) WithSubscriber(sub wallet.Subscriber) *Builder {
	b.subscriber = sub
	return b
}

// WithStore sets the state store. Without a store (and without WithRedis)
// state lives in memory.
func (b *Builder) WithStore(store state.Store) *Builder {
	b.store = store
	return b
}

// WithRedis persists state in Redis under Config.State.RedisPrefix.
// It is ignored when WithStore is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithFeatureGate sets the rewards feature flag. Without a gate the feature
// is always enabled.
func (b *Builder) WithFeatureGate(gate FeatureGate) *Builder {
	b.gate = gate
	return b
}

// WithEventSink receives engine events when Config.Events.Enabled is set.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithLogger sets the engine logger. Its level is lowered or raised to
// Config.Log.Level.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock replaces time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the silent authentication latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every component and subscribes
// to wallet events.
//
// Build returns ErrBuilderUsed on a second call, a validation error for an
// out-of-range Config, and ErrMissingSigner, ErrMissingAccounts or
// ErrMissingBackend for missing collaborators.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.signer == nil {
		return nil, ErrMissingSigner
	}
	if b.accounts == nil {
		return nil, ErrMissingAccounts
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}
	if cfg.Log.Level != "" {
		level, _ := zerolog.ParseLevel(cfg.Log.Level)
		logger = logger.Level(level)
	}
	logger = logger.With().Str("component", "rewards").Logger()

	now := b.now
	if now == nil {
		now = time.Now
	}

	backend := b.backend
	if backend == nil {
		if cfg.API.BaseURL == "" {
			return nil, ErrMissingBackend
		}
		doer := b.httpDoer
		if doer == nil {
			doer = &http.Client{}
		}
		c, err := client.New(client.Config{
			BaseURL:          cfg.API.BaseURL,
			GeoLocationURL:   cfg.API.GeoLocationURL,
			ClientID:         cfg.API.ClientID,
			Locale:           cfg.API.Locale,
			Timeout:          cfg.API.Timeout,
			HTTP:             doer,
			Logger:           logger,
			ReferralCacheTTL: cfg.Referral.CacheTTL,
			ReferralCacheMax: cfg.Referral.CacheSize,
		})
		if err != nil {
			return nil, err
		}
		backend = c
	}

	store := b.store
	if store == nil {
		if b.redis != nil {
			store = state.NewRedisStore(b.redis, cfg.State.RedisPrefix)
		} else {
			store = state.NewMemoryStore(state.Default())
		}
	}

	gate := b.gate
	if gate == nil {
		gate = func(context.Context) bool { return true }
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		config:   cfg,
		backend:  backend,
		signer:   b.signer,
		accounts: b.accounts,
		store:    store,
		log:      logger,
		gate:     gate,
		now:      now,
		geo:      cache.NewSingle[GeoMetadata](cfg.Geo.TTL, now),
		metrics:  NewMetrics(cfg.Metrics),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
	engine.events = newEventDispatcher(cfg.Events, b.eventSink, now)
	engine.revalidate = cache.NewExecutor(cache.ExecutorConfig{
		Workers:   cfg.Cache.RevalidationWorkers,
		QueueSize: cfg.Cache.RevalidationQueueSize,
	}, logger)

	engine.flows = flows.New(flows.Deps{
		Backend:                  backend,
		Signer:                   b.signer,
		Accounts:                 b.accounts,
		Store:                    store,
		Logger:                   logger,
		Now:                      now,
		Group:                    &singleflight.Group{},
		Executor:                 engine.revalidate,
		SeasonStatusTTL:          cfg.Cache.SeasonStatusTTL,
		SeasonMetadataTTL:        cfg.Cache.SeasonMetadataTTL,
		NotOptedInRecheck:        cfg.Auth.NotOptedInRecheck,
		MaxCandidateAuthAttempts: cfg.Auth.MaxCandidateAuthAttempts,
		RevalidateSeasonMetadata: cfg.Cache.RevalidateSeasonMetadata,
		MetricInc:                func(id int) { engine.metrics.Inc(MetricID(id)) },
		PublishAccountLinked: func(ctx context.Context, subscriptionID string, account caip.AccountID) {
			engine.events.Emit(ctx, Event{Type: EventAccountLinked, SubscriptionID: subscriptionID, Account: account.String()})
		},
		Metrics: flowMetrics(),
		Errors: flows.Errors{
			EngineNotReady:          ErrEngineNotReady,
			OptInFailed:             ErrOptInFailed,
			NoCandidateSubscription: ErrNoCandidateSubscription,
			NoValidSeason:           ErrNoValidSeason,
			SeasonMetadataMissing:   ErrSeasonMetadataMissing,
			TierNotFound:            ErrTierNotFound,
			InvalidSeasonType:       ErrInvalidSeasonType,
		},
	})

	if b.subscriber != nil {
		for _, ev := range []wallet.Event{wallet.EventUnlock, wallet.EventAccountGroupChange} {
			reason := string(ev)
			engine.unsubscribe = append(engine.unsubscribe, b.subscriber.Subscribe(ev, func() {
				engine.triggerInBackground(reason)
			}))
		}
	}

	b.built = true
	return engine, nil
}

func flowMetrics() flows.Metrics {
	return flows.Metrics{
		SilentAuthSuccess:   int(MetricSilentAuthSuccess),
		SilentAuthSkipped:   int(MetricSilentAuthSkipped),
		SilentAuthFailure:   int(MetricSilentAuthFailure),
		SilentAuthLocked:    int(MetricSilentAuthLocked),
		TimestampRetry:      int(MetricTimestampRetry),
		OptInStatusCacheHit: int(MetricOptInStatusCacheHit),
		OptInStatusFetched:  int(MetricOptInStatusFetched),
		SeasonCacheHit:      int(MetricSeasonCacheHit),
		SeasonCacheStale:    int(MetricSeasonCacheStale),
		SeasonCacheMiss:     int(MetricSeasonCacheMiss),
		ReauthSuccess:       int(MetricReauthSuccess),
		ReauthFailure:       int(MetricReauthFailure),
		LinkSuccess:         int(MetricLinkSuccess),
		LinkFailure:         int(MetricLinkFailure),
		OptInSuccess:        int(MetricOptInSuccess),
		OptInFailure:        int(MetricOptInFailure),
		Revalidated:         int(MetricSeasonRevalidated),
	}
}
