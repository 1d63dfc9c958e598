package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/internal/cache"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Backend is the subset of the rewards client the flows call.
type Backend interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error)
	MobileOptin(ctx context.Context, req client.OptinRequest) (*client.LoginResponse, error)
	MobileJoin(ctx context.Context, req client.LoginRequest, token string) (*client.Subscription, error)
	OptInStatus(ctx context.Context, addresses []string) (*client.OptInStatusResponse, error)
	DiscoverSeasons(ctx context.Context) (*client.DiscoverSeasons, error)
	SeasonMetadata(ctx context.Context, seasonID string) (*client.SeasonMetadata, error)
	SeasonState(ctx context.Context, seasonID, token string) (*client.SeasonState, error)
}

// Metrics carries metric IDs incremented by the flows.
type Metrics struct {
	SilentAuthSuccess   int
	SilentAuthSkipped   int
	SilentAuthFailure   int
	SilentAuthLocked    int
	TimestampRetry      int
	OptInStatusCacheHit int
	OptInStatusFetched  int
	SeasonCacheHit      int
	SeasonCacheStale    int
	SeasonCacheMiss     int
	ReauthSuccess       int
	ReauthFailure       int
	LinkSuccess         int
	LinkFailure         int
	OptInSuccess        int
	OptInFailure        int
	Revalidated         int
}

// Errors carries host-level sentinel errors returned by the flows.
type Errors struct {
	EngineNotReady          error
	OptInFailed             error
	NoCandidateSubscription error
	NoValidSeason           error
	SeasonMetadataMissing   error
	TierNotFound            error
	InvalidSeasonType       error
}

// Deps is the dependency set shared by every flow. The root engine builds it
// once; the flows call each other through it.
type Deps struct {
	Backend  Backend
	Signer   wallet.Signer
	Accounts wallet.AccountSource
	Store    state.Store

	Logger   zerolog.Logger
	Now      func() time.Time
	Group    *singleflight.Group
	Executor *cache.Executor

	SeasonStatusTTL          time.Duration
	SeasonMetadataTTL        time.Duration
	NotOptedInRecheck        time.Duration
	MaxCandidateAuthAttempts int
	RevalidateSeasonMetadata bool

	MetricInc            func(int)
	PublishAccountLinked func(ctx context.Context, subscriptionID string, account caip.AccountID)

	Metrics Metrics
	Errors  Errors
}

func (d Deps) ready() error {
	if d.Backend == nil || d.Signer == nil || d.Accounts == nil || d.Store == nil {
		if d.Errors.EngineNotReady != nil {
			return d.Errors.EngineNotReady
		}
		return errors.New("rewards flows not wired")
	}
	return nil
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.PublishAccountLinked == nil {
		d.PublishAccountLinked = func(context.Context, string, caip.AccountID) {}
	}
	if d.NotOptedInRecheck <= 0 {
		d.NotOptedInRecheck = 60 * time.Minute
	}
	if d.SeasonStatusTTL <= 0 {
		d.SeasonStatusTTL = time.Minute
	}
	if d.SeasonMetadataTTL <= 0 {
		d.SeasonMetadataTTL = 10 * time.Minute
	}
	if d.MaxCandidateAuthAttempts <= 0 {
		d.MaxCandidateAuthAttempts = 10
	}
	if d.Errors.OptInFailed == nil {
		d.Errors.OptInFailed = errors.New("failed to opt in any account")
	}
	if d.Errors.NoCandidateSubscription == nil {
		d.Errors.NoCandidateSubscription = errors.New("no candidate subscription found")
	}
	if d.Errors.NoValidSeason == nil {
		d.Errors.NoValidSeason = errors.New("no valid season metadata")
	}
	if d.Errors.SeasonMetadataMissing == nil {
		d.Errors.SeasonMetadataMissing = errors.New("season metadata missing")
	}
	if d.Errors.TierNotFound == nil {
		d.Errors.TierNotFound = errors.New("tier not found")
	}
	if d.Errors.InvalidSeasonType == nil {
		d.Errors.InvalidSeasonType = errors.New("invalid season type")
	}
	return d
}

// apply runs a state transition and logs a failure instead of returning it.
// Used where a lost cache write must not fail the caller.
func (d Deps) apply(ctx context.Context, what string, fn state.Transform) {
	if _, err := d.Store.Apply(ctx, fn); err != nil {
		d.Logger.Warn().Err(err).Str("op", what).Msg("rewards state update failed")
	}
}
