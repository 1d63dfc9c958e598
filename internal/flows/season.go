package flows

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/internal/cache"
	"github.com/MrEthical07/goRewards/jwt"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
)

// CalculateTierStatus locates currentTierID among tiers sorted by points
// needed and derives the next tier and the points still missing for it.
// The input slice is not modified.
func CalculateTierStatus(tiers []state.Tier, currentTierID string, balance int64, errTierNotFound error) (state.TierStatus, error) {
	sorted := append([]state.Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PointsNeeded < sorted[j].PointsNeeded })

	idx := -1
	for i, t := range sorted {
		if t.ID == currentTierID {
			idx = i
			break
		}
	}
	if idx < 0 {
		if errTierNotFound == nil {
			errTierNotFound = errors.New("tier not found")
		}
		return state.TierStatus{}, fmt.Errorf("%w: current tier %s not found in season tiers", errTierNotFound, currentTierID)
	}

	out := state.TierStatus{CurrentTier: sorted[idx]}
	if idx+1 < len(sorted) {
		next := sorted[idx+1]
		needed := max(0, next.PointsNeeded-balance)
		out.NextTier = &next
		out.NextTierPointsNeeded = &needed
	}
	return out, nil
}

// RunSeasonMetadata returns the metadata of the current or next season,
// served from cache while it is younger than the metadata TTL.
func RunSeasonMetadata(ctx context.Context, kind string, deps Deps) (state.SeasonMetadata, error) {
	if err := deps.ready(); err != nil {
		return state.SeasonMetadata{}, err
	}
	deps = deps.withDefaults()
	if kind != state.SeasonCurrent && kind != state.SeasonNext {
		return state.SeasonMetadata{}, fmt.Errorf("%w: %q", deps.Errors.InvalidSeasonType, kind)
	}

	// Background revalidation outlives the caller.
	storeCtx := context.WithoutCancel(ctx)
	opts := cache.Options[state.SeasonMetadata]{
		Key: kind,
		TTL: deps.SeasonMetadataTTL,
		Read: func(key string) (cache.Entry[state.SeasonMetadata], bool, error) {
			st, err := deps.Store.Load(storeCtx)
			if err != nil {
				return cache.Entry[state.SeasonMetadata]{}, false, err
			}
			m, ok := st.Season(key)
			return cache.Entry[state.SeasonMetadata]{Value: m, LastFetched: m.LastFetched}, ok, nil
		},
		Fetch: func(ctx context.Context) (state.SeasonMetadata, error) {
			return fetchSeasonMetadata(ctx, kind, deps)
		},
		Write: func(key string, m state.SeasonMetadata) error {
			_, err := deps.Store.Apply(storeCtx, func(s state.State) state.State {
				s.PutSeason(key, m)
				return s
			})
			return err
		},
		Now:      deps.Now,
		Executor: deps.Executor,
		Group:    deps.Group,
		Logger:   deps.Logger.With().Str("cache", "season-metadata").Logger(),
		Observe:  deps.observeSeasonCache,
	}
	if deps.RevalidateSeasonMetadata {
		opts.OnRevalidate = func(old, fresh state.SeasonMetadata) {
			deps.MetricInc(deps.Metrics.Revalidated)
			if old.ID != fresh.ID {
				deps.Logger.Info().Str("type", kind).Str("from", old.ID).Str("to", fresh.ID).Msg("season rolled over")
			}
		}
	}
	return cache.Resolve(ctx, opts)
}

func fetchSeasonMetadata(ctx context.Context, kind string, deps Deps) (state.SeasonMetadata, error) {
	seasons, err := deps.Backend.DiscoverSeasons(ctx)
	if err != nil {
		return state.SeasonMetadata{}, err
	}
	info := seasons.Current
	if kind == state.SeasonNext {
		info = seasons.Next
	}
	if info == nil || info.ID == "" || info.StartDate == nil {
		return state.SeasonMetadata{}, fmt.Errorf("%w could be found for type: %s", deps.Errors.NoValidSeason, kind)
	}

	meta, err := deps.Backend.SeasonMetadata(ctx, info.ID)
	if err != nil {
		return state.SeasonMetadata{}, err
	}
	out := state.SeasonMetadata{
		ID:          meta.ID,
		Name:        meta.Name,
		StartDate:   meta.StartDate,
		EndDate:     meta.EndDate,
		LastFetched: deps.Now(),
	}
	if out.ID == "" {
		out.ID = info.ID
	}
	for _, t := range meta.Tiers {
		out.Tiers = append(out.Tiers, state.Tier{ID: t.ID, Name: t.Name, PointsNeeded: t.PointsNeeded})
	}
	return out, nil
}

// RunSeasonStatus returns the balance and tier of subscriptionID in seasonID.
//
// A rejected session triggers one silent re-authentication of an account
// bound to the subscription and one retry. When that fails too, every cached
// status of the subscription and every account, subscription and token is
// dropped, and the original error is returned. An unknown season clears the
// season metadata.
func RunSeasonStatus(ctx context.Context, subscriptionID, seasonID string, deps Deps) (state.SeasonStatus, error) {
	if err := deps.ready(); err != nil {
		return state.SeasonStatus{}, err
	}
	deps = deps.withDefaults()

	st, err := deps.Store.Load(ctx)
	if err != nil {
		return state.SeasonStatus{}, err
	}
	meta, ok := st.Season(seasonID)
	if !ok {
		return state.SeasonStatus{}, fmt.Errorf("failed to get season status: %w for seasonId: %s", deps.Errors.SeasonMetadataMissing, seasonID)
	}

	status, err := resolveSeasonStatus(ctx, subscriptionID, meta, deps)
	switch {
	case err == nil:
		return status, nil
	case errors.Is(err, client.ErrAuthorizationFailed):
		status, retryErr := reauthAndResolve(ctx, subscriptionID, meta, deps)
		if retryErr == nil {
			deps.MetricInc(deps.Metrics.ReauthSuccess)
			return status, nil
		}
		deps.MetricInc(deps.Metrics.ReauthFailure)
		deps.Logger.Warn().Err(retryErr).Str("subscription_id", subscriptionID).Msg("reauthorization failed, dropping subscription state")
		// The caller may have given up; the stale session must still go.
		deps.apply(context.WithoutCancel(ctx), "invalidate after reauth", func(s state.State) state.State {
			s.InvalidateSubscription(subscriptionID)
			s.ResetAccountsAndSubscriptions()
			return s
		})
		return state.SeasonStatus{}, err
	case errors.Is(err, client.ErrSeasonNotFound):
		deps.apply(context.WithoutCancel(ctx), "clear seasons", func(s state.State) state.State {
			s.ClearSeasons()
			return s
		})
		return state.SeasonStatus{}, err
	default:
		return state.SeasonStatus{}, err
	}
}

func resolveSeasonStatus(ctx context.Context, subscriptionID string, meta state.SeasonMetadata, deps Deps) (state.SeasonStatus, error) {
	key := state.StatusKey(meta.ID, subscriptionID)
	return cache.Resolve(ctx, cache.Options[state.SeasonStatus]{
		Key: key,
		TTL: deps.SeasonStatusTTL,
		Read: func(key string) (cache.Entry[state.SeasonStatus], bool, error) {
			st, err := deps.Store.Load(ctx)
			if err != nil {
				return cache.Entry[state.SeasonStatus]{}, false, err
			}
			v, ok := st.SeasonStatuses[key]
			return cache.Entry[state.SeasonStatus]{Value: v, LastFetched: v.LastFetched}, ok, nil
		},
		Fetch: func(ctx context.Context) (state.SeasonStatus, error) {
			return fetchSeasonStatus(ctx, subscriptionID, meta, deps)
		},
		Write: func(key string, v state.SeasonStatus) error {
			_, err := deps.Store.Apply(ctx, func(s state.State) state.State {
				s.SeasonStatuses[key] = v
				return s
			})
			return err
		},
		Now:     deps.Now,
		Group:   deps.Group,
		Logger:  deps.Logger.With().Str("cache", "season-status").Logger(),
		Observe: deps.observeSeasonCache,
	})
}

func fetchSeasonStatus(ctx context.Context, subscriptionID string, meta state.SeasonMetadata, deps Deps) (state.SeasonStatus, error) {
	st, err := deps.Store.Load(ctx)
	if err != nil {
		return state.SeasonStatus{}, err
	}
	token := st.Tokens[subscriptionID]
	if !jwt.Usable(token, deps.Now()) {
		return state.SeasonStatus{}, fmt.Errorf("%w: no usable session for subscription %s", client.ErrAuthorizationFailed, subscriptionID)
	}

	remote, err := deps.Backend.SeasonState(ctx, meta.ID, token)
	if err != nil {
		return state.SeasonStatus{}, err
	}
	tier, err := CalculateTierStatus(meta.Tiers, remote.CurrentTierID, remote.Balance, deps.Errors.TierNotFound)
	if err != nil {
		return state.SeasonStatus{}, err
	}
	return state.SeasonStatus{
		Season:      meta,
		Balance:     state.Balance{Total: remote.Balance, UpdatedAt: remote.UpdatedAt},
		Tier:        tier,
		LastFetched: deps.Now(),
	}, nil
}

func reauthAndResolve(ctx context.Context, subscriptionID string, meta state.SeasonMetadata, deps Deps) (state.SeasonStatus, error) {
	account, err := accountForSubscription(ctx, subscriptionID, deps)
	if err != nil {
		return state.SeasonStatus{}, err
	}
	if _, err := RunSilentAuth(ctx, SilentAuthRequest{Account: &account}, deps); err != nil {
		return state.SeasonStatus{}, err
	}
	return resolveSeasonStatus(ctx, subscriptionID, meta, deps)
}

// accountForSubscription picks the wallet account to re-authenticate: the
// selected account when the active record belongs to subscriptionID, else
// the first wallet account whose record is bound to it.
func accountForSubscription(ctx context.Context, subscriptionID string, deps Deps) (wallet.Account, error) {
	st, err := deps.Store.Load(ctx)
	if err != nil {
		return wallet.Account{}, err
	}
	if st.ActiveAccount != nil && st.ActiveAccount.SubscriptionID == subscriptionID {
		selected, ok, err := deps.Accounts.SelectedAccount(ctx)
		if err != nil {
			return wallet.Account{}, err
		}
		if ok {
			return selected, nil
		}
	}

	bound := st.AccountsForSubscription(subscriptionID)
	sort.Slice(bound, func(i, j int) bool { return bound[i].Account < bound[j].Account })
	accounts, err := deps.Accounts.ListAccounts(ctx)
	if err != nil {
		return wallet.Account{}, err
	}
	for _, record := range bound {
		for _, a := range accounts {
			id, err := a.AccountID()
			if err == nil && caip.Equal(id, record.Account) {
				return a, nil
			}
		}
	}
	return wallet.Account{}, fmt.Errorf("%w: no wallet account bound to subscription %s", client.ErrAuthorizationFailed, subscriptionID)
}

func (d Deps) observeSeasonCache(o cache.Outcome) {
	switch o {
	case cache.OutcomeHit:
		d.MetricInc(d.Metrics.SeasonCacheHit)
	case cache.OutcomeStale:
		d.MetricInc(d.Metrics.SeasonCacheStale)
	default:
		d.MetricInc(d.Metrics.SeasonCacheMiss)
	}
}
