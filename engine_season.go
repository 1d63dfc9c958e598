package goRewards

import (
	"context"

	"github.com/MrEthical07/goRewards/internal/flows"
	"github.com/MrEthical07/goRewards/state"
)

// GetSeasonMetadata returns the metadata of the current or next season
// (SeasonCurrent, SeasonNext). Metadata is cached for
// Config.Cache.SeasonMetadataTTL; with RevalidateSeasonMetadata an expired
// copy is returned while a fresh one is fetched in the background.
//
// With the feature disabled GetSeasonMetadata returns nil and no error.
func (e *Engine) GetSeasonMetadata(ctx context.Context, seasonType string) (*state.SeasonMetadata, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.enabled(ctx) {
		return nil, nil
	}
	meta, err := e.flows.SeasonMetadata(ctx, seasonType)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetSeasonStatus describes the getseasonstatus operation and its observable behavior.
//
// GetSeasonStatus returns the balance and tier of subscriptionID in
// seasonID, which may be a season id or SeasonCurrent/SeasonNext. The
// season metadata must have been loaded with GetSeasonMetadata first.
// Statuses are cached for Config.Cache.SeasonStatusTTL.
//
// A rejected session is renewed by one silent authentication and the
// request retried once. If that fails the engine forgets every account,
// subscription and token and returns ErrAuthorizationFailed. An unknown
// season drops all season metadata and returns ErrSeasonNotFound.
//
// With the feature disabled GetSeasonStatus returns nil and no error.
func (e *Engine) GetSeasonStatus(ctx context.Context, subscriptionID, seasonID string) (*state.SeasonStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.enabled(ctx) {
		return nil, nil
	}
	status, err := e.flows.SeasonStatus(ctx, subscriptionID, seasonID)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// CalculateTierStatus locates currentTierID among tiers and derives the next
// tier and the points still needed to reach it. tiers may be in any order.
// It returns ErrTierNotFound when currentTierID is not one of tiers.
func (e *Engine) CalculateTierStatus(tiers []state.Tier, currentTierID string, balance int64) (state.TierStatus, error) {
	return flows.CalculateTierStatus(tiers, currentTierID, balance, ErrTierNotFound)
}

// InvalidateSubscriptionCache drops cached season statuses of
// subscriptionID: only the one for seasonID when it is set, else all of them.
func (e *Engine) InvalidateSubscriptionCache(ctx context.Context, subscriptionID, seasonID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	_, err := e.store.Apply(ctx, func(s state.State) state.State {
		if seasonID != "" {
			delete(s.SeasonStatuses, state.StatusKey(seasonID, subscriptionID))
			return s
		}
		s.InvalidateSubscription(subscriptionID)
		return s
	})
	return err
}

// InvalidateAccountsAndSubscriptions forgets every account, subscription
// and session token. The active account is kept but marked not opted in.
func (e *Engine) InvalidateAccountsAndSubscriptions(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.store.Apply(ctx, func(s state.State) state.State {
		s.ResetAccountsAndSubscriptions()
		return s
	}); err != nil {
		return err
	}
	e.events.Emit(ctx, Event{Type: EventStateReset, Metadata: map[string]string{"scope": "accounts"}})
	return nil
}
