package goRewards

import (
	"context"
	"sort"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/wallet"
)

// OptIn describes the optin operation and its observable behavior.
//
// OptIn creates a subscription owned by the first account of accounts, in
// wallet sort order, that the backend accepts, then links the remaining
// accounts to it. referralCode may be empty. It returns the subscription id.
//
// OptIn returns ErrOptInFailed when no account could be opted in. With the
// feature disabled it returns an empty id.
func (e *Engine) OptIn(ctx context.Context, accounts []wallet.Account, referralCode string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if !e.enabled(ctx) {
		return "", nil
	}
	sub, err := e.flows.OptIn(ctx, accounts, referralCode)
	if err != nil {
		e.log.Error().Err(err).Int("accounts", len(accounts)).Msg("opt-in failed")
		return "", err
	}
	if sub != "" {
		e.events.Emit(ctx, Event{Type: EventOptedIn, SubscriptionID: sub})
	}
	return sub, nil
}

// LinkAccountToSubscriptionCandidate joins account to the candidate
// subscription (see GetCandidateSubscriptionID). It reports true when the
// account is linked, including when it already was.
//
// An account that cannot be expressed as a CAIP-10 id is an error; backend
// failures are logged and reported as false.
func (e *Engine) LinkAccountToSubscriptionCandidate(ctx context.Context, account wallet.Account) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if !e.enabled(ctx) {
		return false, nil
	}
	return e.flows.LinkAccount(ctx, account, true)
}

// LinkAccountsToSubscriptionCandidate links each account without stopping
// at failures and reports one result per account that was not linked
// already.
func (e *Engine) LinkAccountsToSubscriptionCandidate(ctx context.Context, accounts []wallet.Account) ([]LinkResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.enabled(ctx) {
		return []LinkResult{}, nil
	}
	return e.flows.LinkAccounts(ctx, accounts)
}

// GetCandidateSubscriptionID returns the subscription new accounts should
// join: the active account's, else a known one, else one discovered by
// authenticating opted-in wallet accounts. It returns "" when no account
// has opted in and ErrNoCandidateSubscription when opted-in accounts exist
// but none could be authenticated.
func (e *Engine) GetCandidateSubscriptionID(ctx context.Context) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if !e.enabled(ctx) {
		return "", nil
	}
	return e.flows.CandidateSubscription(ctx)
}

// GetActualSubscriptionID returns the subscription cached for account, or "".
func (e *Engine) GetActualSubscriptionID(ctx context.Context, account caip.AccountID) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if !e.enabled(ctx) {
		return "", nil
	}
	st, err := e.store.Load(ctx)
	if err != nil {
		return "", err
	}
	rec, _, ok := st.Account(account)
	if !ok {
		return "", nil
	}
	return rec.SubscriptionID, nil
}

// GetFirstSubscriptionID returns the smallest known subscription id, or "".
func (e *Engine) GetFirstSubscriptionID(ctx context.Context) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if !e.enabled(ctx) {
		return "", nil
	}
	st, err := e.store.Load(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(st.Subscriptions))
	for id := range st.Subscriptions {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", nil
	}
	sort.Strings(ids)
	return ids[0], nil
}
