package flows

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/jwt"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
)

// LinkResult is the outcome of linking one account.
type LinkResult struct {
	Account wallet.Account
	Success bool
}

// RunOptIn opts the first account that succeeds, in sort order, into rewards
// as the owner of a new subscription and links the remaining accounts to it.
// It returns the subscription id.
func RunOptIn(ctx context.Context, accounts []wallet.Account, referralCode string, deps Deps) (string, error) {
	if err := deps.ready(); err != nil {
		return "", err
	}
	deps = deps.withDefaults()
	if len(accounts) == 0 {
		return "", nil
	}

	sorted := wallet.SortAccounts(accounts)
	winner := -1
	var resp *client.LoginResponse
	for i := range sorted {
		r, err := optInAccount(ctx, sorted[i], referralCode, deps)
		if err != nil {
			deps.Logger.Debug().Err(err).Str("address", sorted[i].Address).Msg("opt-in attempt failed")
			continue
		}
		winner, resp = i, r
		break
	}
	if winner < 0 {
		deps.MetricInc(deps.Metrics.OptInFailure)
		return "", deps.Errors.OptInFailed
	}
	deps.MetricInc(deps.Metrics.OptInSuccess)

	remaining := make([]wallet.Account, 0, len(sorted)-1)
	for i, a := range sorted {
		if i != winner && a.Address != sorted[winner].Address {
			remaining = append(remaining, a)
		}
	}
	if len(remaining) > 0 {
		if _, err := RunLinkAccounts(ctx, remaining, deps); err != nil {
			deps.Logger.Warn().Err(err).Msg("linking remaining accounts failed")
		}
	}
	return resp.Subscription.ID, nil
}

func optInAccount(ctx context.Context, account wallet.Account, referralCode string, deps Deps) (*client.LoginResponse, error) {
	id, err := account.AccountID()
	if err != nil {
		return nil, err
	}

	resp, err := signedCall(ctx, deps, account, func(ctx context.Context, ts int64, sig string) (*client.LoginResponse, error) {
		return deps.Backend.MobileOptin(ctx, client.OptinRequest{
			Account:      account.Address,
			Timestamp:    ts,
			Signature:    sig,
			ReferralCode: referralCode,
		})
	})
	if errors.Is(err, client.ErrAccountAlreadyRegistered) {
		resp, err = recoverRegistered(ctx, account, err, deps)
	}
	if err != nil {
		return nil, err
	}

	sub := subscriptionFromClient(resp.Subscription)
	if _, err := deps.Store.Apply(ctx, func(s state.State) state.State {
		s.Tokens[sub.ID] = resp.SessionID
		s.Subscriptions[sub.ID] = sub
		s.PutAccount(state.AccountState{Account: id, HasOptedIn: state.OptInTrue, SubscriptionID: sub.ID})
		return s
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

// recoverRegistered authenticates an account the backend already knows and
// rebuilds a login response from the subscription and token it stored.
// cause is returned when recovery yields nothing usable.
func recoverRegistered(ctx context.Context, account wallet.Account, cause error, deps Deps) (*client.LoginResponse, error) {
	subID, err := RunSilentAuth(ctx, SilentAuthRequest{Account: &account}, deps)
	if err != nil || subID == "" {
		return nil, cause
	}
	st, err := deps.Store.Load(ctx)
	if err != nil {
		return nil, cause
	}
	sub, ok := st.Subscriptions[subID]
	token := st.Tokens[subID]
	if !ok || token == "" {
		return nil, cause
	}
	return &client.LoginResponse{SessionID: token, Subscription: subscriptionToClient(sub)}, nil
}

// RunLinkAccount joins account to the candidate subscription. It reports
// false for accounts that cannot take part and for failed joins; the error
// is reserved for unconvertible accounts and a missing candidate. When
// invalidate is set, the subscription's cached statuses are dropped and an
// account-linked notification is published.
func RunLinkAccount(ctx context.Context, account wallet.Account, invalidate bool, deps Deps) (bool, error) {
	if err := deps.ready(); err != nil {
		return false, err
	}
	deps = deps.withDefaults()

	id, err := account.AccountID()
	if err != nil {
		return false, fmt.Errorf("failed to convert account to CAIP-10 format: %w", err)
	}

	st, err := deps.Store.Load(ctx)
	if err != nil {
		return false, err
	}
	if existing, _, ok := st.Account(id); ok && existing.SubscriptionID != "" {
		if _, ok := st.Subscriptions[existing.SubscriptionID]; ok {
			return true, nil
		}
	}

	candidate, err := RunCandidateSubscription(ctx, deps)
	if err != nil {
		return false, err
	}
	if candidate == "" {
		return false, fmt.Errorf("%w to link account to", deps.Errors.NoCandidateSubscription)
	}
	if !account.OptInSupported() {
		return false, nil
	}

	log := deps.Logger.With().Str("account", id.String()).Str("subscription_id", candidate).Logger()
	joined, err := signedCall(ctx, deps, account, func(ctx context.Context, ts int64, sig string) (*client.Subscription, error) {
		current, err := deps.Store.Load(ctx)
		if err != nil {
			return nil, err
		}
		token := current.Tokens[candidate]
		if token == "" {
			return nil, fmt.Errorf("no subscription token found for subscription ID: %s", candidate)
		}
		return deps.Backend.MobileJoin(ctx, client.LoginRequest{Account: account.Address, Timestamp: ts, Signature: sig}, token)
	})
	if errors.Is(err, client.ErrAccountAlreadyRegistered) {
		var resp *client.LoginResponse
		if resp, err = recoverRegistered(ctx, account, err, deps); err == nil {
			joined = &resp.Subscription
		}
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.LinkFailure)
		log.Warn().Err(err).Msg("failed to link account to subscription")
		return false, nil
	}

	sub := subscriptionFromClient(*joined)
	if _, err := deps.Store.Apply(ctx, func(s state.State) state.State {
		s.PutAccount(state.AccountState{Account: id, HasOptedIn: state.OptInTrue, SubscriptionID: sub.ID})
		s.Subscriptions[sub.ID] = sub
		return s
	}); err != nil {
		deps.MetricInc(deps.Metrics.LinkFailure)
		log.Warn().Err(err).Msg("failed to persist linked account")
		return false, nil
	}
	deps.MetricInc(deps.Metrics.LinkSuccess)

	if invalidate {
		deps.apply(ctx, "invalidate linked subscription", func(s state.State) state.State {
			s.InvalidateSubscription(sub.ID)
			return s
		})
		deps.PublishAccountLinked(ctx, sub.ID, id)
	}
	return true, nil
}

// RunLinkAccounts links each account that has no subscription yet, without
// stopping at individual failures. Accounts that already have one are left
// out of the results. One invalidation and one notification follow the
// batch when at least one link succeeded.
func RunLinkAccounts(ctx context.Context, accounts []wallet.Account, deps Deps) ([]LinkResult, error) {
	if err := deps.ready(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	if len(accounts) == 0 {
		return []LinkResult{}, nil
	}

	results := make([]LinkResult, 0, len(accounts))
	var last *state.AccountState
	for _, account := range accounts {
		id, idErr := account.AccountID()
		if idErr == nil {
			if st, err := deps.Store.Load(ctx); err == nil {
				if existing, _, ok := st.Account(id); ok && existing.SubscriptionID != "" {
					continue
				}
			}
		}

		ok, err := RunLinkAccount(ctx, account, false, deps)
		if err != nil || !ok {
			results = append(results, LinkResult{Account: account, Success: false})
			continue
		}
		results = append(results, LinkResult{Account: account, Success: true})
		if st, err := deps.Store.Load(ctx); err == nil {
			if linked, _, found := st.Account(id); found {
				last = &linked
			}
		}
	}

	if last != nil && last.SubscriptionID != "" {
		subID := last.SubscriptionID
		deps.apply(ctx, "invalidate linked subscription", func(s state.State) state.State {
			s.InvalidateSubscription(subID)
			return s
		})
		deps.PublishAccountLinked(ctx, subID, last.Account)
	}
	return results, nil
}

// RunCandidateSubscription finds a subscription new accounts can be linked
// to: the active account's, else the first known one, else one discovered
// by checking the opt-in status of every supported wallet account and
// authenticating opted-in accounts until one yields a subscription.
//
// It returns "" when no wallet account is opted in and
// Errors.NoCandidateSubscription when opted-in accounts exist but none could
// be authenticated.
func RunCandidateSubscription(ctx context.Context, deps Deps) (string, error) {
	if err := deps.ready(); err != nil {
		return "", err
	}
	deps = deps.withDefaults()

	st, err := deps.Store.Load(ctx)
	if err != nil {
		return "", err
	}
	if st.ActiveAccount != nil && st.ActiveAccount.SubscriptionID != "" {
		return st.ActiveAccount.SubscriptionID, nil
	}
	if len(st.Subscriptions) > 0 {
		ids := make([]string, 0, len(st.Subscriptions))
		for id := range st.Subscriptions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids[0], nil
	}

	found, err := discoverCandidate(ctx, deps)
	if err != nil {
		deps.Logger.Warn().Err(err).Msg("failed to get candidate subscription id")
		if errors.Is(err, deps.Errors.NoCandidateSubscription) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", deps.Errors.NoCandidateSubscription, err)
	}
	return found, nil
}

func discoverCandidate(ctx context.Context, deps Deps) (string, error) {
	all, err := deps.Accounts.ListAccounts(ctx)
	if err != nil {
		return "", err
	}
	supported := make([]wallet.Account, 0, len(all))
	for _, a := range all {
		if a.OptInSupported() {
			supported = append(supported, a)
		}
	}
	if len(supported) > client.MaxOptInAddresses {
		supported = supported[:client.MaxOptInAddresses]
	}
	if len(supported) == 0 {
		return "", nil
	}

	addresses := make([]string, len(supported))
	for i, a := range supported {
		addresses[i] = a.Address
	}
	status, err := RunOptInStatus(ctx, addresses, deps)
	if err != nil {
		return "", err
	}
	optedIn := 0
	for _, ok := range status.OIS {
		if ok {
			optedIn++
		}
	}
	if optedIn == 0 {
		return "", nil
	}

	maxAttempts := min(deps.MaxCandidateAuthAttempts, len(status.OIS))
	attempts := 0
	for i := range supported {
		if attempts >= maxAttempts {
			break
		}
		if i >= len(status.OIS) || !status.OIS[i] {
			continue
		}
		if sid := status.SIDs[i]; sid != "" {
			st, err := deps.Store.Load(ctx)
			if err == nil {
				_, known := st.Subscriptions[sid]
				if known && jwt.Usable(st.Tokens[sid], deps.Now()) {
					return sid, nil
				}
			}
		}

		attempts++
		sid, err := RunSilentAuth(ctx, SilentAuthRequest{Account: &supported[i]}, deps)
		if err != nil {
			deps.Logger.Warn().Err(err).Str("address", supported[i].Address).Msg("silent auth failed during candidate search")
			continue
		}
		if sid != "" {
			return sid, nil
		}
	}
	return "", deps.Errors.NoCandidateSubscription
}

func subscriptionToClient(sub state.Subscription) client.Subscription {
	out := client.Subscription{ID: sub.ID, ReferralCode: sub.ReferralCode}
	for _, a := range sub.Accounts {
		out.Accounts = append(out.Accounts, client.SubscriptionAccount{Address: a.Address, ChainID: a.ChainID})
	}
	return out
}
