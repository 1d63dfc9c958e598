package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/jwt"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
)

// SilentAuthRequest describes one silent authentication attempt.
type SilentAuthRequest struct {
	// Account to authenticate. Nil clears the active account when
	// BecomeActive is set.
	Account *wallet.Account
	// BecomeActive makes the resulting record the active account.
	BecomeActive bool
	// RespectSkip enables the skip check and the opt-in precheck.
	RespectSkip bool
}

// ShouldSkipSilentAuth reports whether authenticating account would be
// redundant or impossible: unsupported accounts, accounts recently confirmed
// as not opted in, and accounts already holding a usable session token.
func ShouldSkipSilentAuth(ctx context.Context, account wallet.Account, deps Deps) (bool, error) {
	if err := deps.ready(); err != nil {
		return false, err
	}
	deps = deps.withDefaults()
	if !account.OptInSupported() {
		return true, nil
	}
	id, err := account.AccountID()
	if err != nil {
		return true, nil
	}
	st, err := deps.Store.Load(ctx)
	if err != nil {
		return false, err
	}
	return shouldSkip(st, id, deps.Now(), deps.NotOptedInRecheck), nil
}

func shouldSkip(st state.State, id caip.AccountID, now time.Time, recheck time.Duration) bool {
	a, _, ok := st.Account(id)
	if !ok {
		return false
	}
	if a.HasOptedIn == state.OptInFalse {
		if a.LastFreshOptInStatusCheck == nil {
			return false
		}
		return now.Sub(*a.LastFreshOptInStatusCheck) <= recheck
	}
	// Unknown records skip only when they already hold a live session.
	return a.SubscriptionID != "" && jwt.Usable(st.Tokens[a.SubscriptionID], now)
}

// RunSilentAuth authenticates an account by signing the rewards challenge and
// exchanging it for a session token, and returns the subscription id it is
// bound to. An empty id with a nil error means the account is not opted in,
// could not be checked, or the keyring is locked.
func RunSilentAuth(ctx context.Context, req SilentAuthRequest, deps Deps) (string, error) {
	if err := deps.ready(); err != nil {
		return "", err
	}
	deps = deps.withDefaults()

	if req.Account == nil {
		if req.BecomeActive {
			if _, err := deps.Store.Apply(ctx, func(s state.State) state.State {
				s.ActiveAccount = nil
				return s
			}); err != nil {
				return "", err
			}
		}
		return "", nil
	}
	account := *req.Account
	log := deps.Logger.With().Str("address", account.Address).Logger()

	id, idErr := account.AccountID()
	supported := account.OptInSupported() && idErr == nil

	st, err := deps.Store.Load(ctx)
	if err != nil {
		return "", err
	}
	skip := !supported || shouldSkip(st, id, deps.Now(), deps.NotOptedInRecheck)

	if skip && req.RespectSkip {
		deps.MetricInc(deps.Metrics.SilentAuthSkipped)
		if idErr != nil {
			return "", nil
		}
		existing, _, found := st.Account(id)
		if !found {
			existing = state.AccountState{Account: id, HasOptedIn: state.OptInFalse}
		}
		if found && !req.BecomeActive {
			return existing.SubscriptionID, nil
		}
		if _, err := deps.Store.Apply(ctx, func(s state.State) state.State {
			if !found {
				s.PutAccount(existing)
			}
			if req.BecomeActive {
				current, _, _ := s.Account(id)
				s.SetActive(current)
			}
			return s
		}); err != nil {
			return "", err
		}
		return existing.SubscriptionID, nil
	}

	// Hardware and unknown-chain accounts never reach the signer, even when
	// the caller bypasses the skip check.
	if !supported {
		deps.MetricInc(deps.Metrics.SilentAuthSkipped)
		return "", nil
	}

	if req.RespectSkip {
		status, err := RunOptInStatus(ctx, []string{account.Address}, deps)
		if err != nil {
			log.Debug().Err(err).Msg("opt-in precheck failed, continuing with login")
		} else if len(status.OIS) > 0 && !status.OIS[0] {
			now := deps.Now()
			if _, err := deps.Store.Apply(ctx, func(s state.State) state.State {
				a := state.AccountState{Account: id, HasOptedIn: state.OptInFalse, LastFreshOptInStatusCheck: &now}
				s.PutAccount(a)
				if req.BecomeActive {
					current, _, _ := s.Account(id)
					s.SetActive(current)
				}
				return s
			}); err != nil {
				return "", err
			}
			return "", nil
		}
	}

	resp, err := signedCall(ctx, deps, account, func(ctx context.Context, ts int64, sig string) (*client.LoginResponse, error) {
		return deps.Backend.Login(ctx, client.LoginRequest{Account: account.Address, Timestamp: ts, Signature: sig})
	})

	var signErr *signError
	if errors.As(err, &signErr) && errors.Is(err, wallet.ErrLocked) {
		deps.MetricInc(deps.Metrics.SilentAuthLocked)
		log.Debug().Msg("keyring locked, silent auth skipped")
		return "", nil
	}

	record := state.AccountState{Account: id}
	var sub *client.Subscription
	switch {
	case err == nil:
		sub = &resp.Subscription
		record.HasOptedIn = state.OptInTrue
		record.SubscriptionID = sub.ID
		deps.MetricInc(deps.Metrics.SilentAuthSuccess)
	case signErr == nil && client.IsUnauthorized(err):
		record.HasOptedIn = state.OptInFalse
		log.Debug().Msg("account not opted in")
	default:
		record.HasOptedIn = state.OptInUnknown
		deps.MetricInc(deps.Metrics.SilentAuthFailure)
		log.Warn().Err(err).Msg("silent auth failed")
	}

	if _, applyErr := deps.Store.Apply(ctx, func(s state.State) state.State {
		s.PutAccount(record)
		if req.BecomeActive {
			current, _, _ := s.Account(id)
			s.SetActive(current)
		}
		if sub != nil {
			s.Subscriptions[sub.ID] = subscriptionFromClient(*sub)
			s.Tokens[sub.ID] = resp.SessionID
		}
		return s
	}); applyErr != nil {
		return "", applyErr
	}

	if signErr != nil {
		return "", err
	}
	return record.SubscriptionID, nil
}

// RunAuthenticationTrigger re-establishes sessions for the active account
// group and picks the active account: the first account that authenticated,
// else the first account in sort order when it has a record.
func RunAuthenticationTrigger(ctx context.Context, accounts []wallet.Account, deps Deps) error {
	if err := deps.ready(); err != nil {
		return err
	}
	deps = deps.withDefaults()

	if len(accounts) == 0 {
		_, err := RunSilentAuth(ctx, SilentAuthRequest{BecomeActive: true, RespectSkip: true}, deps)
		return err
	}

	sorted := wallet.SortAccounts(accounts)
	addresses := make([]string, 0, len(sorted))
	for _, a := range sorted {
		addresses = append(addresses, a.Address)
	}
	for start := 0; start < len(addresses); start += client.MaxOptInAddresses {
		end := min(start+client.MaxOptInAddresses, len(addresses))
		if _, err := RunOptInStatus(ctx, addresses[start:end], deps); err != nil {
			deps.Logger.Debug().Err(err).Msg("bulk opt-in prefetch failed")
		}
	}

	var first *caip.AccountID
	for i := range sorted {
		sub, err := RunSilentAuth(ctx, SilentAuthRequest{Account: &sorted[i], RespectSkip: true}, deps)
		if err != nil {
			deps.Logger.Debug().Err(err).Str("address", sorted[i].Address).Msg("silent auth failed during trigger")
			continue
		}
		if sub != "" && first == nil {
			if id, err := sorted[i].AccountID(); err == nil {
				first = &id
			}
		}
	}

	target := first
	if target == nil {
		if id, err := sorted[0].AccountID(); err == nil {
			target = &id
		}
	}
	if target == nil {
		return nil
	}
	_, err := deps.Store.Apply(ctx, func(s state.State) state.State {
		if a, _, ok := s.Account(*target); ok {
			s.SetActive(a)
		}
		return s
	})
	return err
}

func subscriptionFromClient(sub client.Subscription) state.Subscription {
	out := state.Subscription{ID: sub.ID, ReferralCode: sub.ReferralCode}
	for _, a := range sub.Accounts {
		out.Accounts = append(out.Accounts, state.SubscriptionAccount{Address: a.Address, ChainID: a.ChainID})
	}
	return out
}
