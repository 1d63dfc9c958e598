package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
)

// OptInStatus holds one opt-in flag and one subscription id per address, in
// request order. A subscription id is "" when none is known.
type OptInStatus struct {
	OIS  []bool
	SIDs []string
}

// RunOptInStatus resolves the opt-in status of addresses. Cached answers are
// used for accounts known to be opted in and for accounts confirmed as not
// opted in within the recheck window; every other address is checked in a
// single backend call and the result is written back for known accounts.
func RunOptInStatus(ctx context.Context, addresses []string, deps Deps) (OptInStatus, error) {
	if err := deps.ready(); err != nil {
		return OptInStatus{}, err
	}
	deps = deps.withDefaults()

	if len(addresses) == 0 {
		return OptInStatus{}, client.ErrNoAddresses
	}
	if len(addresses) > client.MaxOptInAddresses {
		return OptInStatus{}, client.ErrTooManyAddresses
	}

	byAddress := map[string]wallet.Account{}
	if accounts, err := deps.Accounts.ListAccounts(ctx); err != nil {
		deps.Logger.Warn().Err(err).Msg("list accounts failed, checking every address")
	} else {
		for _, a := range accounts {
			byAddress[strings.ToLower(a.Address)] = a
		}
	}

	st, err := deps.Store.Load(ctx)
	if err != nil {
		deps.Logger.Warn().Err(err).Msg("state read failed, checking every address")
		st = state.Default()
	}

	now := deps.Now()
	out := OptInStatus{OIS: make([]bool, len(addresses)), SIDs: make([]string, len(addresses))}
	var fresh []int
	for i, addr := range addresses {
		account, ok := byAddress[strings.ToLower(addr)]
		if !ok {
			fresh = append(fresh, i)
			continue
		}
		id, err := account.AccountID()
		if err != nil {
			fresh = append(fresh, i)
			continue
		}
		a, _, found := st.Account(id)
		if !found || !a.HasOptedIn.Known() {
			fresh = append(fresh, i)
			continue
		}
		if a.HasOptedIn == state.OptInFalse &&
			(a.LastFreshOptInStatusCheck == nil || now.Sub(*a.LastFreshOptInStatusCheck) > deps.NotOptedInRecheck) {
			fresh = append(fresh, i)
			continue
		}
		out.OIS[i] = a.HasOptedIn == state.OptInTrue
		out.SIDs[i] = a.SubscriptionID
		deps.MetricInc(deps.Metrics.OptInStatusCacheHit)
	}

	if len(fresh) == 0 {
		return out, nil
	}

	request := make([]string, len(fresh))
	for j, i := range fresh {
		request[j] = addresses[i]
	}
	resp, err := deps.Backend.OptInStatus(ctx, request)
	if err != nil {
		return OptInStatus{}, err
	}
	deps.MetricInc(deps.Metrics.OptInStatusFetched)

	type update struct {
		account wallet.Account
		optedIn bool
		sid     string
	}
	var updates []update
	for j, i := range fresh {
		optedIn := j < len(resp.OIS) && resp.OIS[j]
		sid := resp.SubscriptionIDAt(j)
		out.OIS[i] = optedIn
		out.SIDs[i] = sid
		if account, ok := byAddress[strings.ToLower(addresses[i])]; ok {
			updates = append(updates, update{account: account, optedIn: optedIn, sid: sid})
		}
	}

	if len(updates) > 0 {
		deps.apply(ctx, "opt-in status", func(s state.State) state.State {
			for _, u := range updates {
				id, err := u.account.AccountID()
				if err != nil {
					continue
				}
				a, _, found := s.Account(id)
				if !found {
					a = state.AccountState{Account: id}
				}
				checked := now
				a.HasOptedIn = state.FromBool(u.optedIn)
				if u.sid != "" || !u.optedIn {
					a.SubscriptionID = u.sid
				}
				a.LastFreshOptInStatusCheck = &checked
				s.PutAccount(a)
			}
			return s
		})
	}
	return out, nil
}
