package flows

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptInStatusCacheRules(t *testing.T) {
	h := newHarness(t)
	optedIn := h.evmAccount(t)
	recent := h.evmAccount(t)
	expired := h.evmAccount(t)
	unknown := h.evmAccount(t)
	h.source.SetAccounts(optedIn, recent, expired, unknown)

	now := h.clock.Now()
	thirty := now.Add(-30 * time.Minute)
	sixtyOne := now.Add(-61 * time.Minute)
	h.seed(t, func(s state.State) state.State {
		s.PutAccount(state.AccountState{Account: mustID(t, optedIn), HasOptedIn: state.OptInTrue, SubscriptionID: "sub-1"})
		s.PutAccount(state.AccountState{Account: mustID(t, recent), HasOptedIn: state.OptInFalse, LastFreshOptInStatusCheck: &thirty})
		s.PutAccount(state.AccountState{Account: mustID(t, expired), HasOptedIn: state.OptInFalse, LastFreshOptInStatusCheck: &sixtyOne})
		s.PutAccount(state.AccountState{Account: mustID(t, unknown), HasOptedIn: state.OptInUnknown})
		return s
	})

	h.backend.optInStatus = func(addrs []string) (*client.OptInStatusResponse, error) {
		return &client.OptInStatusResponse{OIS: []bool{true, false}, SIDs: []*string{strPtr("sub-2"), nil}}, nil
	}

	// Case differences must not defeat the account match.
	addresses := []string{optedIn.Address, strings.ToLower(recent.Address), expired.Address, unknown.Address}
	got, err := RunOptInStatus(context.Background(), addresses, h.deps)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false, true, false}, got.OIS)
	assert.Equal(t, []string{"sub-1", "", "sub-2", ""}, got.SIDs)
	require.Len(t, h.backend.oisRequests, 1)
	assert.Equal(t, []string{expired.Address, unknown.Address}, h.backend.oisRequests[0])

	st := h.load(t)
	rec, _, _ := st.Account(mustID(t, expired))
	assert.Equal(t, state.OptInTrue, rec.HasOptedIn)
	assert.Equal(t, "sub-2", rec.SubscriptionID)
	require.NotNil(t, rec.LastFreshOptInStatusCheck)
	assert.True(t, rec.LastFreshOptInStatusCheck.Equal(now))

	rec, _, _ = st.Account(mustID(t, unknown))
	assert.Equal(t, state.OptInFalse, rec.HasOptedIn)
}

func TestOptInStatusAllCachedMakesNoCall(t *testing.T) {
	h := newHarness(t)
	a := h.evmAccount(t)
	h.source.SetAccounts(a)
	h.seed(t, func(s state.State) state.State {
		s.PutAccount(state.AccountState{Account: mustID(t, a), HasOptedIn: state.OptInTrue, SubscriptionID: "sub-1"})
		return s
	})

	got, err := RunOptInStatus(context.Background(), []string{a.Address}, h.deps)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, got.OIS)
	assert.Zero(t, h.backend.Calls("ois"))
}

func TestOptInStatusUnknownAddressesAreNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.backend.optInStatus = func(addrs []string) (*client.OptInStatusResponse, error) {
		return &client.OptInStatusResponse{OIS: []bool{true}, SIDs: []*string{strPtr("sub-x")}}, nil
	}

	got, err := RunOptInStatus(context.Background(), []string{"0x00000000000000000000000000000000000000aa"}, h.deps)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, got.OIS)
	assert.Empty(t, h.load(t).Accounts)
}

func TestOptInStatusValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := RunOptInStatus(context.Background(), nil, h.deps)
	require.ErrorIs(t, err, client.ErrNoAddresses)

	_, err = RunOptInStatus(context.Background(), make([]string, client.MaxOptInAddresses+1), h.deps)
	require.ErrorIs(t, err, client.ErrTooManyAddresses)
	assert.Zero(t, h.backend.Total())
}

func TestFlowsRequireDeps(t *testing.T) {
	notReady := Deps{Errors: Errors{EngineNotReady: errMetaMissing}}
	_, err := RunOptInStatus(context.Background(), []string{"0x01"}, notReady)
	require.ErrorIs(t, err, errMetaMissing)
	assert.False(t, New(Deps{}).Initialized())
}
