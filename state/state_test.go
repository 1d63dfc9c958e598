package state

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checksummed = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"

func TestOptInJSON(t *testing.T) {
	raw, err := json.Marshal([]OptIn{OptInTrue, OptInFalse, OptInUnknown})
	require.NoError(t, err)
	assert.JSONEq(t, `[true,false,null]`, string(raw))

	var back []OptIn
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []OptIn{OptInTrue, OptInFalse, OptInUnknown}, back)

	var bad OptIn
	require.Error(t, json.Unmarshal([]byte(`"yes"`), &bad))
}

func TestAccountLookupFallsBackAcrossEVMKeys(t *testing.T) {
	s := Default()
	stored := caip.AccountID("eip155:0:" + checksummed)
	s.Accounts[stored] = AccountState{Account: stored, HasOptedIn: OptInTrue, SubscriptionID: "sub-1"}

	got, key, ok := s.Account(caip.AccountID("eip155:1:" + checksummed))
	require.True(t, ok)
	assert.Equal(t, stored, key)
	assert.Equal(t, "sub-1", got.SubscriptionID)

	_, _, ok = s.Account("solana:x:abc")
	assert.False(t, ok)
}

func TestPutAccountReusesKeyAndRefreshesActive(t *testing.T) {
	s := Default()
	stored := caip.AccountID("eip155:0:" + checksummed)
	s.Accounts[stored] = AccountState{Account: stored, HasOptedIn: OptInFalse}
	s.SetActive(s.Accounts[stored])

	s.PutAccount(AccountState{Account: caip.AccountID("eip155:1:" + checksummed), HasOptedIn: OptInTrue, SubscriptionID: "sub-1"})

	require.Len(t, s.Accounts, 1)
	assert.Equal(t, OptInTrue, s.Accounts[stored].HasOptedIn)
	require.NotNil(t, s.ActiveAccount)
	assert.Equal(t, "sub-1", s.ActiveAccount.SubscriptionID)
}

func TestSeasonAliasSharesInvalidation(t *testing.T) {
	s := Default()
	s.PutSeason(SeasonCurrent, SeasonMetadata{ID: "s1", Name: "Season 1", Tiers: []Tier{{ID: "t1"}}})

	byAlias, ok := s.Season(SeasonCurrent)
	require.True(t, ok)
	byID, ok := s.Season("s1")
	require.True(t, ok)
	assert.Equal(t, byAlias, byID)

	s.ClearSeasons()
	_, ok = s.Season(SeasonCurrent)
	assert.False(t, ok)
	_, ok = s.Season("s1")
	assert.False(t, ok)
}

func TestInvalidateSubscriptionOnlyTouchesThatSubscription(t *testing.T) {
	s := Default()
	s.SeasonStatuses[StatusKey("s1", "sub-a")] = SeasonStatus{}
	s.SeasonStatuses[StatusKey("s2", "sub-a")] = SeasonStatus{}
	s.SeasonStatuses[StatusKey("s1", "sub-b")] = SeasonStatus{}

	s.InvalidateSubscription("sub-a")
	assert.Len(t, s.SeasonStatuses, 1)
	_, ok := s.SeasonStatuses[StatusKey("s1", "sub-b")]
	assert.True(t, ok)
}

func TestResetAccountsAndSubscriptions(t *testing.T) {
	now := time.Now()
	s := Default()
	id := caip.AccountID("eip155:0:" + checksummed)
	a := AccountState{Account: id, HasOptedIn: OptInTrue, SubscriptionID: "sub-1", LastFreshOptInStatusCheck: &now}
	s.Accounts[id] = a
	s.SetActive(a)
	s.Subscriptions["sub-1"] = Subscription{ID: "sub-1"}
	s.Tokens["sub-1"] = "tok"
	s.PutSeason(SeasonCurrent, SeasonMetadata{ID: "s1"})

	s.ResetAccountsAndSubscriptions()
	assert.Empty(t, s.Accounts)
	assert.Empty(t, s.Subscriptions)
	assert.Empty(t, s.Tokens)
	require.NotNil(t, s.ActiveAccount)
	assert.Equal(t, AccountState{Account: id, HasOptedIn: OptInFalse}, *s.ActiveAccount)
	assert.Len(t, s.Seasons, 1)
}

func TestPublicStripsTokensAndCloneIsDeep(t *testing.T) {
	s := Default()
	s.Tokens["sub-1"] = "secret"
	s.PutSeason("", SeasonMetadata{ID: "s1", Tiers: []Tier{{ID: "t1"}}})

	pub := s.Public()
	assert.Nil(t, pub.Tokens)

	c := s.Clone()
	c.Seasons["s1"].Tiers[0].ID = "mutated"
	assert.Equal(t, "t1", s.Seasons["s1"].Tiers[0].ID)
}

func TestMemoryStoreApplyIsolatesCallers(t *testing.T) {
	store := NewMemoryStore(Default())
	ctx := context.Background()

	next, err := store.Apply(ctx, func(s State) State {
		s.Subscriptions["sub-1"] = Subscription{ID: "sub-1"}
		return s
	})
	require.NoError(t, err)
	next.Subscriptions["sub-2"] = Subscription{ID: "sub-2"}

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Subscriptions, 1)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test-rewards"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Accounts)

	checked := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	id := caip.AccountID("eip155:0:" + checksummed)
	_, err = store.Apply(ctx, func(s State) State {
		s.PutAccount(AccountState{Account: id, HasOptedIn: OptInTrue, SubscriptionID: "sub-1", LastFreshOptInStatusCheck: &checked})
		s.Tokens["sub-1"] = "tok"
		return s
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test-rewards:state"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	got, _, ok := loaded.Account(id)
	require.True(t, ok)
	assert.Equal(t, OptInTrue, got.HasOptedIn)
	require.NotNil(t, got.LastFreshOptInStatusCheck)
	assert.True(t, checked.Equal(*got.LastFreshOptInStatusCheck))
	assert.Equal(t, "tok", loaded.Tokens["sub-1"])
}

func TestRedisStoreCorruptDocument(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set(store.Key(), "{not json"))

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrCorruptState)

	_, err = store.Apply(context.Background(), func(s State) State { return s })
	require.ErrorIs(t, err, ErrCorruptState)
}

func TestRedisStoreConcurrentAppliesDoNotLoseUpdates(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_, err := store.Apply(ctx, func(s State) State {
				s.Subscriptions[id] = Subscription{ID: id}
				return s
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Subscriptions, n)
}
