package flows

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleTiers = []state.Tier{
	{ID: "t1", Name: "Bronze", PointsNeeded: 0},
	{ID: "t2", Name: "Silver", PointsNeeded: 100},
	{ID: "t3", Name: "Gold", PointsNeeded: 500},
}

func TestCalculateTierStatus(t *testing.T) {
	got, err := CalculateTierStatus(exampleTiers, "t2", 250, errTierNotFound)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.CurrentTier.ID)
	require.NotNil(t, got.NextTier)
	assert.Equal(t, "t3", got.NextTier.ID)
	require.NotNil(t, got.NextTierPointsNeeded)
	assert.Equal(t, int64(250), *got.NextTierPointsNeeded)

	top, err := CalculateTierStatus(exampleTiers, "t3", 900, errTierNotFound)
	require.NoError(t, err)
	assert.Nil(t, top.NextTier)
	assert.Nil(t, top.NextTierPointsNeeded)

	over, err := CalculateTierStatus(exampleTiers, "t1", 150, errTierNotFound)
	require.NoError(t, err)
	assert.Equal(t, int64(0), *over.NextTierPointsNeeded)

	_, err = CalculateTierStatus(exampleTiers, "t9", 0, errTierNotFound)
	require.ErrorIs(t, err, errTierNotFound)
}

func TestCalculateTierStatusIgnoresInputOrder(t *testing.T) {
	want, err := CalculateTierStatus(exampleTiers, "t2", 250, errTierNotFound)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]state.Tier(nil), exampleTiers...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := CalculateTierStatus(shuffled, "t2", 250, errTierNotFound)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func stubSeasons(h *harness) {
	start := h.clock.Now().Add(-24 * time.Hour)
	end := h.clock.Now().Add(30 * 24 * time.Hour)
	h.backend.discover = func() (*client.DiscoverSeasons, error) {
		return &client.DiscoverSeasons{Current: &client.SeasonInfo{ID: "s1", StartDate: &start, EndDate: &end}}, nil
	}
	h.backend.meta = func(id string) (*client.SeasonMetadata, error) {
		return &client.SeasonMetadata{
			ID: id, Name: "Season 1", StartDate: start, EndDate: end,
			Tiers: []client.SeasonTier{{ID: "t3", PointsNeeded: 500}, {ID: "t1", PointsNeeded: 0}, {ID: "t2", PointsNeeded: 100}},
		}, nil
	}
}

func TestSeasonMetadataCachedForTTL(t *testing.T) {
	h := newHarness(t)
	stubSeasons(h)
	ctx := context.Background()

	m, err := RunSeasonMetadata(ctx, state.SeasonCurrent, h.deps)
	require.NoError(t, err)
	assert.Equal(t, "s1", m.ID)

	h.clock.Advance(9 * time.Minute)
	_, err = RunSeasonMetadata(ctx, state.SeasonCurrent, h.deps)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backend.Calls("discover"))

	st := h.load(t)
	_, byID := st.Season("s1")
	assert.True(t, byID, "metadata is reachable by id as well as by type")

	h.clock.Advance(2 * time.Minute)
	_, err = RunSeasonMetadata(ctx, state.SeasonCurrent, h.deps)
	require.NoError(t, err)
	assert.Equal(t, 2, h.backend.Calls("discover"))
}

func TestSeasonMetadataStaleServedWhileRevalidating(t *testing.T) {
	h := newHarness(t)
	h.deps.RevalidateSeasonMetadata = true
	stubSeasons(h)
	ctx := context.Background()

	_, err := RunSeasonMetadata(ctx, state.SeasonCurrent, h.deps)
	require.NoError(t, err)
	h.clock.Advance(11 * time.Minute)

	m, err := RunSeasonMetadata(ctx, state.SeasonCurrent, h.deps)
	require.NoError(t, err)
	assert.Equal(t, "s1", m.ID)
	require.Eventually(t, func() bool { return h.backend.Calls("meta") == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		cur, ok := h.load(t).Season(state.SeasonCurrent)
		return ok && cur.LastFetched.Equal(h.clock.Now())
	}, time.Second, 5*time.Millisecond)
}

func TestSeasonMetadataRequiresStartDate(t *testing.T) {
	h := newHarness(t)
	h.backend.discover = func() (*client.DiscoverSeasons, error) {
		return &client.DiscoverSeasons{Next: &client.SeasonInfo{ID: "s2"}}, nil
	}
	_, err := RunSeasonMetadata(context.Background(), state.SeasonNext, h.deps)
	require.ErrorIs(t, err, errNoValidSeason)
	assert.Contains(t, err.Error(), "type: next")

	_, err = RunSeasonMetadata(context.Background(), "previous", h.deps)
	require.Error(t, err)
}

// seasonFixture seeds season metadata and an opted-in active account bound
// to sub-1 with a session token.
func seasonFixture(t *testing.T, h *harness) {
	t.Helper()
	acct := h.evmAccount(t)
	h.source.SetAccounts(acct)
	id := mustID(t, acct)
	h.seed(t, func(s state.State) state.State {
		s.PutSeason(state.SeasonCurrent, state.SeasonMetadata{ID: "s1", Tiers: exampleTiers, LastFetched: h.clock.Now()})
		rec := state.AccountState{Account: id, HasOptedIn: state.OptInTrue, SubscriptionID: "sub-1"}
		s.PutAccount(rec)
		s.SetActive(rec)
		s.Subscriptions["sub-1"] = state.Subscription{ID: "sub-1"}
		s.Tokens["sub-1"] = "token-old"
		return s
	})
}

func TestSeasonStatusComputesTierAndCaches(t *testing.T) {
	h := newHarness(t)
	seasonFixture(t, h)
	h.backend.seasonState = func(id, token string) (*client.SeasonState, error) {
		assert.Equal(t, "token-old", token)
		return &client.SeasonState{Balance: 250, CurrentTierID: "t2"}, nil
	}

	st, err := RunSeasonStatus(context.Background(), "sub-1", state.SeasonCurrent, h.deps)
	require.NoError(t, err)
	assert.Equal(t, int64(250), st.Balance.Total)
	assert.Equal(t, "t3", st.Tier.NextTier.ID)

	_, err = RunSeasonStatus(context.Background(), "sub-1", "s1", h.deps)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backend.Calls("state"))
}

func TestSeasonStatusReauthenticatesOnceAndRetries(t *testing.T) {
	h := newHarness(t)
	seasonFixture(t, h)
	h.backend.login = loginOK("sub-1", "token-new")
	h.backend.seasonState = func(id, token string) (*client.SeasonState, error) {
		if token != "token-new" {
			return nil, client.ErrAuthorizationFailed
		}
		return &client.SeasonState{Balance: 10, CurrentTierID: "t1"}, nil
	}

	st, err := RunSeasonStatus(context.Background(), "sub-1", "s1", h.deps)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Balance.Total)
	assert.Equal(t, 2, h.backend.Calls("state"))
	assert.Equal(t, 1, h.backend.Calls("login"))
	assert.Zero(t, h.backend.Calls("ois"), "reauth bypasses the opt-in precheck")
}

func TestSeasonStatusReauthFailureInvalidatesEverything(t *testing.T) {
	h := newHarness(t)
	seasonFixture(t, h)
	h.seed(t, func(s state.State) state.State {
		s.SeasonStatuses[state.StatusKey("s0", "sub-1")] = state.SeasonStatus{LastFetched: h.clock.Now()}
		return s
	})
	h.backend.login = loginOK("sub-1", "token-new")
	h.backend.seasonState = func(string, string) (*client.SeasonState, error) {
		return nil, client.ErrAuthorizationFailed
	}

	_, err := RunSeasonStatus(context.Background(), "sub-1", "s1", h.deps)
	require.ErrorIs(t, err, client.ErrAuthorizationFailed)
	assert.Equal(t, 2, h.backend.Calls("state"))

	st := h.load(t)
	assert.Empty(t, st.Accounts)
	assert.Empty(t, st.Subscriptions)
	assert.Empty(t, st.Tokens)
	assert.Empty(t, st.SeasonStatuses)
	require.NotNil(t, st.ActiveAccount)
	assert.Equal(t, state.OptInFalse, st.ActiveAccount.HasOptedIn)
	assert.Empty(t, st.ActiveAccount.SubscriptionID)
	_, ok := st.Season("s1")
	assert.True(t, ok, "season metadata survives reauth failure")
}

func TestSeasonStatusReauthFailureInvalidatesAfterCallerGivesUp(t *testing.T) {
	h := newHarness(t)
	seasonFixture(t, h)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	login := loginOK("sub-1", "token-new")
	h.backend.login = func(req client.LoginRequest) (*client.LoginResponse, error) {
		cancel()
		return login(req)
	}
	h.backend.seasonState = func(string, string) (*client.SeasonState, error) {
		return nil, client.ErrAuthorizationFailed
	}

	_, err := RunSeasonStatus(ctx, "sub-1", "s1", h.deps)
	require.ErrorIs(t, err, client.ErrAuthorizationFailed)

	st := h.load(t)
	assert.Empty(t, st.Accounts)
	assert.Empty(t, st.Subscriptions)
	assert.Empty(t, st.Tokens)
}

func TestSeasonStatusFindsBoundAccountWhenNotActive(t *testing.T) {
	h := newHarness(t)
	seasonFixture(t, h)
	h.seed(t, func(s state.State) state.State {
		s.ActiveAccount = nil
		return s
	})
	h.backend.login = loginOK("sub-1", "token-new")
	h.backend.seasonState = func(_, token string) (*client.SeasonState, error) {
		if token != "token-new" {
			return nil, client.ErrAuthorizationFailed
		}
		return &client.SeasonState{Balance: 1, CurrentTierID: "t1"}, nil
	}

	_, err := RunSeasonStatus(context.Background(), "sub-1", "s1", h.deps)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backend.Calls("login"))
}

func TestSeasonNotFoundClearsOnlySeasonMetadata(t *testing.T) {
	h := newHarness(t)
	seasonFixture(t, h)
	h.backend.seasonState = func(string, string) (*client.SeasonState, error) {
		return nil, client.ErrSeasonNotFound
	}

	_, err := RunSeasonStatus(context.Background(), "sub-1", "s1", h.deps)
	require.ErrorIs(t, err, client.ErrSeasonNotFound)

	st := h.load(t)
	assert.Empty(t, st.Seasons)
	assert.Empty(t, st.SeasonAliases)
	assert.NotEmpty(t, st.Accounts)
	assert.Contains(t, st.Subscriptions, "sub-1")
}

func TestSeasonStatusRequiresMetadata(t *testing.T) {
	h := newHarness(t)
	_, err := RunSeasonStatus(context.Background(), "sub-1", "s404", h.deps)
	require.ErrorIs(t, err, errMetaMissing)
	assert.Zero(t, h.backend.Total())
}

func TestSeasonStatusTimeoutSurfacesWithoutRetry(t *testing.T) {
	h := newHarness(t)
	seasonFixture(t, h)
	h.backend.seasonState = func(string, string) (*client.SeasonState, error) {
		return nil, client.ErrTimeout
	}
	_, err := RunSeasonStatus(context.Background(), "sub-1", "s1", h.deps)
	require.True(t, errors.Is(err, client.ErrTimeout))
	assert.Equal(t, 1, h.backend.Calls("state"))
	assert.Zero(t, h.backend.Calls("login"))
}
