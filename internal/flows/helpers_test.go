package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/internal/cache"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"
)

var errNotStubbed = errors.New("not stubbed")

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	login       func(client.LoginRequest) (*client.LoginResponse, error)
	optin       func(client.OptinRequest) (*client.LoginResponse, error)
	join        func(client.LoginRequest, string) (*client.Subscription, error)
	optInStatus func([]string) (*client.OptInStatusResponse, error)
	discover    func() (*client.DiscoverSeasons, error)
	meta        func(string) (*client.SeasonMetadata, error)
	seasonState func(string, string) (*client.SeasonState, error)

	loginRequests []client.LoginRequest
	oisRequests   [][]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (f *fakeBackend) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) Login(_ context.Context, req client.LoginRequest) (*client.LoginResponse, error) {
	f.count("login")
	f.mu.Lock()
	f.loginRequests = append(f.loginRequests, req)
	f.mu.Unlock()
	if f.login == nil {
		return nil, errNotStubbed
	}
	return f.login(req)
}

func (f *fakeBackend) MobileOptin(_ context.Context, req client.OptinRequest) (*client.LoginResponse, error) {
	f.count("optin")
	if f.optin == nil {
		return nil, errNotStubbed
	}
	return f.optin(req)
}

func (f *fakeBackend) MobileJoin(_ context.Context, req client.LoginRequest, token string) (*client.Subscription, error) {
	f.count("join")
	if f.join == nil {
		return nil, errNotStubbed
	}
	return f.join(req, token)
}

func (f *fakeBackend) OptInStatus(_ context.Context, addresses []string) (*client.OptInStatusResponse, error) {
	f.count("ois")
	f.mu.Lock()
	f.oisRequests = append(f.oisRequests, append([]string(nil), addresses...))
	f.mu.Unlock()
	if f.optInStatus == nil {
		return nil, errNotStubbed
	}
	return f.optInStatus(addresses)
}

func (f *fakeBackend) DiscoverSeasons(context.Context) (*client.DiscoverSeasons, error) {
	f.count("discover")
	if f.discover == nil {
		return nil, errNotStubbed
	}
	return f.discover()
}

func (f *fakeBackend) SeasonMetadata(_ context.Context, id string) (*client.SeasonMetadata, error) {
	f.count("meta")
	if f.meta == nil {
		return nil, errNotStubbed
	}
	return f.meta(id)
}

func (f *fakeBackend) SeasonState(_ context.Context, id, token string) (*client.SeasonState, error) {
	f.count("state")
	if f.seasonState == nil {
		return nil, errNotStubbed
	}
	return f.seasonState(id, token)
}

// countingSigner records how often the wrapped signer is asked to sign.
type countingSigner struct {
	*wallet.LocalSigner
	mu    sync.Mutex
	count int
}

func (c *countingSigner) SignMessage(ctx context.Context, account wallet.Account, message string) (string, error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return c.LocalSigner.SignMessage(ctx, account, message)
}

func (c *countingSigner) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type linkedEvent struct {
	subscriptionID string
	account        caip.AccountID
}

type harness struct {
	backend *fakeBackend
	signer  *countingSigner
	source  *wallet.MemorySource
	store   *state.MemoryStore
	clock   *clock
	events  []linkedEvent
	deps    Deps
}

var (
	errOptInFailed   = errors.New("opt-in failed")
	errNoCandidate   = errors.New("no candidate subscription")
	errMetaMissing   = errors.New("season metadata missing")
	errTierNotFound  = errors.New("tier not found")
	errNoValidSeason = errors.New("no valid season metadata")
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		signer:  &countingSigner{LocalSigner: wallet.NewLocalSigner()},
		source:  wallet.NewMemorySource(),
		store:   state.NewMemoryStore(state.Default()),
		clock:   &clock{now: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)},
	}
	exec := cache.NewExecutor(cache.ExecutorConfig{Workers: 1, QueueSize: 8}, zerolog.Nop())
	t.Cleanup(exec.Close)
	h.deps = Deps{
		Backend:                  h.backend,
		Signer:                   h.signer,
		Accounts:                 h.source,
		Store:                    h.store,
		Logger:                   zerolog.Nop(),
		Now:                      h.clock.Now,
		Group:                    &singleflight.Group{},
		Executor:                 exec,
		SeasonStatusTTL:          time.Minute,
		SeasonMetadataTTL:        10 * time.Minute,
		NotOptedInRecheck:        60 * time.Minute,
		MaxCandidateAuthAttempts: 10,
		PublishAccountLinked: func(_ context.Context, sub string, account caip.AccountID) {
			h.events = append(h.events, linkedEvent{subscriptionID: sub, account: account})
		},
		Errors: Errors{
			OptInFailed:             errOptInFailed,
			NoCandidateSubscription: errNoCandidate,
			SeasonMetadataMissing:   errMetaMissing,
			TierNotFound:            errTierNotFound,
			NoValidSeason:           errNoValidSeason,
		},
	}
	return h
}

func (h *harness) evmAccount(t *testing.T) wallet.Account {
	t.Helper()
	a, err := h.signer.NewEVMAccount()
	require.NoError(t, err)
	return a
}

func (h *harness) load(t *testing.T) state.State {
	t.Helper()
	st, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) seed(t *testing.T, fn state.Transform) {
	t.Helper()
	_, err := h.store.Apply(context.Background(), fn)
	require.NoError(t, err)
}

func mustID(t *testing.T, a wallet.Account) caip.AccountID {
	t.Helper()
	id, err := a.AccountID()
	require.NoError(t, err)
	return id
}

func loginOK(subID, token string) func(client.LoginRequest) (*client.LoginResponse, error) {
	return func(req client.LoginRequest) (*client.LoginResponse, error) {
		return &client.LoginResponse{
			SessionID:    token,
			Subscription: client.Subscription{ID: subID, Accounts: []client.SubscriptionAccount{{Address: req.Account, ChainID: 1}}},
		}, nil
	}
}

func strPtr(s string) *string { return &s }
