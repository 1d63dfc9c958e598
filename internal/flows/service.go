package flows

import (
	"context"

	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps.withDefaults()}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.ready() == nil
}

func (s Service) SilentAuth(ctx context.Context, req SilentAuthRequest) (string, error) {
	return RunSilentAuth(ctx, req, s.deps)
}

func (s Service) ShouldSkipSilentAuth(ctx context.Context, account wallet.Account) (bool, error) {
	return ShouldSkipSilentAuth(ctx, account, s.deps)
}

func (s Service) AuthenticationTrigger(ctx context.Context, accounts []wallet.Account) error {
	return RunAuthenticationTrigger(ctx, accounts, s.deps)
}

func (s Service) OptInStatus(ctx context.Context, addresses []string) (OptInStatus, error) {
	return RunOptInStatus(ctx, addresses, s.deps)
}

func (s Service) SeasonMetadata(ctx context.Context, kind string) (state.SeasonMetadata, error) {
	return RunSeasonMetadata(ctx, kind, s.deps)
}

func (s Service) SeasonStatus(ctx context.Context, subscriptionID, seasonID string) (state.SeasonStatus, error) {
	return RunSeasonStatus(ctx, subscriptionID, seasonID, s.deps)
}

func (s Service) OptIn(ctx context.Context, accounts []wallet.Account, referralCode string) (string, error) {
	return RunOptIn(ctx, accounts, referralCode, s.deps)
}

func (s Service) LinkAccount(ctx context.Context, account wallet.Account, invalidate bool) (bool, error) {
	return RunLinkAccount(ctx, account, invalidate, s.deps)
}

func (s Service) LinkAccounts(ctx context.Context, accounts []wallet.Account) ([]LinkResult, error) {
	return RunLinkAccounts(ctx, accounts, s.deps)
}

func (s Service) CandidateSubscription(ctx context.Context) (string, error) {
	return RunCandidateSubscription(ctx, s.deps)
}
