package goRewards

import (
	"context"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/internal/flows"
	"github.com/MrEthical07/goRewards/state"
	"github.com/MrEthical07/goRewards/wallet"
)

// PerformSilentAuth describes the performsilentauth operation and its observable behavior.
//
// PerformSilentAuth signs the rewards challenge for account and exchanges
// it for a session token, returning the bound subscription id. An empty id
// with a nil error means the account is unsupported, not opted in, could not
// be checked, or the keyring is locked. With respectSkip, cached state that
// makes the exchange redundant short-circuits it. A nil account with
// becomeActive clears the active account.
//
// PerformSilentAuth may return an error when signing fails for a reason
// other than a locked keyring, or when the state store fails.
func (e *Engine) PerformSilentAuth(ctx context.Context, account *wallet.Account, becomeActive, respectSkip bool) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if !e.enabled(ctx) {
		return "", nil
	}

	start := time.Now()
	sub, err := e.flows.SilentAuth(ctx, flows.SilentAuthRequest{
		Account:      account,
		BecomeActive: becomeActive,
		RespectSkip:  respectSkip,
	})
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricSilentAuthLatency, time.Since(start))
	}
	return sub, err
}

// HandleAuthenticationTrigger re-authenticates every account of the active
// account group and picks the active account. reason is logged only.
//
// With the feature disabled or an empty group the active account is
// cleared. Per-account failures are logged and do not stop the pass.
func (e *Engine) HandleAuthenticationTrigger(ctx context.Context, reason string) error {
	if err := e.ready(); err != nil {
		return err
	}
	log := e.log.With().Str("trigger", reason).Logger()
	if !e.enabled(ctx) {
		_, err := e.store.Apply(ctx, func(s state.State) state.State {
			s.ActiveAccount = nil
			return s
		})
		return err
	}

	accounts, err := e.accounts.ActiveGroupAccounts(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("listing active group accounts failed")
		return err
	}
	log.Debug().Int("accounts", len(accounts)).Msg("authentication trigger")
	return e.flows.AuthenticationTrigger(ctx, accounts)
}

// triggerInBackground runs HandleAuthenticationTrigger detached from the
// wallet event that caused it. Passes started after Close are ignored.
func (e *Engine) triggerInBackground(reason string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.triggers.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.triggers.Done()
		ctx, cancel := context.WithTimeout(withTriggerReason(e.baseCtx, reason), e.config.Auth.TriggerTimeout)
		defer cancel()
		if err := e.HandleAuthenticationTrigger(ctx, triggerReasonFromContext(ctx)); err != nil {
			e.log.Warn().Err(err).Str("trigger", reason).Msg("background authentication failed")
		}
	}()
}

// ShouldSkipSilentAuth reports whether silent authentication of account
// would be redundant or impossible. With the feature disabled every account
// is skipped.
func (e *Engine) ShouldSkipSilentAuth(ctx context.Context, account wallet.Account) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if !e.enabled(ctx) {
		return true, nil
	}
	return e.flows.ShouldSkipSilentAuth(ctx, account)
}

// IsOptInSupported reports whether account can take part in rewards: a
// software-keyring account with an EVM or Solana address.
func (e *Engine) IsOptInSupported(account wallet.Account) bool {
	return account.OptInSupported()
}

// AccountID converts a wallet account to its CAIP-10 id.
func (e *Engine) AccountID(account wallet.Account) (caip.AccountID, error) {
	return account.AccountID()
}

// GetOptInStatus describes the getoptinstatus operation and its observable behavior.
//
// GetOptInStatus answers, for up to 500 addresses, whether each one has
// opted in and to which subscription. Cached answers are used where they
// can be trusted and the rest is fetched in a single request. With the
// feature disabled every answer is false.
//
// GetOptInStatus may return ErrNoAddresses, ErrTooManyAddresses or a
// backend error.
func (e *Engine) GetOptInStatus(ctx context.Context, addresses []string) (OptInStatus, error) {
	if err := e.ready(); err != nil {
		return OptInStatus{}, err
	}
	if !e.enabled(ctx) {
		return OptInStatus{OIS: make([]bool, len(addresses)), SIDs: make([]string, len(addresses))}, nil
	}
	return e.flows.OptInStatus(ctx, addresses)
}

// GetHasAccountOptedIn reports the cached opt-in answer for account. It
// never calls the backend.
func (e *Engine) GetHasAccountOptedIn(ctx context.Context, account caip.AccountID) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if !e.enabled(ctx) {
		return false, nil
	}
	st, err := e.store.Load(ctx)
	if err != nil {
		return false, err
	}
	rec, _, ok := st.Account(account)
	return ok && rec.HasOptedIn == state.OptInTrue, nil
}
