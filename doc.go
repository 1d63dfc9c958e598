// Package goRewards is a rewards controller for multi-account wallets. It
// keeps per-account opt-in and subscription state, authenticates accounts
// against the rewards backend by signing a challenge without user
// interaction, and serves season and points data from a staleness-aware
// cache that renews rejected sessions on its own.
//
// Several wallet accounts may share one backend subscription. Opting in
// creates the subscription for one account and joins the others to it;
// accounts added later are linked to the same subscription.
//
// The package is designed for concurrent use: Engine methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goRewards is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors and value types. Flow orchestration, the cache wrapper and
// the background revalidation pool live under internal/ and are never
// exported. The backend client, state stores, wallet collaborators and CAIP
// identifiers are public sub-packages so hosts can supply their own.
//
// # What this package must NOT do
//
//   - Sign anything without a wallet.Signer supplied by the host.
//   - Expose session tokens through [Engine.State] or events.
//   - Perform network I/O when the feature gate reports the feature disabled.
//   - Import any sub-package that re-imports goRewards (no import cycles).
//
// # Failure contract
//
// Remote failures that a user cannot act on (a rejected silent login, an
// unreachable geolocation service, a failed background revalidation) are
// logged and turned into empty results. Failures the caller must see (no
// account could opt in, a season vanished, a session could not be renewed)
// are returned as errors that match the package sentinels with errors.Is.
package goRewards
