// Package flows contains pure-function orchestrators for every rewards
// Engine operation that talks to the backend.
//
// Each flow function (RunSilentAuth, RunOptInStatus, RunSeasonStatus, etc.)
// accepts the shared Deps struct and returns results without side-effects
// beyond those dependencies. Flows call each other: silent auth runs the
// opt-in status precheck, the season status flow re-authenticates through
// silent auth, and linking discovers its candidate subscription through both.
//
// # Architecture boundaries
//
// Flow functions coordinate the backend client, the wallet signer and
// account source, the state store, and the cache wrapper. They do NOT own
// any of these resources. Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goRewards (to avoid import cycles).
//   - Check the rewards feature gate. The Engine short-circuits before any
//     flow runs.
package flows
