// Package internal holds the parts of goRewards that are private to the module.
//
// # Sub-packages
//
//   - cache: season metadata and season status caches with stale-while-revalidate
//   - flows: pure-function orchestrators behind every Engine operation
//   - twin: in-memory rewards backend used by tests, examples and cmd/rewards-twin
//
// # What this package must NOT do
//
//   - Export types that appear in the public goRewards API.
//   - Be imported by any package outside the goRewards module.
package internal
