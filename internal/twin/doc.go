// Package twin is an in-memory stand-in for the rewards backend.
//
// It verifies signed challenges with the same message format the engine
// signs, issues JWT session tokens, keeps subscriptions and season balances
// in a MemoryStore, and can be told to misbehave: shift its clock, slow
// down, revoke tokens, or fail the next requests to a route. Engine tests
// and the rewards-twin command serve it over HTTP.
package twin
