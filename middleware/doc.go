// Package middleware exposes HTTP middleware that puts rewards routes of a
// host service behind the engine's feature gate and geolocation policy.
//
// # Guards
//
//   - [RequireFeature] rejects requests while the rewards feature is disabled.
//   - [RequireOptInAllowed] rejects opt-in routes from blocked regions.
//   - [Locale] forwards the caller's Accept-Language to backend requests.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every decision is
// delegated to the Engine.
//
// # What this package must NOT do
//
//   - Call the rewards backend directly.
//   - Access Redis (Engine handles I/O).
package middleware
