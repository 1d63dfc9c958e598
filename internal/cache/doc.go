// Package cache implements the time-to-live and stale-while-revalidate read
// path shared by every cached rewards resource.
//
// # Architecture boundaries
//
// Resolve does not own storage. Callers pass Read and Write closures over
// whatever state they keep, so the same algorithm serves season metadata,
// season status and any future resource. Background refreshes run on an
// Executor owned by the engine.
//
// # What this package must NOT do
//
//   - Propagate read or write failures to callers.
//   - Block a caller on a background revalidation.
package cache
