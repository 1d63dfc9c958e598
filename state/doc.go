// Package state holds the persisted rewards state and the stores that
// serialize transitions over it.
//
// Every mutation goes through Store.Apply with a pure Transform, so the
// in-memory and Redis stores give the same guarantees: the transform sees
// a private copy and the result replaces the state atomically.
package state
