// Package client is the typed HTTP client for the rewards backend.
//
// Every request carries the JSON content type, the caller locale, the
// client id and, for authenticated calls, the subscription session token.
// Non-2xx responses are mapped to the package error taxonomy
// (InvalidTimestampError, ErrAccountAlreadyRegistered, ErrAuthorizationFailed,
// ErrSeasonNotFound, StatusError) so orchestration code can branch with
// errors.Is and errors.As.
package client
