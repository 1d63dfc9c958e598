package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAuthorizationFailed is returned when the backend rejects a session token.
	ErrAuthorizationFailed = errors.New("rewards authorization failed")
	// ErrSeasonNotFound is returned when the backend does not know the requested season.
	ErrSeasonNotFound = errors.New("season not found")
	// ErrAccountAlreadyRegistered is returned when an account is already bound to a subscription.
	ErrAccountAlreadyRegistered = errors.New("account already registered")
	// ErrTimeout is returned when a request exceeds the client timeout.
	ErrTimeout = errors.New("request timeout")
	// ErrNoAddresses is returned by OptInStatus for an empty address list.
	ErrNoAddresses = errors.New("addresses are required")
	// ErrTooManyAddresses is returned by OptInStatus for more than MaxOptInAddresses addresses.
	ErrTooManyAddresses = errors.New("addresses must be less than 500")
)

// InvalidTimestampError reports that the backend rejected a signed timestamp.
// ServerTimestamp is the backend clock in Unix seconds and should be used to re-sign.
type InvalidTimestampError struct {
	ServerTimestamp int64
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp, server time %d", e.ServerTimestamp)
}

// StatusError is a non-2xx response that does not map to a typed error.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed: %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusUnauthorized
	}
	return err != nil && strings.Contains(err.Error(), "401")
}

// AsInvalidTimestamp unwraps an InvalidTimestampError.
func AsInvalidTimestamp(err error) (*InvalidTimestampError, bool) {
	var ite *InvalidTimestampError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

// classify maps an error response body to the client error taxonomy.
func classify(op string, status int, body errorBody) error {
	msg := body.Message
	switch {
	case strings.Contains(msg, "Invalid timestamp"):
		return &InvalidTimestampError{ServerTimestamp: body.serverTimestampSeconds()}
	case status == http.StatusConflict && strings.Contains(strings.ToLower(msg), "already registered"):
		return fmt.Errorf("%w: %s", ErrAccountAlreadyRegistered, msg)
	case strings.Contains(msg, "Rewards authorization failed"):
		return ErrAuthorizationFailed
	case strings.Contains(msg, "Season not found"):
		return ErrSeasonNotFound
	default:
		return &StatusError{Op: op, Status: status, Message: msg}
	}
}
