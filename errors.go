package goRewards

import (
	"errors"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/wallet"
)

var (
	// ErrEngineNotReady is returned when an Engine was not built through Builder.Build.
	ErrEngineNotReady = errors.New("rewards engine not initialized")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrOptInFailed is returned when no account of a group could be opted in.
	ErrOptInFailed = errors.New("failed to opt in any account from the account group")
	// ErrNoCandidateSubscription is returned when opted-in accounts exist but none could be authenticated.
	ErrNoCandidateSubscription = errors.New("no candidate subscription id found, subscription unreachable")
	// ErrNoValidSeason is returned when season discovery has no usable season of the requested type.
	ErrNoValidSeason = errors.New("no valid season metadata")
	// ErrSeasonMetadataMissing is returned when a season status is requested before its metadata was loaded.
	ErrSeasonMetadataMissing = errors.New("season not found")
	// ErrTierNotFound is returned when a season state names a tier missing from the season metadata.
	ErrTierNotFound = errors.New("tier not found")
	// ErrInvalidSeasonType is returned for season types other than SeasonCurrent and SeasonNext.
	ErrInvalidSeasonType = errors.New("invalid season type")
	// ErrMissingBackend is returned by Build when neither a backend nor an API base URL is configured.
	ErrMissingBackend = errors.New("rewards backend not configured")
	// ErrMissingSigner is returned by Build without a signer.
	ErrMissingSigner = errors.New("rewards signer not configured")
	// ErrMissingAccounts is returned by Build without an account source.
	ErrMissingAccounts = errors.New("rewards account source not configured")
)

// Remote and collaborator errors surfaced unchanged by the engine.
var (
	ErrAuthorizationFailed      = client.ErrAuthorizationFailed
	ErrSeasonNotFound           = client.ErrSeasonNotFound
	ErrAccountAlreadyRegistered = client.ErrAccountAlreadyRegistered
	ErrTimeout                  = client.ErrTimeout
	ErrTooManyAddresses         = client.ErrTooManyAddresses
	ErrNoAddresses              = client.ErrNoAddresses
	ErrUnsupportedAccount       = caip.ErrUnsupportedAccount
	ErrLocked                   = wallet.ErrLocked
)
