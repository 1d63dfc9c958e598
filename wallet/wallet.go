package wallet

import (
	"context"
	"errors"
)

// ErrLocked is returned by a Signer when the keyring is locked.
var ErrLocked = errors.New("keyring locked")

// ErrUnsupportedSigningAccount is returned when an account has neither an EVM nor a Solana address.
var ErrUnsupportedSigningAccount = errors.New("unsupported account type for signing rewards message")

// Signer produces rewards authentication signatures for an account.
//
// EVM signatures are personal-sign signatures over the UTF-8 message,
// Solana signatures are ed25519 signatures; both hex encoded with a 0x prefix.
type Signer interface {
	SignMessage(ctx context.Context, account Account, message string) (string, error)
}

// AccountSource exposes the wallet's account lists.
type AccountSource interface {
	// ListAccounts returns every account known to the wallet.
	ListAccounts(ctx context.Context) ([]Account, error)
	// SelectedAccount returns the account the user currently has selected.
	SelectedAccount(ctx context.Context) (Account, bool, error)
	// ActiveGroupAccounts returns the accounts of the selected account group.
	ActiveGroupAccounts(ctx context.Context) ([]Account, error)
}

// Event names a wallet notification.
type Event string

const (
	// EventUnlock fires when the keyring is unlocked.
	EventUnlock Event = "keyring:unlock"
	// EventAccountGroupChange fires when the selected account group changes.
	EventAccountGroupChange Event = "accounts:selected-group-change"
)

// Subscriber registers handlers for wallet events.
type Subscriber interface {
	Subscribe(event Event, handler func()) (unsubscribe func())
}
