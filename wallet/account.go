package wallet

import (
	"sort"
	"strings"

	"github.com/MrEthical07/goRewards/caip"
)

// Keyring type names reported by the host wallet.
const (
	KeyringHD      = "HD Key Tree"
	KeyringSimple  = "Simple Key Pair"
	KeyringSnap    = "Snap Keyring"
	KeyringLedger  = "Ledger Hardware"
	KeyringTrezor  = "Trezor Hardware"
	KeyringLattice = "Lattice Hardware"
	KeyringQR      = "QR Hardware Wallet Device"
	KeyringOneKey  = "OneKey Hardware"
)

var hardwareKeyrings = map[string]struct{}{
	KeyringLedger:  {},
	KeyringTrezor:  {},
	KeyringLattice: {},
	KeyringQR:      {},
	KeyringOneKey:  {},
}

// Account is a wallet-side account as the host exposes it.
type Account struct {
	ID      string
	Address string
	Scopes  []string
	Keyring string
}

// IsHardware reports whether the account is backed by a hardware keyring.
func (a Account) IsHardware() bool {
	_, ok := hardwareKeyrings[a.Keyring]
	return ok
}

// IsEVM reports whether the account address is an EVM address.
func (a Account) IsEVM() bool { return caip.IsEVMAddress(a.Address) }

// IsSolana reports whether the account address is a Solana address.
func (a Account) IsSolana() bool { return caip.IsSolanaAddress(a.Address) }

// OptInSupported reports whether the account can take part in rewards.
// Hardware accounts cannot sign silently; only EVM and Solana addresses are
// recognized by the backend.
func (a Account) OptInSupported() bool {
	if a.IsHardware() {
		return false
	}
	return a.IsEVM() || a.IsSolana()
}

// AccountID converts the account to its CAIP-10 id.
func (a Account) AccountID() (caip.AccountID, error) {
	return caip.FromScopes(a.Scopes, a.Address)
}

// SortAccounts returns a copy of accounts in a stable, deterministic order:
// software EVM accounts, then software Solana accounts, then everything
// else, each group ordered by lowercase address.
func SortAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	copy(out, accounts)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := sortRank(out[i]), sortRank(out[j])
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(out[i].Address) < strings.ToLower(out[j].Address)
	})
	return out
}

func sortRank(a Account) int {
	switch {
	case a.IsHardware():
		return 2
	case a.IsEVM():
		return 0
	case a.IsSolana():
		return 1
	default:
		return 2
	}
}

// FindByAddress returns the account whose address matches addr case-insensitively.
func FindByAddress(accounts []Account, addr string) (Account, bool) {
	for _, a := range accounts {
		if strings.EqualFold(a.Address, addr) {
			return a, true
		}
	}
	return Account{}, false
}
