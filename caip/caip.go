package caip

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

const (
	// NamespaceEIP155 is the CAIP-2 namespace for EVM chains.
	NamespaceEIP155 = "eip155"
	// NamespaceSolana is the CAIP-2 namespace for Solana clusters.
	NamespaceSolana = "solana"

	solanaPublicKeySize = 32
)

var (
	// ErrUnsupportedAccount is returned when an account cannot be expressed as a CAIP-10 id.
	ErrUnsupportedAccount = errors.New("unsupported account")
	// ErrInvalidChainID is returned for scopes that are not namespace:reference pairs.
	ErrInvalidChainID = errors.New("invalid caip-2 chain id")
	// ErrInvalidAccountID is returned for ids that are not namespace:reference:address triples.
	ErrInvalidAccountID = errors.New("invalid caip-10 account id")
)

// AccountID is a CAIP-10 account identifier, namespace:reference:address.
type AccountID string

// ChainID is a CAIP-2 chain identifier, namespace:reference.
type ChainID string

// ParseChainID splits a CAIP-2 chain id into namespace and reference.
func ParseChainID(scope string) (namespace, reference string, err error) {
	namespace, reference, ok := strings.Cut(strings.TrimSpace(scope), ":")
	if !ok || namespace == "" || reference == "" || strings.Contains(reference, ":") {
		return "", "", ErrInvalidChainID
	}
	return namespace, reference, nil
}

// NewAccountID builds the CAIP-10 id for address on the chain named by scope.
func NewAccountID(scope, address string) (AccountID, error) {
	namespace, reference, err := ParseChainID(scope)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(address) == "" {
		return "", ErrUnsupportedAccount
	}
	return AccountID(namespace + ":" + reference + ":" + address), nil
}

// FromScopes converts an account to its CAIP-10 id using its first scope.
func FromScopes(scopes []string, address string) (AccountID, error) {
	if len(scopes) == 0 {
		return "", ErrUnsupportedAccount
	}
	id, err := NewAccountID(scopes[0], address)
	if err != nil {
		return "", errors.Join(ErrUnsupportedAccount, err)
	}
	return id, nil
}

// ParseAccountID splits a CAIP-10 id into its three parts.
func ParseAccountID(id AccountID) (namespace, reference, address string, err error) {
	parts := strings.SplitN(string(id), ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", ErrInvalidAccountID
	}
	return parts[0], parts[1], parts[2], nil
}

// Namespace returns the namespace part, or "" for a malformed id.
func (a AccountID) Namespace() string {
	ns, _, _, err := ParseAccountID(a)
	if err != nil {
		return ""
	}
	return ns
}

// Address returns the address part, or "" for a malformed id.
func (a AccountID) Address() string {
	_, _, addr, err := ParseAccountID(a)
	if err != nil {
		return ""
	}
	return addr
}

// Reference returns the chain reference part, or "" for a malformed id.
func (a AccountID) Reference() string {
	_, ref, _, err := ParseAccountID(a)
	if err != nil {
		return ""
	}
	return ref
}

// String implements fmt.Stringer.
func (a AccountID) String() string { return string(a) }

// LookupKeys lists the keys under which state for id may have been stored.
//
// EVM accounts are keyed chain-agnostically as eip155:0:<address>; the
// lowercase form is preferred, then the checksummed form, then id itself.
func LookupKeys(id AccountID) []AccountID {
	ns, _, addr, err := ParseAccountID(id)
	if err != nil || ns != NamespaceEIP155 {
		return []AccountID{id}
	}
	keys := make([]AccountID, 0, 3)
	add := func(k AccountID) {
		for _, existing := range keys {
			if existing == k {
				return
			}
		}
		keys = append(keys, k)
	}
	add(AccountID(NamespaceEIP155 + ":0:" + strings.ToLower(addr)))
	add(AccountID(NamespaceEIP155 + ":0:" + addr))
	add(id)
	return keys
}

// Equal reports whether a and b name the same account. EVM ids match across
// chain references and address case; other namespaces compare exactly.
func Equal(a, b AccountID) bool {
	if a == b {
		return true
	}
	if a.Namespace() != NamespaceEIP155 || b.Namespace() != NamespaceEIP155 {
		return false
	}
	return strings.EqualFold(a.Address(), b.Address())
}

// IsEVMAddress reports whether addr is a 20-byte hex address.
func IsEVMAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// IsSolanaAddress reports whether addr is a base58 encoded 32-byte public key.
func IsSolanaAddress(addr string) bool {
	if addr == "" || strings.HasPrefix(addr, "0x") {
		return false
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(raw) == solanaPublicKeySize
}
