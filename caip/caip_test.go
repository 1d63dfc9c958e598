package caip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	evmAddr    = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	solanaAddr = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
)

func TestFromScopesUsesFirstScope(t *testing.T) {
	id, err := FromScopes([]string{"eip155:1", "eip155:137"}, evmAddr)
	require.NoError(t, err)
	assert.Equal(t, AccountID("eip155:1:"+evmAddr), id)
	assert.Equal(t, NamespaceEIP155, id.Namespace())
	assert.Equal(t, evmAddr, id.Address())
}

func TestFromScopesRejectsMissingOrMalformedScope(t *testing.T) {
	_, err := FromScopes(nil, evmAddr)
	require.ErrorIs(t, err, ErrUnsupportedAccount)

	_, err = FromScopes([]string{"eip155"}, evmAddr)
	require.ErrorIs(t, err, ErrUnsupportedAccount)
	require.ErrorIs(t, err, ErrInvalidChainID)
}

func TestParseAccountID(t *testing.T) {
	ns, ref, addr, err := ParseAccountID("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp:" + solanaAddr)
	require.NoError(t, err)
	assert.Equal(t, NamespaceSolana, ns)
	assert.Equal(t, "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp", ref)
	assert.Equal(t, solanaAddr, addr)

	_, _, _, err = ParseAccountID("eip155:1")
	require.ErrorIs(t, err, ErrInvalidAccountID)
}

func TestLookupKeysEVMFallbackOrder(t *testing.T) {
	keys := LookupKeys(AccountID("eip155:1:" + evmAddr))
	require.Len(t, keys, 3)
	assert.Equal(t, AccountID("eip155:0:0x71c7656ec7ab88b098defb751b7401b5f6d8976f"), keys[0])
	assert.Equal(t, AccountID("eip155:0:"+evmAddr), keys[1])
	assert.Equal(t, AccountID("eip155:1:"+evmAddr), keys[2])
}

func TestLookupKeysDeduplicates(t *testing.T) {
	id := AccountID("eip155:0:0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	assert.Equal(t, []AccountID{id}, LookupKeys(id))

	sol := AccountID("solana:mainnet:" + solanaAddr)
	assert.Equal(t, []AccountID{sol}, LookupKeys(sol))
}

func TestAddressClassification(t *testing.T) {
	assert.True(t, IsEVMAddress(evmAddr))
	assert.False(t, IsEVMAddress(solanaAddr))
	assert.True(t, IsSolanaAddress(solanaAddr))
	assert.False(t, IsSolanaAddress(evmAddr))
	assert.False(t, IsSolanaAddress("not-base58-0OIl"))
	assert.False(t, IsSolanaAddress(""))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("eip155:1:0xABCDEF0000000000000000000000000000000001", "eip155:0:0xabcdef0000000000000000000000000000000001"))
	assert.False(t, Equal("eip155:1:0x01", "eip155:1:0x02"))
	assert.False(t, Equal("solana:a:Abc", "solana:a:abc"))
	assert.True(t, Equal("solana:a:Abc", "solana:a:Abc"))
	assert.Equal(t, "1", AccountID("eip155:1:0x01").Reference())
}
