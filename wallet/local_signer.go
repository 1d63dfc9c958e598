package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Default scopes assigned to accounts created by LocalSigner.
const (
	ScopeEVM    = "eip155:0"
	ScopeSolana = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
)

// ErrInvalidSignature is returned by VerifyMessage when a signature does not match the address.
var ErrInvalidSignature = errors.New("invalid signature")

// LocalSigner holds private keys in memory and signs rewards messages with
// them. It backs the development twin and tests; production hosts plug in
// their keyring through Signer.
type LocalSigner struct {
	mu     sync.RWMutex
	evm    map[string]*ecdsa.PrivateKey
	solana map[string]ed25519.PrivateKey
	locked atomic.Bool
}

// NewLocalSigner returns an empty, unlocked signer.
func NewLocalSigner() *LocalSigner {
	return &LocalSigner{
		evm:    make(map[string]*ecdsa.PrivateKey),
		solana: make(map[string]ed25519.PrivateKey),
	}
}

// AddEVMKey registers key and returns the account it controls.
func (s *LocalSigner) AddEVMKey(key *ecdsa.PrivateKey) Account {
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()
	s.mu.Lock()
	s.evm[strings.ToLower(addr)] = key
	s.mu.Unlock()
	return Account{ID: uuid.NewString(), Address: addr, Scopes: []string{ScopeEVM}, Keyring: KeyringHD}
}

// AddSolanaKey registers key and returns the account it controls.
func (s *LocalSigner) AddSolanaKey(key ed25519.PrivateKey) Account {
	addr := base58.Encode(key.Public().(ed25519.PublicKey))
	s.mu.Lock()
	s.solana[addr] = key
	s.mu.Unlock()
	return Account{ID: uuid.NewString(), Address: addr, Scopes: []string{ScopeSolana}, Keyring: KeyringSnap}
}

// NewEVMAccount generates and registers a fresh secp256k1 key.
func (s *LocalSigner) NewEVMAccount() (Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, fmt.Errorf("generate evm key: %w", err)
	}
	return s.AddEVMKey(key), nil
}

// NewSolanaAccount generates and registers a fresh ed25519 key.
func (s *LocalSigner) NewSolanaAccount() (Account, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Account{}, fmt.Errorf("generate solana key: %w", err)
	}
	return s.AddSolanaKey(key), nil
}

// Lock makes every subsequent SignMessage call fail with ErrLocked.
func (s *LocalSigner) Lock() { s.locked.Store(true) }

// Unlock reverses Lock.
func (s *LocalSigner) Unlock() { s.locked.Store(false) }

// SignMessage implements Signer.
func (s *LocalSigner) SignMessage(ctx context.Context, account Account, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.locked.Load() {
		return "", ErrLocked
	}

	switch {
	case account.IsEVM():
		s.mu.RLock()
		key, ok := s.evm[strings.ToLower(account.Address)]
		s.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("no key for account %s", account.Address)
		}
		sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
		if err != nil {
			return "", fmt.Errorf("sign evm message: %w", err)
		}
		sig[crypto.RecoveryIDOffset] += 27
		return hexutil.Encode(sig), nil
	case account.IsSolana():
		s.mu.RLock()
		key, ok := s.solana[account.Address]
		s.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("no key for account %s", account.Address)
		}
		return hexutil.Encode(ed25519.Sign(key, []byte(message))), nil
	default:
		return "", ErrUnsupportedSigningAccount
	}
}

// VerifyMessage checks that signature was produced over message by address.
func VerifyMessage(address, message, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch {
	case caip.IsEVMAddress(address):
		if len(sig) != crypto.SignatureLength {
			return ErrInvalidSignature
		}
		if sig[crypto.RecoveryIDOffset] >= 27 {
			sig[crypto.RecoveryIDOffset] -= 27
		}
		pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if !strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), address) {
			return ErrInvalidSignature
		}
		return nil
	case caip.IsSolanaAddress(address):
		pub, err := base58.Decode(address)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return ErrInvalidSignature
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
			return ErrInvalidSignature
		}
		return nil
	default:
		return ErrUnsupportedSigningAccount
	}
}
