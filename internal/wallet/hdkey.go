package wallet

import (
	"fmt"

	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 derivation path constants.
// Full path: m/44'/0'/account'/0/index
const (
	PurposeBIP44 = bip32.FirstHardenedChild + 44
	CoinTypeN20  = bip32.FirstHardenedChild + 0

	// ChangeExternal is the receiving chain. Minting always signs from it.
	ChangeExternal = 0
)

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath derives a key along a sequence of indices. Hardened indices
// carry bip32.FirstHardenedChild.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k.key
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return &HDKey{key: current}, nil
}

// DeriveMintKey derives the signing key at m/44'/0'/account'/0/index.
func (k *HDKey) DeriveMintKey(account, index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinTypeN20,
		bip32.FirstHardenedChild+account,
		ChangeExternal,
		index,
	)
}

// privateKeyBytes returns the raw 32-byte private key, or nil for a
// public-only key.
func (k *HDKey) privateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 stores private keys as 33 bytes with a leading 0x00.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// Signer returns the private key for signing candidates.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	priv := k.privateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return crypto.PrivateKeyFromBytes(priv)
}

// Address returns the address owned by this key.
func (k *HDKey) Address() types.Address {
	return crypto.AddressFromPubKey(k.PublicKeyBytes())
}
