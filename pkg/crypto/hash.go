// Package crypto provides the hashing and signing primitives used to build
// and mine N20 transactions.
package crypto

import (
	"encoding/hex"

	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
	"github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
)

// Sha256 computes a single SHA-256 of data.
func Sha256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// Hash256 computes SHA-256(SHA-256(data)). Transaction IDs and the default
// commitment hash are Hash256 digests.
func Hash256(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Blake3 computes a BLAKE3-256 hash of data.
func Blake3(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = SHA-256(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Sha256(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// ScriptHash returns the indexer lookup key for a locking script: the
// SHA-256 of the script bytes, byte-reversed and hex encoded.
func ScriptHash(script types.Script) string {
	h := Sha256(script.Bytes()).Reverse()
	return hex.EncodeToString(h[:])
}
