package crypto

import (
	"encoding/hex"
	"fmt"
)

// Commitment hash names accepted by HasherFor.
const (
	HashSHA256d = "sha256d"
	HashBlake3  = "blake3"
)

// CommitmentHasher digests a serialized transaction into the lowercase hex
// string that bitwork targets are matched against.
type CommitmentHasher interface {
	Name() string
	Sum(encoding []byte) string
}

type sha256dHasher struct{}

func (sha256dHasher) Name() string { return HashSHA256d }

func (sha256dHasher) Sum(encoding []byte) string {
	h := Hash256(encoding)
	return hex.EncodeToString(h[:])
}

type blake3Hasher struct{}

func (blake3Hasher) Name() string { return HashBlake3 }

func (blake3Hasher) Sum(encoding []byte) string {
	h := Blake3(encoding)
	return hex.EncodeToString(h[:])
}

// HasherFor returns the commitment hasher registered under name. An empty
// name selects sha256d.
func HasherFor(name string) (CommitmentHasher, error) {
	switch name {
	case "", HashSHA256d:
		return sha256dHasher{}, nil
	case HashBlake3:
		return blake3Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown commitment hash %q", name)
	}
}
