package wallet

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// SaltSize is the Argon2id salt length.
const SaltSize = 32

// Sealed layout: salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
const headerSize = SaltSize + 4 + 4 + 1

// Sealing errors.
var (
	ErrSealedTooShort = errors.New("sealed data too short")
	ErrWrongPassword  = errors.New("wrong password or corrupt keystore")
)

// EncryptionParams holds Argon2id parameters.
type EncryptionParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams returns the Argon2id parameters used for new keystores.
func DefaultParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

type sealedHeader struct {
	salt   []byte
	params EncryptionParams
}

func (h sealedHeader) append(dst []byte) []byte {
	dst = append(dst, h.salt...)
	dst = binary.LittleEndian.AppendUint32(dst, h.params.Memory)
	dst = binary.LittleEndian.AppendUint32(dst, h.params.Iterations)
	return append(dst, h.params.Parallelism)
}

func parseSealedHeader(b []byte) sealedHeader {
	return sealedHeader{
		salt: b[:SaltSize],
		params: EncryptionParams{
			Memory:      binary.LittleEndian.Uint32(b[SaltSize:]),
			Iterations:  binary.LittleEndian.Uint32(b[SaltSize+4:]),
			Parallelism: b[SaltSize+8],
		},
	}
}

// aead derives the key for h and returns the cipher. The derived key is
// zeroed before returning.
func (h sealedHeader) aead(password []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(password, h.salt, h.params.Iterations, h.params.Memory,
		h.params.Parallelism, chacha20poly1305.KeySize)
	defer clear(key)
	return chacha20poly1305.NewX(key)
}

// Seal encrypts data with password using Argon2id + XChaCha20-Poly1305.
func Seal(data, password []byte, params EncryptionParams) ([]byte, error) {
	h := sealedHeader{salt: make([]byte, SaltSize), params: params}
	if _, err := rand.Read(h.salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	aead, err := h.aead(password)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, headerSize+len(nonce)+len(data)+chacha20poly1305.Overhead)
	out = h.append(out)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, nil), nil
}

// Open decrypts data produced by Seal.
func Open(sealed, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	if min := headerSize + nonceSize + chacha20poly1305.Overhead; len(sealed) < min {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrSealedTooShort, len(sealed), min)
	}
	h := parseSealedHeader(sealed)
	aead, err := h.aead(password)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := sealed[headerSize : headerSize+nonceSize]
	plaintext, err := aead.Open(nil, nonce, sealed[headerSize+nonceSize:], nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
