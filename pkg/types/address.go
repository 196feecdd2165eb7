package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressSize is the length of an address in bytes.
const AddressSize = 20

// Address HRP (human-readable part) constants for bech32 encoding.
const (
	MainnetHRP = "n20"
	TestnetHRP = "tn20"
)

// HRPForNetwork returns the address HRP used on the named network.
func HRPForNetwork(network string) string {
	if network == "testnet" {
		return TestnetHRP
	}
	return MainnetHRP
}

// Address represents a 160-bit address (public key hash).
type Address [AddressSize]byte

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Encode returns the bech32 form of the address under the given HRP.
func (a Address) Encode(hrp string) (string, error) {
	return Bech32Encode(hrp, a[:])
}

// String returns the mainnet bech32 form. Use Encode for other networks.
func (a Address) String() string {
	s, err := a.Encode(MainnetHRP)
	if err != nil {
		return a.Hex()
	}
	return s
}

// Hex returns the raw hex-encoded address without prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// ParseAddress parses a bech32 address ("n201...", "tn201...") or a raw
// 40-character hex string. The HRP of a bech32 address is returned so callers
// can reject addresses from the wrong network.
func ParseAddress(s string) (Address, string, error) {
	if s == "" {
		return Address{}, "", fmt.Errorf("empty address")
	}
	if isHex40(s) {
		a, err := HexToAddress(s)
		return a, "", err
	}
	if !strings.Contains(s, "1") {
		return Address{}, "", fmt.Errorf("invalid address %q", s)
	}
	hrp, data, err := Bech32Decode(s)
	if err != nil {
		return Address{}, "", fmt.Errorf("invalid bech32 address: %w", err)
	}
	if len(data) != AddressSize {
		return Address{}, "", fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(data))
	}
	var a Address
	copy(a[:], data)
	return a, hrp, nil
}

// HexToAddress converts a raw hex string to an Address.
func HexToAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

func isHex40(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
