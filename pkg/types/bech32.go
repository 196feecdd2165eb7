package types

import (
	"errors"
	"fmt"
	"strings"
)

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var bech32Generator = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

// Bech32 errors.
var (
	ErrBech32Empty    = errors.New("bech32: empty string")
	ErrBech32Case     = errors.New("bech32: mixed case")
	ErrBech32Checksum = errors.New("bech32: invalid checksum")
	ErrBech32Format   = errors.New("bech32: malformed string")
)

// Bech32Encode encodes hrp and data (8-bit bytes) as a BIP-173 string.
func Bech32Encode(hrp string, data []byte) (string, error) {
	if hrp == "" {
		return "", fmt.Errorf("bech32: empty HRP")
	}
	for i := 0; i < len(hrp); i++ {
		if hrp[i] < 33 || hrp[i] > 126 {
			return "", fmt.Errorf("bech32: invalid HRP character %q", hrp[i])
		}
	}
	hrp = strings.ToLower(hrp)
	groups, err := regroup(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	sum := checksum(hrp, groups)

	var sb strings.Builder
	sb.Grow(len(hrp) + 1 + len(groups) + len(sum))
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, g := range append(groups, sum...) {
		sb.WriteByte(bech32Charset[g])
	}
	return sb.String(), nil
}

// Bech32Decode splits a bech32 string into its HRP and 8-bit payload.
func Bech32Decode(s string) (string, []byte, error) {
	if s == "" {
		return "", nil, ErrBech32Empty
	}
	lower := strings.ToLower(s)
	if lower != s && strings.ToUpper(s) != s {
		return "", nil, ErrBech32Case
	}
	sep := strings.LastIndexByte(lower, '1')
	if sep < 1 || sep+7 > len(lower) {
		return "", nil, ErrBech32Format
	}
	hrp, rest := lower[:sep], lower[sep+1:]

	groups := make([]byte, len(rest))
	for i := 0; i < len(rest); i++ {
		v := strings.IndexByte(bech32Charset, rest[i])
		if v < 0 {
			return "", nil, fmt.Errorf("bech32: invalid character %q", rest[i])
		}
		groups[i] = byte(v)
	}
	if polymod(append(expandHRP(hrp), groups...)) != 1 {
		return "", nil, ErrBech32Checksum
	}
	data, err := regroup(groups[:len(groups)-6], 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, data, nil
}

func polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i, g := range bech32Generator {
			if (top>>uint(i))&1 == 1 {
				chk ^= g
			}
		}
	}
	return chk
}

func expandHRP(hrp string) []byte {
	out := make([]byte, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out[i] = hrp[i] >> 5
		out[len(hrp)+1+i] = hrp[i] & 31
	}
	return out
}

func checksum(hrp string, groups []byte) []byte {
	values := append(expandHRP(hrp), groups...)
	mod := polymod(append(values, 0, 0, 0, 0, 0, 0)) ^ 1
	sum := make([]byte, 6)
	for i := range sum {
		sum[i] = byte(mod>>uint(5*(5-i))) & 31
	}
	return sum
}

// regroup converts a byte slice between bit-group widths.
func regroup(data []byte, from, to uint, pad bool) ([]byte, error) {
	var (
		acc  uint32
		bits uint
		out  []byte
	)
	mask := uint32(1)<<to - 1
	for _, b := range data {
		if uint32(b)>>from != 0 {
			return nil, fmt.Errorf("bech32: value %d exceeds %d bits", b, from)
		}
		acc = acc<<from | uint32(b)
		bits += from
		for bits >= to {
			bits -= to
			out = append(out, byte(acc>>bits&mask))
		}
	}
	switch {
	case pad && bits > 0:
		out = append(out, byte(acc<<(to-bits)&mask))
	case !pad && (bits >= from || acc<<(to-bits)&mask != 0):
		return nil, fmt.Errorf("bech32: non-zero padding")
	}
	return out, nil
}
