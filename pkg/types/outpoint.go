package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Outpoint references a specific output of a previous transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID.IsZero() && o.Index == 0
}

// String returns "txid:index" in hex.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// ParseOutpoint parses the "txid:index" form produced by String.
func ParseOutpoint(s string) (Outpoint, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Outpoint{}, fmt.Errorf("invalid outpoint %q", s)
	}
	h, err := HexToHash(s[:i])
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint txid: %w", err)
	}
	index, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint index: %w", err)
	}
	return Outpoint{TxID: h, Index: uint32(index)}, nil
}
