package n20

import (
	"fmt"
	"math/big"

	"github.com/bytedance/sonic"
)

// Payload is the JSON document carried by a note output. Locktime is not
// part of the document; it is the transaction nonce the miner varies.
type Payload struct {
	P        string   `json:"p"`
	Op       string   `json:"op"`
	Tick     string   `json:"tick"`
	Max      *big.Int `json:"max,omitempty"`
	Lim      *big.Int `json:"lim,omitempty"`
	Amt      *big.Int `json:"amt,omitempty"`
	Dec      *uint8   `json:"dec,omitempty"`
	Start    *uint64  `json:"start,omitempty"`
	Bitwork  string   `json:"bitwork,omitempty"`
	Sch      string   `json:"sch,omitempty"`
	Locktime uint64   `json:"-"`
}

// WithNonce returns a copy of p with its locktime set to nonce.
func (p Payload) WithNonce(nonce uint64) Payload {
	p.Locktime = nonce
	return p
}

// Encode returns the canonical JSON encoding of the payload.
func (p Payload) Encode() ([]byte, error) {
	b, err := sonic.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode n20 payload: %w", err)
	}
	return b, nil
}

// DecodePayload parses a payload document.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := sonic.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode n20 payload: %w", err)
	}
	if p.P != Protocol {
		return Payload{}, fmt.Errorf("decode n20 payload: protocol %q", p.P)
	}
	return p, nil
}
