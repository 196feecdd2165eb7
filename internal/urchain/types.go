package urchain

import (
	"fmt"
	"math/big"
	"strings"
)

// Amount is an arbitrary-precision integer that decodes from either a JSON
// number or a decimal string.
type Amount struct {
	v *big.Int
}

// NewAmount wraps v.
func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(v)}
}

// Int returns a copy of the value. A zero Amount yields 0.
func (a Amount) Int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) String() string { return a.Int().String() }

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Int().String()), nil
}

// UnmarshalJSON accepts 123, "123" and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		a.v = nil
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid amount %s", b)
	}
	a.v = v
	return nil
}

// BlockHeader is the indexer's current best header.
type BlockHeader struct {
	Height    uint64 `json:"height"`
	Hash      string `json:"hash,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Balance is a confirmed/unconfirmed pair for coins or a token.
type Balance struct {
	Confirmed   Amount `json:"confirmed"`
	Unconfirmed Amount `json:"unconfirmed"`
}

// Total returns confirmed + unconfirmed.
func (b *Balance) Total() *big.Int {
	return new(big.Int).Add(b.Confirmed.Int(), b.Unconfirmed.Int())
}

// Fees are the indexer's fee estimates in base units per 1000 bytes.
type Fees struct {
	Slow uint64 `json:"slowFee"`
	Avg  uint64 `json:"avgFee"`
	Fast uint64 `json:"fastFee"`
}

// Token is one entry of a script's token list.
type Token struct {
	Tick        string `json:"tick"`
	Confirmed   Amount `json:"confirmed"`
	Unconfirmed Amount `json:"unconfirmed"`
	Dec         uint8  `json:"dec"`
}

// UTXO is an unspent output owned by a script hash.
type UTXO struct {
	TxID        string `json:"txId"`
	OutputIndex uint32 `json:"outputIndex"`
	Satoshis    uint64 `json:"satoshis"`
	ScriptHash  string `json:"scriptHash,omitempty"`
	Height      int64  `json:"height,omitempty"`
}

// TxInfo is a confirmed or mempool transaction.
type TxInfo struct {
	TxID         string `json:"txId"`
	Height       int64  `json:"height"`
	TxHex        string `json:"txHex"`
	Address      string `json:"address"`
	Time         int64  `json:"time"`
	BlockHash    string `json:"blockHash"`
	BlockTime    int64  `json:"blockTime"`
	IndexInBlock int    `json:"indexInBlock"`
}

// TXO is a transaction output, spent or not.
type TXO struct {
	TxID        string `json:"txId"`
	OutputIndex uint32 `json:"outputIndex"`
	Satoshis    uint64 `json:"satoshis"`
	Address     string `json:"address,omitempty"`
	Type        string `json:"type,omitempty"`
	Spent       bool   `json:"spent,omitempty"`
	Height      int64  `json:"height,omitempty"`
}

// Message is the acknowledgement returned by refresh and reset. Code is a
// string or a number depending on the indexer version.
type Message struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// TokenInfo describes a deployed N20 token.
type TokenInfo struct {
	Tick     string `json:"tick"`
	Max      Amount `json:"max"`
	Lim      Amount `json:"lim"`
	Dec      uint8  `json:"dec"`
	Total    Amount `json:"total"`
	Start    uint64 `json:"start,omitempty"`
	Bitwork  string `json:"bitwork,omitempty"`
	Sch      string `json:"sch,omitempty"`
	TxID     string `json:"txId,omitempty"`
	Holders  int64  `json:"holders,omitempty"`
	Deployer string `json:"deployer,omitempty"`
}

// BroadcastResult is the indexer's answer to a broadcast.
type BroadcastResult struct {
	Success bool   `json:"success"`
	TxID    string `json:"txId,omitempty"`
	Error   any    `json:"error,omitempty"`
}
