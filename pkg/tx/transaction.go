// Package tx defines the transaction format candidates are built in, its
// wire encoding and validation.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// Transaction is a signed transfer of value. LockTime doubles as the
// proof-of-work nonce for N20 mints.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint64   `json:"locktime"`
}

// Input references an output being spent.
type Input struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature []byte         `json:"signature"`
	PubKey    []byte         `json:"pubkey"`
}

// Output creates a new spendable output.
type Output struct {
	Value  uint64       `json:"value"`
	Script types.Script `json:"script"`
}

// ErrMalformed is returned by Deserialize for truncated or trailing data.
var ErrMalformed = errors.New("malformed transaction encoding")

// Hash returns the transaction ID: Hash256 of the signing bytes.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash256(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for signing.
// Format: version(4) | input_count(4) | [prevout(36)]... | output_count(4) |
// [value(8) + script_type(1) + script_data_len(4) + script_data]... | locktime(8)
func (tx *Transaction) SigningBytes() []byte {
	return tx.encode(false)
}

// Serialize returns the full wire encoding including signatures and public
// keys. This is the encoding that is broadcast and hashed for bitwork.
func (tx *Transaction) Serialize() []byte {
	return tx.encode(true)
}

// Hex returns the hex-encoded wire encoding.
func (tx *Transaction) Hex() string {
	return hex.EncodeToString(tx.Serialize())
}

func (tx *Transaction) encode(witness bool) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		if witness {
			buf = appendBytes(buf, in.Signature)
			buf = appendBytes(buf, in.PubKey)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = append(buf, byte(out.Script.Type))
		buf = appendBytes(buf, out.Script.Data)
	}

	return binary.LittleEndian.AppendUint64(buf, tx.LockTime)
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// Deserialize parses the wire encoding produced by Serialize.
func Deserialize(data []byte) (*Transaction, error) {
	r := reader{buf: data}
	tx := &Transaction{Version: r.u32()}

	nIn := r.u32()
	if nIn > MaxInputs {
		return nil, fmt.Errorf("%w: %d inputs", ErrMalformed, nIn)
	}
	for i := uint32(0); i < nIn && r.err == nil; i++ {
		var in Input
		copy(in.PrevOut.TxID[:], r.take(types.HashSize))
		in.PrevOut.Index = r.u32()
		in.Signature = r.bytes()
		in.PubKey = r.bytes()
		tx.Inputs = append(tx.Inputs, in)
	}

	nOut := r.u32()
	if nOut > MaxOutputs {
		return nil, fmt.Errorf("%w: %d outputs", ErrMalformed, nOut)
	}
	for i := uint32(0); i < nOut && r.err == nil; i++ {
		var out Output
		out.Value = r.u64()
		if b := r.take(1); len(b) == 1 {
			out.Script.Type = types.ScriptType(b[0])
		}
		out.Script.Data = r.bytes()
		tx.Outputs = append(tx.Outputs, out)
	}

	tx.LockTime = r.u64()
	if r.err != nil {
		return nil, r.err
	}
	if len(r.buf) != r.off {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(r.buf)-r.off)
	}
	return tx, nil
}

// DecodeHex parses a hex-encoded wire transaction.
func DecodeHex(s string) (*Transaction, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode tx hex: %w", err)
	}
	return Deserialize(b)
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d", ErrMalformed, n, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) bytes() []byte {
	n := r.u32()
	if n > MaxScriptData {
		r.err = fmt.Errorf("%w: field of %d bytes", ErrMalformed, n)
		return nil
	}
	b := r.take(int(n))
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

// TotalOutputValue returns the sum of all output values.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
	}
	return total, nil
}
