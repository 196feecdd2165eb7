package contract

import (
	"math/big"

	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
)

// ConstructorRecord holds the deployment fields. Strings are stored as
// their canonical UTF-8 bytes.
type ConstructorRecord struct {
	P       []byte
	Op      []byte
	Tick    []byte
	Max     *big.Int
	Lim     *big.Int
	Dec     uint8
	Start   uint64
	Bitwork []byte
	Sch     string
}

// MintRecord holds the deployment fields overlaid with one mint request,
// the height it is mined at and the running minted total.
type MintRecord struct {
	P       []byte
	Op      []byte
	Tick    []byte
	Amt     *big.Int
	Max     *big.Int
	Lim     *big.Int
	Dec     uint8
	Start   uint64
	Bitwork []byte
	Sch     string
	Height  uint64
	Total   *big.Int
	Tx      []byte
}

// TransferRecord holds the fields a transfer is checked against.
type TransferRecord struct {
	Tick []byte
}

// Records is the full set of operation records for one mint attempt.
type Records struct {
	Constructor ConstructorRecord
	Mint        MintRecord
	Transfer    TransferRecord
}

// NewRecords builds the records for minting req against d at height. The
// minted total starts at zero and no transaction is attached.
func NewRecords(d *n20.Descriptor, req *n20.MintRequest, height uint64) *Records {
	return &Records{
		Constructor: ConstructorRecord{
			P:       []byte(n20.Protocol),
			Op:      []byte(n20.OpDeploy),
			Tick:    []byte(d.Ticker()),
			Max:     d.Max(),
			Lim:     d.Lim(),
			Dec:     d.Decimals(),
			Start:   d.Start(),
			Bitwork: d.Bitwork().Bytes(),
			Sch:     d.Schema(),
		},
		Mint: MintRecord{
			P:       []byte(n20.Protocol),
			Op:      []byte(n20.OpMint),
			Tick:    []byte(req.Ticker()),
			Amt:     req.Amount(),
			Max:     d.Max(),
			Lim:     d.Lim(),
			Dec:     d.Decimals(),
			Start:   d.Start(),
			Bitwork: d.Bitwork().Bytes(),
			Sch:     d.Schema(),
			Height:  height,
			Total:   new(big.Int),
		},
		Transfer: TransferRecord{
			Tick: []byte(d.Ticker()),
		},
	}
}

// AttachTx sets the mined transaction encoding on the mint record.
func (r *Records) AttachTx(encoding []byte) {
	r.Mint.Tx = append([]byte(nil), encoding...)
}

// has reports whether the named field of record is populated. Fixed-width
// integers are always present.
func (r *Records) has(record, field string) bool {
	switch record {
	case RecordConstructor:
		c := &r.Constructor
		switch field {
		case "p":
			return c.P != nil
		case "op":
			return c.Op != nil
		case "tick":
			return len(c.Tick) > 0
		case "max":
			return c.Max != nil
		case "lim":
			return c.Lim != nil
		case "dec", "start":
			return true
		case "bitwork":
			return c.Bitwork != nil
		case "sch":
			return c.Sch != ""
		}
	case RecordMint:
		m := &r.Mint
		switch field {
		case "p":
			return m.P != nil
		case "op":
			return m.Op != nil
		case "tick":
			return len(m.Tick) > 0
		case "amt":
			return m.Amt != nil
		case "max":
			return m.Max != nil
		case "lim":
			return m.Lim != nil
		case "dec", "start", "height":
			return true
		case "bitwork":
			return m.Bitwork != nil
		case "sch":
			return m.Sch != ""
		case "total":
			return m.Total != nil
		case "tx":
			return len(m.Tx) > 0
		}
	case RecordTransfer:
		if field == "tick" {
			return len(r.Transfer.Tick) > 0
		}
	}
	return false
}
