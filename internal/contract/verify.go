package contract

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/Klingon-tech/n20-pow-minter/internal/log"
	"github.com/Klingon-tech/n20-pow-minter/pkg/bitwork"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
	"github.com/Klingon-tech/n20-pow-minter/pkg/tx"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// Outcome is the result of an offline verification.
type Outcome struct {
	Success     bool
	Diagnostics []string
}

// String joins the diagnostics.
func (o Outcome) String() string {
	if o.Success {
		return "ok"
	}
	return strings.Join(o.Diagnostics, "; ")
}

// Verifier checks operation records offline. The zero value is ready to use.
type Verifier struct{}

// Verify runs the schema rules for op over records.
func (Verifier) Verify(schema *Schema, records *Records, op Operation) Outcome {
	return Verify(schema, records, op)
}

type checker struct {
	diags []string
}

func (c *checker) failf(format string, args ...any) {
	c.diags = append(c.diags, fmt.Sprintf(format, args...))
}

// Verify checks records against schema for operation op. It never mutates
// its inputs.
func Verify(schema *Schema, records *Records, op Operation) Outcome {
	c := &checker{}
	switch {
	case schema == nil:
		c.failf("no schema")
	case records == nil:
		c.failf("no records")
	default:
		c.verify(schema, records, op)
	}

	out := Outcome{Success: len(c.diags) == 0, Diagnostics: c.diags}
	log.Contract.Debug().
		Str("op", string(op)).
		Bool("success", out.Success).
		Strs("diagnostics", out.Diagnostics).
		Msg("Offline verification")
	return out
}

func (c *checker) verify(schema *Schema, r *Records, op Operation) {
	if r.Constructor.Sch != schema.ID {
		c.failf("schema id %q does not match deployment %q", schema.ID, r.Constructor.Sch)
	}
	rule, ok := schema.Operations[op]
	if !ok {
		c.failf("operation %q not declared by schema %s", op, schema.ID)
		return
	}
	for _, field := range rule.Fields {
		if !r.has(rule.Record, field) {
			c.failf("%s.%s missing", rule.Record, field)
		}
	}

	c.verifyConstructor(&r.Constructor)
	switch rule.Record {
	case RecordMint:
		c.verifyMint(schema, &r.Constructor, &r.Mint)
	case RecordTransfer:
		if !bytes.Equal(r.Transfer.Tick, r.Constructor.Tick) {
			c.failf("transfer tick %q does not match deployment %q", r.Transfer.Tick, r.Constructor.Tick)
		}
	}
}

func (c *checker) verifyConstructor(k *ConstructorRecord) {
	if string(k.P) != n20.Protocol {
		c.failf("constructor protocol %q, want %q", k.P, n20.Protocol)
	}
	if string(k.Op) != n20.OpDeploy {
		c.failf("constructor op %q, want %q", k.Op, n20.OpDeploy)
	}
	if len(k.Tick) == 0 {
		c.failf("constructor tick empty")
	}
	if k.Max == nil || k.Max.Sign() <= 0 {
		c.failf("max supply must be positive")
	}
	if k.Lim == nil || k.Lim.Sign() <= 0 || (k.Max != nil && k.Lim.Cmp(k.Max) > 0) {
		c.failf("mint limit must be positive and at most max")
	}
	if k.Dec > n20.MaxDecimals {
		c.failf("decimals %d exceed %d", k.Dec, n20.MaxDecimals)
	}
}

func (c *checker) verifyMint(schema *Schema, k *ConstructorRecord, m *MintRecord) {
	if !bytes.Equal(m.P, k.P) {
		c.failf("mint protocol %q does not match deployment %q", m.P, k.P)
	}
	if !bytes.Equal(m.Tick, k.Tick) {
		c.failf("mint tick %q does not match deployment %q", m.Tick, k.Tick)
	}
	if string(m.Op) != n20.OpMint {
		c.failf("mint op %q, want %q", m.Op, n20.OpMint)
	}
	if !equalInt(m.Max, k.Max) || !equalInt(m.Lim, k.Lim) || m.Dec != k.Dec ||
		m.Start != k.Start || !bytes.Equal(m.Bitwork, k.Bitwork) || m.Sch != k.Sch {
		c.failf("mint deployment fields differ from constructor")
	}

	if m.Amt == nil || m.Amt.Sign() <= 0 {
		c.failf("mint amount must be positive")
	} else {
		if k.Lim != nil && m.Amt.Cmp(k.Lim) > 0 {
			c.failf("mint amount %s exceeds limit %s", m.Amt, k.Lim)
		}
		total := m.Total
		if total == nil {
			total = new(big.Int)
		}
		if k.Max != nil && new(big.Int).Add(total, m.Amt).Cmp(k.Max) > 0 {
			c.failf("minted total %s + %s exceeds max supply %s", total, m.Amt, k.Max)
		}
	}
	if m.Height < k.Start {
		c.failf("height %d below start %d", m.Height, k.Start)
	}

	if len(m.Tx) == 0 {
		return
	}
	digest := schema.Hasher().Sum(m.Tx)
	if !bitwork.Match(digest, string(k.Bitwork)) {
		c.failf("commitment hash %s does not match bitwork %q", digest, k.Bitwork)
	}
	c.verifyPayload(m)
}

// verifyPayload checks that the attached transaction carries a note
// payload equal to the mint record.
func (c *checker) verifyPayload(m *MintRecord) {
	transaction, err := tx.Deserialize(m.Tx)
	if err != nil {
		c.failf("mint tx: %v", err)
		return
	}
	var payload []byte
	for _, out := range transaction.Outputs {
		if out.Script.Type == types.ScriptTypeNote {
			payload = out.Script.Payload()
			break
		}
	}
	if payload == nil {
		c.failf("mint tx has no note output")
		return
	}
	p, err := n20.DecodePayload(payload)
	if err != nil {
		c.failf("mint tx: %v", err)
		return
	}
	if p.Op != string(m.Op) || p.Tick != string(m.Tick) || !equalInt(p.Amt, m.Amt) {
		c.failf("mint tx payload %s/%s/%v does not match record", p.Op, p.Tick, p.Amt)
	}
}

func equalInt(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
