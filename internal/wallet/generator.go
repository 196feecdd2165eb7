package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/n20-pow-minter/internal/log"
	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
	"github.com/Klingon-tech/n20-pow-minter/pkg/tx"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

const (
	// DustValue is the value of the note output and the smallest change
	// output worth creating.
	DustValue = 546

	// DefaultFeePerKb applies when the indexer reports no average fee.
	DefaultFeePerKb = 1000

	maxSelectRounds = 8
)

// UTXOSource is the slice of the indexer the generator reads.
type UTXOSource interface {
	UTXOs(ctx context.Context, scriptHashes []string, satoshis uint64) ([]urchain.UTXO, error)
	FeePerKb(ctx context.Context) (*urchain.Fees, error)
}

// Selection is everything derived from the indexer for a candidate: who
// receives the note, which outputs are spent and at what fee rate. Reusing
// a selection makes BuildCandidate a pure function of the payload.
type Selection struct {
	Recipient types.Address
	Note      UTXO
	Pay       []UTXO
	FeePerKb  uint64
}

// Inputs returns the spent outputs in input order.
func (s *Selection) Inputs() []UTXO {
	in := make([]UTXO, 0, 1+len(s.Pay))
	in = append(in, s.Note)
	return append(in, s.Pay...)
}

// Total returns the value of all spent outputs.
func (s *Selection) Total() uint64 {
	return totalValue(s.Inputs())
}

// Candidate is a signed transaction produced for one nonce.
type Candidate struct {
	Tx        *tx.Transaction
	Encoding  []byte
	Hex       string
	TxID      types.Hash
	Selection *Selection
}

// Generator builds signed candidate transactions spending the outputs of
// a single key.
type Generator struct {
	key        crypto.Signer
	addr       types.Address
	script     types.Script
	scriptHash string
	recipient  types.Address
	source     UTXOSource
}

// NewGenerator returns a generator signing with key. A zero recipient
// sends the note output back to the key's own address.
func NewGenerator(key crypto.Signer, source UTXOSource, recipient types.Address) *Generator {
	addr := crypto.AddressFromPubKey(key.PublicKey())
	if recipient.IsZero() {
		recipient = addr
	}
	script := types.P2PKHScript(addr)
	return &Generator{
		key:        key,
		addr:       addr,
		script:     script,
		scriptHash: crypto.ScriptHash(script),
		recipient:  recipient,
		source:     source,
	}
}

// Address returns the address that funds candidates.
func (g *Generator) Address() types.Address { return g.addr }

// ScriptHash returns the indexer script hash of the funding address.
func (g *Generator) ScriptHash() string { return g.scriptHash }

// BuildCandidate builds and signs the transaction carrying payload with
// payload.Locktime as its lock time. When sel is nil the selection is
// derived from the indexer, otherwise it is reused as is.
func (g *Generator) BuildCandidate(ctx context.Context, payload n20.Payload, sel *Selection) (*Candidate, error) {
	data, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	if sel == nil {
		sel, err = g.derive(ctx, data)
		if err != nil {
			return nil, err
		}
	}

	b, _, err := g.assemble(sel, data, payload.Locktime)
	if err != nil {
		return nil, err
	}
	if err := b.Sign(g.key); err != nil {
		return nil, err
	}
	t := b.Build()
	if _, err := t.ValidateSpends(g.prevouts(sel)); err != nil {
		return nil, fmt.Errorf("candidate invalid: %w", err)
	}

	enc := t.Serialize()
	return &Candidate{
		Tx:        t,
		Encoding:  enc,
		Hex:       t.Hex(),
		TxID:      t.Hash(),
		Selection: sel,
	}, nil
}

// derive fetches the UTXOs and fee rate and picks inputs for a note
// carrying data. The smallest UTXO backs the note; further inputs are
// added until the fee and dust are covered.
func (g *Generator) derive(ctx context.Context, data []byte) (*Selection, error) {
	rows, err := g.source.UTXOs(ctx, []string{g.scriptHash}, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch utxos: %w", err)
	}
	utxos := make([]UTXO, 0, len(rows))
	for _, r := range rows {
		u, err := UTXOFromIndexer(r)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	utxos = sortedByValue(utxos)
	if len(utxos) == 0 {
		return nil, ErrNoUTXOs
	}

	fees, err := g.source.FeePerKb(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch fee rate: %w", err)
	}
	rate := uint64(DefaultFeePerKb)
	if fees != nil && fees.Avg > 0 {
		rate = fees.Avg
	}

	sel := &Selection{Recipient: g.recipient, Note: utxos[0], FeePerKb: rate}
	rest := utxos[1:]
	for range maxSelectRounds {
		_, short, err := g.assemble(sel, data, 0)
		if err == nil {
			log.Wallet.Debug().
				Int("inputs", 1+len(sel.Pay)).
				Uint64("total", sel.Total()).
				Uint64("fee_per_kb", rate).
				Msg("Derived candidate inputs")
			return sel, nil
		}
		if short == 0 {
			return nil, err
		}
		cs, err := SelectCoins(rest, totalValue(sel.Pay)+short)
		if err != nil {
			if errors.Is(err, ErrNoUTXOs) {
				return nil, fmt.Errorf("%w: need %d more", ErrInsufficientFunds, short)
			}
			return nil, err
		}
		sel.Pay = cs.Inputs
	}
	return nil, fmt.Errorf("%w: selection did not converge", ErrInsufficientFunds)
}

// assemble lays out the unsigned transaction for sel. The change output
// is dropped when it would be dust. On insufficient funds it also returns
// the shortfall.
func (g *Generator) assemble(sel *Selection, data []byte, lockTime uint64) (*tx.Builder, uint64, error) {
	layout := func(change uint64, withChange bool) *tx.Builder {
		b := tx.NewBuilder()
		for _, u := range sel.Inputs() {
			b.AddInput(u.Outpoint)
		}
		b.AddOutput(DustValue, types.NoteScript(sel.Recipient, data))
		if withChange {
			b.AddOutput(change, g.script)
		}
		return b.SetLockTime(lockTime)
	}

	total := sel.Total()
	fee := tx.RequiredFee(layout(0, true).Build(), sel.FeePerKb)
	if need := DustValue + fee; total < need {
		return nil, need - total, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, need)
	}
	change := total - DustValue - fee
	if change < DustValue {
		return layout(0, false), 0, nil
	}
	return layout(change, true), 0, nil
}

func (g *Generator) prevouts(sel *Selection) map[types.Outpoint]tx.Prevout {
	prev := make(map[types.Outpoint]tx.Prevout, 1+len(sel.Pay))
	for _, u := range sel.Inputs() {
		prev[u.Outpoint] = tx.Prevout{Value: u.Value, Script: g.script}
	}
	return prev
}
