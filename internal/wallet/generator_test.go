package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
	"github.com/Klingon-tech/n20-pow-minter/pkg/tx"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

type fakeSource struct {
	utxos   []urchain.UTXO
	fees    *urchain.Fees
	err     error
	calls   int
	queried []string
}

func (f *fakeSource) UTXOs(_ context.Context, scriptHashes []string, _ uint64) ([]urchain.UTXO, error) {
	f.calls++
	f.queried = scriptHashes
	if f.err != nil {
		return nil, f.err
	}
	return f.utxos, nil
}

func (f *fakeSource) FeePerKb(context.Context) (*urchain.Fees, error) {
	return f.fees, nil
}

func testKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.PrivateKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes: %v", err)
	}
	return key
}

func utxoRows(values ...uint64) []urchain.UTXO {
	rows := make([]urchain.UTXO, len(values))
	for i, v := range values {
		h := types.Hash{byte(i + 1)}
		rows[i] = urchain.UTXO{TxID: h.String(), OutputIndex: uint32(i), Satoshis: v}
	}
	return rows
}

func mintPayload(t *testing.T, nonce uint64) n20.Payload {
	t.Helper()
	req, err := n20.NewMintRequest("NOTE", big.NewInt(15600000000))
	if err != nil {
		t.Fatalf("NewMintRequest: %v", err)
	}
	return req.MintPayload().WithNonce(nonce)
}

func TestBuildCandidate_Layout(t *testing.T) {
	src := &fakeSource{utxos: utxoRows(100000), fees: &urchain.Fees{Avg: 1000}}
	key := testKey(t)
	g := NewGenerator(key, src, types.Address{})

	c, err := g.BuildCandidate(context.Background(), mintPayload(t, 42), nil)
	if err != nil {
		t.Fatalf("BuildCandidate: %v", err)
	}
	if len(src.queried) != 1 || src.queried[0] != g.ScriptHash() {
		t.Errorf("queried %v, want [%s]", src.queried, g.ScriptHash())
	}
	if c.Tx.LockTime != 42 {
		t.Errorf("locktime = %d, want 42", c.Tx.LockTime)
	}
	if len(c.Tx.Inputs) != 1 || len(c.Tx.Outputs) != 2 {
		t.Fatalf("layout = %d in / %d out, want 1/2", len(c.Tx.Inputs), len(c.Tx.Outputs))
	}

	note := c.Tx.Outputs[0]
	if note.Value != DustValue || note.Script.Type != types.ScriptTypeNote {
		t.Errorf("note output = %d %s", note.Value, note.Script.Type)
	}
	if owner, _ := note.Script.Address(); owner != key.Address() {
		t.Errorf("note pays %s, want own address", owner.Hex())
	}
	p, err := n20.DecodePayload(note.Script.Payload())
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.Op != n20.OpMint || p.Tick != "NOTE" || p.Amt.Cmp(big.NewInt(15600000000)) != 0 {
		t.Errorf("payload = %+v", p)
	}

	change := c.Tx.Outputs[1]
	if change.Script.Type != types.ScriptTypeP2PKH {
		t.Errorf("change script = %s", change.Script.Type)
	}
	fee := 100000 - DustValue - change.Value
	if want := tx.FeeForSize(len(c.Encoding), 1000); fee != want {
		t.Errorf("fee = %d, want %d", fee, want)
	}

	if c.TxID != c.Tx.Hash() {
		t.Error("txid should be the transaction hash")
	}
	if c.Hex != hex.EncodeToString(c.Encoding) {
		t.Error("hex should encode the serialized bytes")
	}
	if _, err := tx.Deserialize(c.Encoding); err != nil {
		t.Errorf("encoding should round trip: %v", err)
	}
}

func TestBuildCandidate_ReusesSelection(t *testing.T) {
	src := &fakeSource{utxos: utxoRows(50000, 80000), fees: &urchain.Fees{Avg: 2000}}
	g := NewGenerator(testKey(t), src, types.Address{})
	ctx := context.Background()

	first, err := g.BuildCandidate(ctx, mintPayload(t, 7), nil)
	if err != nil {
		t.Fatalf("BuildCandidate: %v", err)
	}
	next, err := g.BuildCandidate(ctx, mintPayload(t, 8), first.Selection)
	if err != nil {
		t.Fatalf("BuildCandidate cached: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("indexer calls = %d, want 1", src.calls)
	}
	if next.Selection != first.Selection {
		t.Error("cached selection should be carried on the candidate")
	}
	if next.TxID == first.TxID {
		t.Error("different nonces should give different txids")
	}

	again, err := g.BuildCandidate(ctx, mintPayload(t, 7), first.Selection)
	if err != nil {
		t.Fatalf("BuildCandidate again: %v", err)
	}
	if !bytes.Equal(again.Encoding, first.Encoding) {
		t.Error("same payload and selection should give identical encodings")
	}
}

func TestBuildCandidate_DropsDustChange(t *testing.T) {
	src := &fakeSource{utxos: utxoRows(1000), fees: &urchain.Fees{Avg: 1000}}
	g := NewGenerator(testKey(t), src, types.Address{})
	c, err := g.BuildCandidate(context.Background(), mintPayload(t, 1), nil)
	if err != nil {
		t.Fatalf("BuildCandidate: %v", err)
	}
	if len(c.Tx.Outputs) != 1 {
		t.Errorf("outputs = %d, want 1 (change below dust)", len(c.Tx.Outputs))
	}
}

func TestBuildCandidate_AddsPayInputs(t *testing.T) {
	src := &fakeSource{utxos: utxoRows(600, 400, 5000), fees: &urchain.Fees{Avg: 1000}}
	g := NewGenerator(testKey(t), src, types.Address{})
	c, err := g.BuildCandidate(context.Background(), mintPayload(t, 1), nil)
	if err != nil {
		t.Fatalf("BuildCandidate: %v", err)
	}
	sel := c.Selection
	if sel.Note.Value != 400 {
		t.Errorf("note input = %d, want smallest (400)", sel.Note.Value)
	}
	if len(sel.Pay) != 1 || sel.Pay[0].Value != 600 {
		t.Errorf("pay inputs = %+v, want the 600 output", sel.Pay)
	}
	if c.Tx.Inputs[0].PrevOut != sel.Note.Outpoint {
		t.Error("input 0 should spend the note reference")
	}
}

func TestBuildCandidate_InsufficientFunds(t *testing.T) {
	src := &fakeSource{utxos: utxoRows(700), fees: &urchain.Fees{Avg: 1000}}
	g := NewGenerator(testKey(t), src, types.Address{})
	if _, err := g.BuildCandidate(context.Background(), mintPayload(t, 1), nil); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("got %v, want ErrInsufficientFunds", err)
	}

	src.utxos = nil
	if _, err := g.BuildCandidate(context.Background(), mintPayload(t, 1), nil); !errors.Is(err, ErrNoUTXOs) {
		t.Errorf("got %v, want ErrNoUTXOs", err)
	}
}

func TestBuildCandidate_SourceError(t *testing.T) {
	boom := errors.New("indexer down")
	src := &fakeSource{err: boom}
	g := NewGenerator(testKey(t), src, types.Address{})
	if _, err := g.BuildCandidate(context.Background(), mintPayload(t, 1), nil); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped source error", err)
	}
}

func TestBuildCandidate_DefaultsAndRecipient(t *testing.T) {
	recipient := types.Address{0xaa, 0xbb}
	src := &fakeSource{utxos: utxoRows(100000), fees: &urchain.Fees{}}
	g := NewGenerator(testKey(t), src, recipient)
	c, err := g.BuildCandidate(context.Background(), mintPayload(t, 1), nil)
	if err != nil {
		t.Fatalf("BuildCandidate: %v", err)
	}
	if c.Selection.FeePerKb != DefaultFeePerKb {
		t.Errorf("fee rate = %d, want default %d", c.Selection.FeePerKb, DefaultFeePerKb)
	}
	if owner, _ := c.Tx.Outputs[0].Script.Address(); owner != recipient {
		t.Errorf("note pays %s, want configured recipient", owner.Hex())
	}
	if change, _ := c.Tx.Outputs[1].Script.Address(); change != g.Address() {
		t.Error("change should return to the funding address")
	}
}
