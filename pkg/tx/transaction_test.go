package tx

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

func testKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.PrivateKeyFromBytes(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes: %v", err)
	}
	return key
}

func buildSigned(t *testing.T, key *crypto.PrivateKey, locktime uint64) *Transaction {
	t.Helper()
	addr := key.Address()
	b := NewBuilder().
		AddInput(types.Outpoint{TxID: types.Hash{0x01}, Index: 0}).
		AddInput(types.Outpoint{TxID: types.Hash{0x02}, Index: 3}).
		AddOutput(546, types.NoteScript(addr, []byte(`{"p":"n20","op":"mint"}`))).
		AddOutput(9000, types.P2PKHScript(addr)).
		SetLockTime(locktime)
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return b.Build()
}

func TestTransaction_Hash_IgnoresSignature(t *testing.T) {
	tx := &Transaction{
		Version: 1,
		Inputs:  []Input{{PrevOut: types.Outpoint{TxID: types.Hash{0x01}}}},
		Outputs: []Output{{Value: 1000, Script: types.P2PKHScript(types.Address{0x01})}},
	}
	h1 := tx.Hash()
	raw1 := tx.Serialize()

	tx.Inputs[0].Signature = []byte("some signature")
	tx.Inputs[0].PubKey = []byte("some key")

	if tx.Hash() != h1 {
		t.Error("Hash() should not depend on signatures")
	}
	if bytes.Equal(tx.Serialize(), raw1) {
		t.Error("Serialize() should include signatures")
	}
}

func TestTransaction_LockTimeChangesEncoding(t *testing.T) {
	key := testKey(t)
	a := buildSigned(t, key, 100)
	b := buildSigned(t, key, 101)
	if a.Hash() == b.Hash() {
		t.Error("locktime should change the txid")
	}
	if a.Hex() == b.Hex() {
		t.Error("locktime should change the encoding")
	}
	again := buildSigned(t, key, 100)
	if a.Hex() != again.Hex() {
		t.Error("encoding should be deterministic for equal inputs")
	}
}

func TestDeserialize_RoundTrip(t *testing.T) {
	orig := buildSigned(t, testKey(t), 777)
	got, err := DecodeHex(orig.Hex())
	if err != nil {
		t.Fatalf("DecodeHex: %v", err)
	}
	if got.Hex() != orig.Hex() {
		t.Error("re-encoded transaction differs")
	}
	if got.LockTime != 777 || len(got.Inputs) != 2 || len(got.Outputs) != 2 {
		t.Errorf("decoded %+v", got)
	}
	if string(got.Outputs[0].Script.Payload()) != `{"p":"n20","op":"mint"}` {
		t.Errorf("payload = %q", got.Outputs[0].Script.Payload())
	}
}

func TestDeserialize_Malformed(t *testing.T) {
	raw := buildSigned(t, testKey(t), 1).Serialize()
	tests := map[string][]byte{
		"empty":     nil,
		"truncated": raw[:len(raw)-1],
		"trailing":  append(append([]byte(nil), raw...), 0x00),
	}
	for name, data := range tests {
		if _, err := Deserialize(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
	if _, err := DecodeHex("zz"); err == nil {
		t.Error("expected hex error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Transaction { return buildSigned(t, testKey(t), 0) }
	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"no inputs", func(tx *Transaction) { tx.Inputs = nil }, ErrNoInputs},
		{"no outputs", func(tx *Transaction) { tx.Outputs = nil }, ErrNoOutputs},
		{"duplicate input", func(tx *Transaction) { tx.Inputs[1].PrevOut = tx.Inputs[0].PrevOut }, ErrDuplicateInput},
		{"missing pubkey", func(tx *Transaction) { tx.Inputs[0].PubKey = nil }, ErrMissingPubKey},
		{"missing sig", func(tx *Transaction) { tx.Inputs[0].Signature = nil }, ErrMissingSig},
		{"zero output", func(tx *Transaction) { tx.Outputs[1].Value = 0 }, ErrZeroOutput},
		{"big script", func(tx *Transaction) { tx.Outputs[0].Script.Data = make([]byte, MaxScriptData+1) }, ErrScriptDataTooLarge},
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid tx: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid()
			tt.mutate(tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateSpends(t *testing.T) {
	key := testKey(t)
	tx := buildSigned(t, key, 5)
	own := types.P2PKHScript(key.Address())
	prev := map[types.Outpoint]Prevout{
		tx.Inputs[0].PrevOut: {Value: 546, Script: own},
		tx.Inputs[1].PrevOut: {Value: 10000, Script: own},
	}

	fee, err := tx.ValidateSpends(prev)
	if err != nil {
		t.Fatalf("ValidateSpends: %v", err)
	}
	if fee != 546+10000-546-9000 {
		t.Errorf("fee = %d", fee)
	}

	foreign := map[types.Outpoint]Prevout{
		tx.Inputs[0].PrevOut: {Value: 546, Script: types.P2PKHScript(types.Address{0xee})},
		tx.Inputs[1].PrevOut: {Value: 10000, Script: own},
	}
	if _, err := tx.ValidateSpends(foreign); !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("err = %v, want ErrScriptMismatch", err)
	}

	delete(prev, tx.Inputs[1].PrevOut)
	if _, err := tx.ValidateSpends(prev); !errors.Is(err, ErrInputNotFound) {
		t.Errorf("err = %v, want ErrInputNotFound", err)
	}

	poor := map[types.Outpoint]Prevout{
		tx.Inputs[0].PrevOut: {Value: 1, Script: own},
		tx.Inputs[1].PrevOut: {Value: 1, Script: own},
	}
	if _, err := tx.ValidateSpends(poor); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}

	tx.LockTime++
	rich := map[types.Outpoint]Prevout{
		tx.Inputs[0].PrevOut: {Value: 546, Script: own},
		tx.Inputs[1].PrevOut: {Value: 10000, Script: own},
	}
	if _, err := tx.ValidateSpends(rich); !errors.Is(err, ErrInvalidSig) {
		t.Errorf("err = %v, want ErrInvalidSig after tampering", err)
	}
}

func TestFee(t *testing.T) {
	tx := buildSigned(t, testKey(t), 0)
	if got := EstimateSize(tx); got != len(tx.Serialize()) {
		t.Errorf("EstimateSize = %d, want %d", got, len(tx.Serialize()))
	}
	if FeeForSize(1000, 2000) != 2000 {
		t.Error("FeeForSize(1000, 2000) != 2000")
	}
	if FeeForSize(1001, 1000) != 1001 {
		t.Error("FeeForSize should scale per byte")
	}
	if FeeForSize(1, 1) != 1 {
		t.Error("FeeForSize should round up")
	}
	if RequiredFee(tx, 0) != 0 {
		t.Error("zero rate should give zero fee")
	}
}
