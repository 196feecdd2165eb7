package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// Structural limits.
const (
	MaxInputs     = 2500
	MaxOutputs    = 2500
	MaxScriptData = 65536
)

// Validation errors.
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrZeroOutput         = errors.New("output value is zero")
	ErrMissingPubKey      = errors.New("input missing public key")
	ErrMissingSig         = errors.New("input missing signature")
	ErrInvalidSig         = errors.New("invalid signature")
	ErrTooManyInputs      = errors.New("too many inputs")
	ErrTooManyOutputs     = errors.New("too many outputs")
	ErrScriptDataTooLarge = errors.New("script data too large")
	ErrInputNotFound      = errors.New("input not found")
	ErrScriptMismatch     = errors.New("pubkey does not match spent script")
	ErrInsufficientFunds  = errors.New("outputs exceed inputs")
)

// Validate checks transaction structure and basic rules.
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > MaxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), MaxInputs)
	}
	if len(tx.Outputs) > MaxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), MaxOutputs)
	}

	seen := make(map[types.Outpoint]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
		if len(in.PubKey) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingPubKey)
		}
		if len(in.Signature) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingSig)
		}
	}

	var totalOutput uint64
	for i, out := range tx.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if len(out.Script.Data) > MaxScriptData {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrScriptDataTooLarge, len(out.Script.Data), MaxScriptData)
		}
		if totalOutput > math.MaxUint64-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
	}
	return nil
}

// VerifySignatures checks that all input signatures are valid for this transaction.
func (tx *Transaction) VerifySignatures() error {
	hash := tx.Hash()
	for i, in := range tx.Inputs {
		if !crypto.VerifySignature(hash[:], in.Signature, in.PubKey) {
			return fmt.Errorf("input %d: %w", i, ErrInvalidSig)
		}
	}
	return nil
}

// Prevout is a spent output as seen by the spender.
type Prevout struct {
	Value  uint64
	Script types.Script
}

// ValidateSpends checks tx against the outputs it spends: every input must
// be known, owned by its signing key and correctly signed, and inputs must
// cover outputs. Returns the fee.
func (tx *Transaction) ValidateSpends(prev map[types.Outpoint]Prevout) (uint64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	var totalIn uint64
	for i, in := range tx.Inputs {
		p, ok := prev[in.PrevOut]
		if !ok {
			return 0, fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrInputNotFound)
		}
		owner, ok := p.Script.Address()
		if !ok || crypto.AddressFromPubKey(in.PubKey) != owner {
			return 0, fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrScriptMismatch)
		}
		if totalIn > math.MaxUint64-p.Value {
			return 0, fmt.Errorf("input %d: input values overflow", i)
		}
		totalIn += p.Value
	}
	if err := tx.VerifySignatures(); err != nil {
		return 0, err
	}
	totalOut, err := tx.TotalOutputValue()
	if err != nil {
		return 0, err
	}
	if totalOut > totalIn {
		return 0, fmt.Errorf("%w: in %d, out %d", ErrInsufficientFunds, totalIn, totalOut)
	}
	return totalIn - totalOut, nil
}
