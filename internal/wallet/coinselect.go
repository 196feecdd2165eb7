package wallet

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("no UTXOs available")
)

// UTXO is an unspent output owned by the minting key.
type UTXO struct {
	Outpoint types.Outpoint
	Value    uint64
}

// UTXOFromIndexer converts an indexer UTXO row.
func UTXOFromIndexer(u urchain.UTXO) (UTXO, error) {
	txid, err := types.HexToHash(u.TxID)
	if err != nil {
		return UTXO{}, fmt.Errorf("utxo %s:%d: %w", u.TxID, u.OutputIndex, err)
	}
	return UTXO{
		Outpoint: types.Outpoint{TxID: txid, Index: u.OutputIndex},
		Value:    u.Satoshis,
	}, nil
}

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []UTXO
	Total  uint64
	Change uint64 // Total - target
}

// SelectCoins chooses UTXOs covering target. It compares the smallest
// single UTXO that covers target against largest-first accumulation and
// returns whichever leaves less change.
func SelectCoins(utxos []UTXO, target uint64) (*CoinSelection, error) {
	if target == 0 {
		return nil, fmt.Errorf("target must be positive")
	}
	candidates := sortedByValue(utxos)
	if len(candidates) == 0 {
		return nil, ErrNoUTXOs
	}

	var single *CoinSelection
	for _, u := range candidates {
		if u.Value >= target {
			single = &CoinSelection{Inputs: []UTXO{u}, Total: u.Value, Change: u.Value - target}
			break
		}
	}

	var accum *CoinSelection
	var total uint64
	for i := len(candidates) - 1; i >= 0; i-- {
		total += candidates[i].Value
		if total >= target {
			picked := slices.Clone(candidates[i:])
			slices.Reverse(picked)
			accum = &CoinSelection{Inputs: picked, Total: total, Change: total - target}
			break
		}
	}

	switch {
	case single != nil && accum != nil:
		if single.Change <= accum.Change {
			return single, nil
		}
		return accum, nil
	case single != nil:
		return single, nil
	case accum != nil:
		return accum, nil
	default:
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, totalValue(candidates), target)
	}
}

// sortedByValue returns the non-zero UTXOs in ascending value order. Ties
// are broken by outpoint so selection is stable across indexer responses.
func sortedByValue(utxos []UTXO) []UTXO {
	out := make([]UTXO, 0, len(utxos))
	for _, u := range utxos {
		if u.Value > 0 {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b UTXO) int {
		if c := cmp.Compare(a.Value, b.Value); c != 0 {
			return c
		}
		if c := bytes.Compare(a.Outpoint.TxID[:], b.Outpoint.TxID[:]); c != 0 {
			return c
		}
		return cmp.Compare(a.Outpoint.Index, b.Outpoint.Index)
	})
	return out
}

func totalValue(utxos []UTXO) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
