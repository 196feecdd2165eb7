package miner

import "github.com/Klingon-tech/n20-pow-minter/internal/urchain"

// Result is the outcome of one mint attempt. A rejected broadcast carries
// both the indexer's receipt and the error.
type Result struct {
	Success bool
	Receipt *urchain.BroadcastResult
	Err     error

	Height     uint64
	StartNonce uint64
	Nonce      uint64
	Checks     uint64
}

// Error returns the failure description, or "" on success.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Kind classifies the failure.
func (r Result) Kind() Kind { return Classify(r.Err) }

// TxID returns the broadcast transaction id, or "" on failure.
func (r Result) TxID() string {
	if r.Receipt == nil {
		return ""
	}
	return r.Receipt.TxID
}
