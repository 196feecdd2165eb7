package miner

import (
	"context"

	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
)

// RawBroadcaster submits a hex-encoded transaction.
type RawBroadcaster interface {
	Broadcast(ctx context.Context, rawHex string) (*urchain.BroadcastResult, error)
}

// IndexerBroadcaster adapts an indexer client to Broadcaster.
type IndexerBroadcaster struct {
	raw RawBroadcaster
}

// NewIndexerBroadcaster wraps raw, typically an *urchain.Client.
func NewIndexerBroadcaster(raw RawBroadcaster) *IndexerBroadcaster {
	return &IndexerBroadcaster{raw: raw}
}

// Broadcast submits the candidate's hex encoding.
func (b *IndexerBroadcaster) Broadcast(ctx context.Context, c *wallet.Candidate) (*urchain.BroadcastResult, error) {
	return b.raw.Broadcast(ctx, c.Hex)
}
