package miner

import "github.com/Klingon-tech/n20-pow-minter/internal/wallet"

// DefaultResetInterval is how many search iterations a derived selection
// is reused before it is dropped and derived again.
const DefaultResetInterval = 1000

// selectionCache holds the selection the generator derived most recently.
// It is emptied on every interval-th Tick so inputs spent elsewhere
// mid-search are noticed.
type selectionCache struct {
	interval uint64
	ticks    uint64
	sel      *wallet.Selection
}

func newSelectionCache(interval uint64) *selectionCache {
	if interval == 0 {
		interval = DefaultResetInterval
	}
	return &selectionCache{interval: interval}
}

// Tick counts one iteration and reports whether the cache was reset by it.
// Counting is 1-based: the interval-th, 2*interval-th, ... ticks reset.
func (c *selectionCache) Tick() bool {
	c.ticks++
	if c.ticks%c.interval != 0 {
		return false
	}
	c.sel = nil
	return true
}

func (c *selectionCache) Get() *wallet.Selection { return c.sel }

func (c *selectionCache) Put(sel *wallet.Selection) { c.sel = sel }
