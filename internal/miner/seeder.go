package miner

import "math/rand/v2"

// Seeder picks the nonce a search starts from.
type Seeder interface {
	// Seed returns a value in [0, limit).
	Seed(limit uint64) uint64
}

// RandomSeeder draws start nonces from math/rand/v2. The start nonce only
// spreads repeated attempts across the range, so it need not be
// unpredictable.
type RandomSeeder struct{}

func (RandomSeeder) Seed(limit uint64) uint64 {
	if limit == 0 {
		return 0
	}
	return rand.Uint64N(limit)
}

// FixedSeeder always starts at the same nonce, clamped into the range.
type FixedSeeder uint64

func (s FixedSeeder) Seed(limit uint64) uint64 {
	if limit == 0 {
		return 0
	}
	return min(uint64(s), limit-1)
}
