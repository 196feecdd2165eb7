package miner

import (
	"testing"

	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
)

func TestSelectionCache_ResetsOnlyAtMultiples(t *testing.T) {
	c := newSelectionCache(1000)
	sel := &wallet.Selection{}
	for i := uint64(1); i <= 3000; i++ {
		c.Put(sel)
		reset := c.Tick()
		want := i%1000 == 0
		if reset != want {
			t.Fatalf("tick %d: reset = %v, want %v", i, reset, want)
		}
		if want && c.Get() != nil {
			t.Fatalf("tick %d: cache should be empty after reset", i)
		}
		if !want && c.Get() != sel {
			t.Fatalf("tick %d: cache should keep the selection", i)
		}
	}
}

func TestSelectionCache_DefaultInterval(t *testing.T) {
	if c := newSelectionCache(0); c.interval != DefaultResetInterval {
		t.Errorf("interval = %d, want %d", c.interval, DefaultResetInterval)
	}
}

func TestSeeders(t *testing.T) {
	for i := 0; i < 100; i++ {
		if n := (RandomSeeder{}).Seed(10); n >= 10 {
			t.Fatalf("RandomSeeder returned %d, want < 10", n)
		}
	}
	if n := (RandomSeeder{}).Seed(0); n != 0 {
		t.Errorf("RandomSeeder(0) = %d", n)
	}
	if n := FixedSeeder(7).Seed(100); n != 7 {
		t.Errorf("FixedSeeder = %d, want 7", n)
	}
	if n := FixedSeeder(700).Seed(100); n != 99 {
		t.Errorf("FixedSeeder clamps to %d, want 99", n)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrWaitingForStart, KindWaiting},
		{&VerificationError{}, KindVerification},
		{&ExhaustedError{Ticker: "NOTE"}, KindExhausted},
		{wallet.ErrNoUTXOs, KindFunds},
		{ErrTransport, KindTransport},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
