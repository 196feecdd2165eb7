package miner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/Klingon-tech/n20-pow-minter/internal/contract"
	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// --- fakes ---

type fakeChain struct {
	height     uint64
	err        error
	balanceErr error
	tipCalls   int
}

func (c *fakeChain) BestBlock(context.Context) (*urchain.BlockHeader, error) {
	c.tipCalls++
	if c.err != nil {
		return nil, c.err
	}
	return &urchain.BlockHeader{Height: c.height}, nil
}

func (c *fakeChain) Balance(context.Context, string) (*urchain.Balance, error) {
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return &urchain.Balance{Confirmed: urchain.NewAmount(big.NewInt(100000))}, nil
}

func (c *fakeChain) TokenBalance(context.Context, string, string) (*urchain.Balance, error) {
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return &urchain.Balance{}, nil
}

// fakeGen encodes the nonce into the candidate so fakeHasher can decide
// matches by nonce.
type fakeGen struct {
	nonces   []uint64
	received []*wallet.Selection
	payloads []n20.Payload
	err      error
	onBuild  func(call int)
}

func (g *fakeGen) BuildCandidate(_ context.Context, p n20.Payload, sel *wallet.Selection) (*wallet.Candidate, error) {
	g.nonces = append(g.nonces, p.Locktime)
	g.received = append(g.received, sel)
	g.payloads = append(g.payloads, p)
	if g.onBuild != nil {
		g.onBuild(len(g.nonces))
	}
	if g.err != nil {
		return nil, g.err
	}
	if sel == nil {
		sel = &wallet.Selection{FeePerKb: uint64(len(g.nonces))}
	}
	enc := []byte(fmt.Sprintf("nonce-%d", p.Locktime))
	return &wallet.Candidate{
		Encoding:  enc,
		Hex:       fmt.Sprintf("%x", enc),
		TxID:      types.Hash{byte(p.Locktime)},
		Selection: sel,
	}, nil
}

func (g *fakeGen) ScriptHash() string { return "sh" }

func (g *fakeGen) calls() int { return len(g.nonces) }

type fakeHasher struct {
	match func(nonce uint64) bool
}

func (fakeHasher) Name() string { return "fake" }

func (h fakeHasher) Sum(enc []byte) string {
	var nonce uint64
	fmt.Sscanf(string(enc), "nonce-%d", &nonce)
	if h.match != nil && h.match(nonce) {
		return "20ab" + strings.Repeat("0", 60)
	}
	return "21ab" + strings.Repeat("0", 60)
}

type fakeVerifier struct {
	outcome contract.Outcome
	calls   int
	ops     []contract.Operation
	txs     [][]byte
	heights []uint64
}

func (v *fakeVerifier) Verify(_ *contract.Schema, r *contract.Records, op contract.Operation) contract.Outcome {
	v.calls++
	v.ops = append(v.ops, op)
	v.txs = append(v.txs, r.Mint.Tx)
	v.heights = append(v.heights, r.Mint.Height)
	return v.outcome
}

type fakeBroadcaster struct {
	cands []*wallet.Candidate
	err   error
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, c *wallet.Candidate) (*urchain.BroadcastResult, error) {
	b.cands = append(b.cands, c)
	res := &urchain.BroadcastResult{Success: b.err == nil, TxID: c.TxID.String()}
	return res, b.err
}

// --- helpers ---

func testDescriptor(t *testing.T) *n20.Descriptor {
	t.Helper()
	d, err := n20.NewDescriptor(n20.DescriptorParams{
		Ticker:   "NOTE",
		Max:      new(big.Int).Mul(big.NewInt(2100*10000), big.NewInt(100_000_000)),
		Lim:      new(big.Int).Mul(big.NewInt(5000), big.NewInt(100_000_000)),
		Decimals: 8,
		Start:    830400,
		Bitwork:  "20",
		Schema:   contract.DefaultSchema().ID,
	})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	return d
}

func testRequest(t *testing.T) *n20.MintRequest {
	t.Helper()
	req, err := n20.NewMintRequest("NOTE", big.NewInt(15600000000))
	if err != nil {
		t.Fatalf("NewMintRequest: %v", err)
	}
	return req
}

type harness struct {
	chain    *fakeChain
	gen      *fakeGen
	verifier *fakeVerifier
	bcast    *fakeBroadcaster
	minter   *Minter
}

func newHarness(t *testing.T, match func(uint64) bool, opts Options) *harness {
	t.Helper()
	h := &harness{
		chain:    &fakeChain{height: 830400},
		gen:      &fakeGen{},
		verifier: &fakeVerifier{outcome: contract.Outcome{Success: true}},
		bcast:    &fakeBroadcaster{},
	}
	if opts.Seeder == nil {
		opts.Seeder = FixedSeeder(0)
	}
	if opts.MaxCounter == 0 {
		opts.MaxCounter = 100
	}
	opts.Verifier = h.verifier
	opts.Hasher = fakeHasher{match: match}
	h.minter = New(testDescriptor(t), contract.DefaultSchema(), h.chain, h.gen, h.bcast, opts)
	return h
}

func atNonces(ns ...uint64) func(uint64) bool {
	return func(n uint64) bool {
		for _, x := range ns {
			if n == x {
				return true
			}
		}
		return false
	}
}

// --- scenarios ---

func TestAttempt_WaitingForStart(t *testing.T) {
	h := newHarness(t, atNonces(0), Options{})
	h.chain.height = 830399

	res := h.minter.Attempt(context.Background(), testRequest(t))
	if res.Success {
		t.Fatal("attempt should fail before the start height")
	}
	if !errors.Is(res.Err, ErrWaitingForStart) || res.Error() != "waiting for start height" {
		t.Errorf("err = %v, want waiting for start height", res.Err)
	}
	if h.gen.calls() != 0 {
		t.Errorf("generator called %d times, want 0", h.gen.calls())
	}
	if res.Kind() != KindWaiting {
		t.Errorf("kind = %s, want waiting", res.Kind())
	}
}

func TestAttempt_MatchVerifiedBroadcastOnce(t *testing.T) {
	h := newHarness(t, atNonces(13, 14), Options{Seeder: FixedSeeder(10)})

	res := h.minter.Attempt(context.Background(), testRequest(t))
	if !res.Success || res.Err != nil {
		t.Fatalf("attempt failed: %v", res.Err)
	}
	if len(h.bcast.cands) != 1 {
		t.Fatalf("broadcast %d times, want 1", len(h.bcast.cands))
	}
	if got := h.bcast.cands[0].Encoding; string(got) != "nonce-13" {
		t.Errorf("broadcast candidate %q, want nonce-13", got)
	}
	if res.Receipt == nil || res.TxID() != h.bcast.cands[0].TxID.String() {
		t.Errorf("receipt = %+v, want broadcaster's receipt", res.Receipt)
	}
	if h.verifier.calls != 1 || h.verifier.ops[0] != contract.OpMint {
		t.Errorf("verifier calls = %d ops = %v", h.verifier.calls, h.verifier.ops)
	}
	if !bytes.Equal(h.verifier.txs[0], []byte("nonce-13")) {
		t.Error("verifier should see the matching encoding attached")
	}
	if h.verifier.heights[0] != 830400 {
		t.Errorf("record height = %d, want 830400", h.verifier.heights[0])
	}
	if h.gen.calls() != 4 {
		t.Errorf("generator calls = %d, want 4 (nonces 10..13)", h.gen.calls())
	}
	if res.StartNonce != 10 || res.Nonce != 13 || res.Checks != 4 || res.Height != 830400 {
		t.Errorf("result stats = %+v", res)
	}
	if h.chain.tipCalls != 1 {
		t.Errorf("height queried %d times, want 1", h.chain.tipCalls)
	}
}

func TestAttempt_VerificationFailureAborts(t *testing.T) {
	h := newHarness(t, atNonces(2, 5), Options{})
	h.verifier.outcome = contract.Outcome{Diagnostics: []string{"height 1 below start 2"}}

	res := h.minter.Attempt(context.Background(), testRequest(t))
	var verr *VerificationError
	if !errors.As(res.Err, &verr) {
		t.Fatalf("err = %v, want *VerificationError", res.Err)
	}
	if !errors.Is(res.Err, ErrVerificationFailed) {
		t.Error("verification error should wrap ErrVerificationFailed")
	}
	if verr.Nonce != 2 || len(verr.Diagnostics) != 1 {
		t.Errorf("verification error = %+v", verr)
	}
	if h.gen.calls() != 3 {
		t.Errorf("generator calls = %d, want 3 (no nonce after the first match)", h.gen.calls())
	}
	if h.verifier.calls != 1 {
		t.Errorf("verifier calls = %d, want 1", h.verifier.calls)
	}
	if len(h.bcast.cands) != 0 {
		t.Errorf("broadcast %d times, want 0", len(h.bcast.cands))
	}
}

func TestAttempt_Exhausted(t *testing.T) {
	h := newHarness(t, nil, Options{MaxCounter: 50})

	res := h.minter.Attempt(context.Background(), testRequest(t))
	if res.Success {
		t.Fatal("attempt should fail")
	}
	if res.Error() != "Failed to mint NOTE token" {
		t.Errorf("error = %q", res.Error())
	}
	if !errors.Is(res.Err, ErrSearchExhausted) || res.Kind() != KindExhausted {
		t.Errorf("err = %v, kind = %s", res.Err, res.Kind())
	}
	if h.gen.calls() != 50 {
		t.Errorf("generator calls = %d, want 50", h.gen.calls())
	}
	if h.verifier.calls != 0 || len(h.bcast.cands) != 0 {
		t.Error("no match should mean no verification and no broadcast")
	}
	for i, n := range h.gen.nonces {
		if n != uint64(i) {
			t.Fatalf("nonce[%d] = %d, want %d", i, n, i)
		}
	}
}

func TestAttempt_SeededStartStopsAtMax(t *testing.T) {
	h := newHarness(t, nil, Options{MaxCounter: 2500, Seeder: FixedSeeder(2490)})
	h.minter.Attempt(context.Background(), testRequest(t))
	if h.gen.calls() != 10 {
		t.Fatalf("generator calls = %d, want 10", h.gen.calls())
	}
	if first, last := h.gen.nonces[0], h.gen.nonces[9]; first != 2490 || last != 2499 {
		t.Errorf("nonces %d..%d, want 2490..2499", first, last)
	}
}

func TestAttempt_CacheResetAtMultiples(t *testing.T) {
	h := newHarness(t, nil, Options{MaxCounter: 2500})
	h.minter.Attempt(context.Background(), testRequest(t))

	if h.gen.calls() != 2500 {
		t.Fatalf("generator calls = %d, want 2500", h.gen.calls())
	}
	var fresh []int
	for i, sel := range h.gen.received {
		if sel == nil {
			fresh = append(fresh, i+1)
		}
	}
	// Iteration 1 has nothing cached yet; iterations 1000 and 2000 reset.
	want := []int{1, 1000, 2000}
	if fmt.Sprint(fresh) != fmt.Sprint(want) {
		t.Errorf("fresh derivations at iterations %v, want %v", fresh, want)
	}
	// Between resets the selection from the previous iteration is reused.
	if h.gen.received[1] == nil || h.gen.received[998] != h.gen.received[1] {
		t.Error("selection should be reused between resets")
	}
}

func TestAttempt_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, nil, Options{})
	h.gen.onBuild = func(call int) {
		if call == 5 {
			cancel()
		}
	}

	res := h.minter.Attempt(ctx, testRequest(t))
	if !errors.Is(res.Err, context.Canceled) || res.Kind() != KindCanceled {
		t.Errorf("err = %v, want context.Canceled", res.Err)
	}
	if h.gen.calls() != 5 {
		t.Errorf("generator calls = %d, want 5", h.gen.calls())
	}
}

func TestAttempt_GeneratorError(t *testing.T) {
	h := newHarness(t, atNonces(0), Options{})
	h.gen.err = fmt.Errorf("fetch utxos: %w", wallet.ErrInsufficientFunds)

	res := h.minter.Attempt(context.Background(), testRequest(t))
	if !errors.Is(res.Err, wallet.ErrInsufficientFunds) || res.Kind() != KindFunds {
		t.Errorf("err = %v, kind = %s", res.Err, res.Kind())
	}
	if h.gen.calls() != 1 || h.verifier.calls != 0 {
		t.Error("generator failure should end the attempt")
	}
}

func TestAttempt_BalanceFailureOnlyWarns(t *testing.T) {
	h := newHarness(t, atNonces(0), Options{})
	h.chain.balanceErr = errors.New("indexer flaky")

	res := h.minter.Attempt(context.Background(), testRequest(t))
	if !res.Success {
		t.Fatalf("attempt failed: %v", res.Err)
	}
}

func TestAttempt_HeightError(t *testing.T) {
	h := newHarness(t, atNonces(0), Options{})
	h.chain.err = &urchain.APIError{Path: "/best-header", Status: 502}

	res := h.minter.Attempt(context.Background(), testRequest(t))
	if !errors.Is(res.Err, ErrTransport) || res.Kind() != KindTransport {
		t.Errorf("err = %v, kind = %s", res.Err, res.Kind())
	}
	if h.gen.calls() != 0 {
		t.Error("generator should not run without a height")
	}
}

func TestAttempt_BroadcastRejected(t *testing.T) {
	h := newHarness(t, atNonces(0), Options{})
	h.bcast.err = fmt.Errorf("%w: mempool conflict", urchain.ErrRejected)

	res := h.minter.Attempt(context.Background(), testRequest(t))
	if res.Success {
		t.Fatal("rejected broadcast should not succeed")
	}
	if res.Kind() != KindRejected {
		t.Errorf("kind = %s, want rejected", res.Kind())
	}
	if res.Receipt == nil {
		t.Error("receipt should be kept on rejection")
	}
	if len(h.bcast.cands) != 1 {
		t.Errorf("broadcast %d times, want 1", len(h.bcast.cands))
	}
}

func TestAttempt_TickMismatch(t *testing.T) {
	h := newHarness(t, atNonces(0), Options{})
	req, _ := n20.NewMintRequest("OTHER", big.NewInt(1))

	res := h.minter.Attempt(context.Background(), req)
	if !errors.Is(res.Err, n20.ErrTickMismatch) {
		t.Errorf("err = %v, want ErrTickMismatch", res.Err)
	}
	if h.chain.tipCalls != 0 {
		t.Error("mismatched request should fail before any indexer call")
	}
}

func TestMint_ReturnsReceipt(t *testing.T) {
	h := newHarness(t, atNonces(3), Options{})
	receipt, err := h.minter.Mint(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if receipt.TxID != (types.Hash{3}).String() {
		t.Errorf("txid = %s", receipt.TxID)
	}
}

func TestDeploy(t *testing.T) {
	h := newHarness(t, nil, Options{})
	receipt, err := h.minter.Deploy(context.Background())
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if receipt == nil || len(h.bcast.cands) != 1 {
		t.Fatal("deploy should broadcast once")
	}
	if h.verifier.ops[0] != contract.OpDeploy {
		t.Errorf("verified op %s, want deploy", h.verifier.ops[0])
	}
	p := h.gen.payloads[0]
	if p.Op != n20.OpDeploy || p.Bitwork != "20" || p.Locktime != 0 || h.gen.received[0] != nil {
		t.Errorf("deploy payload = %+v", p)
	}
}

func TestDeploy_VerificationFailure(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.verifier.outcome = contract.Outcome{Diagnostics: []string{"bad"}}
	if _, err := h.minter.Deploy(context.Background()); !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("err = %v, want ErrVerificationFailed", err)
	}
	if h.gen.calls() != 0 || len(h.bcast.cands) != 0 {
		t.Error("failed verification should stop the deploy")
	}
}
