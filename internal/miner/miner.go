// Package miner searches for N20 mint transactions whose commitment hash
// meets a deployment's bitwork, verifies them against the token contract
// and broadcasts the first one that passes.
package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/internal/contract"
	"github.com/Klingon-tech/n20-pow-minter/internal/log"
	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
	"github.com/Klingon-tech/n20-pow-minter/pkg/bitwork"
	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
)

// DefaultMaxCounter bounds the nonce range of one attempt.
const DefaultMaxCounter = 500_000_000

// ChainClient provides the chain state an attempt depends on.
type ChainClient interface {
	BestBlock(ctx context.Context) (*urchain.BlockHeader, error)
	Balance(ctx context.Context, scriptHash string) (*urchain.Balance, error)
	TokenBalance(ctx context.Context, scriptHash, tick string) (*urchain.Balance, error)
}

// Generator builds signed candidate transactions.
type Generator interface {
	BuildCandidate(ctx context.Context, payload n20.Payload, sel *wallet.Selection) (*wallet.Candidate, error)
	ScriptHash() string
}

// Verifier checks operation records against the token contract.
type Verifier interface {
	Verify(schema *contract.Schema, records *contract.Records, op contract.Operation) contract.Outcome
}

// Broadcaster submits a verified candidate.
type Broadcaster interface {
	Broadcast(ctx context.Context, c *wallet.Candidate) (*urchain.BroadcastResult, error)
}

// Options tune the search. Zero values select the defaults.
type Options struct {
	MaxCounter    uint64
	ResetInterval uint64
	Seeder        Seeder
	Verifier      Verifier
	// Hasher overrides the schema's commitment hash.
	Hasher crypto.CommitmentHasher
}

// Minter runs mint attempts for one deployment.
type Minter struct {
	desc     *n20.Descriptor
	schema   *contract.Schema
	chain    ChainClient
	gen      Generator
	bcast    Broadcaster
	verifier Verifier
	hasher   crypto.CommitmentHasher
	opts     Options
}

// New creates a minter for desc. The collaborators are used as given for
// the lifetime of the minter.
func New(desc *n20.Descriptor, schema *contract.Schema, chain ChainClient, gen Generator, bcast Broadcaster, opts Options) *Minter {
	if opts.MaxCounter == 0 {
		opts.MaxCounter = DefaultMaxCounter
	}
	if opts.ResetInterval == 0 {
		opts.ResetInterval = DefaultResetInterval
	}
	if opts.Seeder == nil {
		opts.Seeder = RandomSeeder{}
	}
	m := &Minter{
		desc:     desc,
		schema:   schema,
		chain:    chain,
		gen:      gen,
		bcast:    bcast,
		verifier: opts.Verifier,
		hasher:   opts.Hasher,
		opts:     opts,
	}
	if m.verifier == nil {
		m.verifier = contract.Verifier{}
	}
	if m.hasher == nil {
		m.hasher = schema.Hasher()
	}
	return m
}

// Descriptor returns the deployment being minted.
func (m *Minter) Descriptor() *n20.Descriptor { return m.desc }

// Mint runs one attempt and returns the broadcast receipt.
func (m *Minter) Mint(ctx context.Context, req *n20.MintRequest) (*urchain.BroadcastResult, error) {
	res := m.Attempt(ctx, req)
	return res.Receipt, res.Err
}

// Attempt runs one mint attempt: wait for the start height, search nonces
// from a seeded start until a candidate's commitment hash matches the
// bitwork, verify it and broadcast it. The first matching candidate ends
// the search whether or not it verifies.
func (m *Minter) Attempt(ctx context.Context, req *n20.MintRequest) Result {
	if err := req.CheckAgainst(m.desc); err != nil {
		return Result{Err: err}
	}
	tip, err := m.chain.BestBlock(ctx)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: best block: %w", ErrTransport, err)}
	}
	height := tip.Height
	if !m.desc.Active(height) {
		log.Mint.Debug().
			Uint64("height", height).
			Uint64("start", m.desc.Start()).
			Msg("Deployment not active yet")
		return Result{Err: ErrWaitingForStart, Height: height}
	}

	m.consultBalances(ctx)

	s := &search{
		m:       m,
		req:     req,
		payload: req.MintPayload(),
		records: contract.NewRecords(m.desc, req, height),
		cache:   newSelectionCache(m.opts.ResetInterval),
		target:  m.desc.Bitwork().String(),
	}
	s.counter = m.opts.Seeder.Seed(m.opts.MaxCounter)
	res := s.run(ctx)
	res.Height = height
	return res
}

// consultBalances logs the funding and token balances before a search.
// Failures only warn.
func (m *Minter) consultBalances(ctx context.Context) {
	sh := m.gen.ScriptHash()
	if bal, err := m.chain.Balance(ctx, sh); err != nil {
		log.Mint.Warn().Err(err).Msg("Balance lookup failed")
	} else {
		log.Mint.Info().Str("confirmed", bal.Confirmed.String()).Str("unconfirmed", bal.Unconfirmed.String()).Msg("Funding balance")
	}
	if bal, err := m.chain.TokenBalance(ctx, sh, m.desc.Ticker()); err != nil {
		log.Mint.Warn().Err(err).Str("tick", m.desc.Ticker()).Msg("Token balance lookup failed")
	} else {
		log.Mint.Info().Str("tick", m.desc.Ticker()).Str("balance", bal.Total().String()).Msg("Token balance")
	}
}

// search is the state of one nonce search.
type search struct {
	m       *Minter
	req     *n20.MintRequest
	payload n20.Payload
	records *contract.Records
	cache   *selectionCache
	target  string

	counter uint64
	checks  uint64
}

func (s *search) run(ctx context.Context) Result {
	m := s.m
	start := s.counter
	began := time.Now()
	logger := log.WithTicker(m.desc.Ticker())
	logger.Info().
		Uint64("start_nonce", start).
		Uint64("max_counter", m.opts.MaxCounter).
		Str("bitwork", s.target).
		Msg("Search started")

	result := func(err error) Result {
		return Result{Err: err, StartNonce: start, Nonce: s.counter, Checks: s.checks}
	}

	for s.counter < m.opts.MaxCounter {
		if err := ctx.Err(); err != nil {
			return result(err)
		}
		if s.cache.Tick() {
			elapsed := time.Since(began)
			logger.Debug().
				Uint64("nonce", s.counter).
				Uint64("checks", s.checks).
				Float64("rate", float64(s.checks)/max(elapsed.Seconds(), 1e-9)).
				Msg("Search progress, selection reset")
		}

		cand, err := m.gen.BuildCandidate(ctx, s.payload.WithNonce(s.counter), s.cache.Get())
		if err != nil {
			return result(fmt.Errorf("build candidate at nonce %d: %w", s.counter, err))
		}
		s.checks++

		digest := m.hasher.Sum(cand.Encoding)
		if !bitwork.Match(digest, s.target) {
			s.cache.Put(cand.Selection)
			s.counter++
			continue
		}

		logger.Info().
			Uint64("nonce", s.counter).
			Uint64("checks", s.checks).
			Str("digest", digest).
			Msg("Bitwork matched")
		s.records.AttachTx(cand.Encoding)
		outcome := m.verifier.Verify(m.schema, s.records, contract.OpMint)
		if !outcome.Success {
			logger.Warn().Strs("diagnostics", outcome.Diagnostics).Msg("Matched candidate failed verification")
			return result(&VerificationError{
				Nonce:       s.counter,
				TxID:        cand.TxID.String(),
				Diagnostics: outcome.Diagnostics,
			})
		}

		receipt, err := m.bcast.Broadcast(ctx, cand)
		res := result(nil)
		res.Receipt = receipt
		if err != nil {
			res.Err = fmt.Errorf("%w: broadcast: %w", ErrTransport, err)
			return res
		}
		res.Success = true
		logger.Info().
			Str("txid", receipt.TxID).
			Uint64("nonce", s.counter).
			Dur("elapsed", time.Since(began)).
			Msg("Mint broadcast")
		return res
	}

	logger.Warn().Uint64("checks", s.checks).Msg("Nonce range exhausted")
	return result(&ExhaustedError{Ticker: m.desc.Ticker(), Checks: s.checks})
}

// Deploy broadcasts the deployment itself. The constructor record is
// verified offline first; deploys carry no bitwork.
func (m *Minter) Deploy(ctx context.Context) (*urchain.BroadcastResult, error) {
	tip, err := m.chain.BestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: best block: %w", ErrTransport, err)
	}
	req, err := n20.NewMintRequest(m.desc.Ticker(), m.desc.Lim())
	if err != nil {
		return nil, err
	}
	records := contract.NewRecords(m.desc, req, tip.Height)
	if outcome := m.verifier.Verify(m.schema, records, contract.OpDeploy); !outcome.Success {
		return nil, &VerificationError{Diagnostics: outcome.Diagnostics}
	}

	cand, err := m.gen.BuildCandidate(ctx, m.desc.DeployPayload(), nil)
	if err != nil {
		return nil, fmt.Errorf("build deploy: %w", err)
	}
	receipt, err := m.bcast.Broadcast(ctx, cand)
	if err != nil {
		return receipt, fmt.Errorf("%w: broadcast deploy: %w", ErrTransport, err)
	}
	log.WithTicker(m.desc.Ticker()).Info().Str("txid", receipt.TxID).Msg("Deployment broadcast")
	return receipt, nil
}
