// Package node wires the configuration, indexer client, signing key and
// mint journal into a minter that can be embedded in any binary (daemon,
// CLI).
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/n20-pow-minter/config"
	"github.com/Klingon-tech/n20-pow-minter/internal/journal"
	klog "github.com/Klingon-tech/n20-pow-minter/internal/log"
	"github.com/Klingon-tech/n20-pow-minter/internal/miner"
	"github.com/Klingon-tech/n20-pow-minter/internal/storage"
	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// minter is the part of *miner.Minter the node drives.
type minter interface {
	Attempt(ctx context.Context, req *n20.MintRequest) miner.Result
	Deploy(ctx context.Context) (*urchain.BroadcastResult, error)
}

// Options configure New.
type Options struct {
	// Password unlocks the keystore. Empty means cfg.Wallet.Password.
	Password []byte
	// LogFile names the log file inside the logs directory when
	// log.file is unset. Empty disables file logging.
	LogFile string
}

// Node is a fully-initialized minter.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	db      storage.DB
	journal *journal.Journal
	client  *urchain.Client
	key     *crypto.PrivateKey
	gen     *wallet.Generator
	minter  minter

	desc *n20.Descriptor
	req  *n20.MintRequest

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// New creates and initializes a Node. It sets up logging, the deployment,
// the indexer client, the signing key and the journal but does not start
// minting. Call Start for that, or MintOnce and Deploy directly.
func New(cfg *config.Config, opts Options) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" && opts.LogFile != "" {
		if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(cfg.LogsDir(), opts.LogFile)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 2. Deployment ───────────────────────────────────────────────
	desc, err := cfg.Descriptor()
	if err != nil {
		return nil, err
	}
	req, err := cfg.MintRequest(desc)
	if err != nil {
		return nil, err
	}
	schema, err := SchemaFor(cfg, desc)
	if err != nil {
		return nil, fmt.Errorf("contract schema: %w", err)
	}

	// ── 3. Indexer ──────────────────────────────────────────────────
	client, err := urchain.New(cfg.IndexerClient())
	if err != nil {
		return nil, err
	}

	// ── 4. Signing key ──────────────────────────────────────────────
	key, err := LoadKey(cfg, opts.Password)
	if err != nil {
		return nil, err
	}
	recipient, err := cfg.RecipientAddress()
	if err != nil {
		key.Zero()
		return nil, fmt.Errorf("recipient: %w", err)
	}
	gen := wallet.NewGenerator(key, client, recipient)

	// ── 5. Journal ──────────────────────────────────────────────────
	jrnl, db, err := OpenJournal(cfg)
	if err != nil {
		key.Zero()
		return nil, err
	}

	m := miner.New(desc, schema, client, gen, miner.NewIndexerBroadcaster(client), miner.Options{
		MaxCounter: cfg.Mint.MaxCounter,
	})

	addr, _ := gen.Address().Encode(cfg.HRP())
	logger.Info().
		Str("network", string(cfg.Network)).
		Str("tick", desc.Ticker()).
		Str("amount", cfg.Mint.Amount).
		Str("bitwork", desc.Bitwork().String()).
		Uint64("start", desc.Start()).
		Str("address", addr).
		Str("indexer", cfg.Indexer.URL).
		Msg("Minter initialized")

	return newNode(cfg, logger, db, jrnl, client, key, gen, m, desc, req), nil
}

func newNode(cfg *config.Config, logger zerolog.Logger, db storage.DB, jrnl *journal.Journal,
	client *urchain.Client, key *crypto.PrivateKey, gen *wallet.Generator, m minter,
	desc *n20.Descriptor, req *n20.MintRequest) *Node {
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		journal: jrnl,
		client:  client,
		key:     key,
		gen:     gen,
		minter:  m,
		desc:    desc,
		req:     req,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Client returns the indexer client.
func (n *Node) Client() *urchain.Client { return n.client }

// Journal returns the mint journal.
func (n *Node) Journal() *journal.Journal { return n.journal }

// Descriptor returns the deployment being minted.
func (n *Node) Descriptor() *n20.Descriptor { return n.desc }

// Address returns the minting address.
func (n *Node) Address() types.Address { return n.gen.Address() }

// ScriptHash returns the indexer script hash of the minting address.
func (n *Node) ScriptHash() string { return n.gen.ScriptHash() }

// MintOnce runs one attempt and records it in the journal.
func (n *Node) MintOnce(ctx context.Context) miner.Result {
	defer klog.Benchmark(n.logger, "mint attempt")()
	res := n.minter.Attempt(ctx, n.req)
	if res.Kind() != miner.KindCanceled {
		if err := n.journal.Record(entryFor(n.desc.Ticker(), res)); err != nil {
			n.logger.Error().Err(err).Msg("Failed to record attempt")
		}
	}
	return res
}

// Deploy broadcasts the deployment.
func (n *Node) Deploy(ctx context.Context) (*urchain.BroadcastResult, error) {
	return n.minter.Deploy(ctx)
}

// Start launches the mint loop. Done is closed when it ends.
func (n *Node) Start() error {
	prior, err := n.journal.CountSuccess(n.desc.Ticker())
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer close(n.done)
		n.run(prior)
	}()
	n.logger.Info().
		Int("target", n.cfg.Mint.Count).
		Int("recorded", prior).
		Dur("poll", n.cfg.Mint.Poll).
		Msg("Minting started")
	return nil
}

// Done is closed once the mint loop has stopped.
func (n *Node) Done() <-chan struct{} { return n.done }

// Stop cancels the mint loop, waits for it and releases resources.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.key != nil {
		n.key.Zero()
	}
	if n.db != nil {
		n.db.Close()
	}
	n.logger.Info().Msg("Goodbye!")
}

// ── Mint loop ───────────────────────────────────────────────────────

// run repeats attempts until mint.count successes are recorded (counting
// those already in the journal) or the node is stopped.
func (n *Node) run(successes int) {
	target := n.cfg.Mint.Count
	failures := 0
	for {
		if target > 0 && successes >= target {
			n.logger.Info().Int("successes", successes).Msg("Mint target reached")
			return
		}

		res := n.MintOnce(n.ctx)
		kind := res.Kind()
		switch kind {
		case miner.KindCanceled:
			n.logger.Info().Msg("Minting stopped")
			return
		case miner.KindNone:
			successes++
			failures = 0
			n.logger.Info().
				Str("txid", res.TxID()).
				Uint64("nonce", res.Nonce).
				Uint64("checks", res.Checks).
				Int("successes", successes).
				Msg("Mint broadcast")
			if target > 0 && successes >= target {
				continue
			}
		case miner.KindWaiting:
			n.logger.Info().
				Uint64("height", res.Height).
				Uint64("start", n.desc.Start()).
				Msg("Waiting for start height")
		default:
			failures++
			n.logger.Warn().
				Err(res.Err).
				Str("kind", kind.String()).
				Int("failures", failures).
				Msg("Mint attempt failed")
		}

		if delay := backoff(kind, failures, n.cfg.Mint.Poll); delay > 0 {
			select {
			case <-n.ctx.Done():
				n.logger.Info().Msg("Minting stopped")
				return
			case <-time.After(delay):
			}
		}
	}
}
