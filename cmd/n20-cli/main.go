// n20-cli is a command-line client for the N20 indexer and the minter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/config"
	"github.com/Klingon-tech/n20-pow-minter/internal/node"
	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
	"github.com/Klingon-tech/n20-pow-minter/pkg/tx"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
	"golang.org/x/term"
)

// coinDecimals is the precision of the base coin.
const coinDecimals = 8

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, flags, err := config.Load(ctx, "n20-cli", os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		usage()
		return
	}
	if err != nil {
		fatal("%v", err)
	}
	if flags.Version {
		fmt.Println("n20-cli", version)
		return
	}
	if len(flags.Args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := flags.Args[0]
	args := flags.Args[1:]

	switch cmd {
	case "status":
		cmdStatus(ctx, cfg)
	case "balance":
		cmdBalance(ctx, cfg, args)
	case "token":
		cmdToken(ctx, cfg, args)
	case "tx":
		cmdTx(ctx, cfg, args)
	case "utxos":
		cmdUTXOs(ctx, cfg, args)
	case "txo":
		cmdTXO(ctx, cfg, args)
	case "txos":
		cmdTXOs(ctx, cfg, args)
	case "refresh":
		cmdRefresh(ctx, cfg, args)
	case "address":
		cmdAddress(cfg)
	case "history":
		cmdHistory(cfg, args)
	case "mint":
		cmdMint(ctx, cfg)
	case "deploy":
		cmdDeploy(ctx, cfg, args)
	case "keystore":
		cmdKeystore(cfg, args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: n20-cli [options] <command> [args]

Commands:
  status                          Indexer health, best height, fees, deployment state
  balance [address]               Coin balance (default: wallet address)
  token info <tick>               Deployment details of a token
  token all                       Every deployed token
  token list [address]            Tokens held by an address
  token balance [address]         Balance of --tick (default: mint.tick)
  tx <txid>                       Show a transaction
  utxos [address]                 Unspent outputs of an address
  txo <txid> <index>              Show one transaction output
  txos [--type T] [address]       Outputs of an address, filtered by type
  refresh [--reset] [address]     Ask the indexer to re-fetch (or drop) address history
  address                         Show the minting address and script hash
  history [--limit N] [--all]     Recorded mint attempts
  mint                            Run one mint attempt
  deploy --yes                    Broadcast the deployment descriptor
  keystore import --name <n> [--account <i>]
                                  Seal a mnemonic (prompted or N20_MNEMONIC)
  keystore list                   List keystores
  keystore show [name]            Show keystore metadata

`)
	config.PrintOptions(os.Stderr)
}

func newClient(cfg *config.Config) *urchain.Client {
	client, err := urchain.New(cfg.IndexerClient())
	if err != nil {
		fatal("indexer: %v", err)
	}
	return client
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(ctx context.Context, cfg *config.Config) {
	client := newClient(cfg)
	desc, err := cfg.Descriptor()
	if err != nil {
		fatal("%v", err)
	}

	health, err := client.Health(ctx)
	if err != nil {
		fatal("health: %v", err)
	}
	tip, err := client.BestBlock(ctx)
	if err != nil {
		fatal("best block: %v", err)
	}

	fmt.Printf("Network:  %s\n", cfg.Network)
	fmt.Printf("Indexer:  %s (%s)\n", cfg.Indexer.URL, health)
	fmt.Printf("Height:   %d\n", tip.Height)
	if fees, err := client.FeePerKb(ctx); err == nil {
		fmt.Printf("Fees/kB:  slow %d, avg %d, fast %d\n", fees.Slow, fees.Avg, fees.Fast)
	}
	fmt.Printf("Token:    %s (bitwork %q, start %d)\n", desc.Ticker(), desc.Bitwork(), desc.Start())
	if desc.Active(tip.Height) {
		fmt.Println("Minting:  open")
	} else {
		fmt.Printf("Minting:  opens in %d blocks\n", desc.Start()-tip.Height)
	}
}

// ── balance ─────────────────────────────────────────────────────────────

func cmdBalance(ctx context.Context, cfg *config.Config, args []string) {
	addr := addressArg(cfg, args)
	bal, err := newClient(cfg).Balance(ctx, scriptHashOf(addr))
	if err != nil {
		fatal("balance: %v", err)
	}
	printBalance(cfg, addr, bal, coinDecimals)
}

func printBalance(cfg *config.Config, addr types.Address, bal *urchain.Balance, decimals uint8) {
	fmt.Printf("Address:      %s\n", encodeAddress(cfg, addr))
	fmt.Printf("Confirmed:    %s\n", n20.FormatAmount(bal.Confirmed.Int(), decimals))
	fmt.Printf("Unconfirmed:  %s\n", n20.FormatAmount(bal.Unconfirmed.Int(), decimals))
	fmt.Printf("Total:        %s\n", n20.FormatAmount(bal.Total(), decimals))
}

// ── token ───────────────────────────────────────────────────────────────

func cmdToken(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: n20-cli token <info|all|list|balance> [args]")
	}
	client := newClient(cfg)
	switch args[0] {
	case "info":
		tick := cfg.Mint.Tick
		if len(args) > 1 {
			tick = args[1]
		}
		info, err := client.TokenInfo(ctx, tick)
		if err != nil {
			fatal("token info: %v", err)
		}
		fmt.Printf("Tick:      %s\n", info.Tick)
		fmt.Printf("Max:       %s\n", n20.FormatAmount(info.Max.Int(), info.Dec))
		fmt.Printf("Limit:     %s\n", n20.FormatAmount(info.Lim.Int(), info.Dec))
		fmt.Printf("Minted:    %s\n", n20.FormatAmount(info.Total.Int(), info.Dec))
		fmt.Printf("Decimals:  %d\n", info.Dec)
		if info.Bitwork != "" {
			fmt.Printf("Bitwork:   %s\n", info.Bitwork)
		}
		fmt.Printf("Start:     %d\n", info.Start)
		if info.Holders > 0 {
			fmt.Printf("Holders:   %d\n", info.Holders)
		}
		if info.TxID != "" {
			fmt.Printf("Deploy tx: %s\n", info.TxID)
		}

	case "all":
		tokens, err := client.AllTokens(ctx)
		if err != nil {
			fatal("all tokens: %v", err)
		}
		fmt.Printf("%-10s %24s %24s %8s %s\n", "TICK", "MINTED", "MAX", "START", "BITWORK")
		for _, t := range tokens {
			fmt.Printf("%-10s %24s %24s %8d %s\n", t.Tick,
				n20.FormatAmount(t.Total.Int(), t.Dec),
				n20.FormatAmount(t.Max.Int(), t.Dec),
				t.Start, t.Bitwork)
		}

	case "list":
		addr := addressArg(cfg, args[1:])
		tokens, err := client.TokenList(ctx, scriptHashOf(addr))
		if err != nil {
			fatal("token list: %v", err)
		}
		if len(tokens) == 0 {
			fmt.Println("No tokens found.")
			return
		}
		fmt.Printf("%-10s %24s %24s\n", "TICK", "CONFIRMED", "UNCONFIRMED")
		for _, t := range tokens {
			fmt.Printf("%-10s %24s %24s\n", t.Tick,
				n20.FormatAmount(t.Confirmed.Int(), t.Dec),
				n20.FormatAmount(t.Unconfirmed.Int(), t.Dec))
		}

	case "balance":
		fs := flag.NewFlagSet("token balance", flag.ExitOnError)
		tick := fs.String("tick", cfg.Mint.Tick, "Token ticker")
		fs.Parse(args[1:])
		addr := addressArg(cfg, fs.Args())
		info, err := client.TokenInfo(ctx, *tick)
		if err != nil {
			fatal("token info: %v", err)
		}
		bal, err := client.TokenBalance(ctx, scriptHashOf(addr), *tick)
		if err != nil {
			fatal("token balance: %v", err)
		}
		fmt.Printf("Tick:         %s\n", *tick)
		printBalance(cfg, addr, bal, info.Dec)

	default:
		fatal("Unknown token command: %s", args[0])
	}
}

// ── tx ──────────────────────────────────────────────────────────────────

func cmdTx(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: n20-cli tx <txid>")
	}
	info, err := newClient(cfg).Tx(ctx, args[0])
	if err != nil {
		fatal("tx: %v", err)
	}

	fmt.Printf("TxID:     %s\n", info.TxID)
	if info.Height > 0 {
		fmt.Printf("Height:   %d\n", info.Height)
		fmt.Printf("Block:    %s\n", info.BlockHash)
		fmt.Printf("Time:     %s\n", time.Unix(info.BlockTime, 0).UTC().Format("2006-01-02 15:04:05 UTC"))
	} else {
		fmt.Println("Height:   unconfirmed")
	}
	if info.TxHex == "" {
		return
	}

	txn, err := tx.DecodeHex(info.TxHex)
	if err != nil {
		fatal("decode tx: %v", err)
	}
	fmt.Printf("LockTime: %d\n", txn.LockTime)
	fmt.Printf("Inputs:   %d\n", len(txn.Inputs))
	for i, in := range txn.Inputs {
		fmt.Printf("  [%d] %s\n", i, in.PrevOut)
	}
	fmt.Printf("Outputs:  %d\n", len(txn.Outputs))
	for i, out := range txn.Outputs {
		dest := out.Script.Type.String()
		if addr, ok := out.Script.Address(); ok {
			dest = encodeAddress(cfg, addr)
		}
		fmt.Printf("  [%d] %s -> %s\n", i, n20.FormatAmount(new(big.Int).SetUint64(out.Value), coinDecimals), dest)
		if payload := out.Script.Payload(); len(payload) > 0 {
			fmt.Printf("       note %s\n", payload)
		}
	}
}

// ── utxos ───────────────────────────────────────────────────────────────

func cmdUTXOs(ctx context.Context, cfg *config.Config, args []string) {
	addr := addressArg(cfg, args)
	utxos, err := newClient(cfg).UTXOs(ctx, []string{scriptHashOf(addr)}, 0)
	if err != nil {
		fatal("utxos: %v", err)
	}
	if len(utxos) == 0 {
		fmt.Println("No unspent outputs.")
		return
	}
	var total uint64
	for _, u := range utxos {
		fmt.Printf("%s:%d  %s\n", u.TxID, u.OutputIndex, n20.FormatAmount(new(big.Int).SetUint64(u.Satoshis), coinDecimals))
		total += u.Satoshis
	}
	fmt.Printf("Total: %s in %d outputs\n", n20.FormatAmount(new(big.Int).SetUint64(total), coinDecimals), len(utxos))
}

// ── txo / txos ──────────────────────────────────────────────────────────

func cmdTXO(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 2 {
		fatal("Usage: n20-cli txo <txid> <index>")
	}
	index, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fatal("invalid index: %v", err)
	}
	o, err := newClient(cfg).TXO(ctx, args[0], uint32(index))
	if err != nil {
		fatal("txo: %v", err)
	}
	printTXO(*o)
}

func cmdTXOs(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("txos", flag.ExitOnError)
	typ := fs.String("type", "", "Output type filter")
	fs.Parse(args)
	addr := encodeAddress(cfg, addressArg(cfg, fs.Args()))

	txos, err := newClient(cfg).TXOs(ctx, addr, *typ)
	if err != nil {
		fatal("txos: %v", err)
	}
	if len(txos) == 0 {
		fmt.Println("No outputs found.")
		return
	}
	for _, o := range txos {
		printTXO(o)
	}
}

func printTXO(o urchain.TXO) {
	state := "unspent"
	if o.Spent {
		state = "spent"
	}
	fmt.Printf("%s:%d  %s  %s  %s\n", o.TxID, o.OutputIndex,
		n20.FormatAmount(new(big.Int).SetUint64(o.Satoshis), coinDecimals), o.Type, state)
}

// ── refresh ─────────────────────────────────────────────────────────────

func cmdRefresh(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	reset := fs.Bool("reset", false, "Drop the indexer's cached state instead of re-fetching")
	fs.Parse(args)
	sh := scriptHashOf(addressArg(cfg, fs.Args()))

	client := newClient(cfg)
	var (
		msg *urchain.Message
		err error
	)
	if *reset {
		msg, err = client.Reset(ctx, sh)
	} else {
		msg, err = client.Refresh(ctx, sh)
	}
	if err != nil {
		fatal("refresh: %v", err)
	}
	fmt.Printf("%s (code %v)\n", msg.Message, msg.Code)
}

// ── address ─────────────────────────────────────────────────────────────

func cmdAddress(cfg *config.Config) {
	addr := walletAddress(cfg)
	fmt.Printf("Address:     %s\n", encodeAddress(cfg, addr))
	fmt.Printf("Hex:         %s\n", addr.Hex())
	fmt.Printf("Script hash: %s\n", scriptHashOf(addr))
	if cfg.Wallet.Recipient != "" {
		fmt.Printf("Recipient:   %s\n", cfg.Wallet.Recipient)
	}
}

// ── history ─────────────────────────────────────────────────────────────

func cmdHistory(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of entries")
	all := fs.Bool("all", false, "Show every ticker")
	fs.Parse(args)

	jrnl, db, err := node.OpenJournal(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer db.Close()

	tick := cfg.Mint.Tick
	if *all {
		tick = ""
	}
	entries, err := jrnl.Recent(tick, *limit)
	if err != nil {
		fatal("history: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("No mint attempts recorded.")
		return
	}
	for _, e := range entries {
		status := "ok"
		detail := e.TxID
		if !e.Success {
			status = e.Kind
			detail = e.Error
		}
		fmt.Printf("%s  %-6s h=%-8d checks=%-10d %-12s %s\n",
			e.Time.Local().Format("2006-01-02 15:04:05"), e.Ticker, e.Height, e.Iterations, status, detail)
	}
}

// ── mint / deploy ───────────────────────────────────────────────────────

func openNode(cfg *config.Config) *node.Node {
	var password []byte
	if cfg.Wallet.Mnemonic == "" && cfg.Wallet.Password == "" {
		pw, err := readPassword("Enter password: ")
		if err != nil {
			fatal("read password: %v", err)
		}
		password = pw
	}
	n, err := node.New(cfg, node.Options{Password: password, LogFile: "n20-cli.log"})
	clear(password)
	if err != nil {
		fatal("%v", err)
	}
	return n
}

func cmdMint(ctx context.Context, cfg *config.Config) {
	n := openNode(cfg)
	defer n.Stop()

	res := n.MintOnce(ctx)
	if !res.Success {
		fmt.Fprintf(os.Stderr, "Error: mint %s failed (%s): %s\n", n.Descriptor().Ticker(), res.Kind(), res.Error())
		n.Stop()
		os.Exit(1)
	}
	fmt.Printf("Minted %s %s\n", cfg.Mint.Amount, n.Descriptor().Ticker())
	fmt.Printf("TxID:   %s\n", res.TxID())
	fmt.Printf("Nonce:  %d (start %d)\n", res.Nonce, res.StartNonce)
	fmt.Printf("Checks: %d\n", res.Checks)
}

func cmdDeploy(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Confirm the broadcast")
	fs.Parse(args)

	desc, err := cfg.Descriptor()
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Tick:     %s\n", desc.Ticker())
	fmt.Printf("Max:      %s\n", n20.FormatAmount(desc.Max(), desc.Decimals()))
	fmt.Printf("Limit:    %s\n", n20.FormatAmount(desc.Lim(), desc.Decimals()))
	fmt.Printf("Decimals: %d\n", desc.Decimals())
	fmt.Printf("Start:    %d\n", desc.Start())
	fmt.Printf("Bitwork:  %q\n", desc.Bitwork())
	if !*yes {
		fmt.Println("Dry run. Pass --yes to broadcast the deployment.")
		return
	}

	n := openNode(cfg)
	defer n.Stop()
	receipt, err := n.Deploy(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: deploy: %v\n", err)
		n.Stop()
		os.Exit(1)
	}
	fmt.Printf("Deployed: %s\n", receipt.TxID)
}

// ── Address helpers ─────────────────────────────────────────────────────

// addressArg parses args[0] as an address, or falls back to the wallet.
func addressArg(cfg *config.Config, args []string) types.Address {
	if len(args) == 0 {
		return walletAddress(cfg)
	}
	addr, hrp, err := types.ParseAddress(args[0])
	if err != nil {
		fatal("%v", err)
	}
	if hrp != "" && hrp != cfg.HRP() {
		fatal("%s is a %s address, network %s expects %s", args[0], hrp, cfg.Network, cfg.HRP())
	}
	return addr
}

// walletAddress returns the minting address without unlocking the
// keystore when possible.
func walletAddress(cfg *config.Config) types.Address {
	if cfg.Wallet.Mnemonic != "" {
		key, err := node.LoadKey(cfg, nil)
		if err != nil {
			fatal("%v", err)
		}
		defer key.Zero()
		return key.Address()
	}
	ks, err := node.OpenKeystore(cfg)
	if err != nil {
		fatal("%v", err)
	}
	entry, err := ks.Entry(cfg.Wallet.Name)
	if err != nil {
		fatal("%v (run 'n20-cli keystore import' or set N20_MNEMONIC)", err)
	}
	return entry.Address
}

func scriptHashOf(addr types.Address) string {
	return crypto.ScriptHash(types.P2PKHScript(addr))
}

func encodeAddress(cfg *config.Config, addr types.Address) string {
	s, err := addr.Encode(cfg.HRP())
	if err != nil {
		return addr.Hex()
	}
	return s
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
