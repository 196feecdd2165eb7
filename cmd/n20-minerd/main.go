// N20 proof-of-work mint daemon.
//
// Usage:
//
//	n20-minerd [options]   Mint until mint.count successes or a signal
//	n20-minerd --help      Show help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/n20-pow-minter/config"
	"github.com/Klingon-tech/n20-pow-minter/internal/node"
)

var version = "dev"

func main() {
	cfg, flags, err := config.Load(context.Background(), "n20-minerd", os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		usage()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Version {
		fmt.Println("n20-minerd", version)
		return
	}

	n, err := node.New(cfg, node.Options{LogFile: "n20-minerd.log"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-n.Done():
	}

	n.Stop()
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: n20-minerd [options]

Searches for N20 mint transactions meeting the deployment's bitwork and
broadcasts them through the indexer. Waits for the start height, retries
failed attempts with backoff and exits after mint.count successes
(counting earlier runs recorded in the journal) or on SIGINT/SIGTERM.

The signing key comes from N20_MNEMONIC or the keystore named by
--wallet, unlocked with N20_WALLET_PASSWORD.

`)
	config.PrintOptions(os.Stderr)
}
