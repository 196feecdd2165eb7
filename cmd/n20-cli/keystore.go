package main

import (
	"bytes"
	"flag"
	"fmt"
	"strings"

	"github.com/Klingon-tech/n20-pow-minter/config"
	"github.com/Klingon-tech/n20-pow-minter/internal/node"
	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
)

func cmdKeystore(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: n20-cli keystore <import|list|show> [flags]")
	}
	switch args[0] {
	case "import":
		cmdKeystoreImport(cfg, args[1:])
	case "list":
		cmdKeystoreList(cfg)
	case "show":
		cmdKeystoreShow(cfg, args[1:])
	default:
		fatal("Unknown keystore command: %s", args[0])
	}
}

func cmdKeystoreImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("keystore import", flag.ExitOnError)
	name := fs.String("name", cfg.Wallet.Name, "Keystore name")
	account := fs.Uint("account", uint(cfg.Wallet.Account), "BIP-44 account index")
	fs.Parse(args)

	mnemonic := cfg.Wallet.Mnemonic
	if mnemonic == "" {
		m, err := readPassword("Enter mnemonic: ")
		if err != nil {
			fatal("read mnemonic: %v", err)
		}
		mnemonic = string(m)
	}
	mnemonic = wallet.NormalizeMnemonic(mnemonic)
	if !wallet.ValidateMnemonic(mnemonic) {
		fatal("invalid mnemonic")
	}

	// Prompt for password (twice).
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if !bytes.Equal(password, confirm) {
		fatal("passwords do not match")
	}
	if len(password) == 0 {
		fatal("password must not be empty")
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer clear(seed)

	ks, err := node.OpenKeystore(cfg)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	entry, err := ks.Import(*name, seed, password, uint32(*account), wallet.DefaultParams())
	clear(password)
	clear(confirm)
	if err != nil {
		fatal("import: %v", err)
	}

	fmt.Printf("Keystore imported: %s\n", entry.Name)
	fmt.Printf("Account: %d\n", entry.Account)
	fmt.Printf("Address: %s\n", encodeAddress(cfg, entry.Address))
}

func cmdKeystoreList(cfg *config.Config) {
	ks, err := node.OpenKeystore(cfg)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	names, err := ks.List()
	if err != nil {
		fatal("list keystores: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No keystores found.")
		return
	}
	for _, name := range names {
		marker := " "
		if name == cfg.Wallet.Name {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
}

func cmdKeystoreShow(cfg *config.Config, args []string) {
	name := cfg.Wallet.Name
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	ks, err := node.OpenKeystore(cfg)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	entry, err := ks.Entry(name)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Name:    %s\n", entry.Name)
	fmt.Printf("Account: %d\n", entry.Account)
	fmt.Printf("Address: %s\n", encodeAddress(cfg, entry.Address))
	fmt.Printf("Created: %s\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
}
