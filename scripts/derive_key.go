// derive_key.go prints the mint key, addresses and indexer script hash for a
// mnemonic read from N20_MNEMONIC.
// Usage: N20_MNEMONIC="word1 ..." go run scripts/derive_key.go [account]
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

func main() {
	mnemonic := os.Getenv("N20_MNEMONIC")
	if mnemonic == "" {
		fmt.Fprintln(os.Stderr, "usage: N20_MNEMONIC=... derive_key [account]")
		os.Exit(1)
	}
	var account uint64
	if len(os.Args) > 1 {
		var err error
		account, err = strconv.ParseUint(os.Args[1], 10, 31)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	key, err := wallet.KeyFromMnemonic(mnemonic, "", uint32(account))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer key.Zero()

	addr := key.Address()
	mainnet, _ := addr.Encode(types.MainnetHRP)
	testnet, _ := addr.Encode(types.TestnetHRP)
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(key.PublicKey()))
	fmt.Printf("address=%s\n", mainnet)
	fmt.Printf("testnet_address=%s\n", testnet)
	fmt.Printf("script_hash=%s\n", crypto.ScriptHash(types.P2PKHScript(addr)))
}
