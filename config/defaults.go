package config

import (
	"math/big"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/internal/contract"
	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
)

// DefaultMintAmount is the default mint amount in whole tokens.
const DefaultMintAmount = "156"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Indexer: IndexerConfig{
			URL:     "http://127.0.0.1:3000/api",
			APIKey:  "1234567890",
			Timeout: urchain.DefaultTimeout,
			RPS:     urchain.DefaultRPS,
			Burst:   urchain.DefaultBurst,
		},
		Wallet: WalletConfig{
			Name: "default",
		},
		Mint: MintConfig{
			Tick:       "NOTE",
			Amount:     DefaultMintAmount,
			MaxCounter: 500_000_000,
			Count:      1,
			Poll:       30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Indexer.URL = "http://127.0.0.1:3001/api"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	if network == Testnet {
		return DefaultTestnet()
	}
	return DefaultMainnet()
}

// DefaultDescriptor returns the NOTE deployment: 21 million tokens with 8
// decimals, at most 5000 per mint, open from height 830400, bitwork "20".
func DefaultDescriptor() *n20.Descriptor {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(8), nil)
	d, err := n20.NewDescriptor(n20.DescriptorParams{
		Ticker:   "NOTE",
		Max:      new(big.Int).Mul(big.NewInt(2100*10000), unit),
		Lim:      new(big.Int).Mul(big.NewInt(5000), unit),
		Decimals: 8,
		Start:    830400,
		Bitwork:  "20",
		Schema:   contract.DefaultSchema().ID,
	})
	if err != nil {
		panic("config: default descriptor: " + err.Error())
	}
	return d
}
