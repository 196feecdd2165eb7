package config

import (
	"fmt"
	"net/url"

	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// Validate checks the configuration for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is empty")
	}

	if err := validateURL("indexer.url", cfg.Indexer.URL); err != nil {
		return err
	}
	if cfg.Indexer.Mirror != "" {
		if err := validateURL("indexer.mirror", cfg.Indexer.Mirror); err != nil {
			return err
		}
	}
	if cfg.Indexer.Timeout <= 0 {
		return fmt.Errorf("indexer.timeout must be positive")
	}
	if cfg.Indexer.RPS <= 0 {
		return fmt.Errorf("indexer.rps must be positive")
	}
	if cfg.Indexer.Burst < 1 {
		return fmt.Errorf("indexer.burst must be at least 1")
	}

	if cfg.Wallet.Recipient != "" {
		_, hrp, err := types.ParseAddress(cfg.Wallet.Recipient)
		if err != nil {
			return fmt.Errorf("wallet.recipient: %w", err)
		}
		if hrp != "" && hrp != cfg.HRP() {
			return fmt.Errorf("wallet.recipient is a %s address, network %s expects %s", hrp, cfg.Network, cfg.HRP())
		}
	}

	if cfg.Mint.Tick == "" {
		return fmt.Errorf("mint.tick is empty")
	}
	amt, err := n20.ParseAmount(cfg.Mint.Amount, n20.MaxDecimals)
	if err != nil {
		return fmt.Errorf("mint.amount: %w", err)
	}
	if amt.Sign() <= 0 {
		return fmt.Errorf("mint.amount must be positive")
	}
	if cfg.Mint.MaxCounter == 0 {
		return fmt.Errorf("mint.maxcounter must be positive")
	}
	if cfg.Mint.Count < 0 {
		return fmt.Errorf("mint.count must not be negative")
	}
	if cfg.Mint.Poll <= 0 {
		return fmt.Errorf("mint.poll must be positive")
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	return nil
}
