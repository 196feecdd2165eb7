package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// EnvOverrides holds settings taken from N20_* environment variables.
// Empty fields are unset.
type EnvOverrides struct {
	Network    string `env:"N20_NETWORK"`
	DataDir    string `env:"N20_DATADIR"`
	IndexerURL string `env:"N20_INDEXER_URL"`
	APIKey     string `env:"N20_INDEXER_APIKEY"`
	Mirror     string `env:"N20_INDEXER_MIRROR"`
	Keystore   string `env:"N20_WALLET_KEYSTORE"`
	WalletName string `env:"N20_WALLET_NAME"`
	Account    string `env:"N20_WALLET_ACCOUNT"`
	Recipient  string `env:"N20_WALLET_RECIPIENT"`
	Password   string `env:"N20_WALLET_PASSWORD"`
	Mnemonic   string `env:"N20_MNEMONIC"`
	Tick       string `env:"N20_MINT_TICK"`
	Amount     string `env:"N20_MINT_AMOUNT"`
	Descriptor string `env:"N20_MINT_DESCRIPTOR"`
	Count      string `env:"N20_MINT_COUNT"`
	LogLevel   string `env:"N20_LOG_LEVEL"`
}

// LoadEnv loads the given .env files, skipping missing ones, and then
// reads the N20_* variables. Variables already set in the process
// environment win over .env files.
func LoadEnv(ctx context.Context, dotenv ...string) (*EnvOverrides, error) {
	for _, path := range dotenv {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	var env EnvOverrides
	if err := envconfig.Process(ctx, &env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	return &env, nil
}

// settings returns the overrides keyed like n20.conf.
func (e *EnvOverrides) settings() map[string]string {
	all := map[string]string{
		"network":          e.Network,
		"datadir":          e.DataDir,
		"indexer.url":      e.IndexerURL,
		"indexer.apikey":   e.APIKey,
		"indexer.mirror":   e.Mirror,
		"wallet.keystore":  e.Keystore,
		"wallet.name":      e.WalletName,
		"wallet.account":   e.Account,
		"wallet.recipient": e.Recipient,
		"mint.tick":        e.Tick,
		"mint.amount":      e.Amount,
		"mint.descriptor":  e.Descriptor,
		"mint.count":       e.Count,
		"log.level":        e.LogLevel,
	}
	set := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			set[k] = v
		}
	}
	return set
}

// ApplyEnv applies environment overrides and secrets to cfg.
func ApplyEnv(cfg *Config, env *EnvOverrides) error {
	if env == nil {
		return nil
	}
	if err := ApplyFileConfig(cfg, env.settings()); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	cfg.Wallet.Password = env.Password
	cfg.Wallet.Mnemonic = env.Mnemonic
	return nil
}

// network returns the network named by the environment, if any.
func (e *EnvOverrides) network() (NetworkType, bool) {
	if e == nil || e.Network == "" {
		return "", false
	}
	return NetworkType(strings.ToLower(e.Network)), true
}
