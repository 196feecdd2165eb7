// Package config handles minter configuration.
//
// Settings are layered: built-in defaults, the <datadir>/n20.conf file,
// environment variables (optionally from .env files) and finally
// command-line flags. Token deployment parameters are not settings; they
// come from DefaultDescriptor or a descriptor file and are immutable.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds the minter's runtime configuration.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	Indexer IndexerConfig
	Wallet  WalletConfig
	Mint    MintConfig
	Log     LogConfig
}

// IndexerConfig holds the indexer API settings.
type IndexerConfig struct {
	URL     string        `conf:"indexer.url"`
	APIKey  string        `conf:"indexer.apikey"`
	Timeout time.Duration `conf:"indexer.timeout"`
	RPS     float64       `conf:"indexer.rps"`
	Burst   int           `conf:"indexer.burst"`
	Mirror  string        `conf:"indexer.mirror"`
}

// WalletConfig selects the signing key and the note recipient.
type WalletConfig struct {
	Keystore  string `conf:"wallet.keystore"` // keystore directory, default <datadir>/<network>/keystore
	Name      string `conf:"wallet.name"`
	Account   uint32 `conf:"wallet.account"`
	Recipient string `conf:"wallet.recipient"`

	// Secrets are only read from the environment, never from n20.conf.
	Password string
	Mnemonic string
}

// MintConfig holds the mint loop settings.
type MintConfig struct {
	Tick       string        `conf:"mint.tick"`
	Amount     string        `conf:"mint.amount"` // whole tokens, e.g. "156"
	Descriptor string        `conf:"mint.descriptor"`
	MaxCounter uint64        `conf:"mint.maxcounter"`
	Count      int           `conf:"mint.count"` // successful mints before the daemon exits, 0 = unlimited
	Poll       time.Duration `conf:"mint.poll"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.n20
//	macOS:   ~/Library/Application Support/N20
//	Windows: %APPDATA%\N20
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".n20"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "N20")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "N20")
		}
		return filepath.Join(home, "AppData", "Roaming", "N20")
	default:
		return filepath.Join(home, ".n20")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// JournalDir returns the mint journal database directory. The journal is
// shared by all networks.
func (c *Config) JournalDir() string {
	return filepath.Join(c.DataDir, "journal")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	if c.Wallet.Keystore != "" {
		return c.Wallet.Keystore
	}
	return filepath.Join(c.NetworkDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "n20.conf")
}

// EnvFile returns the .env file read from the data directory.
func (c *Config) EnvFile() string {
	return filepath.Join(c.DataDir, ".env")
}

// HRP returns the address prefix of the configured network.
func (c *Config) HRP() string {
	return types.HRPForNetwork(string(c.Network))
}

// IndexerClient returns the urchain client settings.
func (c *Config) IndexerClient() urchain.Config {
	return urchain.Config{
		URL:       c.Indexer.URL,
		APIKey:    c.Indexer.APIKey,
		Timeout:   c.Indexer.Timeout,
		RPS:       c.Indexer.RPS,
		Burst:     c.Indexer.Burst,
		MirrorURL: c.Indexer.Mirror,
	}
}

// RecipientAddress parses wallet.recipient. An empty setting yields the
// zero address, meaning "send to self".
func (c *Config) RecipientAddress() (types.Address, error) {
	if c.Wallet.Recipient == "" {
		return types.Address{}, nil
	}
	addr, _, err := types.ParseAddress(c.Wallet.Recipient)
	return addr, err
}
