package config

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ErrHelp is returned by ParseFlags when -help was requested.
var ErrHelp = flag.ErrHelp

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	DataDir string
	Config  string

	// Indexer
	IndexerURL string
	APIKey     string
	Mirror     string

	// Wallet
	Keystore   string
	WalletName string
	Account    int
	Recipient  string

	// Mint
	Tick       string
	Amount     string
	Descriptor string
	MaxCounter uint64
	Count      int
	Poll       time.Duration

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args (CLI command and its arguments).
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetAccount bool
	SetCount   bool
	SetLogJSON bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(prog string, args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.IndexerURL, "indexer", "", "Indexer API base URL")
	fs.StringVar(&f.APIKey, "apikey", "", "Indexer API key")
	fs.StringVar(&f.Mirror, "mirror", "", "Mirror broadcast endpoint")

	fs.StringVar(&f.Keystore, "keystore", "", "Keystore directory")
	fs.StringVar(&f.WalletName, "wallet", "", "Keystore name")
	fs.IntVar(&f.Account, "account", 0, "BIP-44 account index")
	fs.StringVar(&f.Recipient, "recipient", "", "Address receiving minted notes")

	fs.StringVar(&f.Tick, "tick", "", "Token ticker")
	fs.StringVar(&f.Amount, "amount", "", "Mint amount in whole tokens")
	fs.StringVar(&f.Descriptor, "descriptor", "", "Deployment descriptor JSON file")
	fs.Uint64Var(&f.MaxCounter, "max-counter", 0, "Nonce range searched per attempt")
	fs.IntVar(&f.Count, "count", 0, "Successful mints before exiting (0 = unlimited)")
	fs.DurationVar(&f.Poll, "poll", 0, "Delay between attempts while waiting or after failures")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.Testnet {
		f.Network = string(Testnet)
	}
	f.SetAccount = isFlagSet(fs, "account")
	f.SetCount = isFlagSet(fs, "count")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	if f.Help {
		return f, ErrHelp
	}
	return f, nil
}

// ApplyFlags applies command-line flags to cfg.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.IndexerURL != "" {
		cfg.Indexer.URL = f.IndexerURL
	}
	if f.APIKey != "" {
		cfg.Indexer.APIKey = f.APIKey
	}
	if f.Mirror != "" {
		cfg.Indexer.Mirror = f.Mirror
	}

	if f.Keystore != "" {
		cfg.Wallet.Keystore = f.Keystore
	}
	if f.WalletName != "" {
		cfg.Wallet.Name = f.WalletName
	}
	if f.SetAccount && f.Account >= 0 {
		cfg.Wallet.Account = uint32(f.Account)
	}
	if f.Recipient != "" {
		cfg.Wallet.Recipient = f.Recipient
	}

	if f.Tick != "" {
		cfg.Mint.Tick = f.Tick
	}
	if f.Amount != "" {
		cfg.Mint.Amount = f.Amount
	}
	if f.Descriptor != "" {
		cfg.Mint.Descriptor = f.Descriptor
	}
	if f.MaxCounter != 0 {
		cfg.Mint.MaxCounter = f.MaxCounter
	}
	if f.SetCount {
		cfg.Mint.Count = f.Count
	}
	if f.Poll != 0 {
		cfg.Mint.Poll = f.Poll
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintOptions writes the shared option reference.
func PrintOptions(w io.Writer) {
	fmt.Fprint(w, `Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.n20)
  --config, -c    Config file path (default: <datadir>/n20.conf)

Indexer Options:
  --indexer       Indexer API base URL
  --apikey        Indexer API key (sent as a Bearer token)
  --mirror        Relay successful broadcasts to this endpoint

Wallet Options:
  --keystore      Keystore directory (default: <datadir>/<network>/keystore)
  --wallet        Keystore name (default: default)
  --account       BIP-44 account index (default: 0)
  --recipient     Address receiving minted notes (default: minting address)

Mint Options:
  --tick          Token ticker (default: NOTE)
  --amount        Mint amount in whole tokens (default: 156)
  --descriptor    Deployment descriptor JSON (default: built-in NOTE)
  --max-counter   Nonce range searched per attempt (default: 500000000)
  --count         Successful mints before exiting, 0 = unlimited (default: 1)
  --poll          Delay between attempts (default: 30s)

Logging Options:
  --log-level     Log level: trace, debug, info, warn, error (default: info)
  --log-file      Also write JSON logs to this file
  --log-json      Output logs as JSON

Environment:
  N20_WALLET_PASSWORD, N20_MNEMONIC and N20_<SECTION>_<KEY> overrides are
  read from the process environment, ./.env and <datadir>/.env.
`)
}

// Load builds the configuration with the following precedence:
//  1. Default values
//  2. Auto-created data dirs + default config file (idempotent)
//  3. Config file
//  4. Environment (.env files, then N20_* variables)
//  5. Command-line flags
func Load(ctx context.Context, prog string, args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(prog, args)
	if err != nil {
		return nil, flags, err
	}

	env, err := LoadEnv(ctx, ".env")
	if err != nil {
		return nil, nil, err
	}

	network := Mainnet
	if n, ok := env.network(); ok {
		network = n
	}
	if flags.Network != "" {
		network = NetworkType(strings.ToLower(flags.Network))
	}
	cfg := Default(network)
	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	// A .env in the data directory fills anything the working directory's
	// .env and the process environment left unset.
	if env, err = LoadEnv(ctx, cfg.EnvFile()); err != nil {
		return nil, nil, err
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}
	if err := ApplyEnv(cfg, env); err != nil {
		return nil, nil, err
	}
	ApplyFlags(cfg, flags)

	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory layout and a default config
// file if they don't exist yet.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.NetworkDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
