package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile reads key = value settings from a .conf file. A missing file
// yields no settings.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		values[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return values, scanner.Err()
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// ApplyFileConfig applies file settings to cfg.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets one setting by key. Unknown keys are ignored.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	case "indexer.url":
		cfg.Indexer.URL = value
	case "indexer.apikey":
		cfg.Indexer.APIKey = value
	case "indexer.timeout":
		cfg.Indexer.Timeout, err = time.ParseDuration(value)
	case "indexer.rps":
		cfg.Indexer.RPS, err = strconv.ParseFloat(value, 64)
	case "indexer.burst":
		cfg.Indexer.Burst, err = strconv.Atoi(value)
	case "indexer.mirror":
		cfg.Indexer.Mirror = value

	case "wallet.keystore":
		cfg.Wallet.Keystore = value
	case "wallet.name":
		cfg.Wallet.Name = value
	case "wallet.account":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 31)
		cfg.Wallet.Account = uint32(n)
	case "wallet.recipient":
		cfg.Wallet.Recipient = value

	case "mint.tick":
		cfg.Mint.Tick = value
	case "mint.amount":
		cfg.Mint.Amount = value
	case "mint.descriptor":
		cfg.Mint.Descriptor = value
	case "mint.maxcounter":
		cfg.Mint.MaxCounter, err = strconv.ParseUint(value, 10, 64)
	case "mint.count":
		cfg.Mint.Count, err = strconv.Atoi(value)
	case "mint.poll":
		cfg.Mint.Poll, err = time.ParseDuration(value)

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// WriteDefaultConfig writes a commented default config file.
func WriteDefaultConfig(path string, network NetworkType) error {
	d := Default(network)
	content := `# N20 minter configuration
#
# Deployment parameters (supply, limit, start height, bitwork) are not
# settings. They come from the built-in NOTE deployment or the JSON file
# named by mint.descriptor.
#
# Secrets are read from the environment only:
#   N20_WALLET_PASSWORD  keystore password
#   N20_MNEMONIC         use a mnemonic instead of a keystore

# Network: mainnet or testnet
network = ` + string(network) + `

# ============================================================================
# Indexer
# ============================================================================

indexer.url = ` + d.Indexer.URL + `
indexer.apikey = ` + d.Indexer.APIKey + `
indexer.timeout = ` + d.Indexer.Timeout.String() + `
indexer.rps = ` + strconv.FormatFloat(d.Indexer.RPS, 'f', -1, 64) + `
indexer.burst = ` + strconv.Itoa(d.Indexer.Burst) + `

# Relay successful broadcasts to a second endpoint
# indexer.mirror =

# ============================================================================
# Wallet
# ============================================================================

wallet.name = ` + d.Wallet.Name + `
wallet.account = 0
# wallet.keystore = <datadir>/` + string(network) + `/keystore

# Send minted notes to another address (default: the minting address)
# wallet.recipient =

# ============================================================================
# Minting
# ============================================================================

mint.tick = ` + d.Mint.Tick + `
mint.amount = ` + d.Mint.Amount + `
# mint.descriptor = /path/to/deployment.json
mint.maxcounter = ` + strconv.FormatUint(d.Mint.MaxCounter, 10) + `

# Successful mints before n20-minerd exits (0 = run until stopped)
mint.count = ` + strconv.Itoa(d.Mint.Count) + `
mint.poll = ` + d.Mint.Poll.String() + `

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
