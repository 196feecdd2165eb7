package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/config"
	"github.com/Klingon-tech/n20-pow-minter/internal/contract"
	"github.com/Klingon-tech/n20-pow-minter/internal/journal"
	"github.com/Klingon-tech/n20-pow-minter/internal/miner"
	"github.com/Klingon-tech/n20-pow-minter/internal/storage"
	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
)

// ErrPasswordRequired is returned when a keystore must be unlocked but no
// password was supplied.
var ErrPasswordRequired = errors.New("keystore password required (set N20_WALLET_PASSWORD)")

// maxBackoffShift caps exponential backoff at 16 poll intervals.
const maxBackoffShift = 4

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// LoadKey resolves the signing key. A mnemonic in the environment wins
// over the keystore; otherwise the named keystore is unlocked with
// password, falling back to the configured one.
func LoadKey(cfg *config.Config, password []byte) (*crypto.PrivateKey, error) {
	if cfg.Wallet.Mnemonic != "" {
		key, err := wallet.KeyFromMnemonic(cfg.Wallet.Mnemonic, "", cfg.Wallet.Account)
		if err != nil {
			return nil, fmt.Errorf("mnemonic: %w", err)
		}
		return key, nil
	}
	if len(password) == 0 {
		password = []byte(cfg.Wallet.Password)
	}
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	ks, err := OpenKeystore(cfg)
	if err != nil {
		return nil, err
	}
	key, err := ks.Unlock(cfg.Wallet.Name, password)
	if err != nil {
		return nil, fmt.Errorf("unlock %s: %w", cfg.Wallet.Name, err)
	}
	return key, nil
}

// OpenKeystore opens the configured keystore directory.
func OpenKeystore(cfg *config.Config) (*wallet.Keystore, error) {
	return wallet.NewKeystore(expandHome(cfg.KeystoreDir()))
}

// OpenJournal opens the mint journal. Every network shares one database
// under its own key prefix. The caller closes the returned DB.
func OpenJournal(cfg *config.Config) (*journal.Journal, storage.DB, error) {
	db, err := storage.NewBadger(cfg.JournalDir())
	if err != nil {
		return nil, nil, err
	}
	ns := storage.NewPrefixDB(db, []byte(string(cfg.Network)+"/"))
	return journal.New(ns), db, nil
}

// SchemaFor returns the contract schema a deployment refers to: the
// built-in one, or <datadir>/schemas/<id>.json.
func SchemaFor(cfg *config.Config, d *n20.Descriptor) (*contract.Schema, error) {
	def := contract.DefaultSchema()
	if d.Schema() == def.ID {
		return def, nil
	}
	path := filepath.Join(cfg.DataDir, "schemas", d.Schema()+".json")
	schema, err := contract.LoadSchema(path)
	if err != nil {
		return nil, err
	}
	if schema.ID != d.Schema() {
		return nil, fmt.Errorf("schema %s declares id %s", path, schema.ID)
	}
	return schema, nil
}

// backoff returns how long to wait before the next attempt after an
// attempt of the given kind. failures counts consecutive failed attempts
// including this one. A success waits one poll so the indexer sees the
// spent outputs before the next selection.
func backoff(kind miner.Kind, failures int, poll time.Duration) time.Duration {
	switch kind {
	case miner.KindNone, miner.KindWaiting:
		return poll
	}
	shift := min(max(failures-1, 0), maxBackoffShift)
	return poll << shift
}

// entryFor converts an attempt result into a journal entry.
func entryFor(tick string, res miner.Result) *journal.Entry {
	e := &journal.Entry{
		Ticker:     tick,
		Height:     res.Height,
		StartNonce: res.StartNonce,
		Nonce:      res.Nonce,
		Iterations: res.Checks,
		Success:    res.Success,
		TxID:       res.TxID(),
	}
	if res.Err != nil {
		e.Kind = res.Kind().String()
		e.Error = res.Error()
	}
	return e
}
