package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/Klingon-tech/n20-pow-minter/pkg/types"
)

const keystoreExt = ".keystore"

// Keystore errors.
var (
	ErrKeystoreExists   = errors.New("keystore already exists")
	ErrKeystoreNotFound = errors.New("keystore not found")
)

// keystoreFile is the on-disk JSON format of one encrypted seed.
type keystoreFile struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Account    uint32    `json:"account"`
	Address    string    `json:"address"`
	SealedSeed []byte    `json:"sealed_seed"`
}

// KeystoreEntry is the public metadata of a keystore. Reading it does not
// need the password.
type KeystoreEntry struct {
	Name      string
	Account   uint32
	Address   types.Address
	CreatedAt time.Time
}

// Keystore manages encrypted seeds in a directory, one file per name.
type Keystore struct {
	dir string
}

// NewKeystore opens the keystore directory, creating it if needed.
func NewKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{dir: dir}, nil
}

func (ks *Keystore) path(name string) string {
	return filepath.Join(ks.dir, name+keystoreExt)
}

// Import seals seed under password and records the mint address derived
// for account.
func (ks *Keystore) Import(name string, seed, password []byte, account uint32, params EncryptionParams) (*KeystoreEntry, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid keystore name %q", name)
	}
	path := ks.path(name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeystoreExists, name)
	}

	addr, err := mintAddress(seed, account)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(seed, password, params)
	if err != nil {
		return nil, fmt.Errorf("seal seed: %w", err)
	}
	kf := keystoreFile{
		Version:    1,
		CreatedAt:  time.Now().UTC(),
		Account:    account,
		Address:    addr.Hex(),
		SealedSeed: sealed,
	}
	data, err := sonic.ConfigStd.MarshalIndent(&kf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal keystore: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("write keystore: %w", err)
	}
	return &KeystoreEntry{Name: name, Account: account, Address: addr, CreatedAt: kf.CreatedAt}, nil
}

// Entry returns the public metadata of a keystore.
func (ks *Keystore) Entry(name string) (*KeystoreEntry, error) {
	kf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	addr, err := types.HexToAddress(kf.Address)
	if err != nil {
		return nil, fmt.Errorf("keystore %s: %w", name, err)
	}
	return &KeystoreEntry{Name: name, Account: kf.Account, Address: addr, CreatedAt: kf.CreatedAt}, nil
}

// Unlock decrypts the seed and returns the mint signing key of the stored
// account. The caller should Zero the key when done.
func (ks *Keystore) Unlock(name string, password []byte) (*crypto.PrivateKey, error) {
	kf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	seed, err := Open(kf.SealedSeed, password)
	if err != nil {
		return nil, err
	}
	defer clear(seed)
	return MintKey(seed, kf.Account)
}

// List returns the keystore names, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), keystoreExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), keystoreExt))
	}
	sort.Strings(names)
	return names, nil
}

func (ks *Keystore) read(name string) (*keystoreFile, error) {
	data, err := os.ReadFile(ks.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeystoreNotFound, name)
		}
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var kf keystoreFile
	if err := sonic.ConfigStd.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse keystore %s: %w", name, err)
	}
	return &kf, nil
}

// MintKey derives the signing key for account from seed.
func MintKey(seed []byte, account uint32) (*crypto.PrivateKey, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	child, err := master.DeriveMintKey(account, 0)
	if err != nil {
		return nil, err
	}
	return child.Signer()
}

// KeyFromMnemonic derives the signing key for account straight from a
// mnemonic, for setups that keep the phrase in the environment.
func KeyFromMnemonic(mnemonic, passphrase string, account uint32) (*crypto.PrivateKey, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer clear(seed)
	return MintKey(seed, account)
}

func mintAddress(seed []byte, account uint32) (types.Address, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return types.Address{}, err
	}
	child, err := master.DeriveMintKey(account, 0)
	if err != nil {
		return types.Address{}, err
	}
	return child.Address(), nil
}
