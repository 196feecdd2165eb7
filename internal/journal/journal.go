// Package journal persists the outcome of every mint attempt so the daemon
// can resume counting successes across restarts.
package journal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/internal/log"
	"github.com/Klingon-tech/n20-pow-minter/internal/storage"
	"github.com/bytedance/sonic"
)

var prefixMint = []byte("m/") // m/<ticker>/<unix-nano, 20 digits> -> Entry JSON

// Entry is one recorded mint attempt.
type Entry struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"tick"`
	Height     uint64    `json:"height"`
	StartNonce uint64    `json:"start_nonce"`
	Nonce      uint64    `json:"nonce"`
	Iterations uint64    `json:"iterations"`
	Success    bool      `json:"success"`
	TxID       string    `json:"txid,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Journal stores mint entries in a storage.DB.
type Journal struct {
	db  storage.DB
	now func() time.Time
}

// New creates a journal over db.
func New(db storage.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record stores e, assigning its ID and Time when unset.
func (j *Journal) Record(e *Entry) error {
	if e.Ticker == "" {
		return fmt.Errorf("journal record: empty ticker")
	}
	if e.Time.IsZero() {
		e.Time = j.now()
	}
	stamp := e.Time.UnixNano()
	key := entryKey(e.Ticker, stamp)
	for {
		exists, err := j.db.Has(key)
		if err != nil {
			return fmt.Errorf("journal record: %w", err)
		}
		if !exists {
			break
		}
		stamp++
		key = entryKey(e.Ticker, stamp)
	}
	e.ID = formatStamp(stamp)

	data, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal marshal: %w", err)
	}
	if err := j.db.Put(key, data); err != nil {
		return fmt.Errorf("journal put: %w", err)
	}
	log.Journal.Debug().
		Str("tick", e.Ticker).
		Str("id", e.ID).
		Bool("success", e.Success).
		Msg("Mint attempt recorded")
	return nil
}

// Get returns the entry with the given ticker and ID.
func (j *Journal) Get(ticker, id string) (*Entry, error) {
	stamp, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("journal get: bad id %q", id)
	}
	data, err := j.db.Get(entryKey(ticker, stamp))
	if err != nil {
		return nil, fmt.Errorf("journal get: %w", err)
	}
	var e Entry
	if err := sonic.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("journal unmarshal: %w", err)
	}
	return &e, nil
}

// ForEach visits the entries for ticker oldest first. An empty ticker
// visits every entry. Corrupt entries are skipped.
func (j *Journal) ForEach(ticker string, fn func(*Entry) error) error {
	prefix := prefixMint
	if ticker != "" {
		prefix = tickerPrefix(ticker)
	}
	return j.db.ForEach(prefix, func(_, value []byte) error {
		var e Entry
		if err := sonic.Unmarshal(value, &e); err != nil {
			log.Journal.Warn().Err(err).Msg("Skipping corrupt journal entry")
			return nil
		}
		return fn(&e)
	})
}

// List returns every entry for ticker, oldest first.
func (j *Journal) List(ticker string) ([]Entry, error) {
	entries := []Entry{}
	err := j.ForEach(ticker, func(e *Entry) error {
		entries = append(entries, *e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Recent returns at most n of the newest entries for ticker, newest first.
func (j *Journal) Recent(ticker string, n int) ([]Entry, error) {
	all, err := j.List(ticker)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// CountSuccess returns how many successful mints were recorded for ticker.
func (j *Journal) CountSuccess(ticker string) (int, error) {
	var n int
	err := j.ForEach(ticker, func(e *Entry) error {
		if e.Success {
			n++
		}
		return nil
	})
	return n, err
}

func tickerPrefix(ticker string) []byte {
	key := make([]byte, 0, len(prefixMint)+len(ticker)+1)
	key = append(key, prefixMint...)
	key = append(key, ticker...)
	return append(key, '/')
}

func entryKey(ticker string, stamp int64) []byte {
	return append(tickerPrefix(ticker), formatStamp(stamp)...)
}

func formatStamp(stamp int64) string {
	return fmt.Sprintf("%020d", stamp)
}
