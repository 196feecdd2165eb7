// Package urchain is a client for the urchain N20 indexer HTTP API.
package urchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Klingon-tech/n20-pow-minter/internal/log"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultRPS      = 10
	DefaultBurst    = 20
	DefaultCacheTTL = 30 * time.Second
)

// ErrRejected is returned by Broadcast when the indexer refuses a transaction.
var ErrRejected = errors.New("broadcast rejected")

// APIError is returned when the indexer answers with a non-2xx status.
type APIError struct {
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("indexer %s: status %d: %s", e.Path, e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	RPS      float64
	Burst    int
	CacheTTL time.Duration
	// MirrorURL, when set, receives a best-effort copy of every successful
	// broadcast.
	MirrorURL string
}

// Client talks to the indexer. Safe for concurrent use.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	cache   *cache.Cache
	mirror  *mirror
}

// New creates an indexer client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("indexer url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTimeout(cfg.Timeout).
		SetDisableWarn(true)

	c := &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
	if cfg.MirrorURL != "" {
		c.mirror = newMirror(cfg.MirrorURL, cfg.Timeout)
	}
	return c, nil
}

func post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var result T
	if err := c.limiter.Wait(ctx); err != nil {
		return result, fmt.Errorf("post %s: %w", path, err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		ForceContentType("application/json").
		Post(path)
	if err != nil {
		log.Indexer.Debug().Err(err).Str("path", path).Msg("Post request failed")
		return result, fmt.Errorf("post %s: %w", path, err)
	}
	if resp.IsError() {
		log.Indexer.Debug().Int("status", resp.StatusCode()).Str("path", path).Msg("Post non-2xx")
		return result, &APIError{Path: path, Status: resp.StatusCode(), Body: resp.String()}
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, result any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("get %s: %w", path, err)
	}
	req := c.http.R().SetContext(ctx)
	if result != nil {
		req.SetResult(result).ForceContentType("application/json")
	}
	resp, err := req.Get(path)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", path, err)
	}
	if resp.IsError() {
		return "", &APIError{Path: path, Status: resp.StatusCode(), Body: resp.String()}
	}
	return resp.String(), nil
}

// Health returns the indexer's health string.
func (c *Client) Health(ctx context.Context) (string, error) {
	return c.get(ctx, "/health", nil)
}

// FeePerKb returns current fee estimates. Results are cached briefly.
func (c *Client) FeePerKb(ctx context.Context) (*Fees, error) {
	if v, ok := c.cache.Get("fees"); ok {
		f := v.(Fees)
		return &f, nil
	}
	var fees Fees
	if _, err := c.get(ctx, "/fees", &fees); err != nil {
		return nil, err
	}
	c.cache.SetDefault("fees", fees)
	return &fees, nil
}

// Balance returns the coin balance of a script hash.
func (c *Client) Balance(ctx context.Context, scriptHash string) (*Balance, error) {
	b, err := post[Balance](ctx, c, "/balance", map[string]any{"scriptHash": scriptHash})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// TokenBalance returns the balance of tick held by a script hash.
func (c *Client) TokenBalance(ctx context.Context, scriptHash, tick string) (*Balance, error) {
	b, err := post[Balance](ctx, c, "/token-balance", map[string]any{"scriptHash": scriptHash, "tick": tick})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// TokenList returns every token held by a script hash.
func (c *Client) TokenList(ctx context.Context, scriptHash string) ([]Token, error) {
	return post[[]Token](ctx, c, "/token-list", map[string]any{"scriptHash": scriptHash})
}

// UTXOs returns unspent outputs of the given script hashes. A non-zero
// satoshis asks the indexer for just enough outputs to cover that amount.
func (c *Client) UTXOs(ctx context.Context, scriptHashes []string, satoshis uint64) ([]UTXO, error) {
	body := map[string]any{"scriptHashs": scriptHashes}
	if satoshis > 0 {
		body["satoshis"] = satoshis
	}
	return post[[]UTXO](ctx, c, "/utxos", body)
}

// Tx returns a transaction by ID.
func (c *Client) Tx(ctx context.Context, txID string) (*TxInfo, error) {
	tx, err := post[TxInfo](ctx, c, "/tx", map[string]any{"txId": txID})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Refresh asks the indexer to re-fetch the history of a script hash.
func (c *Client) Refresh(ctx context.Context, scriptHash string) (*Message, error) {
	m, err := post[Message](ctx, c, "/fetch-history", map[string]any{"scriptHash": scriptHash})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Reset drops the indexer's cached state for a script hash.
func (c *Client) Reset(ctx context.Context, scriptHash string) (*Message, error) {
	m, err := post[Message](ctx, c, "/reset", map[string]any{"scriptHash": scriptHash})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// TXO returns a single transaction output.
func (c *Client) TXO(ctx context.Context, txID string, outputIndex uint32) (*TXO, error) {
	o, err := post[TXO](ctx, c, "/txo", map[string]any{"txId": txID, "outputIndex": outputIndex})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// TXOs returns outputs of address filtered by type.
func (c *Client) TXOs(ctx context.Context, address, typ string) ([]TXO, error) {
	return post[[]TXO](ctx, c, "/txos", map[string]any{"address": address, "type": typ})
}

// BestBlock returns the indexer's best block header.
func (c *Client) BestBlock(ctx context.Context) (*BlockHeader, error) {
	h, err := post[BlockHeader](ctx, c, "/best-header", map[string]any{})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// AllTokens lists every deployed N20 token.
func (c *Client) AllTokens(ctx context.Context) ([]TokenInfo, error) {
	return post[[]TokenInfo](ctx, c, "/all-n20-tokens", map[string]any{})
}

// TokenInfo returns deployment details of tick. Results are cached briefly.
func (c *Client) TokenInfo(ctx context.Context, tick string) (*TokenInfo, error) {
	key := "token:" + tick
	if v, ok := c.cache.Get(key); ok {
		info := v.(TokenInfo)
		return &info, nil
	}
	info, err := post[TokenInfo](ctx, c, "/token-info", map[string]any{"tick": tick})
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, info)
	return &info, nil
}

// Broadcast submits a raw transaction. A response with success=false is
// returned together with an error wrapping ErrRejected. After a successful
// broadcast the transaction is relayed to the mirror, if configured.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (*BroadcastResult, error) {
	res, err := post[BroadcastResult](ctx, c, "/broadcast", map[string]any{"rawHex": rawHex})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return &res, fmt.Errorf("%w: %v", ErrRejected, res.Error)
	}
	log.Indexer.Info().Str("txid", res.TxID).Msg("Transaction broadcast")
	if c.mirror != nil {
		c.mirror.relay(ctx, rawHex)
	}
	return &res, nil
}
