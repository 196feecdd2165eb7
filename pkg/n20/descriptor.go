// Package n20 models N20 token deployments, mint requests and the JSON
// payloads carried by note outputs.
package n20

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/n20-pow-minter/pkg/bitwork"
)

// Protocol is the protocol identifier carried in every payload.
const Protocol = "n20"

// Payload operations.
const (
	OpDeploy   = "deploy"
	OpMint     = "mint"
	OpTransfer = "transfer"
)

// MaxDecimals is the largest decimals value a deployment may declare.
const MaxDecimals = 18

// Descriptor errors.
var (
	ErrEmptyTicker  = errors.New("empty ticker")
	ErrBadSupply    = errors.New("max supply must be positive")
	ErrBadLimit     = errors.New("mint limit must be positive and not exceed max supply")
	ErrBadDecimals  = errors.New("decimals out of range")
	ErrEmptySchema  = errors.New("empty schema id")
	ErrBadAmount    = errors.New("mint amount must be positive")
	ErrTickMismatch = errors.New("ticker does not match deployment")
)

// DescriptorParams are the raw fields of a deployment. Max and Lim are
// already scaled by 10^Decimals.
type DescriptorParams struct {
	Ticker   string
	Max      *big.Int
	Lim      *big.Int
	Decimals uint8
	Start    uint64
	Bitwork  string
	Schema   string
}

// Descriptor is an immutable token deployment. Accessors return copies.
type Descriptor struct {
	ticker   string
	max      *big.Int
	lim      *big.Int
	decimals uint8
	start    uint64
	bitwork  bitwork.Target
	schema   string
}

// NewDescriptor validates p and freezes it into a Descriptor.
func NewDescriptor(p DescriptorParams) (*Descriptor, error) {
	if p.Ticker == "" {
		return nil, ErrEmptyTicker
	}
	if p.Max == nil || p.Max.Sign() <= 0 {
		return nil, ErrBadSupply
	}
	if p.Lim == nil || p.Lim.Sign() <= 0 || p.Lim.Cmp(p.Max) > 0 {
		return nil, ErrBadLimit
	}
	if p.Decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: %d", ErrBadDecimals, p.Decimals)
	}
	if p.Schema == "" {
		return nil, ErrEmptySchema
	}
	target, err := bitwork.ParseTarget(p.Bitwork)
	if err != nil {
		return nil, err
	}
	return &Descriptor{
		ticker:   p.Ticker,
		max:      new(big.Int).Set(p.Max),
		lim:      new(big.Int).Set(p.Lim),
		decimals: p.Decimals,
		start:    p.Start,
		bitwork:  target,
		schema:   p.Schema,
	}, nil
}

func (d *Descriptor) Ticker() string          { return d.ticker }
func (d *Descriptor) Max() *big.Int           { return new(big.Int).Set(d.max) }
func (d *Descriptor) Lim() *big.Int           { return new(big.Int).Set(d.lim) }
func (d *Descriptor) Decimals() uint8         { return d.decimals }
func (d *Descriptor) Start() uint64           { return d.start }
func (d *Descriptor) Bitwork() bitwork.Target { return d.bitwork }
func (d *Descriptor) Schema() string          { return d.schema }

// Active reports whether minting is open at height.
func (d *Descriptor) Active(height uint64) bool {
	return height >= d.start
}

// DeployPayload returns the payload that deploys this token.
func (d *Descriptor) DeployPayload() Payload {
	dec := d.decimals
	start := d.start
	return Payload{
		P:       Protocol,
		Op:      OpDeploy,
		Tick:    d.ticker,
		Max:     d.Max(),
		Lim:     d.Lim(),
		Dec:     &dec,
		Start:   &start,
		Bitwork: d.bitwork.String(),
		Sch:     d.schema,
	}
}

// MintRequest asks for a single mint of Amount base units of Ticker.
type MintRequest struct {
	ticker string
	amount *big.Int
}

// NewMintRequest validates and freezes a mint request.
func NewMintRequest(ticker string, amount *big.Int) (*MintRequest, error) {
	if ticker == "" {
		return nil, ErrEmptyTicker
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrBadAmount
	}
	return &MintRequest{ticker: ticker, amount: new(big.Int).Set(amount)}, nil
}

func (r *MintRequest) Ticker() string   { return r.ticker }
func (r *MintRequest) Amount() *big.Int { return new(big.Int).Set(r.amount) }

// CheckAgainst verifies the request targets the deployment d.
func (r *MintRequest) CheckAgainst(d *Descriptor) error {
	if r.ticker != d.ticker {
		return fmt.Errorf("%w: %s != %s", ErrTickMismatch, r.ticker, d.ticker)
	}
	return nil
}

// MintPayload returns the payload for this request with a zero nonce.
func (r *MintRequest) MintPayload() Payload {
	return Payload{
		P:    Protocol,
		Op:   OpMint,
		Tick: r.ticker,
		Amt:  r.Amount(),
	}
}
