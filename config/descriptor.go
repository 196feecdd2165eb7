package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/bytedance/sonic"

	"github.com/Klingon-tech/n20-pow-minter/pkg/n20"
)

// descriptorFile is the JSON layout of a deployment descriptor. Max and
// lim are integers in base units, kept as text so they do not lose
// precision.
type descriptorFile struct {
	Tick    string      `json:"tick"`
	Max     json.Number `json:"max"`
	Lim     json.Number `json:"lim"`
	Dec     uint8       `json:"dec"`
	Start   uint64      `json:"start"`
	Bitwork string      `json:"bitwork"`
	Sch     string      `json:"sch"`
}

// ParseDescriptor decodes a deployment descriptor document.
func ParseDescriptor(data []byte) (*n20.Descriptor, error) {
	var f descriptorFile
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	maxSupply, err := baseUnits("max", f.Max)
	if err != nil {
		return nil, err
	}
	lim, err := baseUnits("lim", f.Lim)
	if err != nil {
		return nil, err
	}
	d, err := n20.NewDescriptor(n20.DescriptorParams{
		Ticker:   f.Tick,
		Max:      maxSupply,
		Lim:      lim,
		Decimals: f.Dec,
		Start:    f.Start,
		Bitwork:  f.Bitwork,
		Schema:   f.Sch,
	})
	if err != nil {
		return nil, fmt.Errorf("descriptor: %w", err)
	}
	return d, nil
}

// LoadDescriptor reads a deployment descriptor file.
func LoadDescriptor(path string) (*n20.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return ParseDescriptor(data)
}

// Descriptor returns the deployment selected by mint.descriptor, or the
// default NOTE deployment.
func (c *Config) Descriptor() (*n20.Descriptor, error) {
	if c.Mint.Descriptor == "" {
		return DefaultDescriptor(), nil
	}
	return LoadDescriptor(c.Mint.Descriptor)
}

// MintRequest builds the request for mint.tick and mint.amount, scaling
// the amount by the deployment's decimals.
func (c *Config) MintRequest(d *n20.Descriptor) (*n20.MintRequest, error) {
	amt, err := n20.ParseAmount(c.Mint.Amount, d.Decimals())
	if err != nil {
		return nil, fmt.Errorf("mint.amount: %w", err)
	}
	req, err := n20.NewMintRequest(c.Mint.Tick, amt)
	if err != nil {
		return nil, err
	}
	if err := req.CheckAgainst(d); err != nil {
		return nil, err
	}
	return req, nil
}

func baseUnits(field string, n json.Number) (*big.Int, error) {
	if n == "" {
		return nil, fmt.Errorf("descriptor %s is required", field)
	}
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return nil, fmt.Errorf("descriptor %s %q is not an integer", field, n)
	}
	return v, nil
}
