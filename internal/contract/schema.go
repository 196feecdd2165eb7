// Package contract verifies N20 operation records offline against a
// versioned proof-of-work token schema.
package contract

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/Klingon-tech/n20-pow-minter/pkg/crypto"
	"github.com/bytedance/sonic"
)

//go:embed n20-pow.json
var defaultSchemaJSON []byte

// Operation names a lifecycle operation declared by a schema.
type Operation string

const (
	OpDeploy   Operation = "deploy"
	OpMint     Operation = "mint"
	OpTransfer Operation = "transfer"
)

// Record names used by schema operations.
const (
	RecordConstructor = "constructor"
	RecordMint        = "mint"
	RecordTransfer    = "transfer"
)

// OperationSpec declares which record an operation checks and the fields
// that record must carry.
type OperationSpec struct {
	Record string   `json:"record"`
	Fields []string `json:"fields"`
}

// Schema is a parsed, versioned contract schema. Treat as read-only.
type Schema struct {
	ID         string                      `json:"id"`
	Name       string                      `json:"name"`
	Version    int                         `json:"version"`
	Hash       string                      `json:"hash"`
	Operations map[Operation]OperationSpec `json:"operations"`

	hasher crypto.CommitmentHasher
}

// ParseSchema parses and validates a schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("parse schema: missing id")
	}
	if s.Version < 1 {
		return nil, fmt.Errorf("parse schema %s: unsupported version %d", s.ID, s.Version)
	}
	hasher, err := crypto.HasherFor(s.Hash)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", s.ID, err)
	}
	s.hasher = hasher
	for op, rule := range s.Operations {
		switch rule.Record {
		case RecordConstructor, RecordMint, RecordTransfer:
		default:
			return nil, fmt.Errorf("parse schema %s: operation %s uses unknown record %q", s.ID, op, rule.Record)
		}
	}
	return &s, nil
}

// LoadSchema reads a schema document from path.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

// DefaultSchema returns the built-in n20-pow schema.
func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded schema: %v", err))
	}
	return s
}

// Hasher returns the commitment hasher the schema mines with.
func (s *Schema) Hasher() crypto.CommitmentHasher {
	return s.hasher
}

// Declares reports whether op is part of the schema.
func (s *Schema) Declares(op Operation) bool {
	_, ok := s.Operations[op]
	return ok
}

// OperationNames returns the declared operations in sorted order.
func (s *Schema) OperationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for op := range s.Operations {
		names = append(names, string(op))
	}
	sort.Strings(names)
	return names
}
