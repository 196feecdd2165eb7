package miner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/n20-pow-minter/internal/urchain"
	"github.com/Klingon-tech/n20-pow-minter/internal/wallet"
)

// Attempt errors.
var (
	ErrWaitingForStart    = errors.New("waiting for start height")
	ErrVerificationFailed = errors.New("contract verification failed")
	ErrSearchExhausted    = errors.New("nonce range exhausted")
	ErrTransport          = errors.New("indexer request failed")
)

// VerificationError reports a matching candidate the contract rejected.
// The search stops at the first one.
type VerificationError struct {
	Nonce       uint64
	TxID        string
	Diagnostics []string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s at nonce %d (tx %s): %s",
		ErrVerificationFailed, e.Nonce, e.TxID, strings.Join(e.Diagnostics, "; "))
}

func (e *VerificationError) Unwrap() error { return ErrVerificationFailed }

// ExhaustedError reports a search that ran out of nonces.
type ExhaustedError struct {
	Ticker string
	Checks uint64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("Failed to mint %s token", e.Ticker)
}

func (e *ExhaustedError) Unwrap() error { return ErrSearchExhausted }

// Kind classifies an attempt error for callers that decide whether and
// when to retry.
type Kind int

const (
	KindNone Kind = iota
	KindWaiting
	KindVerification
	KindExhausted
	KindFunds
	KindRejected
	KindTransport
	KindCanceled
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWaiting:
		return "waiting"
	case KindVerification:
		return "verification"
	case KindExhausted:
		return "exhausted"
	case KindFunds:
		return "funds"
	case KindRejected:
		return "rejected"
	case KindTransport:
		return "transport"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// Classify maps err to its Kind.
func Classify(err error) Kind {
	var apiErr *urchain.APIError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrWaitingForStart):
		return KindWaiting
	case errors.Is(err, ErrVerificationFailed):
		return KindVerification
	case errors.Is(err, ErrSearchExhausted):
		return KindExhausted
	case errors.Is(err, wallet.ErrInsufficientFunds), errors.Is(err, wallet.ErrNoUTXOs):
		return KindFunds
	case errors.Is(err, urchain.ErrRejected):
		return KindRejected
	case errors.Is(err, ErrTransport), errors.As(err, &apiErr):
		return KindTransport
	default:
		return KindOther
	}
}
