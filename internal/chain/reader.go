package chain

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/coss1333/Qr-market/internal/chain/retry"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/shopspring/decimal"
)

// TransferEvidence is one observed value transfer.
type TransferEvidence struct {
	To     string
	Amount decimal.Decimal
	// Reference identifies the transfer on chain (tx hash, or tx hash and log index).
	Reference string
	Block     int64
}

// Query selects the transfers a reader should look for.
type Query struct {
	Address       string
	TokenContract string
	// Window overrides the reader's default block window when positive.
	Window int64
}

// Reader reads recent transfer evidence from one chain family.
type Reader interface {
	// Chain returns the chain family the reader serves.
	Chain() model.Chain

	// RecentTransfers yields transfers to q.Address inside a bounded window of
	// the most recent blocks, newest first. Each call rescans from the head.
	// An empty sequence means nothing was found. A failed read yields a single
	// error, which is an *UnavailableError when the upstream could not be reached.
	RecentTransfers(ctx context.Context, q Query) iter.Seq2[TransferEvidence, error]

	// NormalizeAddress canonicalizes an address for equality comparison.
	NormalizeAddress(address string) string
}

// UnavailableError reports that a chain's RPC endpoint could not be reached
// or did not answer in time. It is distinct from finding no transfers.
type UnavailableError struct {
	Chain model.Chain
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("chain %s unavailable: %v", e.Chain, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is or wraps an *UnavailableError.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}

// ClassifyReadError wraps transient upstream failures in *UnavailableError and
// returns other errors unchanged.
func ClassifyReadError(c model.Chain, err error) error {
	if err == nil || IsUnavailable(err) {
		return err
	}
	if retry.Classify(err).IsTransient() {
		return &UnavailableError{Chain: c, Err: err}
	}
	return err
}

// Fail returns a sequence that yields only err.
func Fail(err error) iter.Seq2[TransferEvidence, error] {
	return func(yield func(TransferEvidence, error) bool) {
		yield(TransferEvidence{}, err)
	}
}

// Empty returns a sequence with no items.
func Empty() iter.Seq2[TransferEvidence, error] {
	return func(func(TransferEvidence, error) bool) {}
}

// FromSlice returns a sequence over items in slice order.
func FromSlice(items []TransferEvidence) iter.Seq2[TransferEvidence, error] {
	return func(yield func(TransferEvidence, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains seq, stopping at the first error.
func Collect(seq iter.Seq2[TransferEvidence, error]) ([]TransferEvidence, error) {
	var out []TransferEvidence
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
