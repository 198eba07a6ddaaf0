// Package payment decides whether observed transfers settle a lot's price.
package payment

import (
	"iter"
	"strings"

	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/shopspring/decimal"
)

// Epsilon absorbs rounding left over from decimal normalization.
var Epsilon = decimal.New(1, -12)

// Result is the outcome of a match. Evidence is the first qualifying
// transfer when Paid is true.
type Result struct {
	Paid     bool
	Evidence chain.TransferEvidence
}

// Matcher judges transfer evidence against a payment target. Sender and memo
// are not considered: any qualifying transfer to the address counts.
type Matcher struct {
	epsilon decimal.Decimal
}

func NewMatcher() *Matcher {
	return &Matcher{epsilon: Epsilon}
}

// Match consumes evidence until a transfer to target of at least minimum
// (within epsilon) is found. normalize canonicalizes addresses per chain
// convention; nil compares trimmed strings. An error from the sequence is
// returned only if no match was found before it.
func (m *Matcher) Match(evidence iter.Seq2[chain.TransferEvidence, error], target string, minimum decimal.Decimal, normalize func(string) string) (Result, error) {
	if normalize == nil {
		normalize = strings.TrimSpace
	}
	want := normalize(target)
	for ev, err := range evidence {
		if err != nil {
			return Result{}, err
		}
		if m.qualifies(ev, want, minimum, normalize) {
			return Result{Paid: true, Evidence: ev}, nil
		}
	}
	return Result{}, nil
}

// IsPaid reports whether any item in evidence pays at least minimum to target.
func (m *Matcher) IsPaid(evidence []chain.TransferEvidence, target string, minimum decimal.Decimal, normalize func(string) string) bool {
	res, _ := m.Match(chain.FromSlice(evidence), target, minimum, normalize)
	return res.Paid
}

func (m *Matcher) qualifies(ev chain.TransferEvidence, want string, minimum decimal.Decimal, normalize func(string) string) bool {
	if want == "" || normalize(ev.To) != want {
		return false
	}
	return ev.Amount.Add(m.epsilon).GreaterThanOrEqual(minimum)
}
