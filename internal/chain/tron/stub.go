// Package tron holds the TRON payment reader. TRON has no lookup path in this
// service yet, so every check reports no transfers.
package tron

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/coss1333/Qr-market/internal/domain/model"
)

// UnsupportedChainStub never contacts the network and always yields an empty
// sequence. Lots priced in TRC20 therefore stay awaiting payment until a real
// TRON indexer integration replaces it.
type UnsupportedChainStub struct {
	logger *slog.Logger
}

var _ chain.Reader = (*UnsupportedChainStub)(nil)

func NewUnsupportedChainStub(logger *slog.Logger) *UnsupportedChainStub {
	return &UnsupportedChainStub{logger: logger.With("component", "tron_stub")}
}

func (s *UnsupportedChainStub) Chain() model.Chain {
	return model.ChainTron
}

// NormalizeAddress only trims; base58 addresses are case-sensitive.
func (s *UnsupportedChainStub) NormalizeAddress(address string) string {
	return strings.TrimSpace(address)
}

func (s *UnsupportedChainStub) RecentTransfers(_ context.Context, q chain.Query) iter.Seq2[chain.TransferEvidence, error] {
	s.logger.Debug("tron lookup not implemented, reporting no transfers", "address", q.Address, "token", q.TokenContract)
	return chain.Empty()
}
