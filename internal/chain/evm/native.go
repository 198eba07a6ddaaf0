package evm

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/coss1333/Qr-market/internal/cache"
	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/coss1333/Qr-market/internal/chain/evm/rpc"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/metrics"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

const (
	DefaultNativeWindow   = 500
	defaultNativePageSize = 50
	defaultNativeDecimals = 18
	// Blocks this close to head are never cached; they may still be replaced.
	defaultCacheConfirmations = 15
)

type NativeScannerConfig struct {
	Chain    model.Chain
	Window   int64
	PageSize int
	Decimals int32
	// CacheSize bounds the number of scanned blocks kept between ticks.
	// Zero disables caching.
	CacheSize     int
	CacheTTL      time.Duration
	Confirmations int64
}

// nativeTransfer is the part of a block transaction the scanner keeps.
type nativeTransfer struct {
	to    string
	value decimal.Decimal
	hash  string
}

// NativeTransferScanner finds direct native-coin transfers by walking the most
// recent blocks backward from the chain head. Payments older than the window
// are invisible.
type NativeTransferScanner struct {
	client rpc.RPCClient
	cfg    NativeScannerConfig
	blocks *cache.LRU[int64, []nativeTransfer]
	logger *slog.Logger
}

var _ chain.Reader = (*NativeTransferScanner)(nil)

func NewNativeTransferScanner(client rpc.RPCClient, cfg NativeScannerConfig, logger *slog.Logger) *NativeTransferScanner {
	if cfg.Window <= 0 {
		cfg.Window = DefaultNativeWindow
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultNativePageSize
	}
	if cfg.Decimals <= 0 {
		cfg.Decimals = defaultNativeDecimals
	}
	if cfg.Confirmations <= 0 {
		cfg.Confirmations = defaultCacheConfirmations
	}
	return &NativeTransferScanner{
		client: client,
		cfg:    cfg,
		blocks: cache.NewLRU[int64, []nativeTransfer](cfg.CacheSize, cfg.CacheTTL),
		logger: logger.With("component", "native_scanner", "chain", cfg.Chain.String()),
	}
}

func (s *NativeTransferScanner) Chain() model.Chain {
	return s.cfg.Chain
}

func (s *NativeTransferScanner) NormalizeAddress(address string) string {
	return NormalizeAddress(address)
}

// RecentTransfers yields transfers to q.Address found in blocks
// (head-window, head], newest block first.
func (s *NativeTransferScanner) RecentTransfers(ctx context.Context, q chain.Query) iter.Seq2[chain.TransferEvidence, error] {
	return func(yield func(chain.TransferEvidence, error) bool) {
		head, err := s.client.GetBlockNumber(ctx)
		if err != nil {
			yield(chain.TransferEvidence{}, chain.ClassifyReadError(s.cfg.Chain, err))
			return
		}

		window := s.cfg.Window
		if q.Window > 0 {
			window = q.Window
		}
		lowest := max(head-window+1, 0)
		target := NormalizeAddress(q.Address)
		found := 0
		defer func() {
			metrics.ChainEvidenceFound.WithLabelValues(s.cfg.Chain.String(), "native").Add(float64(found))
		}()

		for hi := head; hi >= lowest; hi -= int64(s.cfg.PageSize) {
			lo := max(hi-int64(s.cfg.PageSize)+1, lowest)
			page, err := s.loadPage(ctx, head, lo, hi)
			if err != nil {
				yield(chain.TransferEvidence{}, chain.ClassifyReadError(s.cfg.Chain, err))
				return
			}
			for i, transfers := range page {
				blockNum := hi - int64(i)
				for j := len(transfers) - 1; j >= 0; j-- {
					tr := transfers[j]
					if tr.to != target {
						continue
					}
					found++
					ev := chain.TransferEvidence{To: tr.to, Amount: tr.value, Reference: tr.hash, Block: blockNum}
					if !yield(ev, nil) {
						return
					}
				}
			}
		}

		s.logger.Debug("native scan complete",
			"address", target,
			"head_block", head,
			"lowest_block", lowest,
			"found", found,
		)
	}
}

// loadPage returns the transfers of blocks hi down to lo, consulting the
// block cache first and batch-fetching whatever is missing.
func (s *NativeTransferScanner) loadPage(ctx context.Context, head, lo, hi int64) ([][]nativeTransfer, error) {
	page := make([][]nativeTransfer, hi-lo+1)
	var missing []int64
	var missingIdx []int
	for n := hi; n >= lo; n-- {
		idx := int(hi - n)
		if cached, ok := s.blocks.Get(n); ok {
			metrics.BlockCacheHits.WithLabelValues(s.cfg.Chain.String()).Inc()
			page[idx] = cached
			continue
		}
		metrics.BlockCacheMisses.WithLabelValues(s.cfg.Chain.String()).Inc()
		missing = append(missing, n)
		missingIdx = append(missingIdx, idx)
	}
	metrics.ChainBlocksScanned.WithLabelValues(s.cfg.Chain.String(), "native").Add(float64(len(page)))
	if len(missing) == 0 {
		return page, nil
	}

	blocks, err := s.client.GetBlocksByNumber(ctx, missing, true)
	if err != nil {
		return nil, err
	}
	for i, block := range blocks {
		transfers := s.extract(block)
		page[missingIdx[i]] = transfers
		if block != nil && missing[i] <= head-s.cfg.Confirmations {
			s.blocks.Put(missing[i], transfers)
		}
	}
	return page, nil
}

func (s *NativeTransferScanner) extract(block *rpc.Block) []nativeTransfer {
	if block == nil {
		return nil
	}
	var out []nativeTransfer
	for _, tx := range block.Transactions {
		if tx == nil || strings.TrimSpace(tx.To) == "" {
			continue
		}
		value, err := hexutil.DecodeBig(tx.Value)
		if err != nil {
			s.logger.Debug("skip tx with unparseable value", "hash", tx.Hash, "value", tx.Value, "error", err)
			continue
		}
		if value.Sign() <= 0 {
			continue
		}
		out = append(out, nativeTransfer{
			to:    NormalizeAddress(tx.To),
			value: decimal.NewFromBigInt(value, -s.cfg.Decimals),
			hash:  tx.Hash,
		})
	}
	return out
}
