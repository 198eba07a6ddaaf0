package evm

import (
	"context"
	"iter"
	"log/slog"
	"sort"
	"strings"

	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/coss1333/Qr-market/internal/chain/evm/rpc"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	DefaultTokenWindow   = 5000
	defaultTokenDecimals  = 18
)

type TokenScannerConfig struct {
	Chain  model.Chain
	Window int64
}

// TokenTransferLogScanner finds token payments by querying Transfer logs of
// the token contract over a wide window of recent blocks.
//
// When the recipient-filtered query fails it retries with a contract-only
// query and filters locally. If that also fails the scan yields nothing:
// a broken filter must never look like a payment.
type TokenTransferLogScanner struct {
	client rpc.RPCClient
	cfg    TokenScannerConfig
	logger *slog.Logger
}

var _ chain.Reader = (*TokenTransferLogScanner)(nil)

func NewTokenTransferLogScanner(client rpc.RPCClient, cfg TokenScannerConfig, logger *slog.Logger) *TokenTransferLogScanner {
	if cfg.Window <= 0 {
		cfg.Window = DefaultTokenWindow
	}
	return &TokenTransferLogScanner{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "token_scanner", "chain", cfg.Chain.String()),
	}
}

func (s *TokenTransferLogScanner) Chain() model.Chain {
	return s.cfg.Chain
}

func (s *TokenTransferLogScanner) NormalizeAddress(address string) string {
	return NormalizeAddress(address)
}

// RecentTransfers yields Transfer logs of q.TokenContract paying q.Address in
// blocks [head-window, head], newest first.
func (s *TokenTransferLogScanner) RecentTransfers(ctx context.Context, q chain.Query) iter.Seq2[chain.TransferEvidence, error] {
	return func(yield func(chain.TransferEvidence, error) bool) {
		if strings.TrimSpace(q.TokenContract) == "" {
			return
		}
		head, err := s.client.GetBlockNumber(ctx)
		if err != nil {
			yield(chain.TransferEvidence{}, chain.ClassifyReadError(s.cfg.Chain, err))
			return
		}

		window := s.cfg.Window
		if q.Window > 0 {
			window = q.Window
		}
		from := max(head-window, 0)
		target := NormalizeAddress(q.Address)
		decimals := s.decimals(ctx, q.TokenContract)

		logs := s.fetchLogs(ctx, q.TokenContract, target, from, head)
		metrics.ChainBlocksScanned.WithLabelValues(s.cfg.Chain.String(), "token").Add(float64(head - from + 1))

		evidence := make([]chain.TransferEvidence, 0, len(logs))
		order := make(map[string]int64, len(logs))
		for _, lg := range logs {
			ev, logIndex, ok := s.decodeLog(lg, target, decimals)
			if !ok {
				continue
			}
			order[ev.Reference] = logIndex
			evidence = append(evidence, ev)
		}
		sort.SliceStable(evidence, func(i, j int) bool {
			if evidence[i].Block != evidence[j].Block {
				return evidence[i].Block > evidence[j].Block
			}
			return order[evidence[i].Reference] > order[evidence[j].Reference]
		})
		metrics.ChainEvidenceFound.WithLabelValues(s.cfg.Chain.String(), "token").Add(float64(len(evidence)))

		for _, ev := range evidence {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (s *TokenTransferLogScanner) fetchLogs(ctx context.Context, contract, target string, from, to int64) []*rpc.Log {
	structured := rpc.LogFilter{
		FromBlock: rpc.FormatHexInt64(from),
		ToBlock:   rpc.FormatHexInt64(to),
		Address:   []string{contract},
		Topics:    [][]string{{TransferTopic}, nil, {addressTopic(target)}},
	}
	logs, err := s.client.GetLogs(ctx, structured)
	if err == nil {
		return logs
	}
	s.logger.Warn("structured transfer filter failed, falling back to raw log query",
		"contract", contract, "from_block", from, "to_block", to, "error", err)

	raw := rpc.LogFilter{
		FromBlock: rpc.FormatHexInt64(from),
		ToBlock:   rpc.FormatHexInt64(to),
		Address:   []string{contract},
		Topics:    [][]string{{TransferTopic}},
	}
	logs, err = s.client.GetLogs(ctx, raw)
	if err != nil {
		s.logger.Warn("raw transfer log query failed, treating as no transfers",
			"contract", contract, "from_block", from, "to_block", to, "error", err)
		return nil
	}
	return logs
}

// decimals reads the token's decimals() once per check, defaulting to 18.
func (s *TokenTransferLogScanner) decimals(ctx context.Context, contract string) int32 {
	data, err := encodeDecimalsCall()
	if err != nil {
		return defaultTokenDecimals
	}
	ret, err := s.client.Call(ctx, rpc.CallMsg{To: contract, Data: data}, "latest")
	if err != nil {
		s.logger.Debug("decimals() call failed, using default", "contract", contract, "error", err)
		return defaultTokenDecimals
	}
	d, err := decodeDecimals(ret)
	if err != nil {
		s.logger.Debug("decimals() result undecodable, using default", "contract", contract, "error", err)
		return defaultTokenDecimals
	}
	return int32(d)
}

func (s *TokenTransferLogScanner) decodeLog(lg *rpc.Log, target string, decimals int32) (chain.TransferEvidence, int64, bool) {
	if lg == nil || lg.Removed || len(lg.Topics) != 3 {
		return chain.TransferEvidence{}, 0, false
	}
	if !strings.EqualFold(lg.Topics[0], TransferTopic) {
		return chain.TransferEvidence{}, 0, false
	}
	to := topicAddress(lg.Topics[2])
	if to != target {
		return chain.TransferEvidence{}, 0, false
	}
	value, err := decodeTransferValue(lg.Data)
	if err != nil {
		s.logger.Debug("skip undecodable transfer log", "tx", lg.TransactionHash, "error", err)
		return chain.TransferEvidence{}, 0, false
	}
	block, _ := rpc.ParseHexInt64(lg.BlockNumber)
	logIndex, _ := rpc.ParseHexInt64(lg.LogIndex)
	return chain.TransferEvidence{
		To:        to,
		Amount:    decimal.NewFromBigInt(value, -decimals),
		Reference: lg.TransactionHash + ":" + lg.LogIndex,
		Block:     block,
	}, logIndex, true
}
