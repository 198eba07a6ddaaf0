// Package bsc wires the EVM scanners for BNB Smart Chain.
package bsc

import (
	"log/slog"
	"time"

	"github.com/coss1333/Qr-market/internal/chain/evm"
	"github.com/coss1333/Qr-market/internal/chain/evm/rpc"
	"github.com/coss1333/Qr-market/internal/chain/ratelimit"
	"github.com/coss1333/Qr-market/internal/domain/model"
)

type Config struct {
	RPCURL         string
	RPS            float64
	Burst          int
	Timeout        time.Duration
	NativeWindow   int64
	TokenWindow    int64
	BlockCacheSize int
	BlockCacheTTL  time.Duration
}

// Readers holds the two BSC payment readers. Both share one RPC client.
type Readers struct {
	Native *evm.NativeTransferScanner
	Token  *evm.TokenTransferLogScanner
}

// NewClient builds a rate-limited JSON-RPC client for a BSC endpoint.
func NewClient(cfg Config, logger *slog.Logger) *rpc.Client {
	return rpc.NewClient(cfg.RPCURL, logger,
		rpc.WithChain(model.ChainBSC.String()),
		rpc.WithTimeout(cfg.Timeout),
		rpc.WithLimiter(ratelimit.NewLimiter(cfg.RPS, cfg.Burst, model.ChainBSC.String())),
	)
}

func NewReaders(client rpc.RPCClient, cfg Config, logger *slog.Logger) Readers {
	return Readers{
		Native: evm.NewNativeTransferScanner(client, evm.NativeScannerConfig{
			Chain:     model.ChainBSC,
			Window:    cfg.NativeWindow,
			CacheSize: cfg.BlockCacheSize,
			CacheTTL:  cfg.BlockCacheTTL,
		}, logger),
		Token: evm.NewTokenTransferLogScanner(client, evm.TokenScannerConfig{
			Chain:  model.ChainBSC,
			Window: cfg.TokenWindow,
		}, logger),
	}
}
