package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"testing"

	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/coss1333/Qr-market/internal/chain/evm/rpc"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nativeBlock(number int64, txs ...*rpc.Transaction) *rpc.Block {
	return &rpc.Block{Number: rpc.FormatHexInt64(number), Transactions: txs}
}

func nativeTx(hash, to string, value *big.Int) *rpc.Transaction {
	return &rpc.Transaction{Hash: hash, From: stranger, To: to, Value: weiHex(value)}
}

func newNativeScanner(client rpc.RPCClient, cfg NativeScannerConfig) *NativeTransferScanner {
	if cfg.Chain == "" {
		cfg.Chain = model.ChainBSC
	}
	return NewNativeTransferScanner(client, cfg, testLogger())
}

func TestNativeScanner_FindsTransfersNewestFirst(t *testing.T) {
	client := &fakeRPCClient{
		head: 1000,
		blocks: map[int64]*rpc.Block{
			1000: nativeBlock(1000,
				nativeTx("0xa1", stranger, ether(3, 0)),
				nativeTx("0xa2", payee, ether(1, 0)),
			),
			990: nativeBlock(990, nativeTx("0xb1", payee, ether(0, 50))),
			950: nativeBlock(950, &rpc.Transaction{Hash: "0xc1", To: "", Value: "0x1"}),
		},
	}
	scanner := newNativeScanner(client, NativeScannerConfig{Window: 100, PageSize: 7})

	got, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "0xa2", got[0].Reference)
	assert.Equal(t, int64(1000), got[0].Block)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, NormalizeAddress(payee), got[0].To)

	assert.Equal(t, "0xb1", got[1].Reference)
	assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("0.5")))
}

func TestNativeScanner_NeverInspectsBlocksOutsideWindow(t *testing.T) {
	client := &fakeRPCClient{
		head: 1000,
		blocks: map[int64]*rpc.Block{
			980: nativeBlock(980, nativeTx("0xold", payee, ether(5, 0))),
		},
	}
	scanner := newNativeScanner(client, NativeScannerConfig{Window: 20, PageSize: 6})

	got, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.NoError(t, err)
	assert.Empty(t, got, "block 980 is outside (head-20, head]")

	require.Len(t, client.requested, 20)
	assert.Equal(t, int64(981), slices.Min(client.requested))
	assert.Equal(t, int64(1000), slices.Max(client.requested))
}

func TestNativeScanner_QueryWindowOverride(t *testing.T) {
	client := &fakeRPCClient{head: 50}
	scanner := newNativeScanner(client, NativeScannerConfig{Window: 500})

	_, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee, Window: 5}))
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 49, 48, 47, 46}, client.requested)
}

func TestNativeScanner_WindowClampedAtGenesis(t *testing.T) {
	client := &fakeRPCClient{head: 3}
	scanner := newNativeScanner(client, NativeScannerConfig{Window: 500})

	_, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1, 0}, client.requested)
}

func TestNativeScanner_HeadFailureIsUnavailable(t *testing.T) {
	client := &fakeRPCClient{headErr: fmt.Errorf("eth_blockNumber: %w", context.DeadlineExceeded)}
	scanner := newNativeScanner(client, NativeScannerConfig{})

	_, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.Error(t, err)
	assert.True(t, chain.IsUnavailable(err))
}

func TestNativeScanner_BlockFetchFailureIsUnavailable(t *testing.T) {
	client := &fakeRPCClient{head: 100, blockErr: errors.New("http status 503: upstream overloaded")}
	scanner := newNativeScanner(client, NativeScannerConfig{Window: 10})

	_, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.Error(t, err)
	assert.True(t, chain.IsUnavailable(err))
}

func TestNativeScanner_StopsFetchingWhenConsumerStops(t *testing.T) {
	client := &fakeRPCClient{
		head: 100,
		blocks: map[int64]*rpc.Block{
			100: nativeBlock(100, nativeTx("0x1", payee, ether(1, 0))),
		},
	}
	scanner := newNativeScanner(client, NativeScannerConfig{Window: 100, PageSize: 10})

	for range scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}) {
		break
	}
	assert.Len(t, client.requested, 10, "only the first page is fetched")
}

func TestNativeScanner_CachesConfirmedBlocks(t *testing.T) {
	client := &fakeRPCClient{head: 100}
	scanner := newNativeScanner(client, NativeScannerConfig{
		Window:        30,
		PageSize:      10,
		CacheSize:     100,
		Confirmations: 15,
	})
	for n := int64(71); n <= 100; n++ {
		if client.blocks == nil {
			client.blocks = map[int64]*rpc.Block{}
		}
		client.blocks[n] = nativeBlock(n)
	}

	_, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.NoError(t, err)
	require.Len(t, client.requested, 30)

	client.requested = nil
	_, err = chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.NoError(t, err)
	assert.Len(t, client.requested, 15, "blocks at or below head-15 come from cache")
	assert.Equal(t, int64(86), slices.Min(client.requested))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", NormalizeAddress("  "+payee+" "))
	assert.Equal(t, NormalizeAddress(payee), NormalizeAddress("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"))
	assert.Equal(t, "not-an-address", NormalizeAddress("Not-An-Address"))

	checksummed, ok := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.True(t, ok)
	assert.Equal(t, payee, checksummed)
	_, ok = ChecksumAddress("0x123")
	assert.False(t, ok)
}
