package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/coss1333/Qr-market/internal/chain/evm/rpc"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenScanner(client rpc.RPCClient) *TokenTransferLogScanner {
	return NewTokenTransferLogScanner(client, TokenScannerConfig{Chain: model.ChainBSC}, testLogger())
}

func TestTransferTopic(t *testing.T) {
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", TransferTopic)
}

func TestTokenScanner_StructuredFilterNewestFirst(t *testing.T) {
	client := &fakeRPCClient{
		head:    20000,
		callRet: decimalsReturn(6),
		logsFn: func(filter rpc.LogFilter) ([]*rpc.Log, error) {
			return []*rpc.Log{
				transferLog(19000, 3, payee, big.NewInt(10_500_000)),
				transferLog(19990, 1, payee, big.NewInt(1_000_000)),
				transferLog(19990, 7, payee, big.NewInt(2_000_000)),
			}, nil
		},
	}
	scanner := newTokenScanner(client)

	got, err := chain.Collect(scanner.RecentTransfers(context.Background(), chain.Query{Address: payee, TokenContract: token}))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(19990), got[0].Block)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, int64(19990), got[1].Block)
	assert.True(t, got[1].Amount.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(19000), got[2].Block)
	assert.True(t, got[2].Amount.Equal(decimal.RequireFromString("10.5")))

	require.Len(t, client.filters, 1)
	filter := client.filters[0]
	assert.Equal(t, rpc.FormatHexInt64(15000), filter.FromBlock)
	assert.Equal(t, rpc.FormatHexInt64(20000), filter.ToBlock)
	assert.Equal(t, []string{token}, filter.Address)
	require.Len(t, filter.Topics, 3)
	assert.Equal(t, []string{TransferTopic}, filter.Topics[0])
	assert.Nil(t, filter.Topics[1])
	assert.Equal(t, []string{addressTopic(payee)}, filter.Topics[2])
	assert.Equal(t, 1, client.callCount, "decimals queried once per check")
}

func TestTokenScanner_DecimalsDefaultOnFailure(t *testing.T) {
	client := &fakeRPCClient{
		head:    100,
		callErr: errors.New("execution reverted"),
		logsFn: func(rpc.LogFilter) ([]*rpc.Log, error) {
			return []*rpc.Log{transferLog(90, 0, payee, new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)))}, nil
		},
	}

	got, err := chain.Collect(newTokenScanner(client).RecentTransfers(context.Background(), chain.Query{Address: payee, TokenContract: token}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(10)))
}

func TestTokenScanner_FallsBackToRawQuery(t *testing.T) {
	client := &fakeRPCClient{
		head:    100,
		callRet: decimalsReturn(18),
		logsFn: func(filter rpc.LogFilter) ([]*rpc.Log, error) {
			if len(filter.Topics) == 3 {
				return nil, errors.New("filter topics not supported")
			}
			return []*rpc.Log{
				transferLog(99, 0, stranger, big.NewInt(1e18)),
				transferLog(98, 0, payee, big.NewInt(1e18)),
			}, nil
		},
	}

	got, err := chain.Collect(newTokenScanner(client).RecentTransfers(context.Background(), chain.Query{Address: payee, TokenContract: token}))
	require.NoError(t, err)
	require.Len(t, got, 1, "raw results are filtered by recipient locally")
	assert.Equal(t, int64(98), got[0].Block)
	require.Len(t, client.filters, 2)
	assert.Len(t, client.filters[1].Topics, 1)
}

func TestTokenScanner_BothQueriesFailYieldsEmpty(t *testing.T) {
	client := &fakeRPCClient{
		head:    100,
		callRet: decimalsReturn(18),
		logsFn: func(rpc.LogFilter) ([]*rpc.Log, error) {
			return nil, errors.New("query returned more than 10000 results")
		},
	}

	got, err := chain.Collect(newTokenScanner(client).RecentTransfers(context.Background(), chain.Query{Address: payee, TokenContract: token}))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, client.filters, 2)
}

func TestTokenScanner_HeadFailureIsUnavailable(t *testing.T) {
	client := &fakeRPCClient{headErr: fmt.Errorf("http request: %w", context.DeadlineExceeded)}

	_, err := chain.Collect(newTokenScanner(client).RecentTransfers(context.Background(), chain.Query{Address: payee, TokenContract: token}))
	require.Error(t, err)
	assert.True(t, chain.IsUnavailable(err))
}

func TestTokenScanner_SkipsRemovedAndMalformedLogs(t *testing.T) {
	removed := transferLog(90, 1, payee, big.NewInt(1e18))
	removed.Removed = true
	malformed := transferLog(91, 2, payee, big.NewInt(1e18))
	malformed.Data = "0x"
	wrongTopic := transferLog(92, 3, payee, big.NewInt(1e18))
	wrongTopic.Topics[0] = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"

	client := &fakeRPCClient{
		head:    100,
		callRet: decimalsReturn(18),
		logsFn: func(rpc.LogFilter) ([]*rpc.Log, error) {
			return []*rpc.Log{removed, malformed, wrongTopic, nil}, nil
		},
	}

	got, err := chain.Collect(newTokenScanner(client).RecentTransfers(context.Background(), chain.Query{Address: payee, TokenContract: token}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenScanner_NoContractNoQueries(t *testing.T) {
	client := &fakeRPCClient{head: 100}

	got, err := chain.Collect(newTokenScanner(client).RecentTransfers(context.Background(), chain.Query{Address: payee}))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, client.filters)
	assert.Zero(t, client.callCount)
}

func TestTokenScanner_WindowClampedAtGenesis(t *testing.T) {
	client := &fakeRPCClient{head: 10, callRet: decimalsReturn(18)}

	_, err := chain.Collect(newTokenScanner(client).RecentTransfers(context.Background(), chain.Query{Address: payee, TokenContract: token}))
	require.NoError(t, err)
	require.Len(t, client.filters, 1)
	assert.Equal(t, "0x0", client.filters[0].FromBlock)
}
