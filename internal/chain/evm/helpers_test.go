package evm

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/coss1333/Qr-market/internal/chain/evm/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	payee    = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	stranger = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	token    = "0x55d398326f99059fF775485246999027B3197955"
)

type fakeRPCClient struct {
	mu sync.Mutex

	head    int64
	headErr error

	blocks    map[int64]*rpc.Block
	blockErr  error
	requested []int64

	logsFn  func(filter rpc.LogFilter) ([]*rpc.Log, error)
	filters []rpc.LogFilter

	callRet   []byte
	callErr   error
	callCount int
}

func (f *fakeRPCClient) GetBlockNumber(_ context.Context) (int64, error) {
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.head, nil
}

func (f *fakeRPCClient) GetBlockByNumber(_ context.Context, blockNumber int64, _ bool) (*rpc.Block, error) {
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	return f.blocks[blockNumber], nil
}

func (f *fakeRPCClient) GetBlocksByNumber(_ context.Context, blockNumbers []int64, _ bool) ([]*rpc.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, blockNumbers...)
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	out := make([]*rpc.Block, len(blockNumbers))
	for i, n := range blockNumbers {
		out[i] = f.blocks[n]
	}
	return out, nil
}

func (f *fakeRPCClient) GetLogs(_ context.Context, filter rpc.LogFilter) ([]*rpc.Log, error) {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.mu.Unlock()
	if f.logsFn != nil {
		return f.logsFn(filter)
	}
	return nil, nil
}

func (f *fakeRPCClient) Call(_ context.Context, _ rpc.CallMsg, _ string) ([]byte, error) {
	f.callCount++
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callRet, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func weiHex(v *big.Int) string {
	return hexutil.EncodeBig(v)
}

func ether(whole, frac int64) *big.Int {
	// whole.frac with frac in 1e-2 units
	v := new(big.Int).Mul(big.NewInt(whole*100+frac), big.NewInt(1e16))
	return v
}

func transferLog(block, logIndex int64, to string, amount *big.Int) *rpc.Log {
	return &rpc.Log{
		Address:         token,
		Topics:          []string{TransferTopic, addressTopic(stranger), addressTopic(to)},
		Data:            hexutil.Encode(common.LeftPadBytes(amount.Bytes(), 32)),
		BlockNumber:     rpc.FormatHexInt64(block),
		TransactionHash: common.BigToHash(big.NewInt(block*1000 + logIndex)).Hex(),
		LogIndex:        rpc.FormatHexInt64(logIndex),
	}
}

func decimalsReturn(d byte) []byte {
	return common.LeftPadBytes([]byte{d}, 32)
}
