package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const erc20ABIJSON = `[
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = erc20ABI.Events["Transfer"].ID.Hex()

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

func encodeDecimalsCall() (string, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return "", fmt.Errorf("pack decimals: %w", err)
	}
	return hexutil.Encode(data), nil
}

func decodeDecimals(ret []byte) (uint8, error) {
	out, err := erc20ABI.Unpack("decimals", ret)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unpack decimals: got %d values", len(out))
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unpack decimals: unexpected type %T", out[0])
	}
	return d, nil
}

func decodeTransferValue(data string) (*big.Int, error) {
	raw, err := hexutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode transfer data: %w", err)
	}
	out, err := erc20ABI.Unpack("Transfer", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack transfer: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unpack transfer: got %d values", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack transfer: unexpected type %T", out[0])
	}
	return v, nil
}
