package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func (c *Client) GetBlockNumber(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	var hexNum string
	if err := json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("unmarshal block number: %w", err)
	}

	blockNumber, err := ParseHexInt64(hexNum)
	if err != nil {
		return 0, fmt.Errorf("parse block number: %w", err)
	}
	return blockNumber, nil
}

func (c *Client) GetBlockByNumber(ctx context.Context, blockNumber int64, includeFullTx bool) (*Block, error) {
	params := []interface{}{FormatHexInt64(blockNumber), includeFullTx}
	result, err := c.call(ctx, "eth_getBlockByNumber", params)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber(%d): %w", blockNumber, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &block, nil
}

// GetBlocksByNumber fetches multiple blocks in a single JSON-RPC batch call.
// Results are returned in the same order as the input block numbers.
// Nil entries indicate blocks that were not found (null response).
func (c *Client) GetBlocksByNumber(ctx context.Context, blockNumbers []int64, includeFullTx bool) ([]*Block, error) {
	if len(blockNumbers) == 0 {
		return []*Block{}, nil
	}

	requests := make([]Request, len(blockNumbers))
	for i, num := range blockNumbers {
		requests[i] = c.newRequest("eth_getBlockByNumber", []interface{}{FormatHexInt64(num), includeFullTx})
	}

	responses, err := c.callBatch(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber batch: %w", err)
	}

	results := make([]*Block, len(blockNumbers))
	for i, resp := range responses {
		if resp.Error != nil {
			return nil, fmt.Errorf("eth_getBlockByNumber(%d): %w", blockNumbers[i], resp.Error)
		}
		if string(resp.Result) == "null" {
			continue
		}
		var block Block
		if err := json.Unmarshal(resp.Result, &block); err != nil {
			return nil, fmt.Errorf("unmarshal block %d: %w", blockNumbers[i], err)
		}
		results[i] = &block
	}
	return results, nil
}

func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]*Log, error) {
	result, err := c.call(ctx, "eth_getLogs", []interface{}{filter})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs: %w", err)
	}

	var logs []*Log
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	return logs, nil
}

// Call executes a read-only contract call and returns the decoded return data.
func (c *Client) Call(ctx context.Context, msg CallMsg, blockTag string) ([]byte, error) {
	if blockTag == "" {
		blockTag = "latest"
	}
	result, err := c.call(ctx, "eth_call", []interface{}{msg, blockTag})
	if err != nil {
		return nil, fmt.Errorf("eth_call(%s): %w", msg.To, err)
	}

	var hexData string
	if err := json.Unmarshal(result, &hexData); err != nil {
		return nil, fmt.Errorf("unmarshal call result: %w", err)
	}
	if hexData == "" || hexData == "0x" {
		return []byte{}, nil
	}
	data, err := hexutil.Decode(hexData)
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	return data, nil
}

func ParseHexInt64(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", value, err)
	}
	return int64(parsed), nil
}

func FormatHexInt64(value int64) string {
	return fmt.Sprintf("0x%x", value)
}
