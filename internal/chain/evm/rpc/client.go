package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coss1333/Qr-market/internal/chain/ratelimit"
)

// DefaultTimeout bounds every RPC round trip.
const DefaultTimeout = 10 * time.Second

type RPCClient interface {
	GetBlockNumber(ctx context.Context) (int64, error)
	GetBlockByNumber(ctx context.Context, blockNumber int64, includeFullTx bool) (*Block, error)
	GetBlocksByNumber(ctx context.Context, blockNumbers []int64, includeFullTx bool) ([]*Block, error)
	GetLogs(ctx context.Context, filter LogFilter) ([]*Log, error)
	Call(ctx context.Context, msg CallMsg, blockTag string) ([]byte, error)
}

type Client struct {
	httpClient *http.Client
	rpcURL     string
	chain      string
	timeout    time.Duration
	limiter    *ratelimit.Limiter
	requestID  atomic.Int64
	logger     *slog.Logger
}

var _ RPCClient = (*Client)(nil)

type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithChain sets the chain label used for metrics and logs.
func WithChain(chain string) Option {
	return func(c *Client) { c.chain = chain }
}

func NewClient(rpcURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		rpcURL:  rpcURL,
		chain:   "evm",
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{Timeout: c.timeout}
	c.logger = logger.With("component", "rpc", "chain", c.chain)
	return c
}

func (c *Client) newRequest(method string, params []interface{}) Request {
	if params == nil {
		params = []interface{}{}
	}
	return Request{
		JSONRPC: "2.0",
		ID:      int(c.requestID.Add(1)),
		Method:  method,
		Params:  params,
	}
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() { ratelimit.RecordRPCCall(c.chain, method, time.Since(start), err) }()

	respBody, err := c.post(ctx, c.newRequest(method, params))
	if err != nil {
		return nil, err
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// callBatch sends requests as one JSON-RPC batch and returns the responses in
// request order. Servers may answer a batch in any order.
func (c *Client) callBatch(ctx context.Context, requests []Request) (responses []Response, err error) {
	if len(requests) == 0 {
		return []Response{}, nil
	}
	start := time.Now()
	defer func() { ratelimit.RecordRPCCall(c.chain, requests[0].Method+"_batch", time.Since(start), err) }()

	respBody, err := c.post(ctx, requests)
	if err != nil {
		return nil, err
	}

	var raw []Response
	if err := json.Unmarshal(respBody, &raw); err != nil {
		// Some providers answer a rejected batch with a single error object.
		var single Response
		if singleErr := json.Unmarshal(respBody, &single); singleErr == nil && single.Error != nil {
			return nil, single.Error
		}
		return nil, fmt.Errorf("unmarshal batch response: %w", err)
	}

	byID := make(map[int]Response, len(raw))
	for _, r := range raw {
		byID[r.ID] = r
	}
	ordered := make([]Response, len(requests))
	for i, req := range requests {
		r, ok := byID[req.ID]
		if !ok {
			return nil, fmt.Errorf("missing batch response for id %d (%s)", req.ID, req.Method)
		}
		ordered[i] = r
	}
	return ordered, nil
}

func (c *Client) post(ctx context.Context, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
