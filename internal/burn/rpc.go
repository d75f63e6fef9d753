package burn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// totalSupplySelector is the ERC-20 totalSupply() function selector.
const totalSupplySelector = "0x18160ddd"

const tokenDecimals = 18

// RPCSupplyReader reads an ERC-20 totalSupply over JSON-RPC, trying the
// primary endpoint first and each backup in order.
type RPCSupplyReader struct {
	endpoints  []string
	contract   string
	httpClient *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
	logger     zerolog.Logger
	requestID  atomic.Int64
}

// NewRPCSupplyReader returns a reader for contract. Empty endpoints are
// skipped; maxTries bounds how many times the whole endpoint list is walked.
func NewRPCSupplyReader(contract string, endpoints []string, maxTries uint, httpClient *http.Client) *RPCSupplyReader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if maxTries == 0 {
		maxTries = 1
	}
	urls := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e = strings.TrimSpace(e); e != "" {
			urls = append(urls, e)
		}
	}
	return &RPCSupplyReader{
		endpoints:  urls,
		contract:   contract,
		httpClient: httpClient,
		maxTries:   maxTries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     log.With().Str("component", "burn").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type callArgs struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

// CurrentSupply returns the token supply in whole tokens.
func (r *RPCSupplyReader) CurrentSupply(ctx context.Context) (float64, error) {
	if len(r.endpoints) == 0 {
		return 0, errors.New("no rpc endpoints configured")
	}
	supply, err := backoff.Retry(ctx, func() (float64, error) {
		var errs []error
		for _, url := range r.endpoints {
			v, err := r.callTotalSupply(ctx, url)
			if err == nil {
				return v, nil
			}
			r.logger.Warn().Err(err).Str("endpoint", url).Msg("totalSupply call failed")
			errs = append(errs, err)
		}
		return 0, errors.Join(errs...)
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxTries),
	)
	if err != nil {
		return 0, fmt.Errorf("unable to fetch supply from contract: %w", err)
	}
	return supply, nil
}

func (r *RPCSupplyReader) callTotalSupply(ctx context.Context, url string) (float64, error) {
	body, err := sonic.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      r.requestID.Add(1),
		Method:  "eth_call",
		Params:  []any{callArgs{To: r.contract, Data: totalSupplySelector}, "latest"},
	})
	if err != nil {
		return 0, fmt.Errorf("encode rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rpc status %s", resp.Status)
	}

	var out rpcResponse
	if err := sonic.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return 0, fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	return parseTokenAmount(out.Result, tokenDecimals)
}

// parseTokenAmount converts a 0x-prefixed uint256 into whole tokens.
func parseTokenAmount(hexValue string, decimals int) (float64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(hexValue, "0x"), "0X")
	if digits == "" {
		return 0, fmt.Errorf("empty rpc result")
	}
	wei, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return 0, fmt.Errorf("invalid uint256 %q", hexValue)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	tokens, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetInt(scale)).Float64()
	return tokens, nil
}
