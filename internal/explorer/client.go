// Package explorer provides a client for the etherscan-style block explorer
// used for transaction history.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	klog "github.com/Klingon-tech/polywallet/internal/log"
	"github.com/Klingon-tech/polywallet/pkg/types"
)

// PageSize is the number of records requested per history page.
const PageSize = 5

// ErrRequest is returned for any failed explorer request.
var ErrRequest = errors.New("explorer request failed")

// RawTx is one history record in the explorer's string-typed form.
type RawTx struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Nonce           string `json:"nonce"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Gas             string `json:"gas"`
	GasPrice        string `json:"gasPrice"`
	GasUsed         string `json:"gasUsed"`
	Confirmations   string `json:"confirmations"`
	ContractAddress string `json:"contractAddress"`
	TxReceiptStatus string `json:"txreceipt_status"`
	IsError         string `json:"isError"`
	Input           string `json:"input"`
	TokenSymbol     string `json:"tokenSymbol,omitempty"`
	TokenDecimal    string `json:"tokenDecimal,omitempty"`
}

// Query selects one page of history.
type Query struct {
	// Contract restricts the listing to token transfers of this contract.
	// Empty lists native transactions.
	Contract string
	Address  string
	// Page is 1-based.
	Page   int
	APIKey string
}

// envelope is the explorer's response wrapper. Result is an array on
// success and a message string on failure.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client queries the explorer over HTTP.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a new explorer client targeting the given base URL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse explorer url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("explorer url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// ListTransactions returns one page of transactions, newest first.
func (c *Client) ListTransactions(ctx context.Context, q Query) ([]RawTx, error) {
	if err := types.ValidateAddress(q.Address); err != nil {
		return nil, err
	}
	action := "txlist"
	if q.Contract != "" {
		if err := types.ValidateAddress(q.Contract); err != nil {
			return nil, err
		}
		action = "tokentx"
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{
		"module":     {"account"},
		"action":     {action},
		"address":    {q.Address},
		"startblock": {"1"},
		"endblock":   {"9999999999999999"},
		"page":       {strconv.Itoa(page)},
		"offset":     {strconv.Itoa(PageSize)},
		"sort":       {"desc"},
		"apikey":     {q.APIKey},
	}
	if q.Contract != "" {
		params.Set("contractaddress", q.Contract)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "api", RawQuery: params.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		klog.Explorer.Error().Err(err).Str("action", action).Msg("History request failed")
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		klog.Explorer.Error().Int("status", resp.StatusCode).Str("action", action).Msg("History request rejected")
		return nil, fmt.Errorf("%w: status %d", ErrRequest, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRequest, err)
	}

	var txs []RawTx
	if err := json.Unmarshal(env.Result, &txs); err != nil {
		// A string result carries the explorer's error message.
		var msg string
		if json.Unmarshal(env.Result, &msg) == nil {
			klog.Explorer.Error().Str("message", env.Message).Str("result", msg).Msg("Explorer error")
			return nil, fmt.Errorf("%w: %s", ErrRequest, msg)
		}
		return nil, fmt.Errorf("%w: decode result: %v", ErrRequest, err)
	}

	klog.Explorer.Debug().
		Str("action", action).
		Int("page", page).
		Int("count", len(txs)).
		Msg("History page fetched")
	return txs, nil
}
