// Package nodeapi provides an HTTP client for the wallet node REST API.
//
// Every transport, status or decoding failure is reported as ErrNodeError.
// The one exception is a node rejection whose body mentions a too-low gas
// limit, which is reported as ErrGasTooLow.
package nodeapi

import (
	"bytes"
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

var (
	// ErrNodeError is the normalized failure of any node call.
	ErrNodeError = errors.New("cs-node-error")
	// ErrGasTooLow is returned when the node rejects a transaction for its gas limit.
	ErrGasTooLow = errors.New("gas limit is too low")
)

// gasTooLowMarker is the node message that maps to ErrGasTooLow.
const gasTooLowMarker = "Gas limit is too low"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 4 << 20

// Balance is an address balance as reported by the node, in base units.
type Balance struct {
	Balance          types.Amount `json:"balance"`
	ConfirmedBalance types.Amount `json:"confirmedBalance"`
}

// GasFees are the fee-market parameters suggested by the node.
type GasFees struct {
	MaxPriorityFeePerGas types.Amount `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         types.Amount `json:"maxFeePerGas"`
}

// Client talks to a wallet node over HTTP.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a new client targeting the given base URL.
func New(baseURL string) (*Client, error) {
	return NewWithTimeout(baseURL, 10*time.Second)
}

// NewWithTimeout creates a new client with a custom HTTP timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse node url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("node url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		base: u,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Balance returns the native balance of address, counting only funds with
// at least minConf confirmations as confirmed.
func (c *Client) Balance(ctx context.Context, address string, minConf int) (Balance, error) {
	if err := types.ValidateAddress(address); err != nil {
		return Balance{}, err
	}
	var out Balance
	q := url.Values{"confirmations": {strconv.Itoa(minConf)}}
	if err := c.do(ctx, http.MethodGet, "api/v1/addr/"+address+"/balance", q, nil, &out); err != nil {
		return Balance{}, err
	}
	return out, nil
}

// TokenBalance returns the balance of address in the given token contract.
func (c *Client) TokenBalance(ctx context.Context, token, address string, minConf int) (Balance, error) {
	if err := types.ValidateAddress(token); err != nil {
		return Balance{}, err
	}
	if err := types.ValidateAddress(address); err != nil {
		return Balance{}, err
	}
	var out Balance
	q := url.Values{"confirmations": {strconv.Itoa(minConf)}}
	if err := c.do(ctx, http.MethodGet, "api/v1/token/"+token+"/"+address+"/balance", q, nil, &out); err != nil {
		return Balance{}, err
	}
	return out, nil
}

// TxCount returns the number of transactions sent from address, which is
// the next nonce.
func (c *Client) TxCount(ctx context.Context, address string) (uint64, error) {
	if err := types.ValidateAddress(address); err != nil {
		return 0, err
	}
	var out struct {
		Count json.Number `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "api/v1/addr/"+address+"/txsCount", nil, nil, &out); err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(out.Count.String(), 10, 64)
	if err != nil {
		klog.Node.Error().Err(err).Str("count", out.Count.String()).Msg("Bad txsCount")
		return 0, fmt.Errorf("%w: bad txsCount", ErrNodeError)
	}
	return n, nil
}

// GasPrice returns the legacy gas price.
func (c *Client) GasPrice(ctx context.Context) (types.Amount, error) {
	var out struct {
		Price types.Amount `json:"price"`
	}
	if err := c.do(ctx, http.MethodGet, "api/v1/gasPrice", nil, nil, &out); err != nil {
		return types.Zero, err
	}
	return out.Price, nil
}

// GasFees returns the fee-market parameters.
func (c *Client) GasFees(ctx context.Context) (GasFees, error) {
	var out GasFees
	if err := c.do(ctx, http.MethodGet, "api/v1/gasFees", nil, nil, &out); err != nil {
		return GasFees{}, err
	}
	return out, nil
}

// ExplorerAPIKey returns the key the history explorer expects.
func (c *Client) ExplorerAPIKey(ctx context.Context) (string, error) {
	var out struct {
		APIKey string `json:"apiKey"`
	}
	if err := c.do(ctx, http.MethodGet, "api/v1/polygonscanApiKey", nil, nil, &out); err != nil {
		return "", err
	}
	return out.APIKey, nil
}

// Transaction returns the node's record for a transaction id.
func (c *Client) Transaction(ctx context.Context, txID string) (json.RawMessage, error) {
	if err := types.ValidateTxID(txID); err != nil {
		return nil, err
	}
	var out struct {
		Tx json.RawMessage `json:"tx"`
	}
	if err := c.do(ctx, http.MethodGet, "api/v1/tx/"+txID, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tx, nil
}

// SendRawTransaction submits a 0x-prefixed signed transaction and returns
// the id the node assigned to it.
func (c *Client) SendRawTransaction(ctx context.Context, rawtx string) (string, error) {
	var out struct {
		TxID string `json:"txId"`
	}
	body := map[string]string{"rawtx": rawtx}
	if err := c.do(ctx, http.MethodPost, "api/v1/tx/send", nil, body, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// do performs one request and decodes a JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	ref := &url.URL{Path: path}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	endpoint := c.base.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return c.fail(path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(path, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return c.fail(path, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if strings.Contains(string(data), gasTooLowMarker) {
			klog.Node.Warn().Str("path", path).Msg("Node rejected transaction: gas limit too low")
			return ErrGasTooLow
		}
		return c.fail(path, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, 256)))
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return c.fail(path, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// fail logs the underlying cause and returns the normalized error.
func (c *Client) fail(path string, cause error) error {
	klog.Node.Error().Err(cause).Str("path", path).Msg("Node request failed")
	return fmt.Errorf("%w: %s", ErrNodeError, path)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
