package wallet

import (
	"context"
	"strconv"
	"strings"

	"github.com/Klingon-tech/polywallet/internal/explorer"
	"github.com/Klingon-tech/polywallet/pkg/types"
)

// HistoryLister is the explorer API the history synchronizer reads.
type HistoryLister interface {
	ListTransactions(ctx context.Context, q explorer.Query) ([]explorer.RawTx, error)
}

// TxRecord is a history entry seen from the wallet's address.
type TxRecord struct {
	ID string `json:"id"`
	// Amount is negative when sent by this wallet and zero for a
	// self-transfer.
	Amount        types.Amount `json:"amount"`
	Value         types.Amount `json:"value"`
	Timestamp     int64        `json:"timestamp"` // milliseconds
	Confirmed     bool         `json:"confirmed"`
	MinConf       int          `json:"minConf"`
	Confirmations int64        `json:"confirmations"`
	// Fee is gasUsed * gasPrice, or -1 while gas used is unknown.
	Fee        types.Amount `json:"fee"`
	MaxFee     types.Amount `json:"maxFee"`
	GasPrice   types.Amount `json:"gasPrice"`
	GasLimit   string       `json:"gasLimit"`
	Status     bool         `json:"status"`
	From       string       `json:"from"`
	To         string       `json:"to"`
	Token      string       `json:"token,omitempty"`
	IsIncoming bool         `json:"isIncoming"`
	IsRBF      bool         `json:"isRBF"`
}

// Direction classifies a record relative to the wallet.
func (r TxRecord) Direction() string {
	switch {
	case types.SameAddress(r.From, r.To):
		return "self"
	case r.IsIncoming:
		return "in"
	default:
		return "out"
	}
}

// HistoryPage is one page of classified history.
type HistoryPage struct {
	Txs     []TxRecord `json:"txs"`
	HasMore bool       `json:"hasMoreTxs"`
	// Cursor is the page to request next.
	Cursor int `json:"cursor"`
}

// History fetches and classifies the wallet's transactions.
type History struct {
	lister  HistoryLister
	asset   Asset
	address types.Address
	minConf int
}

// NewHistory creates a synchronizer for address.
func NewHistory(lister HistoryLister, asset Asset, address types.Address, minConf int) *History {
	return &History{lister: lister, asset: asset, address: address, minConf: minConf}
}

// FetchPage lists the page at cursor. A page is full when it holds exactly
// explorer.PageSize records; only then is there more to read and the cursor
// advanced. Duplicate ids within the page collapse to their first record.
func (h *History) FetchPage(ctx context.Context, cursor int, apiKey string) (HistoryPage, error) {
	q := explorer.Query{
		Address: h.address.String(),
		Page:    cursor,
		APIKey:  apiKey,
	}
	if t, ok := h.asset.(Token); ok {
		q.Contract = t.Contract.String()
	}

	raw, err := h.lister.ListTransactions(ctx, q)
	if err != nil {
		return HistoryPage{}, normalizeNodeError(err)
	}

	hasMore := len(raw) == explorer.PageSize
	next := cursor
	if hasMore {
		next++
	}

	raw = dedupe(raw)
	txs := make([]TxRecord, 0, len(raw))
	for _, r := range raw {
		txs = append(txs, Classify(r, h.address.String(), h.minConf))
	}
	return HistoryPage{Txs: txs, HasMore: hasMore, Cursor: next}, nil
}

// dedupe keeps the first record per hash, preserving order.
func dedupe(raw []explorer.RawTx) []explorer.RawTx {
	seen := make(map[string]struct{}, len(raw))
	out := raw[:0:0]
	for _, r := range raw {
		id := strings.ToLower(r.Hash)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Classify derives the wallet view of a raw explorer record.
func Classify(r explorer.RawTx, own string, minConf int) TxRecord {
	value := parseAmount(r.Value, types.Zero)
	amount := value
	switch {
	case types.SameAddress(r.From, r.To):
		amount = types.Zero
	case types.SameAddress(r.From, own):
		amount = value.Neg()
	}

	gasPrice := parseAmount(r.GasPrice, types.Zero)

	fee := types.MustAmount("-1")
	if r.GasUsed != "" {
		fee = parseAmount(r.GasUsed, types.Zero).Mul(gasPrice)
	}
	maxFee := types.Zero
	if r.Gas != "" {
		maxFee = parseAmount(r.Gas, types.Zero).Mul(gasPrice)
	}

	confirmations, _ := strconv.ParseInt(r.Confirmations, 10, 64)
	ts, _ := strconv.ParseInt(r.TimeStamp, 10, 64)

	return TxRecord{
		ID:            r.Hash,
		Amount:        amount,
		Value:         value,
		Timestamp:     ts * 1000,
		Confirmed:     confirmations >= int64(minConf),
		MinConf:       minConf,
		Confirmations: confirmations,
		Fee:           fee,
		MaxFee:        maxFee,
		GasPrice:      gasPrice,
		GasLimit:      r.Gas,
		Status:        r.ContractAddress != "" || r.TxReceiptStatus == "1",
		From:          r.From,
		To:            r.To,
		Token:         r.ContractAddress,
		IsIncoming:    types.SameAddress(r.To, own) && !types.SameAddress(r.From, r.To),
		IsRBF:         false,
	}
}

func parseAmount(s string, fallback types.Amount) types.Amount {
	if s == "" {
		return fallback
	}
	a, err := types.ParseAmount(s)
	if err != nil {
		return fallback
	}
	return a
}
