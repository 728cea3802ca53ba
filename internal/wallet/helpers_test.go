package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Klingon-tech/polywallet/internal/cache"
	"github.com/Klingon-tech/polywallet/internal/explorer"
	klog "github.com/Klingon-tech/polywallet/internal/log"
	"github.com/Klingon-tech/polywallet/internal/nodeapi"
	"github.com/Klingon-tech/polywallet/pkg/types"
)

const (
	testMnemonic  = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testContract  = "0xc2132d05d31c914a87c6611c10748aeb04b58e8f"
	testRecipient = "0x1111111111111111111111111111111111111111"
)

// testSeedHex returns the BIP-39 "abandon ... about" / "TREZOR" seed.
func testSeedHex(t *testing.T) string {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return SeedHex(seed)
}

// fakeNode is an in-memory NodeAPI. Balances are keyed by lowercase
// address; token balances by contract + "/" + address.
type fakeNode struct {
	mu sync.Mutex

	balances      map[string]nodeapi.Balance
	tokenBalances map[string]nodeapi.Balance
	counts        map[string]uint64
	gasPrice      types.Amount
	fees          nodeapi.GasFees
	apiKey        string
	txs           map[string]json.RawMessage

	// failOn makes the named method fail with err.
	failOn map[string]error
	sent   []string
	calls  int
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		balances:      make(map[string]nodeapi.Balance),
		tokenBalances: make(map[string]nodeapi.Balance),
		counts:        make(map[string]uint64),
		gasPrice:      types.MustAmount("30"),
		fees: nodeapi.GasFees{
			MaxPriorityFeePerGas: types.MustAmount("2"),
			MaxFeePerGas:         types.MustAmount("40"),
		},
		apiKey: "KEY",
		txs:    make(map[string]json.RawMessage),
		failOn: make(map[string]error),
	}
}

func (f *fakeNode) check(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.failOn[method]
}

func (f *fakeNode) setBalance(addr, bal, confirmed string) {
	f.balances[strings.ToLower(addr)] = nodeapi.Balance{
		Balance:          types.MustAmount(bal),
		ConfirmedBalance: types.MustAmount(confirmed),
	}
}

func (f *fakeNode) setTokenBalance(token, addr, bal, confirmed string) {
	f.tokenBalances[strings.ToLower(token)+"/"+strings.ToLower(addr)] = nodeapi.Balance{
		Balance:          types.MustAmount(bal),
		ConfirmedBalance: types.MustAmount(confirmed),
	}
}

func (f *fakeNode) Balance(_ context.Context, address string, _ int) (nodeapi.Balance, error) {
	if err := f.check("Balance"); err != nil {
		return nodeapi.Balance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[strings.ToLower(address)]
	if !ok {
		return nodeapi.Balance{Balance: types.Zero, ConfirmedBalance: types.Zero}, nil
	}
	return b, nil
}

func (f *fakeNode) TokenBalance(_ context.Context, token, address string, _ int) (nodeapi.Balance, error) {
	if err := f.check("TokenBalance"); err != nil {
		return nodeapi.Balance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.tokenBalances[strings.ToLower(token)+"/"+strings.ToLower(address)]
	if !ok {
		return nodeapi.Balance{Balance: types.Zero, ConfirmedBalance: types.Zero}, nil
	}
	return b, nil
}

func (f *fakeNode) TxCount(_ context.Context, address string) (uint64, error) {
	if err := f.check("TxCount"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[strings.ToLower(address)], nil
}

func (f *fakeNode) GasPrice(context.Context) (types.Amount, error) {
	if err := f.check("GasPrice"); err != nil {
		return types.Zero, err
	}
	return f.gasPrice, nil
}

func (f *fakeNode) GasFees(context.Context) (nodeapi.GasFees, error) {
	if err := f.check("GasFees"); err != nil {
		return nodeapi.GasFees{}, err
	}
	return f.fees, nil
}

func (f *fakeNode) ExplorerAPIKey(context.Context) (string, error) {
	if err := f.check("ExplorerAPIKey"); err != nil {
		return "", err
	}
	return f.apiKey, nil
}

func (f *fakeNode) Transaction(_ context.Context, txID string) (json.RawMessage, error) {
	if err := f.check("Transaction"); err != nil {
		return nil, err
	}
	tx, ok := f.txs[txID]
	if !ok {
		return nil, errors.New("not found")
	}
	return tx, nil
}

func (f *fakeNode) SendRawTransaction(_ context.Context, rawtx string) (string, error) {
	if err := f.check("SendRawTransaction"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, rawtx)
	return "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060", nil
}

// fakeLister serves pages of raw history by page number.
type fakeLister struct {
	pages   map[int][]explorer.RawTx
	queries []explorer.Query
	err     error
}

func (f *fakeLister) ListTransactions(_ context.Context, q explorer.Query) ([]explorer.RawTx, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[q.Page], nil
}

type testEnv struct {
	wallet *Wallet
	node   *fakeNode
	lister *fakeLister
	cache  *cache.Memory
}

// newTestWallet creates an unlocked wallet over fakes.
func newTestWallet(t *testing.T, asset Asset, legacy bool) *testEnv {
	t.Helper()
	klog.Init("disabled", false, "")

	env := &testEnv{
		node:   newFakeNode(),
		lister: &fakeLister{pages: make(map[int][]explorer.RawTx)},
		cache:  cache.NewMemory(),
	}
	w, err := New(Options{
		Asset:      asset,
		Seed:       testSeedHex(t),
		Network:    Mainnet,
		LegacyFees: legacy,
		Node:       env.node,
		Explorer:   env.lister,
		Cache:      env.cache,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	env.wallet = w
	return env
}

func testTokenAsset(t *testing.T) Token {
	t.Helper()
	tok, err := NewToken(testContract)
	if err != nil {
		t.Fatalf("NewToken() error: %v", err)
	}
	return tok
}
