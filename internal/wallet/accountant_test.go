package wallet

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Klingon-tech/polywallet/internal/cache"
	klog "github.com/Klingon-tech/polywallet/internal/log"
	"github.com/Klingon-tech/polywallet/pkg/crypto"
	"github.com/Klingon-tech/polywallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const (
	ownKeyHex   = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	otherKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

var testChainID = big.NewInt(137)

func mustKey(t *testing.T, h string) *crypto.PrivateKey {
	t.Helper()
	k, err := crypto.PrivateKeyFromHex(h)
	if err != nil {
		t.Fatalf("PrivateKeyFromHex() error: %v", err)
	}
	return k
}

// signedTx signs a dynamic-fee tx with gas 21000 and fee cap 10 (fee 210000).
func signedTx(t *testing.T, key *crypto.PrivateKey, to types.Address, value int64, data []byte) *ethtypes.Transaction {
	t.Helper()
	addr := common.Address(to)
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(10),
		Gas:       21000,
		To:        &addr,
		Value:     big.NewInt(value),
		Data:      data,
	})
	signed, err := key.SignTx(tx, testChainID)
	if err != nil {
		t.Fatalf("SignTx() error: %v", err)
	}
	return signed
}

func newTestAccountant(t *testing.T, asset Asset, own types.Address, state *Balances) (*Accountant, *cache.Memory) {
	t.Helper()
	klog.Init("disabled", false, "")
	c := cache.NewMemory()
	return NewAccountant(asset, own, testChainID, state, c, klog.Wallet), c
}

func TestAccountant_ApplyRemoteSnapshot(t *testing.T) {
	state := &Balances{Balance: types.MustAmount("5"), TxsCount: 9}
	acc, c := newTestAccountant(t, Native{}, types.Address{}, state)

	// Confirmed above balance is tolerated.
	acc.ApplyRemoteSnapshot(BalanceSnapshot{
		Balance:          types.MustAmount("80"),
		ConfirmedBalance: types.MustAmount("100"),
		TxsCount:         3,
	})

	if state.Balance.String() != "80" || state.ConfirmedBalance.String() != "100" || state.TxsCount != 3 {
		t.Errorf("state = %+v", state)
	}
	if v, _ := c.Get(balanceKey); v != "80" {
		t.Errorf("cached balance = %q, want 80", v)
	}
}

func TestAccountant_OptimisticNative(t *testing.T) {
	own := mustKey(t, ownKeyHex)
	other := mustKey(t, otherKeyHex)

	tests := []struct {
		name        string
		signer      *crypto.PrivateKey
		to          types.Address
		value       int64
		wantBalance string
		wantNonce   uint64
	}{
		{"self to self pays fee once", own, own.Address(), 500, "790000", 6},
		{"outgoing", own, other.Address(), 500, "789500", 6},
		{"incoming", other, own.Address(), 500, "1000500", 5},
		{"foreign self transfer", other, other.Address(), 500, "1000000", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &Balances{Balance: types.MustAmount("1000000"), TxsCount: 5}
			acc, c := newTestAccountant(t, Native{}, own.Address(), state)

			notify, err := acc.ApplyOptimisticSend(signedTx(t, tt.signer, tt.to, tt.value, nil))
			if err != nil {
				t.Fatalf("ApplyOptimisticSend() error: %v", err)
			}
			if notify {
				t.Error("ApplyOptimisticSend() = true, want false")
			}
			if state.Balance.String() != tt.wantBalance {
				t.Errorf("balance = %s, want %s", state.Balance, tt.wantBalance)
			}
			if state.TxsCount != tt.wantNonce {
				t.Errorf("nonce = %d, want %d", state.TxsCount, tt.wantNonce)
			}
			if v, _ := c.Get(balanceKey); v != tt.wantBalance {
				t.Errorf("cached balance = %q, want %s", v, tt.wantBalance)
			}
		})
	}
}

func TestAccountant_OptimisticLegacyFee(t *testing.T) {
	own := mustKey(t, ownKeyHex)
	other := mustKey(t, otherKeyHex)

	// Legacy txs are charged gas * gasPrice: 21000 * 10.
	to := common.Address(other.Address())
	tx, err := own.SignTx(ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    5,
		GasPrice: big.NewInt(10),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(500),
	}), testChainID)
	if err != nil {
		t.Fatalf("SignTx() error: %v", err)
	}

	state := &Balances{Balance: types.MustAmount("1000000"), TxsCount: 5}
	acc, _ := newTestAccountant(t, Native{}, own.Address(), state)
	if _, err := acc.ApplyOptimisticSend(tx); err != nil {
		t.Fatalf("ApplyOptimisticSend() error: %v", err)
	}
	if state.Balance.String() != "789500" {
		t.Errorf("balance = %s, want 789500", state.Balance)
	}
	if state.TxsCount != 6 {
		t.Errorf("nonce = %d, want 6", state.TxsCount)
	}
}

func TestAccountant_OptimisticToken(t *testing.T) {
	own := mustKey(t, ownKeyHex)
	other := mustKey(t, otherKeyHex)
	token := testTokenAsset(t)

	tests := []struct {
		name       string
		signer     *crypto.PrivateKey
		recipient  types.Address
		wantToken  string
		wantNative string
		wantNonce  uint64
	}{
		{"outgoing", own, other.Address(), "700", "790000", 2},
		{"self transfer", own, own.Address(), "1000", "790000", 2},
		{"incoming", other, own.Address(), "1300", "1000000", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &Balances{
				Balance:       types.MustAmount("1000"),
				TxsCount:      1,
				NativeBalance: types.MustAmount("1000000"),
				NativeKnown:   true,
			}
			acc, _ := newTestAccountant(t, token, own.Address(), state)

			data := TransferData(tt.recipient, big.NewInt(300))
			tx := signedTx(t, tt.signer, token.Contract, 0, data)
			if _, err := acc.ApplyOptimisticSend(tx); err != nil {
				t.Fatalf("ApplyOptimisticSend() error: %v", err)
			}
			if state.Balance.String() != tt.wantToken {
				t.Errorf("token balance = %s, want %s", state.Balance, tt.wantToken)
			}
			if state.NativeBalance.String() != tt.wantNative {
				t.Errorf("native balance = %s, want %s", state.NativeBalance, tt.wantNative)
			}
			if state.TxsCount != tt.wantNonce {
				t.Errorf("nonce = %d, want %d", state.TxsCount, tt.wantNonce)
			}
		})
	}
}

func TestAccountant_TokenNeedsNativeBalance(t *testing.T) {
	own := mustKey(t, ownKeyHex)
	token := testTokenAsset(t)
	state := &Balances{Balance: types.MustAmount("1000"), NativeBalance: types.Zero}
	acc, _ := newTestAccountant(t, token, own.Address(), state)

	if err := acc.CheckSendable(); !errors.Is(err, ErrNativeBalanceUnknown) {
		t.Errorf("CheckSendable() error = %v, want ErrNativeBalanceUnknown", err)
	}

	tx := signedTx(t, own, token.Contract, 0, TransferData(types.Address{1}, big.NewInt(1)))
	if _, err := acc.ApplyOptimisticSend(tx); !errors.Is(err, ErrNativeBalanceUnknown) {
		t.Fatalf("ApplyOptimisticSend() error = %v, want ErrNativeBalanceUnknown", err)
	}
	if state.Balance.String() != "1000" || state.TxsCount != 0 {
		t.Errorf("state changed on error: %+v", state)
	}
}

func TestAccountant_TokenRejectsNonTransfer(t *testing.T) {
	own := mustKey(t, ownKeyHex)
	token := testTokenAsset(t)
	state := &Balances{Balance: types.Zero, NativeKnown: true, NativeBalance: types.Zero}
	acc, _ := newTestAccountant(t, token, own.Address(), state)

	tx := signedTx(t, own, token.Contract, 0, []byte{0xde, 0xad, 0xbe, 0xef})
	if _, err := acc.ApplyOptimisticSend(tx); err == nil {
		t.Error("ApplyOptimisticSend() should reject non-transfer data")
	}
}

func TestAccountant_CachedBalance(t *testing.T) {
	state := &Balances{}
	acc, c := newTestAccountant(t, Native{}, types.Address{}, state)

	if _, ok := acc.CachedBalance(); ok {
		t.Error("CachedBalance() on empty cache should report false")
	}
	c.Set(balanceKey, "12345")
	if b, ok := acc.CachedBalance(); !ok || b.String() != "12345" {
		t.Errorf("CachedBalance() = %s, %v", b, ok)
	}
	c.Set(balanceKey, "garbage")
	if _, ok := acc.CachedBalance(); ok {
		t.Error("CachedBalance() should ignore unparsable value")
	}
}
