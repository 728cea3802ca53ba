package wallet

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/Klingon-tech/polywallet/pkg/crypto"
	"github.com/Klingon-tech/polywallet/pkg/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

func TestTransferSelector(t *testing.T) {
	sum := crypto.Keccak256([]byte("transfer(address,uint256)"))
	if got := hex.EncodeToString(sum[:4]); got != TransferSelector {
		t.Errorf("selector = %s, want %s", got, TransferSelector)
	}
}

func TestTransferData(t *testing.T) {
	to, _ := types.ParseAddress(testRecipient)
	data := TransferData(to, big.NewInt(255))

	want := "a9059cbb" +
		strings.Repeat("0", 24) + strings.TrimPrefix(testRecipient, "0x") +
		strings.Repeat("0", 62) + "ff"
	if got := hex.EncodeToString(data); got != want {
		t.Errorf("TransferData() = %s\nwant %s", got, want)
	}

	gotTo, gotValue, err := decodeTransfer(data)
	if err != nil {
		t.Fatalf("decodeTransfer() error: %v", err)
	}
	if gotTo != to || gotValue.String() != "255" {
		t.Errorf("decodeTransfer() = %s, %s", gotTo, gotValue)
	}
}

func TestBuilder_Native(t *testing.T) {
	fee := &FeeModel{
		Mode:                 FeeMarket,
		GasLimit:             NativeGasLimit,
		MaxPriorityFeePerGas: types.MustAmount("2"),
		MaxFeePerGas:         types.MustAmount("40"),
	}
	b := NewBuilder(Native{}, testChainID, fee)

	tx, err := b.Build(testRecipient, types.MustAmount("1000"), 7)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if tx.Type() != ethtypes.DynamicFeeTxType {
		t.Errorf("type = %d, want dynamic fee", tx.Type())
	}
	if got := types.AddressFromCommon(*tx.To()).String(); got != testRecipient {
		t.Errorf("to = %s, want %s", got, testRecipient)
	}
	if tx.Value().Int64() != 1000 || tx.Nonce() != 7 || tx.Gas() != NativeGasLimit {
		t.Errorf("value/nonce/gas = %s/%d/%d", tx.Value(), tx.Nonce(), tx.Gas())
	}
	if tx.GasFeeCap().Int64() != 40 || tx.GasTipCap().Int64() != 2 {
		t.Errorf("fee cap/tip = %s/%s", tx.GasFeeCap(), tx.GasTipCap())
	}
	if tx.ChainId().Int64() != 137 {
		t.Errorf("chain id = %s", tx.ChainId())
	}
	if len(tx.Data()) != 0 {
		t.Errorf("native transfer carries data: %x", tx.Data())
	}
}

func TestBuilder_Legacy(t *testing.T) {
	fee := &FeeModel{Mode: FeeLegacy, GasLimit: NativeGasLimit, GasPrice: types.MustAmount("30")}
	b := NewBuilder(Native{}, testChainID, fee)

	tx, err := b.Build(testRecipient, types.MustAmount("1"), 0)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if tx.Type() != ethtypes.LegacyTxType {
		t.Errorf("type = %d, want legacy", tx.Type())
	}
	if tx.GasPrice().Int64() != 30 {
		t.Errorf("gas price = %s, want 30", tx.GasPrice())
	}
}

func TestBuilder_Token(t *testing.T) {
	token := testTokenAsset(t)
	fee := &FeeModel{Mode: FeeMarket, GasLimit: TokenGasLimit, MaxFeePerGas: types.MustAmount("40")}
	b := NewBuilder(token, testChainID, fee)

	tx, err := b.Build(testRecipient, types.MustAmount("300"), 2)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if types.AddressFromCommon(*tx.To()) != token.Contract {
		t.Errorf("to = %s, want contract %s", tx.To().Hex(), token.Contract)
	}
	if tx.Value().Sign() != 0 {
		t.Errorf("value = %s, want 0", tx.Value())
	}
	if tx.Gas() != TokenGasLimit {
		t.Errorf("gas = %d, want %d", tx.Gas(), TokenGasLimit)
	}
	to, _ := types.ParseAddress(testRecipient)
	if hex.EncodeToString(tx.Data()) != hex.EncodeToString(TransferData(to, big.NewInt(300))) {
		t.Errorf("data = %x", tx.Data())
	}
}

func TestBuilder_Validation(t *testing.T) {
	b := NewBuilder(Native{}, testChainID, NewFeeModel(FeeMarket, NativeGasLimit))

	tests := []struct {
		name    string
		to      string
		value   string
		wantErr error
	}{
		{"short address", "0x1234", "1", ErrInvalidAddress},
		{"no prefix", strings.Repeat("1", 42), "1", ErrInvalidAddress},
		{"non-hex", "0x" + strings.Repeat("g", 40), "1", ErrInvalidAddress},
		{"upper case ok", "0X" + strings.Repeat("AB", 20), "1", nil},
		{"negative", testRecipient, "-1", ErrInvalidAmount},
		{"fraction", testRecipient, "1.5", ErrInvalidAmount},
		{"overflow", testRecipient, "115792089237316195423570985008687907853269984665640564039457584007913129639936", ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.to, decimal.RequireFromString(tt.value), 0)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Build() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuilder_BuildImportNative(t *testing.T) {
	fee := &FeeModel{Mode: FeeLegacy, GasLimit: 4, GasPrice: types.MustAmount("3")} // fee 12
	b := NewBuilder(Native{}, testChainID, fee)

	tx, err := b.BuildImport(ImportOptions{Amount: types.MustAmount("100"), TxsCount: 4}, testRecipient)
	if err != nil {
		t.Fatalf("BuildImport() error: %v", err)
	}
	if tx.Value().Int64() != 88 || tx.Nonce() != 4 {
		t.Errorf("value/nonce = %s/%d, want 88/4", tx.Value(), tx.Nonce())
	}

	tx, err = b.BuildImport(ImportOptions{Amount: types.MustAmount("12")}, testRecipient)
	if err != nil {
		t.Fatalf("BuildImport() at exact fee error: %v", err)
	}
	if tx.Value().Sign() != 0 {
		t.Errorf("value = %s, want 0", tx.Value())
	}

	_, err = b.BuildImport(ImportOptions{Amount: types.MustAmount("10")}, testRecipient)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("BuildImport() error = %v, want ErrInsufficientFunds", err)
	}
}

func TestBuilder_BuildImportTokenFeeShortfall(t *testing.T) {
	fee := &FeeModel{Mode: FeeLegacy, GasLimit: 4, GasPrice: types.MustAmount("3")} // fee 12
	b := NewBuilder(testTokenAsset(t), testChainID, fee)

	_, err := b.BuildImport(ImportOptions{
		Amount:        types.MustAmount("500"),
		NativeBalance: types.MustAmount("10"),
	}, testRecipient)
	if !errors.Is(err, ErrInsufficientFundsForFee) {
		t.Fatalf("BuildImport() error = %v, want ErrInsufficientFundsForFee", err)
	}
	var shortfall *FeeShortfallError
	if !errors.As(err, &shortfall) {
		t.Fatalf("error is not a *FeeShortfallError: %T", err)
	}
	if shortfall.Shortfall.String() != "2" || shortfall.Required.String() != "12" {
		t.Errorf("shortfall = %s, required = %s, want 2 and 12", shortfall.Shortfall, shortfall.Required)
	}

	tx, err := b.BuildImport(ImportOptions{
		Amount:        types.MustAmount("500"),
		NativeBalance: types.MustAmount("12"),
	}, testRecipient)
	if err != nil {
		t.Fatalf("BuildImport() error: %v", err)
	}
	_, value, _ := decodeTransfer(tx.Data())
	if value.String() != "500" {
		t.Errorf("token import value = %s, want full balance 500", value)
	}
}

func TestUnsignedTx_Sign(t *testing.T) {
	b := NewBuilder(Native{}, testChainID, NewFeeModel(FeeMarket, NativeGasLimit))
	tx, _ := b.Build(testRecipient, types.MustAmount("1"), 0)

	locked := &UnsignedTx{tx: tx, chainID: testChainID}
	if _, err := locked.Sign(); !errors.Is(err, ErrWalletLocked) {
		t.Errorf("Sign() without key error = %v, want ErrWalletLocked", err)
	}
	if _, err := locked.SignWith(nil); !errors.Is(err, ErrWalletLocked) {
		t.Errorf("SignWith(nil) error = %v, want ErrWalletLocked", err)
	}

	key := mustKey(t, ownKeyHex)
	signed, err := locked.SignWith(key)
	if err != nil {
		t.Fatalf("SignWith() error: %v", err)
	}
	from, err := crypto.Sender(signed, testChainID)
	if err != nil {
		t.Fatalf("Sender() error: %v", err)
	}
	if from != key.Address() {
		t.Errorf("sender = %s, want %s", from, key.Address())
	}
}
