package wallet

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/polywallet/pkg/crypto"
	"github.com/Klingon-tech/polywallet/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TransferSelector is the 4-byte selector of transfer(address,uint256).
const TransferSelector = "a9059cbb"

// transferDataLen is selector + address word + value word.
const transferDataLen = 4 + 32 + 32

var transferSelectorBytes = mustDecodeHex(TransferSelector)

// maxUint256 bounds values that fit a transfer word.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// UnsignedTx is a built transaction waiting for a signature.
type UnsignedTx struct {
	tx      *ethtypes.Transaction
	chainID *big.Int
	signer  func() (crypto.Signer, error)
}

// Tx returns the unsigned transaction.
func (u *UnsignedTx) Tx() *ethtypes.Transaction {
	return u.tx
}

// Sign signs with the key the transaction was bound to when it was built.
func (u *UnsignedTx) Sign() (*ethtypes.Transaction, error) {
	if u.signer == nil {
		return nil, ErrWalletLocked
	}
	s, err := u.signer()
	if err != nil {
		return nil, err
	}
	return u.SignWith(s)
}

// SignWith signs with an explicit signer.
func (u *UnsignedTx) SignWith(s crypto.Signer) (*ethtypes.Transaction, error) {
	if s == nil {
		return nil, ErrWalletLocked
	}
	return s.SignTx(u.tx, u.chainID)
}

// Builder assembles transfer transactions for one asset using the wallet's
// current fee model.
type Builder struct {
	asset   Asset
	chainID *big.Int
	fee     *FeeModel
}

// NewBuilder creates a builder reading fee parameters from fee.
func NewBuilder(asset Asset, chainID *big.Int, fee *FeeModel) *Builder {
	return &Builder{asset: asset, chainID: chainID, fee: fee}
}

// Build creates a transfer of value to the given address. Token transfers
// call the contract's transfer method with a zero native value.
func (b *Builder) Build(to string, value types.Amount, nonce uint64) (*ethtypes.Transaction, error) {
	recipient, err := types.ParseAddress(to)
	if err != nil {
		return nil, err
	}
	v, err := uint256(value)
	if err != nil {
		return nil, err
	}

	switch a := b.asset.(type) {
	case Token:
		return b.newTx(a.Contract.Common(), new(big.Int), TransferData(recipient, v), nonce), nil
	default:
		return b.newTx(recipient.Common(), v, nil, nonce), nil
	}
}

// ImportOptions describe moving all funds held by a foreign key.
type ImportOptions struct {
	PrivateKey *crypto.PrivateKey
	// Amount is the spendable balance of the imported address.
	Amount   types.Amount
	TxsCount uint64
	// NativeBalance pays the fee of a token import.
	NativeBalance types.Amount
}

// BuildImport creates a transfer of everything opts.Amount allows to to.
// Native imports deduct the default fee from the amount.
func (b *Builder) BuildImport(opts ImportOptions, to string) (*ethtypes.Transaction, error) {
	if err := types.ValidateAddress(to); err != nil {
		return nil, err
	}

	fee := b.fee.DefaultFee()
	amount := opts.Amount
	if _, ok := b.asset.(Native); ok {
		amount = amount.Sub(fee)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s below fee %s", ErrInsufficientFunds, opts.Amount, fee)
	}
	if _, ok := b.asset.(Token); ok {
		if err := checkFeeCoverage(opts.NativeBalance, fee); err != nil {
			return nil, err
		}
	}
	return b.Build(to, amount, opts.TxsCount)
}

func (b *Builder) newTx(to common.Address, value *big.Int, data []byte, nonce uint64) *ethtypes.Transaction {
	if b.fee.Mode == FeeMarket {
		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   new(big.Int).Set(b.chainID),
			Nonce:     nonce,
			GasTipCap: types.BigInt(b.fee.MaxPriorityFeePerGas),
			GasFeeCap: types.BigInt(b.fee.MaxFeePerGas),
			Gas:       b.fee.GasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	}
	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: types.BigInt(b.fee.GasPrice),
		Gas:      b.fee.GasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
}

// TransferData encodes a transfer(to, value) call.
func TransferData(to types.Address, value *big.Int) []byte {
	data := make([]byte, 0, transferDataLen)
	data = append(data, transferSelectorBytes...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(value.Bytes(), 32)...)
	return data
}

// uint256 converts a non-negative integral amount that fits in 256 bits.
func uint256(a types.Amount) (*big.Int, error) {
	if a.IsNegative() || !a.IsInteger() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, a)
	}
	v := types.BigInt(a)
	if v.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("%w: %s overflows 256 bits", ErrInvalidAmount, a)
	}
	return v, nil
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
