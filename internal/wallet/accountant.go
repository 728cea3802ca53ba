package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/polywallet/internal/cache"
	"github.com/Klingon-tech/polywallet/pkg/crypto"
	"github.com/Klingon-tech/polywallet/pkg/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// balanceKey is the cache key holding the last known balance.
const balanceKey = "balance"

// Balances is the wallet's local ledger state.
type Balances struct {
	Balance          types.Amount
	ConfirmedBalance types.Amount
	// TxsCount is the next nonce.
	TxsCount uint64

	// NativeBalance pays token transfer fees. Only token wallets use it and
	// it is valid only when NativeKnown is set.
	NativeBalance types.Amount
	NativeKnown   bool
}

// BalanceSnapshot is an authoritative reading from the node.
type BalanceSnapshot struct {
	Balance          types.Amount
	ConfirmedBalance types.Amount
	TxsCount         uint64
}

// Accountant applies remote snapshots and optimistic sends to Balances.
// Every change to the balance is written through to the cache.
type Accountant struct {
	asset   Asset
	address types.Address
	chainID *big.Int
	state   *Balances
	cache   cache.Cache
	logger  zerolog.Logger
}

// NewAccountant creates an accountant updating state in place.
func NewAccountant(asset Asset, address types.Address, chainID *big.Int, state *Balances, c cache.Cache, logger zerolog.Logger) *Accountant {
	if c == nil {
		c = cache.Nop{}
	}
	return &Accountant{
		asset:   asset,
		address: address,
		chainID: chainID,
		state:   state,
		cache:   c,
		logger:  logger,
	}
}

// ApplyRemoteSnapshot replaces balance, confirmed balance and nonce. Any
// optimistic change not yet reflected by the node is overwritten.
func (a *Accountant) ApplyRemoteSnapshot(s BalanceSnapshot) {
	a.state.Balance = s.Balance
	a.state.ConfirmedBalance = s.ConfirmedBalance
	a.state.TxsCount = s.TxsCount
	a.persist()
}

// SetNativeBalance records the spendable native balance of a token wallet.
func (a *Accountant) SetNativeBalance(b types.Amount) {
	a.state.NativeBalance = b
	a.state.NativeKnown = true
}

// CachedBalance reads the last persisted balance, if any.
func (a *Accountant) CachedBalance() (types.Amount, bool) {
	v, err := a.cache.Get(balanceKey)
	if err != nil {
		return types.Zero, false
	}
	b, err := types.ParseAmount(v)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Ignoring unparsable cached balance")
		return types.Zero, false
	}
	return b, true
}

// CheckSendable reports whether an optimistic send can be applied. Token
// wallets need a known native balance to debit the fee from.
func (a *Accountant) CheckSendable() error {
	if _, ok := a.asset.(Token); ok && !a.state.NativeKnown {
		return ErrNativeBalanceUnknown
	}
	return nil
}

// ApplyOptimisticSend applies the effect of a just-submitted transaction
// before it confirms. The amount is negated when sent from this wallet and
// zero for a self-transfer. When sent from this wallet the fee is debited
// and the nonce advances. It always returns false: a send never produces an
// unread notification.
func (a *Accountant) ApplyOptimisticSend(tx *ethtypes.Transaction) (bool, error) {
	from, err := crypto.Sender(tx, a.chainID)
	if err != nil {
		return false, err
	}

	switch a.asset.(type) {
	case Token:
		err = a.applyToken(tx, from)
	default:
		err = a.applyNative(tx, from)
	}
	if err != nil {
		return false, err
	}
	a.persist()
	return false, nil
}

func (a *Accountant) applyNative(tx *ethtypes.Transaction, from types.Address) error {
	if tx.To() == nil {
		return fmt.Errorf("native transfer without recipient")
	}
	to := types.AddressFromCommon(*tx.To())

	amount := types.AmountFromBig(tx.Value())
	switch {
	case from == to:
		amount = types.Zero
	case from == a.address:
		amount = amount.Neg()
	}

	fee := types.Zero
	if from == a.address {
		fee = txFee(tx)
	}
	a.state.Balance = a.state.Balance.Add(amount).Sub(fee)
	if from == a.address {
		a.state.TxsCount++
	}

	a.logger.Info().
		Str("tx", tx.Hash().Hex()).
		Str("delta", amount.Sub(fee).String()).
		Uint64("nonce", a.state.TxsCount).
		Msg("Applied optimistic send")
	return nil
}

func (a *Accountant) applyToken(tx *ethtypes.Transaction, from types.Address) error {
	to, value, err := decodeTransfer(tx.Data())
	if err != nil {
		return err
	}

	if from == a.address && !a.state.NativeKnown {
		return ErrNativeBalanceUnknown
	}

	switch {
	case from == to:
		value = types.Zero
	case from == a.address:
		value = value.Neg()
	}
	a.state.Balance = a.state.Balance.Add(value)

	if from == a.address {
		a.state.NativeBalance = a.state.NativeBalance.Sub(txFee(tx))
		a.state.TxsCount++
	}

	a.logger.Info().
		Str("tx", tx.Hash().Hex()).
		Str("delta", value.String()).
		Str("native", a.state.NativeBalance.String()).
		Uint64("nonce", a.state.TxsCount).
		Msg("Applied optimistic token send")
	return nil
}

func (a *Accountant) persist() {
	if err := a.cache.Set(balanceKey, a.state.Balance.String()); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to cache balance")
	}
}

// txFee is the most a transaction can pay: gas limit times the fee cap,
// which is the gas price for legacy transactions.
func txFee(tx *ethtypes.Transaction) types.Amount {
	return types.AmountFromUint64(tx.Gas()).Mul(types.AmountFromBig(tx.GasFeeCap()))
}

// decodeTransfer extracts recipient and value from transfer call data.
func decodeTransfer(data []byte) (types.Address, types.Amount, error) {
	if len(data) < transferDataLen || !bytes.Equal(data[:4], transferSelectorBytes) {
		return types.Address{}, types.Zero, fmt.Errorf("not a token transfer: %s", hex.EncodeToString(data))
	}
	var to types.Address
	copy(to[:], data[16:36])
	value := types.AmountFromBig(new(big.Int).SetBytes(data[36:68]))
	return to, value, nil
}
