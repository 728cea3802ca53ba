package wallet

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/polywallet/internal/nodeapi"
	"github.com/Klingon-tech/polywallet/pkg/crypto"
	"github.com/Klingon-tech/polywallet/pkg/types"
)

// Wallet errors. Format errors are shared with pkg/types and network errors
// with internal/nodeapi so callers can match on either package's values.
var (
	ErrInvalidAddress       = types.ErrInvalidAddress
	ErrInvalidTransactionID = types.ErrInvalidTransactionID
	ErrInvalidAmount        = types.ErrInvalidAmount
	ErrInvalidPrivateKey    = crypto.ErrInvalidPrivateKey
	ErrNodeError            = nodeapi.ErrNodeError
	ErrGasTooLow            = nodeapi.ErrGasTooLow

	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientFundsForFee = errors.New("insufficient funds for token transaction")
	ErrWalletLocked            = errors.New("wallet is locked")
	ErrNativeBalanceUnknown    = errors.New("native balance not loaded")
	ErrSeedMismatch            = errors.New("seed does not match wallet address")
	ErrNoKey                   = errors.New("seed or public key required")
)

// FeeShortfallError reports that the native balance cannot pay the fee of
// a token transfer.
type FeeShortfallError struct {
	Required  types.Amount
	Shortfall types.Amount
}

func (e *FeeShortfallError) Error() string {
	return fmt.Sprintf("%s: required %s, short by %s", ErrInsufficientFundsForFee, e.Required, e.Shortfall)
}

// Unwrap lets errors.Is match ErrInsufficientFundsForFee.
func (e *FeeShortfallError) Unwrap() error {
	return ErrInsufficientFundsForFee
}

// checkFeeCoverage returns a FeeShortfallError when native < fee.
func checkFeeCoverage(native, fee types.Amount) error {
	if native.LessThan(fee) {
		return &FeeShortfallError{Required: fee, Shortfall: fee.Sub(native)}
	}
	return nil
}

// normalizeNodeError maps collaborator failures onto the wallet taxonomy.
// Known kinds pass through; anything else becomes ErrNodeError.
func normalizeNodeError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrNodeError,
		ErrGasTooLow,
		ErrInvalidAddress,
		ErrInvalidTransactionID,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrNodeError, err)
}
