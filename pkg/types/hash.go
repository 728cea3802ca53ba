// Package types defines the primitive value types shared by the wallet:
// addresses, transaction ids and decimal amounts.
package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// HashSize is the length of a transaction id in bytes.
const HashSize = common.HashLength

// ErrInvalidTransactionID is returned for strings that are not 0x + 64 hex characters.
var ErrInvalidTransactionID = errors.New("invalid transaction id")

// ValidateTxID checks that s is 0x followed by exactly 64 hex characters.
func ValidateTxID(s string) error {
	if len(s) != 2+HashSize*2 || !hasHexPrefix(s) || !isHex(s[2:]) {
		return fmt.Errorf("%w: %q", ErrInvalidTransactionID, s)
	}
	return nil
}
