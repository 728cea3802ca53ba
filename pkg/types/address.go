package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressSize is the length of an address in bytes.
const AddressSize = common.AddressLength

// addressHexLen is the number of hex characters after the 0x prefix.
const addressHexLen = AddressSize * 2

// ErrInvalidAddress is returned for strings that are not 0x + 40 hex characters.
var ErrInvalidAddress = errors.New("invalid address")

// Address represents a 160-bit account address.
type Address [AddressSize]byte

// String returns the lowercase 0x-prefixed address.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Checksum returns the EIP-55 mixed-case encoding.
func (a Address) Checksum() string {
	return common.Address(a).Hex()
}

// Common converts the address to its go-ethereum form.
func (a Address) Common() common.Address {
	return common.Address(a)
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// MarshalJSON encodes the address as a lowercase hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a 0x-prefixed hex string into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ValidateAddress checks that s is a 2-character 0x prefix followed by
// exactly 40 hex characters. Case is not significant and no checksum is
// enforced.
func ValidateAddress(s string) error {
	if len(s) != 2+addressHexLen || !hasHexPrefix(s) || !isHex(s[2:]) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return nil
}

// ParseAddress validates and decodes an address string.
func ParseAddress(s string) (Address, error) {
	if err := ValidateAddress(s); err != nil {
		return Address{}, err
	}
	var a Address
	if _, err := hex.Decode(a[:], []byte(s[2:])); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return a, nil
}

// AddressFromCommon converts a go-ethereum address.
func AddressFromCommon(c common.Address) Address {
	return Address(c)
}

// SameAddress compares two address strings case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
