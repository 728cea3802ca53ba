// Package crypto provides key material and hashing for polywallet.
package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/polywallet/pkg/types"
)

// Hash computes a BLAKE3-256 hash of the input data. Used for local
// identifiers (cache namespaces), never for anything the ledger sees.
func Hash(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// Keccak256 computes the legacy Keccak-256 hash used by the ledger.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}

// AddressFromPubKey derives an address from a 64-byte uncompressed public
// key (without the 0x04 prefix): the last 20 bytes of Keccak256(pubkey).
func AddressFromPubKey(pub64 []byte) types.Address {
	h := Keccak256(pub64)
	var addr types.Address
	copy(addr[:], h[len(h)-types.AddressSize:])
	return addr
}
