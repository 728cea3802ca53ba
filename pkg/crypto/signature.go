package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Klingon-tech/polywallet/pkg/types"
)

// Key errors.
var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidPublicKey  = errors.New("invalid public key")
)

// PrivateKeySize is the length of a raw secp256k1 scalar.
const PrivateKeySize = 32

// Signer signs ledger transactions.
type Signer interface {
	// SignTx returns a signed copy of tx for the given chain id.
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
	// Address returns the account the signer signs for.
	Address() types.Address
}

// PrivateKey wraps a secp256k1 private key for ledger transaction signing.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// GenerateKey creates a new random private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte scalar. Zero and
// out-of-range scalars are rejected.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(b))
	}
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromHex parses a hex private key with or without a 0x prefix.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return PrivateKeyFromBytes(b)
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return ethcrypto.FromECDSA(pk.key)
}

// Hex returns the 0x-prefixed private key.
func (pk *PrivateKey) Hex() string {
	return hexutil.Encode(pk.Serialize())
}

// PublicKey returns the matching public key.
func (pk *PrivateKey) PublicKey() *PublicKey {
	pub, err := ParsePublicKey(ethcrypto.FromECDSAPub(&pk.key.PublicKey))
	if err != nil {
		// A valid scalar always yields a point on the curve.
		panic(err)
	}
	return pub
}

// Address returns the account address controlled by this key.
func (pk *PrivateKey) Address() types.Address {
	return types.AddressFromCommon(ethcrypto.PubkeyToAddress(pk.key.PublicKey))
}

// SignTx signs tx with the latest signer rules for chainID.
func (pk *PrivateKey) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), pk.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed, nil
}

// Zero clears the private scalar. The key must not be used afterwards.
func (pk *PrivateKey) Zero() {
	if pk.key != nil && pk.key.D != nil {
		pk.key.D.SetInt64(0)
	}
	pk.key = nil
}

// Sender recovers the address that signed tx.
func Sender(tx *ethtypes.Transaction, chainID *big.Int) (types.Address, error) {
	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return types.Address{}, fmt.Errorf("recover sender: %w", err)
	}
	return types.AddressFromCommon(from), nil
}

// PublicKey is a secp256k1 public key used by watch-only wallets.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// ParsePublicKey accepts a compressed (33 bytes), uncompressed (65 bytes) or
// raw uncompressed without prefix (64 bytes) public key.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) == 64 {
		b = append([]byte{0x04}, b...)
	}
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return &PublicKey{key: key}, nil
}

// ParsePublicKeyHex parses a hex-encoded public key.
func ParsePublicKeyHex(s string) (*PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return ParsePublicKey(b)
}

// Bytes returns the 64-byte uncompressed key without the 0x04 prefix.
func (p *PublicKey) Bytes() []byte {
	return p.key.SerializeUncompressed()[1:]
}

// Address derives the account address for this key.
func (p *PublicKey) Address() types.Address {
	return AddressFromPubKey(p.Bytes())
}
