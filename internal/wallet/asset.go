package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/polywallet/pkg/types"
)

// Gas limits per asset kind.
const (
	NativeGasLimit uint64 = 21000
	TokenGasLimit  uint64 = 200000
)

// Asset is the kind of value a wallet moves: the chain's native coin or a
// contract token. It is fixed for the lifetime of a wallet.
type Asset interface {
	// GasLimit is the fixed gas limit used for transfers of this asset.
	GasLimit() uint64
	String() string
	isAsset()
}

// Native is the chain's base asset.
type Native struct{}

// GasLimit returns NativeGasLimit.
func (Native) GasLimit() uint64 { return NativeGasLimit }

func (Native) String() string { return "native" }

func (Native) isAsset() {}

// Token is a fungible token behind an ERC-20 style contract.
type Token struct {
	Contract types.Address
}

// GasLimit returns TokenGasLimit.
func (Token) GasLimit() uint64 { return TokenGasLimit }

func (t Token) String() string { return "token:" + t.Contract.String() }

func (Token) isAsset() {}

// NewToken parses a contract address into a Token asset.
func NewToken(contract string) (Token, error) {
	addr, err := types.ParseAddress(contract)
	if err != nil {
		return Token{}, fmt.Errorf("token contract: %w", err)
	}
	return Token{Contract: addr}, nil
}

// assetJSON is the persisted form of an Asset.
type assetJSON struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
}

func marshalAsset(a Asset) ([]byte, error) {
	switch a := a.(type) {
	case Native:
		return json.Marshal(assetJSON{Type: "coin"})
	case Token:
		return json.Marshal(assetJSON{Type: "token", Address: a.Contract.String()})
	default:
		return nil, fmt.Errorf("unknown asset %T", a)
	}
}

func unmarshalAsset(data []byte) (Asset, error) {
	var aj assetJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return nil, fmt.Errorf("parse asset: %w", err)
	}
	switch aj.Type {
	case "coin", "native", "":
		return Native{}, nil
	case "token":
		return NewToken(aj.Address)
	default:
		return nil, fmt.Errorf("unknown asset type %q", aj.Type)
	}
}
