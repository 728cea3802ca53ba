package wallet

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Klingon-tech/polywallet/pkg/types"
)

// snapshot is the persisted form of a wallet. It never carries history or
// the history cursor.
type snapshot struct {
	Crypto           json.RawMessage `json:"crypto"`
	Balance          types.Amount    `json:"balance"`
	ConfirmedBalance types.Amount    `json:"confirmedBalance"`
	TxsCount         uint64          `json:"txsCount"`
	PrivateKey       string          `json:"privateKey"`
	AddressString    string          `json:"addressString"`
	GasPrice         types.Amount    `json:"gasPrice"`
	GasLimit         string          `json:"gasLimit"`
	MinConf          int             `json:"minConf"`
	ChainID          int64           `json:"chainId"`
	NetworkID        int64           `json:"networkId"`

	FeeMode              string        `json:"feeMode,omitempty"`
	MaxPriorityFeePerGas *types.Amount `json:"maxPriorityFeePerGas,omitempty"`
	MaxFeePerGas         *types.Amount `json:"maxFeePerGas,omitempty"`
	BIP44                string        `json:"bip44,omitempty"`
}

// Serialize returns the wallet as JSON, private key included. A locked
// wallet cannot be serialized.
func (w *Wallet) Serialize() ([]byte, error) {
	u, ok := w.keys.(Unlocked)
	if !ok {
		return nil, ErrWalletLocked
	}
	asset, err := marshalAsset(w.asset)
	if err != nil {
		return nil, err
	}

	priority := w.fee.MaxPriorityFeePerGas
	maxFee := w.fee.MaxFeePerGas
	return json.Marshal(snapshot{
		Crypto:               asset,
		Balance:              w.balances.Balance,
		ConfirmedBalance:     w.balances.ConfirmedBalance,
		TxsCount:             w.balances.TxsCount,
		PrivateKey:           u.Key.Hex(),
		AddressString:        w.address.String(),
		GasPrice:             w.fee.GasPrice,
		GasLimit:             strconv.FormatUint(w.fee.GasLimit, 10),
		MinConf:              w.minConf,
		ChainID:              w.network.ChainID,
		NetworkID:            w.network.NetworkID,
		FeeMode:              w.fee.Mode.String(),
		MaxPriorityFeePerGas: &priority,
		MaxFeePerGas:         &maxFee,
		BIP44:                w.bip44,
	})
}

// Deserialize rebuilds a wallet from Serialize output. The wallet has no
// network or cache attached: call Connect, then Load, for live data.
func Deserialize(data []byte) (*Wallet, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}

	asset, err := unmarshalAsset(s.Crypto)
	if err != nil {
		return nil, err
	}
	key, err := (&Wallet{}).CreatePrivateKey(s.PrivateKey)
	if err != nil {
		return nil, err
	}
	address := key.Address()
	if s.AddressString != "" && !types.SameAddress(s.AddressString, address.String()) {
		return nil, fmt.Errorf("wallet address %s does not match private key", s.AddressString)
	}
	if s.ChainID <= 0 {
		return nil, fmt.Errorf("invalid chainId %d", s.ChainID)
	}

	gasLimit := asset.GasLimit()
	if s.GasLimit != "" {
		gasLimit, err = strconv.ParseUint(s.GasLimit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse gasLimit: %w", err)
		}
	}
	mode := FeeMarket
	if s.FeeMode == FeeLegacy.String() {
		mode = FeeLegacy
	}
	fee := NewFeeModel(mode, gasLimit)
	fee.GasPrice = s.GasPrice
	if s.MaxPriorityFeePerGas != nil {
		fee.MaxPriorityFeePerGas = *s.MaxPriorityFeePerGas
	}
	if s.MaxFeePerGas != nil {
		fee.MaxFeePerGas = *s.MaxFeePerGas
	}

	bip44 := s.BIP44
	if bip44 == "" {
		bip44 = DefaultBIP44
	}
	minConf := s.MinConf
	if minConf <= 0 {
		minConf = DefaultMinConf
	}

	w := &Wallet{
		asset:   asset,
		network: networkByChainID(s.ChainID, s.NetworkID),
		bip44:   bip44,
		minConf: minConf,
		address: address,
		pubKey:  key.PublicKey(),
		keys:    Unlocked{Key: key},
		fee:     fee,
		balances: &Balances{
			Balance:          s.Balance,
			ConfirmedBalance: s.ConfirmedBalance,
			TxsCount:         s.TxsCount,
			NativeBalance:    types.Zero,
		},
		cursor: 1,
	}
	w.connect(nil, nil, nil)
	return w, nil
}
