package wallet

import (
	"fmt"
	"math/big"
	"strings"
)

// Network identifies a chain the wallet signs for.
type Network struct {
	Name      string
	ChainID   int64
	NetworkID int64
	// TxURL is an explorer link template; "${txId}" is replaced by the id.
	TxURL string
}

var (
	Mainnet = Network{
		Name:      "mainnet",
		ChainID:   137,
		NetworkID: 137,
		TxURL:     "https://polygonscan.com/tx/${txId}",
	}
	Testnet = Network{
		Name:      "testnet",
		ChainID:   80001,
		NetworkID: 80001,
		TxURL:     "https://mumbai.polygonscan.com/tx/${txId}",
	}
)

// DefaultBIP44 is the derivation path used when none is configured.
const DefaultBIP44 = "m/44'/966'/0'"

// DefaultMinConf is the confirmation count a record needs to count as confirmed.
const DefaultMinConf = 5

// NetworkByName returns the network for "mainnet" or "testnet".
func NetworkByName(name string) (Network, error) {
	switch strings.ToLower(name) {
	case "mainnet", "":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	default:
		return Network{}, fmt.Errorf("unknown network %q", name)
	}
}

// networkByChainID resolves a persisted chain id. Unknown ids keep their
// numbers with no explorer link.
func networkByChainID(chainID, networkID int64) Network {
	switch chainID {
	case Mainnet.ChainID:
		return Mainnet
	case Testnet.ChainID:
		return Testnet
	default:
		return Network{Name: "custom", ChainID: chainID, NetworkID: networkID}
	}
}

func (n Network) chainID() *big.Int {
	return big.NewInt(n.ChainID)
}

// TxLink returns the explorer URL for a transaction id.
func (n Network) TxLink(txID string) string {
	if n.TxURL == "" {
		return ""
	}
	return strings.Replace(n.TxURL, "${txId}", txID, 1)
}
