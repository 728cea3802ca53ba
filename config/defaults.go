package config

import "time"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			URL:     "http://127.0.0.1:3000/",
			Timeout: 30 * time.Second,
		},
		Explorer: ExplorerConfig{
			URL: "https://api.polygonscan.com",
		},
		Wallet: WalletConfig{
			Asset:     AssetNative,
			MinConf:   5,
			FeeMarket: true,
			BIP44:     "m/44'/966'/0'",
		},
		Cache: CacheConfig{
			Backend:    CacheBadger,
			RedisAddrs: []string{"127.0.0.1:6379"},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Node.URL = "http://127.0.0.1:3001/"
	cfg.Explorer.URL = "https://api-testnet.polygonscan.com"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
