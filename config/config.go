// Package config handles wallet client configuration.
//
// Values are resolved in order of increasing precedence:
//   - Network defaults
//   - The polywallet.conf file in the data directory
//   - Command-line flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Asset kinds.
const (
	AssetNative = "native"
	AssetToken  = "token"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

// Config holds the wallet client configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Node API
	Node NodeConfig

	// Explorer history API
	Explorer ExplorerConfig

	// Wallet
	Wallet WalletConfig

	// Balance cache
	Cache CacheConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds node API settings.
type NodeConfig struct {
	URL     string        `conf:"node.url"`
	Timeout time.Duration `conf:"node.timeout"`
}

// ExplorerConfig holds explorer API settings.
type ExplorerConfig struct {
	URL string `conf:"explorer.url"`
}

// WalletConfig holds per-wallet engine settings.
type WalletConfig struct {
	Asset     string `conf:"asset"`         // native or token
	Token     string `conf:"token.address"` // contract address when asset=token
	MinConf   int    `conf:"wallet.minconf"`
	FeeMarket bool   `conf:"wallet.feemarket"`
	BIP44     string `conf:"wallet.bip44"`
}

// CacheConfig selects where the last known balance is kept.
type CacheConfig struct {
	Backend       string   `conf:"cache.backend"` // memory, badger or redis
	RedisAddrs    []string `conf:"cache.redis.addr"`
	RedisPassword string   `conf:"cache.redis.password"`
	RedisCluster  bool     `conf:"cache.redis.cluster"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.polywallet
//	macOS:   ~/Library/Application Support/Polywallet
//	Windows: %APPDATA%\Polywallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".polywallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Polywallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Polywallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "Polywallet")
	default:
		return filepath.Join(home, ".polywallet")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.ChainDataDir(), "keystore")
}

// CacheDir returns the badger cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.ChainDataDir(), "cache")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "polywallet.conf")
}
