package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Node / explorer
	case "node.url", "node":
		cfg.Node.URL = value
	case "node.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Node.Timeout = d
	case "explorer.url", "explorer":
		cfg.Explorer.URL = value

	// Wallet
	case "asset":
		cfg.Wallet.Asset = strings.ToLower(value)
	case "token.address", "token":
		cfg.Wallet.Token = value
	case "wallet.minconf", "minconf":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Wallet.MinConf = n
	case "wallet.feemarket":
		cfg.Wallet.FeeMarket = parseBool(value)
	case "wallet.bip44":
		cfg.Wallet.BIP44 = value

	// Cache
	case "cache.backend", "cache":
		cfg.Cache.Backend = strings.ToLower(value)
	case "cache.redis.addr":
		cfg.Cache.RedisAddrs = parseStringList(value)
	case "cache.redis.password":
		cfg.Cache.RedisPassword = value
	case "cache.redis.cluster":
		cfg.Cache.RedisCluster = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	cfg := Default(network)
	content := `# Polywallet Configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.polywallet)
# datadir = ~/.polywallet

# ============================================================================
# Node / Explorer
# ============================================================================

node.url = ` + cfg.Node.URL + `
# node.timeout = 30s
explorer.url = ` + cfg.Explorer.URL + `

# ============================================================================
# Wallet
# ============================================================================

# Asset: native or token
asset = native
# token.address = 0x...

wallet.minconf = 5
# Price transactions with max fee / priority fee (false = legacy gas price)
wallet.feemarket = true
# wallet.bip44 = m/44'/966'/0'

# ============================================================================
# Balance cache
# ============================================================================

# Backend: memory, badger or redis
cache.backend = badger
# cache.redis.addr = 127.0.0.1:6379
# cache.redis.password =
# cache.redis.cluster = false

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}
