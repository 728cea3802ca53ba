package config

import (
	"fmt"
	"net/url"

	klog "github.com/Klingon-tech/polywallet/internal/log"
	"github.com/Klingon-tech/polywallet/internal/wallet"
	"github.com/Klingon-tech/polywallet/pkg/types"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if err := validateURL(cfg.Node.URL, "node.url"); err != nil {
		return err
	}
	if err := validateURL(cfg.Explorer.URL, "explorer.url"); err != nil {
		return err
	}
	if cfg.Node.Timeout < 0 {
		return fmt.Errorf("node.timeout must not be negative")
	}

	switch cfg.Wallet.Asset {
	case AssetNative:
		cfg.Wallet.Token = ""
	case AssetToken:
		if err := types.ValidateAddress(cfg.Wallet.Token); err != nil {
			return fmt.Errorf("token.address: %w", err)
		}
	default:
		return fmt.Errorf("asset must be %q or %q", AssetNative, AssetToken)
	}
	if cfg.Wallet.MinConf < 1 {
		return fmt.Errorf("wallet.minconf must be at least 1")
	}
	if _, err := wallet.ParsePath(cfg.Wallet.BIP44); err != nil {
		return fmt.Errorf("wallet.bip44: %w", err)
	}

	switch cfg.Cache.Backend {
	case CacheMemory, CacheBadger:
	case CacheRedis:
		if len(cfg.Cache.RedisAddrs) == 0 {
			return fmt.Errorf("cache.backend=redis requires cache.redis.addr")
		}
	default:
		return fmt.Errorf("cache.backend must be %s, %s or %s", CacheMemory, CacheBadger, CacheRedis)
	}

	if _, err := klog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	return nil
}
