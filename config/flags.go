package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Flags holds parsed global command-line flags.
type Flags struct {
	Help    bool
	Version bool

	// Core
	Network string
	Testnet bool
	DataDir string
	Config  string

	// Node / explorer
	NodeURL     string
	NodeTimeout time.Duration
	ExplorerURL string

	// Wallet
	Asset      string
	Token      string
	MinConf    int
	LegacyFees bool
	BIP44      string

	// Cache
	Cache         string
	RedisAddr     string
	RedisPassword string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Args holds the command and its arguments.
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetLegacyFees bool
	SetLogJSON    bool
}

// ParseFlags parses global flags from args, stopping at the first
// non-flag argument (the command).
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("polywallet-cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Shorthand for --network=testnet")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Node / explorer
	fs.StringVar(&f.NodeURL, "node", "", "Node API base URL")
	fs.DurationVar(&f.NodeTimeout, "node-timeout", 0, "Node API request timeout")
	fs.StringVar(&f.ExplorerURL, "explorer", "", "Explorer API base URL")

	// Wallet
	fs.StringVar(&f.Asset, "asset", "", "Asset: native or token")
	fs.StringVar(&f.Token, "token", "", "Token contract address (implies --asset=token)")
	fs.IntVar(&f.MinConf, "minconf", 0, "Confirmations before a balance is confirmed")
	fs.BoolVar(&f.LegacyFees, "legacy-fees", false, "Price transactions with a single gas price")
	fs.StringVar(&f.BIP44, "bip44", "", "Derivation path")

	// Cache
	fs.StringVar(&f.Cache, "cache", "", "Balance cache: memory, badger or redis")
	fs.StringVar(&f.RedisAddr, "redis", "", "Redis addresses (comma-separated)")
	fs.StringVar(&f.RedisPassword, "redis-password", "", "Redis password")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error, disabled)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.Testnet {
		f.Network = string(Testnet)
	}
	if f.Token != "" && f.Asset == "" {
		f.Asset = AssetToken
	}
	f.SetLegacyFees = isFlagSet(fs, "legacy-fees")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Node / explorer
	if f.NodeURL != "" {
		cfg.Node.URL = f.NodeURL
	}
	if f.NodeTimeout != 0 {
		cfg.Node.Timeout = f.NodeTimeout
	}
	if f.ExplorerURL != "" {
		cfg.Explorer.URL = f.ExplorerURL
	}

	// Wallet
	if f.Asset != "" {
		cfg.Wallet.Asset = strings.ToLower(f.Asset)
	}
	if f.Token != "" {
		cfg.Wallet.Token = f.Token
	}
	if f.MinConf != 0 {
		cfg.Wallet.MinConf = f.MinConf
	}
	if f.SetLegacyFees {
		cfg.Wallet.FeeMarket = !f.LegacyFees
	}
	if f.BIP44 != "" {
		cfg.Wallet.BIP44 = f.BIP44
	}

	// Cache
	if f.Cache != "" {
		cfg.Cache.Backend = strings.ToLower(f.Cache)
	}
	if f.RedisAddr != "" {
		cfg.Cache.RedisAddrs = parseStringList(f.RedisAddr)
	}
	if f.RedisPassword != "" {
		cfg.Cache.RedisPassword = f.RedisPassword
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the global options help.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `Global options:
  --help, -h         Show this help message
  --version          Show version information

  --network          Network type: mainnet (default) or testnet
  --testnet          Shorthand for --network=testnet
  --datadir          Data directory (default: ~/.polywallet)
  --config, -c       Config file path (default: <datadir>/polywallet.conf)

  --node             Node API base URL
  --node-timeout     Node API request timeout (default: 30s)
  --explorer         Explorer API base URL (default: polygonscan)

  --asset            native (default) or token
  --token            Token contract address (implies --asset=token)
  --minconf          Confirmations before a balance is confirmed (default: 5)
  --legacy-fees      Price transactions with a single gas price
  --bip44            Derivation path (default: m/44'/966'/0')

  --cache            Balance cache: memory, badger (default) or redis
  --redis            Redis addresses (comma-separated)
  --redis-password   Redis password

  --log-level        Log level: debug, info, warn, error, disabled (default: info)
  --log-file         Log file path (default: stderr)
  --log-json         Output logs as JSON
`)
}

// Load resolves configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// A network chosen in the file rebases the network defaults.
	if flags.Network == "" && cfg.Network == Testnet && network != Testnet {
		cfg = rebase(cfg, fileValues)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// rebase re-applies file values on top of the testnet defaults.
func rebase(cfg *Config, values map[string]string) *Config {
	next := DefaultTestnet()
	next.DataDir = cfg.DataDir
	// Values were already applied once without error.
	_ = ApplyFileConfig(next, values)
	return next
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.KeystoreDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
