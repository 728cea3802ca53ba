// polywallet-cli is a command-line client for a single-address account
// wallet on a Polygon-style chain.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Klingon-tech/polywallet/config"
	"github.com/Klingon-tech/polywallet/internal/cache"
	"github.com/Klingon-tech/polywallet/internal/explorer"
	klog "github.com/Klingon-tech/polywallet/internal/log"
	"github.com/Klingon-tech/polywallet/internal/nodeapi"
	"github.com/Klingon-tech/polywallet/internal/wallet"
	"github.com/Klingon-tech/polywallet/pkg/types"
	"golang.org/x/term"
)

const version = "0.1.0"

// defaultDecimals is the native coin precision.
const defaultDecimals = 18

// app carries the resolved configuration into commands.
type app struct {
	cfg     *config.Config
	ks      *wallet.Keystore
	network wallet.Network
}

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fatal("%v", err)
	}
	if flags.Help {
		usage()
		return
	}
	if flags.Version {
		fmt.Printf("polywallet-cli version %s\n", version)
		return
	}
	if len(flags.Args) == 0 {
		usage()
		os.Exit(1)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	network, err := wallet.NetworkByName(string(cfg.Network))
	if err != nil {
		fatal("%v", err)
	}
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	a := &app{cfg: cfg, ks: ks, network: network}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]
	klog.CLI.Debug().Str("command", cmd).Str("network", network.Name).Msg("Running")

	switch cmd {
	case "wallet":
		a.cmdWallet(cmdArgs)
	case "balance":
		a.cmdBalance(ctx, cmdArgs)
	case "history":
		a.cmdHistory(ctx, cmdArgs)
	case "fee":
		a.cmdFee(ctx, cmdArgs)
	case "send":
		a.cmdSend(ctx, cmdArgs)
	case "sweep":
		a.cmdSweep(ctx, cmdArgs)
	case "tx":
		a.cmdTx(ctx, cmdArgs)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: polywallet-cli [global options] <command> [flags]

Commands:
  wallet create --name <n>        Create a new wallet (prints the mnemonic)
  wallet restore --name <n> --mnemonic "..."
                                  Restore a wallet from a mnemonic
  wallet list                     List wallets
  wallet address --wallet <w> [--public-key]
                                  Show the receive address
  wallet export-key --wallet <w> [--output <file>]
                                  Export the private key as CSV

  balance --wallet <w> [--offline]
                                  Show balance, nonce and fee
  history --wallet <w> [--pages <n>]
                                  Show transaction history
  fee --wallet <w>                Show current fee parameters
  send --wallet <w> --to <addr> --amount <amt> [--decimals <n>] [--yes]
                                  Send funds
  sweep --wallet <w> --key <hex> [--to <addr>] [--yes]
                                  Move all funds of a private key
  tx <id>                         Show a transaction from the node

Amounts are decimal strings scaled by --decimals (default 18; 0 for base units).

`)
	config.PrintUsage(os.Stderr)
}

// ── wallet ──────────────────────────────────────────────────────────────

func (a *app) cmdWallet(args []string) {
	if len(args) < 1 {
		fatal("Usage: polywallet-cli wallet <create|restore|list|address|export-key> [flags]")
	}

	switch args[0] {
	case "create":
		a.cmdWalletCreate(args[1:])
	case "restore":
		a.cmdWalletRestore(args[1:])
	case "list":
		a.cmdWalletList()
	case "address":
		a.cmdWalletAddress(args[1:])
	case "export-key":
		a.cmdWalletExportKey(args[1:])
	default:
		fatal("Unknown wallet command: %s\nUsage: polywallet-cli wallet <create|restore|list|address|export-key> [flags]", args[0])
	}
}

func (a *app) cmdWalletCreate(args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: polywallet-cli wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	a.storeMnemonic(*name, mnemonic)
}

func (a *app) cmdWalletRestore(args []string) {
	fs := flag.NewFlagSet("wallet restore", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal("Usage: polywallet-cli wallet restore --name <name> --mnemonic \"word1 word2 ...\"")
	}
	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}

	a.storeMnemonic(*name, *mnemonic)
}

// storeMnemonic derives the seed, encrypts it under a new password and
// records the wallet's address in the keystore.
func (a *app) storeMnemonic(name, mnemonic string) {
	password := readNewPassword()

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer wipe(seed)

	key, err := wallet.KeyFromSeedHex(wallet.SeedHex(seed), a.cfg.Wallet.BIP44)
	if err != nil {
		fatal("derive key: %v", err)
	}
	addr := key.Address()
	key.Zero()

	meta := wallet.Meta{
		Network: a.network.Name,
		Asset:   a.cfg.Wallet.Asset,
		Token:   a.cfg.Wallet.Token,
		BIP44:   a.cfg.Wallet.BIP44,
		Address: addr.String(),
	}
	if err := a.ks.Create(name, seed, password, meta, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}

	fmt.Printf("\nWallet created: %s\n", name)
	fmt.Printf("Address: %s\n", addr.Checksum())
}

func (a *app) cmdWalletList() {
	names, err := a.ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}

	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}

	for _, name := range names {
		meta, err := a.ks.Meta(name)
		if err != nil {
			fmt.Printf("%-20s (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("%-20s %s  %s\n", name, meta.Address, meta.BIP44)
	}
}

func (a *app) cmdWalletAddress(args []string) {
	fs := flag.NewFlagSet("wallet address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	publicKey := fs.Bool("public-key", false, "Also print the exportable public key")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: polywallet-cli wallet address --wallet <name> [--public-key]")
	}

	if !*publicKey {
		meta, err := a.ks.Meta(*walletName)
		if err != nil {
			fatal("load wallet: %v", err)
		}
		addr, err := types.ParseAddress(meta.Address)
		if err != nil {
			fatal("stored address: %v", err)
		}
		fmt.Println(addr.Checksum())
		return
	}

	w, closeWallet := a.openWallet(*walletName, readPassword("Enter password: "))
	defer closeWallet()
	fmt.Println(w.NextAddress())
	fmt.Println(w.PublicKey())
}

func (a *app) cmdWalletExportKey(args []string) {
	fs := flag.NewFlagSet("wallet export-key", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	output := fs.String("output", "", "Output file path (default: stdout)")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: polywallet-cli wallet export-key --wallet <name> [--output path]")
	}

	w, closeWallet := a.openWallet(*walletName, readPassword("Enter password: "))
	defer closeWallet()

	csv, err := w.ExportPrivateKeys()
	if err != nil {
		fatal("export key: %v", err)
	}
	if *output == "" {
		fmt.Println(csv)
		return
	}
	if err := os.WriteFile(*output, []byte(csv+"\n"), 0600); err != nil {
		fatal("write key file: %v", err)
	}
	fmt.Printf("Exported key to: %s\n", *output)
}

// ── balance ─────────────────────────────────────────────────────────────

func (a *app) cmdBalance(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	decimals := fs.Int("decimals", defaultDecimals, "Asset decimals for display")
	offline := fs.Bool("offline", false, "Show the last saved state without contacting the node")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: polywallet-cli balance --wallet <name> [--offline]")
	}
	password := readPassword("Enter password: ")

	if *offline {
		data, err := a.ks.LoadSnapshot(*walletName, password)
		if err != nil {
			fatal("load snapshot: %v", err)
		}
		w, err := wallet.Deserialize(data)
		if err != nil {
			fatal("restore wallet: %v", err)
		}
		printBalance(w, int32(*decimals))
		return
	}

	w, closeWallet := a.openWallet(*walletName, password)
	defer closeWallet()
	if err := w.Load(ctx); err != nil {
		fatal("load: %v", err)
	}
	printBalance(w, int32(*decimals))
	a.saveSnapshot(*walletName, w, password)
}

func printBalance(w *wallet.Wallet, decimals int32) {
	fmt.Printf("Address:    %s\n", w.NextAddress())
	fmt.Printf("Asset:      %s\n", w.Asset())
	fmt.Printf("Balance:    %s\n", types.FormatUnits(w.Balance(), decimals))
	fmt.Printf("Confirmed:  %s\n", types.FormatUnits(w.ConfirmedBalance(), decimals))
	if native, known := w.NativeBalance(); known {
		fmt.Printf("Native:     %s\n", types.FormatUnits(native, defaultDecimals))
	}
	fmt.Printf("Nonce:      %d\n", w.TxsCount())
	fmt.Printf("Fee:        %s\n", types.FormatUnits(w.DefaultFee(), defaultDecimals))
	fmt.Printf("Spendable:  %s\n", types.FormatUnits(w.MaxAmount(), decimals))
}

// ── history ─────────────────────────────────────────────────────────────

func (a *app) cmdHistory(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	pages := fs.Int("pages", 1, "Number of pages to fetch")
	decimals := fs.Int("decimals", defaultDecimals, "Asset decimals for display")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: polywallet-cli history --wallet <name> [--pages n]")
	}

	w, closeWallet := a.openWallet(*walletName, readPassword("Enter password: "))
	defer closeWallet()
	if err := w.Load(ctx); err != nil {
		fatal("load: %v", err)
	}

	count := 0
	for i := 0; i < *pages; i++ {
		page, err := w.LoadTxs(ctx)
		if err != nil {
			fatal("history: %v", err)
		}
		for _, tx := range page.Txs {
			status := "pending"
			if tx.Confirmed {
				status = "confirmed"
			}
			if !tx.Status {
				status = "failed"
			}
			fmt.Printf("%s  %-4s %24s  %-9s %s\n",
				time.UnixMilli(tx.Timestamp).UTC().Format("2006-01-02 15:04"),
				tx.Direction(),
				types.FormatUnits(tx.Amount, int32(*decimals)),
				status,
				tx.ID)
			count++
		}
		if !page.HasMore {
			break
		}
	}
	if count == 0 {
		fmt.Println("No transactions found.")
	}
}

// ── fee ─────────────────────────────────────────────────────────────────

func (a *app) cmdFee(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("fee", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: polywallet-cli fee --wallet <name>")
	}

	w, closeWallet := a.openWallet(*walletName, readPassword("Enter password: "))
	defer closeWallet()
	if err := w.Update(ctx); err != nil {
		fatal("fee: %v", err)
	}

	fee := w.Fee()
	fmt.Printf("Mode:         %s\n", fee.Mode)
	fmt.Printf("Gas limit:    %d\n", fee.GasLimit)
	fmt.Printf("Gas price:    %s\n", fee.GasPrice)
	if fee.Mode == wallet.FeeMarket {
		fmt.Printf("Max fee:      %s\n", fee.MaxFeePerGas)
		fmt.Printf("Priority fee: %s\n", fee.MaxPriorityFeePerGas)
	}
	fmt.Printf("Default fee:  %s\n", types.FormatUnits(w.DefaultFee(), defaultDecimals))
}

// ── send ────────────────────────────────────────────────────────────────

func (a *app) cmdSend(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	toAddr := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to send (e.g. 1.5)")
	decimals := fs.Int("decimals", defaultDecimals, "Asset decimals")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	fs.Parse(args)

	if *walletName == "" || *toAddr == "" || *amountStr == "" {
		fatal("Usage: polywallet-cli send --wallet <name> --to <addr> --amount <amt>")
	}

	amount, err := types.ParseUnits(*amountStr, int32(*decimals))
	if err != nil {
		fatal("invalid amount: %v", err)
	}
	if err := types.ValidateAddress(*toAddr); err != nil {
		fatal("invalid recipient address: %v", err)
	}

	password := readPassword("Enter password: ")
	w, closeWallet := a.openWallet(*walletName, password)
	defer closeWallet()
	if err := w.Load(ctx); err != nil {
		fatal("load: %v", err)
	}

	utx, err := w.CreateTx(*toAddr, amount)
	if err != nil {
		fatalTx("create tx", err)
	}
	fmt.Printf("Send %s to %s (fee up to %s)\n",
		types.FormatUnits(amount, int32(*decimals)), *toAddr,
		types.FormatUnits(w.DefaultFee(), defaultDecimals))
	printTxParams(utx)
	if !*yes && !confirm("Proceed? [y/N] ") {
		fmt.Println("Aborted.")
		return
	}

	a.signAndSend(ctx, w, utx)
	a.saveSnapshot(*walletName, w, password)
}

// ── sweep ───────────────────────────────────────────────────────────────

func (a *app) cmdSweep(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	keyHex := fs.String("key", "", "Private key to sweep (hex); read from stdin when empty")
	toAddr := fs.String("to", "", "Recipient (default: this wallet)")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: polywallet-cli sweep --wallet <name> [--key <hex>] [--to <addr>]")
	}

	password := readPassword("Enter password: ")
	w, closeWallet := a.openWallet(*walletName, password)
	defer closeWallet()
	if err := w.Load(ctx); err != nil {
		fatal("load: %v", err)
	}

	secret := *keyHex
	if secret == "" {
		secret = string(readPassword("Private key to sweep: "))
	}
	key, err := w.CreatePrivateKey(secret)
	if err != nil {
		fatal("%v", err)
	}
	defer key.Zero()

	opts, err := w.GetImportTxOptions(ctx, key)
	if err != nil {
		fatal("read imported key: %v", err)
	}
	to := *toAddr
	if to == "" {
		to = w.Address()
	}

	utx, err := w.CreateImportTx(opts, to)
	if err != nil {
		fatalTx("create import tx", err)
	}
	fmt.Printf("Sweep %s from %s to %s\n", opts.Amount, key.Address().Checksum(), to)
	printTxParams(utx)
	if !*yes && !confirm("Proceed? [y/N] ") {
		fmt.Println("Aborted.")
		return
	}

	a.signAndSend(ctx, w, utx)
	a.saveSnapshot(*walletName, w, password)
}

// printTxParams shows the nonce and gas terms of a built transaction.
func printTxParams(utx *wallet.UnsignedTx) {
	tx := utx.Tx()
	fmt.Printf("Nonce %d, gas %d, max fee per gas %s\n", tx.Nonce(), tx.Gas(), tx.GasFeeCap())
}

func (a *app) signAndSend(ctx context.Context, w *wallet.Wallet, utx *wallet.UnsignedTx) {
	signed, err := utx.Sign()
	if err != nil {
		fatal("sign: %v", err)
	}
	id, err := w.SendTx(ctx, signed)
	if err != nil {
		fatalTx("send", err)
	}
	fmt.Printf("Submitted: %s\n", id)
	fmt.Printf("Explorer:  %s\n", w.TxURL(id))
}

// ── tx ──────────────────────────────────────────────────────────────────

func (a *app) cmdTx(ctx context.Context, args []string) {
	if len(args) < 1 {
		fatal("Usage: polywallet-cli tx <id>")
	}
	id := args[0]
	if err := types.ValidateTxID(id); err != nil {
		fatal("%v", err)
	}

	node, err := nodeapi.NewWithTimeout(a.cfg.Node.URL, a.cfg.Node.Timeout)
	if err != nil {
		fatal("node: %v", err)
	}
	raw, err := node.Transaction(ctx, id)
	if err != nil {
		fatal("get transaction: %v", err)
	}

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		fatal("decode tx: %v", err)
	}
	fmt.Println(string(out))
	fmt.Printf("Explorer: %s\n", a.network.TxLink(id))
}

// ── Wallet helpers ──────────────────────────────────────────────────────

// openWallet decrypts a stored wallet and connects it to the configured
// node, explorer and cache. The returned func releases the cache.
func (a *app) openWallet(name string, password []byte) (*wallet.Wallet, func()) {
	meta, err := a.ks.Meta(name)
	if err != nil {
		fatal("load wallet: %v", err)
	}
	if meta.Network != "" && meta.Network != a.network.Name {
		fatal("wallet %q belongs to %s, not %s", name, meta.Network, a.network.Name)
	}
	seed, err := a.ks.Load(name, password)
	if err != nil {
		fatal("load wallet: %v", err)
	}
	seedHex := wallet.SeedHex(seed)
	wipe(seed)

	asset, err := a.asset()
	if err != nil {
		fatal("%v", err)
	}
	node, err := nodeapi.NewWithTimeout(a.cfg.Node.URL, a.cfg.Node.Timeout)
	if err != nil {
		fatal("node: %v", err)
	}
	history, err := explorer.New(a.cfg.Explorer.URL)
	if err != nil {
		fatal("explorer: %v", err)
	}
	store, err := a.openCache()
	if err != nil {
		fatal("cache: %v", err)
	}

	bip44 := meta.BIP44
	if bip44 == "" {
		bip44 = a.cfg.Wallet.BIP44
	}
	w, err := wallet.New(wallet.Options{
		Asset:      asset,
		Seed:       seedHex,
		Network:    a.network,
		BIP44:      bip44,
		MinConf:    a.cfg.Wallet.MinConf,
		LegacyFees: !a.cfg.Wallet.FeeMarket,
		Node:       node,
		Explorer:   history,
		Cache:      cache.NewNamespaced(store, a.network.Name, asset.String(), meta.Address),
	})
	if err != nil {
		store.Close()
		fatal("open wallet: %v", err)
	}
	return w, func() {
		if err := store.Close(); err != nil {
			klog.CLI.Warn().Err(err).Msg("Failed to close cache")
		}
	}
}

func (a *app) asset() (wallet.Asset, error) {
	if a.cfg.Wallet.Asset == config.AssetToken {
		return wallet.NewToken(a.cfg.Wallet.Token)
	}
	return wallet.Native{}, nil
}

func (a *app) openCache() (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheBadger:
		return cache.NewBadger(a.cfg.CacheDir())
	case config.CacheRedis:
		return cache.NewRedis(cache.RedisOptions{
			Addrs:      a.cfg.Cache.RedisAddrs,
			Password:   a.cfg.Cache.RedisPassword,
			UseCluster: a.cfg.Cache.RedisCluster,
		})
	default:
		return cache.NewMemory(), nil
	}
}

// saveSnapshot stores the wallet state for balance --offline. Failure is
// reported but does not undo a completed command.
func (a *app) saveSnapshot(name string, w *wallet.Wallet, password []byte) {
	data, err := w.Serialize()
	if err == nil {
		err = a.ks.SaveSnapshot(name, data, password, wallet.DefaultParams())
	}
	wipe(data)
	if err != nil {
		klog.CLI.Warn().Err(err).Str("wallet", name).Msg("Failed to save wallet snapshot")
	}
}

// ── Prompt helpers ──────────────────────────────────────────────────────

func readPassword(prompt string) []byte {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		fatal("read password: %v", err)
	}
	return password
}

func readNewPassword() []byte {
	password := readPassword("Enter password: ")
	again := readPassword("Confirm password: ")
	if string(password) != string(again) {
		fatal("passwords do not match")
	}
	return password
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ── Error helpers ───────────────────────────────────────────────────────

// fatalTx explains the wallet's send failures before exiting.
func fatalTx(action string, err error) {
	var shortfall *wallet.FeeShortfallError
	switch {
	case errors.As(err, &shortfall):
		fatal("%s: native balance cannot pay the fee of %s (short by %s)", action, shortfall.Required, shortfall.Shortfall)
	case errors.Is(err, wallet.ErrGasTooLow):
		fatal("%s: the node rejected the gas limit as too low", action)
	case errors.Is(err, wallet.ErrNativeBalanceUnknown):
		fatal("%s: native balance unknown, reload the wallet", action)
	default:
		fatal("%s: %v", action, err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
