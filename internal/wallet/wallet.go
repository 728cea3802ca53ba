package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Klingon-tech/polywallet/internal/cache"
	"github.com/Klingon-tech/polywallet/internal/explorer"
	klog "github.com/Klingon-tech/polywallet/internal/log"
	"github.com/Klingon-tech/polywallet/internal/nodeapi"
	"github.com/Klingon-tech/polywallet/pkg/crypto"
	"github.com/Klingon-tech/polywallet/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// NodeAPI is the node collaborator. *nodeapi.Client implements it.
type NodeAPI interface {
	FeeSource
	Balance(ctx context.Context, address string, minConf int) (nodeapi.Balance, error)
	TokenBalance(ctx context.Context, token, address string, minConf int) (nodeapi.Balance, error)
	TxCount(ctx context.Context, address string) (uint64, error)
	ExplorerAPIKey(ctx context.Context) (string, error)
	Transaction(ctx context.Context, txID string) (json.RawMessage, error)
	SendRawTransaction(ctx context.Context, rawtx string) (string, error)
}

// keyState is Locked or Unlocked.
type keyState interface{ isKeyState() }

// Locked holds no private key material.
type Locked struct{}

// Unlocked holds the account private key.
type Unlocked struct {
	Key *crypto.PrivateKey
}

func (Locked) isKeyState()   {}
func (Unlocked) isKeyState() {}

// Options configure a new Wallet. Exactly one of Seed or PublicKey is used;
// Seed wins when both are set.
type Options struct {
	Asset Asset
	// Seed is a hex BIP-32 seed. The wallet starts unlocked.
	Seed string
	// PublicKey is a hex public key or the JSON produced by PublicKey().
	// The wallet starts locked.
	PublicKey string

	Network Network
	// BIP44 is the derivation path. Defaults to DefaultBIP44.
	BIP44 string
	// MinConf defaults to DefaultMinConf.
	MinConf int
	// LegacyFees prices transactions with a single gas price instead of
	// fee-market parameters.
	LegacyFees bool

	Node     NodeAPI
	Explorer HistoryLister
	Cache    cache.Cache
}

// Wallet is a single-address account wallet for one asset. It is not safe
// for concurrent use.
type Wallet struct {
	asset   Asset
	network Network
	bip44   string
	minConf int

	address types.Address
	pubKey  *crypto.PublicKey
	keys    keyState

	fee      *FeeModel
	balances *Balances
	cursor   int
	apiKey   string

	node     NodeAPI
	explorer HistoryLister
	cache    cache.Cache

	accountant *Accountant
	builder    *Builder
	history    *History
	logger     zerolog.Logger
}

// New creates a wallet from a seed or a public key.
func New(opts Options) (*Wallet, error) {
	if opts.Asset == nil {
		opts.Asset = Native{}
	}
	if opts.Network.ChainID == 0 {
		opts.Network = Mainnet
	}
	if opts.BIP44 == "" {
		opts.BIP44 = DefaultBIP44
	}
	if opts.MinConf <= 0 {
		opts.MinConf = DefaultMinConf
	}

	var (
		keys keyState
		pub  *crypto.PublicKey
	)
	switch {
	case opts.Seed != "":
		key, err := KeyFromSeedHex(opts.Seed, opts.BIP44)
		if err != nil {
			return nil, err
		}
		keys = Unlocked{Key: key}
		pub = key.PublicKey()
	case opts.PublicKey != "":
		p, err := parsePublicKeyExport(opts.PublicKey)
		if err != nil {
			return nil, err
		}
		keys = Locked{}
		pub = p
	default:
		return nil, ErrNoKey
	}

	mode := FeeMarket
	if opts.LegacyFees {
		mode = FeeLegacy
	}

	w := &Wallet{
		asset:    opts.Asset,
		network:  opts.Network,
		bip44:    opts.BIP44,
		minConf:  opts.MinConf,
		address:  pub.Address(),
		pubKey:   pub,
		keys:     keys,
		fee:      NewFeeModel(mode, opts.Asset.GasLimit()),
		balances: &Balances{Balance: types.Zero, ConfirmedBalance: types.Zero, NativeBalance: types.Zero},
		cursor:   1,
	}
	w.connect(opts.Node, opts.Explorer, opts.Cache)

	if b, ok := w.accountant.CachedBalance(); ok {
		w.balances.Balance = b
	}
	w.logger.Debug().Str("asset", w.asset.String()).Bool("locked", w.IsLocked()).Msg("Wallet created")
	return w, nil
}

// Connect attaches collaborators, for example after Deserialize.
func (w *Wallet) Connect(node NodeAPI, lister HistoryLister, c cache.Cache) {
	w.connect(node, lister, c)
}

func (w *Wallet) connect(node NodeAPI, lister HistoryLister, c cache.Cache) {
	if node == nil {
		node = offlineNode{}
	}
	if lister == nil {
		lister = offlineExplorer{}
	}
	if c == nil {
		c = cache.Nop{}
	}
	w.node = node
	w.explorer = lister
	w.cache = c
	w.logger = klog.WithAddress(w.address.String())

	chainID := w.network.chainID()
	w.accountant = NewAccountant(w.asset, w.address, chainID, w.balances, c, w.logger)
	w.builder = NewBuilder(w.asset, chainID, w.fee)
	w.history = NewHistory(lister, w.asset, w.address, w.minConf)
}

// Load fetches balance, nonce, fees, the explorer key and (for tokens) the
// native balance concurrently. State changes only if every fetch succeeds.
func (w *Wallet) Load(ctx context.Context) error {
	defer klog.Benchmark("wallet.load")()

	addr := w.address.String()
	var (
		bal    nodeapi.Balance
		count  uint64
		quote  FeeQuote
		apiKey string
		native nodeapi.Balance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bal, err = w.assetBalance(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		count, err = w.node.TxCount(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		quote, err = w.fee.Fetch(gctx, w.node)
		return err
	})
	g.Go(func() (err error) {
		apiKey, err = w.node.ExplorerAPIKey(gctx)
		return err
	})
	_, isToken := w.asset.(Token)
	if isToken {
		g.Go(func() (err error) {
			native, err = w.node.Balance(gctx, addr, w.minConf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		err = normalizeNodeError(err)
		w.logger.Error().Err(err).Msg("Load failed")
		return err
	}

	w.accountant.ApplyRemoteSnapshot(BalanceSnapshot{
		Balance:          bal.Balance,
		ConfirmedBalance: bal.ConfirmedBalance,
		TxsCount:         count,
	})
	w.fee.Apply(quote)
	w.apiKey = apiKey
	w.ResetHistory()
	if isToken {
		w.accountant.SetNativeBalance(types.MinAmount(native.ConfirmedBalance, native.Balance))
	}

	w.logger.Debug().
		Str("balance", w.balances.Balance.String()).
		Str("confirmed", w.balances.ConfirmedBalance.String()).
		Uint64("nonce", w.balances.TxsCount).
		Str("fee", w.fee.DefaultFee().String()).
		Msg("Wallet loaded")
	return nil
}

func (w *Wallet) assetBalance(ctx context.Context, addr string) (nodeapi.Balance, error) {
	if t, ok := w.asset.(Token); ok {
		return w.node.TokenBalance(ctx, t.Contract.String(), addr, w.minConf)
	}
	return w.node.Balance(ctx, addr, w.minConf)
}

// Update refreshes only the fee parameters.
func (w *Wallet) Update(ctx context.Context) error {
	return w.fee.Refresh(ctx, w.node)
}

// LoadTxs fetches the next page of history and advances the cursor when
// the page was full. The first call after Load reads the newest page.
func (w *Wallet) LoadTxs(ctx context.Context) (HistoryPage, error) {
	page, err := w.history.FetchPage(ctx, w.cursor, w.apiKey)
	if err != nil {
		return HistoryPage{}, err
	}
	w.cursor = page.Cursor
	return page, nil
}

// ResetHistory makes the next LoadTxs start from the newest page.
func (w *Wallet) ResetHistory() {
	w.cursor = 1
}

// Lock discards the private key.
func (w *Wallet) Lock() {
	if u, ok := w.keys.(Unlocked); ok {
		u.Key.Zero()
	}
	w.keys = Locked{}
}

// Unlock derives the private key from a hex seed. The seed must produce
// this wallet's address.
func (w *Wallet) Unlock(seed string) error {
	key, err := KeyFromSeedHex(seed, w.bip44)
	if err != nil {
		return err
	}
	if key.Address() != w.address {
		key.Zero()
		return ErrSeedMismatch
	}
	if u, ok := w.keys.(Unlocked); ok {
		u.Key.Zero()
	}
	w.keys = Unlocked{Key: key}
	return nil
}

// IsLocked reports whether the wallet holds no private key.
func (w *Wallet) IsLocked() bool {
	_, ok := w.keys.(Locked)
	return ok
}

// signer returns the private key or ErrWalletLocked.
func (w *Wallet) signer() (crypto.Signer, error) {
	u, ok := w.keys.(Unlocked)
	if !ok {
		return nil, ErrWalletLocked
	}
	return u.Key, nil
}

// PublicKey returns {"pubKey": <hex>, "path": <bip44>}.
func (w *Wallet) PublicKey() string {
	data, _ := json.Marshal(publicKeyExport{
		PubKey: hex.EncodeToString(w.pubKey.Bytes()),
		Path:   w.bip44,
	})
	return string(data)
}

type publicKeyExport struct {
	PubKey string `json:"pubKey"`
	Path   string `json:"path"`
}

func parsePublicKeyExport(s string) (*crypto.PublicKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var pk publicKeyExport
		if err := json.Unmarshal([]byte(s), &pk); err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		s = pk.PubKey
	}
	return crypto.ParsePublicKeyHex(s)
}

// Address returns the lowercase address used for comparisons.
func (w *Wallet) Address() string {
	return w.address.String()
}

// NextAddress returns the checksummed receive address.
func (w *Wallet) NextAddress() string {
	return w.address.Checksum()
}

// TxURL returns the explorer link for a transaction.
func (w *Wallet) TxURL(txID string) string {
	return w.network.TxLink(txID)
}

// CreateTx builds a transfer of value to to. The value must be positive
// and not exceed MaxAmount. Token transfers also need a native balance
// that covers DefaultFee. Sign the result with its Sign method.
func (w *Wallet) CreateTx(to string, value types.Amount) (*UnsignedTx, error) {
	if err := types.ValidateAddress(to); err != nil {
		return nil, err
	}
	if !value.IsPositive() || !value.IsInteger() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, value)
	}
	if spendable := w.MaxAmount(); value.GreaterThan(spendable) {
		return nil, fmt.Errorf("%w: %s exceeds spendable %s", ErrInsufficientFunds, value, spendable)
	}
	if _, ok := w.asset.(Token); ok {
		if !w.balances.NativeKnown {
			return nil, ErrNativeBalanceUnknown
		}
		if err := checkFeeCoverage(w.balances.NativeBalance, w.DefaultFee()); err != nil {
			return nil, err
		}
	}

	tx, err := w.builder.Build(to, value, w.balances.TxsCount)
	if err != nil {
		return nil, err
	}
	return &UnsignedTx{tx: tx, chainID: w.network.chainID(), signer: w.signer}, nil
}

// SendTx submits a signed transaction and applies its effect to the local
// balance without waiting for confirmation. It returns the node's id.
func (w *Wallet) SendTx(ctx context.Context, tx *ethtypes.Transaction) (string, error) {
	if err := w.accountant.CheckSendable(); err != nil {
		return "", err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode tx: %w", err)
	}

	id, err := w.node.SendRawTransaction(ctx, hexutil.Encode(raw))
	if err != nil {
		err = normalizeNodeError(err)
		w.logger.Error().Err(err).Str("tx", tx.Hash().Hex()).Msg("Send failed")
		return "", err
	}

	if _, err := w.accountant.ApplyOptimisticSend(tx); err != nil {
		// The node accepted it; the next Load will catch up.
		w.logger.Warn().Err(err).Str("tx", id).Msg("Optimistic update skipped")
	}
	return id, nil
}

// CreatePrivateKey parses a hex private key with or without 0x.
func (w *Wallet) CreatePrivateKey(s string) (*crypto.PrivateKey, error) {
	return crypto.PrivateKeyFromHex(s)
}

// GetImportTxOptions reads the balance, nonce and fees for a foreign key.
// The wallet's fee model is updated only if every fetch succeeds.
func (w *Wallet) GetImportTxOptions(ctx context.Context, key *crypto.PrivateKey) (ImportOptions, error) {
	addr := key.Address().String()
	var (
		bal    nodeapi.Balance
		count  uint64
		quote  FeeQuote
		native nodeapi.Balance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bal, err = w.assetBalance(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		count, err = w.node.TxCount(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		quote, err = w.fee.Fetch(gctx, w.node)
		return err
	})
	_, isToken := w.asset.(Token)
	if isToken {
		g.Go(func() (err error) {
			native, err = w.node.Balance(gctx, addr, w.minConf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ImportOptions{}, normalizeNodeError(err)
	}

	w.fee.Apply(quote)
	opts := ImportOptions{
		PrivateKey: key,
		Amount:     types.MinAmount(bal.ConfirmedBalance, bal.Balance),
		TxsCount:   count,
	}
	if isToken {
		opts.NativeBalance = types.MinAmount(native.ConfirmedBalance, native.Balance)
	}
	return opts, nil
}

// CreateImportTx builds a transfer of all funds described by opts to to,
// signed by the imported key.
func (w *Wallet) CreateImportTx(opts ImportOptions, to string) (*UnsignedTx, error) {
	if opts.PrivateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	tx, err := w.builder.BuildImport(opts, to)
	if err != nil {
		return nil, err
	}
	key := opts.PrivateKey
	return &UnsignedTx{
		tx:      tx,
		chainID: w.network.chainID(),
		signer:  func() (crypto.Signer, error) { return key, nil },
	}, nil
}

// GetTransaction returns the node's record of a transaction.
func (w *Wallet) GetTransaction(ctx context.Context, txID string) (json.RawMessage, error) {
	if err := types.ValidateTxID(txID); err != nil {
		return nil, err
	}
	tx, err := w.node.Transaction(ctx, txID)
	return tx, normalizeNodeError(err)
}

// ExportPrivateKeys returns "address,privatekey" CSV for the wallet key.
func (w *Wallet) ExportPrivateKeys() (string, error) {
	u, ok := w.keys.(Unlocked)
	if !ok {
		return "", ErrWalletLocked
	}
	return "address,privatekey\n" + w.address.String() + "," + strings.TrimPrefix(u.Key.Hex(), "0x"), nil
}

// DefaultFee is the fee of a transfer at the current rates.
func (w *Wallet) DefaultFee() types.Amount {
	return w.fee.DefaultFee()
}

// MaxAmount is the largest amount CreateTx accepts.
func (w *Wallet) MaxAmount() types.Amount {
	return w.fee.MaxSpendable(w.asset, w.balances.Balance)
}

// Balance returns the current balance, including optimistic changes.
func (w *Wallet) Balance() types.Amount { return w.balances.Balance }

// ConfirmedBalance returns the node's confirmed balance.
func (w *Wallet) ConfirmedBalance() types.Amount { return w.balances.ConfirmedBalance }

// NativeBalance returns the fee-paying balance of a token wallet.
func (w *Wallet) NativeBalance() (types.Amount, bool) {
	return w.balances.NativeBalance, w.balances.NativeKnown
}

// TxsCount returns the next nonce.
func (w *Wallet) TxsCount() uint64 { return w.balances.TxsCount }

// Fee returns a copy of the fee model.
func (w *Wallet) Fee() FeeModel { return *w.fee }

// Asset returns the wallet's asset.
func (w *Wallet) Asset() Asset { return w.asset }

// Network returns the wallet's network.
func (w *Wallet) Network() Network { return w.network }

// MinConf returns the confirmation threshold.
func (w *Wallet) MinConf() int { return w.minConf }

// offlineNode answers every call with ErrNodeError. It stands in until
// Connect attaches a real node.
type offlineNode struct{}

var errOffline = fmt.Errorf("%w: not connected", ErrNodeError)

func (offlineNode) GasPrice(context.Context) (types.Amount, error) {
	return types.Zero, errOffline
}

func (offlineNode) GasFees(context.Context) (nodeapi.GasFees, error) {
	return nodeapi.GasFees{}, errOffline
}

func (offlineNode) Balance(context.Context, string, int) (nodeapi.Balance, error) {
	return nodeapi.Balance{}, errOffline
}

func (offlineNode) TokenBalance(context.Context, string, string, int) (nodeapi.Balance, error) {
	return nodeapi.Balance{}, errOffline
}

func (offlineNode) TxCount(context.Context, string) (uint64, error) {
	return 0, errOffline
}

func (offlineNode) ExplorerAPIKey(context.Context) (string, error) {
	return "", errOffline
}

func (offlineNode) Transaction(context.Context, string) (json.RawMessage, error) {
	return nil, errOffline
}

func (offlineNode) SendRawTransaction(context.Context, string) (string, error) {
	return "", errOffline
}

type offlineExplorer struct{}

func (offlineExplorer) ListTransactions(context.Context, explorer.Query) ([]explorer.RawTx, error) {
	return nil, errOffline
}
