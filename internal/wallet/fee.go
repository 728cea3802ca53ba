package wallet

import (
	"context"

	"github.com/Klingon-tech/polywallet/internal/nodeapi"
	"github.com/Klingon-tech/polywallet/pkg/types"
	"golang.org/x/sync/errgroup"
)

// FeeMode selects how transaction fees are priced.
type FeeMode int

const (
	// FeeMarket prices with a max fee and a priority fee (EIP-1559).
	FeeMarket FeeMode = iota
	// FeeLegacy prices with a single gas price.
	FeeLegacy
)

func (m FeeMode) String() string {
	if m == FeeLegacy {
		return "legacy"
	}
	return "feemarket"
}

// FeeSource is the part of the node API the fee model reads.
type FeeSource interface {
	GasPrice(ctx context.Context) (types.Amount, error)
	GasFees(ctx context.Context) (nodeapi.GasFees, error)
}

// FeeQuote is one complete set of fee parameters fetched from the node.
type FeeQuote struct {
	GasPrice             types.Amount
	MaxPriorityFeePerGas types.Amount
	MaxFeePerGas         types.Amount
}

// FeeModel holds the fee parameters for the next transaction. The mode and
// gas limit are fixed at construction; the rates change only through Apply.
type FeeModel struct {
	Mode                 FeeMode
	GasLimit             uint64
	GasPrice             types.Amount
	MaxPriorityFeePerGas types.Amount
	MaxFeePerGas         types.Amount
}

// NewFeeModel returns a zero-rate model for the given mode and gas limit.
func NewFeeModel(mode FeeMode, gasLimit uint64) *FeeModel {
	return &FeeModel{
		Mode:                 mode,
		GasLimit:             gasLimit,
		GasPrice:             types.Zero,
		MaxPriorityFeePerGas: types.Zero,
		MaxFeePerGas:         types.Zero,
	}
}

// Rate returns the per-gas price the fee is charged at: the max fee in
// fee-market mode, the gas price otherwise.
func (f *FeeModel) Rate() types.Amount {
	if f.Mode == FeeMarket {
		return f.MaxFeePerGas
	}
	return f.GasPrice
}

// DefaultFee is GasLimit * Rate.
func (f *FeeModel) DefaultFee() types.Amount {
	return types.AmountFromUint64(f.GasLimit).Mul(f.Rate())
}

// MaxSpendable returns the largest amount of asset that can be sent from
// balance. Native transfers pay the fee from the same balance; token fees
// are paid in the native asset and do not reduce it. Never negative.
func (f *FeeModel) MaxSpendable(asset Asset, balance types.Amount) types.Amount {
	spendable := balance
	if _, ok := asset.(Native); ok {
		spendable = balance.Sub(f.DefaultFee())
	}
	return types.MaxAmount(spendable, types.Zero)
}

// Fetch reads a quote for the model's mode without changing the model.
// Fee-market mode reads both the gas price and the fee pair.
func (f *FeeModel) Fetch(ctx context.Context, src FeeSource) (FeeQuote, error) {
	var q FeeQuote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price, err := src.GasPrice(gctx)
		if err != nil {
			return err
		}
		q.GasPrice = price
		return nil
	})
	if f.Mode == FeeMarket {
		g.Go(func() error {
			fees, err := src.GasFees(gctx)
			if err != nil {
				return err
			}
			q.MaxPriorityFeePerGas = fees.MaxPriorityFeePerGas
			q.MaxFeePerGas = fees.MaxFeePerGas
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return FeeQuote{}, normalizeNodeError(err)
	}
	return q, nil
}

// Apply replaces all rates with those of q.
func (f *FeeModel) Apply(q FeeQuote) {
	f.GasPrice = q.GasPrice
	f.MaxPriorityFeePerGas = q.MaxPriorityFeePerGas
	f.MaxFeePerGas = q.MaxFeePerGas
}

// Refresh fetches a quote and applies it. On error the model is unchanged.
func (f *FeeModel) Refresh(ctx context.Context, src FeeSource) error {
	q, err := f.Fetch(ctx, src)
	if err != nil {
		return err
	}
	f.Apply(q)
	return nil
}
