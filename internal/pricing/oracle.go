// Package pricing turns payload sizes into storage costs quoted by the
// bundling network.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/shopspring/decimal"
)

// PriceSource quotes the atomic-unit price of storing n bytes.
type PriceSource interface {
	Price(ctx context.Context, n int64) (uint64, error)
}

// Oracle is the Pricing Oracle Client. Quotes are never cached: every call
// goes to the network because the price drifts between attempts.
type Oracle struct {
	src      PriceSource
	decimals int32
	log      logging.Logger
}

func NewOracle(src PriceSource, log logging.Logger) *Oracle {
	return &Oracle{src: src, decimals: common.TokenDecimals, log: log.With("module", "pricing")}
}

// GetCost returns the cost of storing exactly n bytes. n must be the size of
// the bytes that will be submitted (ciphertext when encrypting).
func (o *Oracle) GetCost(ctx context.Context, n int64) (models.StorageCost, error) {
	if n < 0 {
		return models.StorageCost{}, fmt.Errorf("%w: negative size %d", common.ErrValidation, n)
	}

	atomic, err := o.src.Price(ctx, n)
	if err != nil {
		return models.StorageCost{}, err
	}

	cost := models.StorageCost{
		Bytes:               n,
		RequiredAtomicUnits: atomic,
		RequiredDecimal:     ToDecimal(atomic, o.decimals),
	}
	o.log.Debug(ctx, "price quoted", "bytes", n, "atomic", atomic, "decimal", cost.RequiredDecimal.String())
	return cost, nil
}

// ToDecimal converts atomic units to token units with the given number of
// decimals, e.g. 1_500_000 lamports -> 0.0015 SOL.
func ToDecimal(atomic uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(atomic), -decimals)
}

// ToAtomic converts token units back to atomic units, rounding up so a
// conversion never underpays.
func ToAtomic(d decimal.Decimal, decimals int32) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", common.ErrValidation, d)
	}
	v := d.Shift(decimals).Ceil().BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s out of range", common.ErrValidation, d)
	}
	return v.Uint64(), nil
}
