// Package reconcile makes sure the prepaid balance covers a storage cost
// before anything is submitted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultBuffer is the fraction added on top of a shortfall so that small
// price moves between quote and confirmation do not underfund again.
var DefaultBuffer = decimal.RequireFromString("0.10")

// maxFundCalls bounds funding per EnsureFunded call.
const maxFundCalls = 2

// Ledger reads and tops up a prepaid balance. See package ledger.
type Ledger interface {
	GetBalance(ctx context.Context, identity string) (models.PrepaidBalance, error)
	Fund(ctx context.Context, identity string, amount uint64) (models.FundingTransaction, error)
}

type Reconciler struct {
	ledger Ledger
	buffer decimal.Decimal
	log    logging.Logger
}

func New(l Ledger, buffer decimal.Decimal, log logging.Logger) *Reconciler {
	if buffer.IsNegative() {
		buffer = decimal.Zero
	}
	return &Reconciler{ledger: l, buffer: buffer, log: log.With("module", "reconcile")}
}

// EnsureFunded returns true once identity's balance covers required.
//
// Funding is only attempted when the balance is short, and at most twice.
// A declined signature is returned as is. An ambiguous transfer is followed
// by one balance check and, if still short, becomes ErrFundingUncertain
// (which also matches ErrAmbiguousOutcome); it is never funded again here.
func (r *Reconciler) EnsureFunded(ctx context.Context, identity string, required uint64) (bool, error) {
	bal, err := r.ledger.GetBalance(ctx, identity)
	if err != nil {
		return false, fmt.Errorf("balance: %w", err)
	}
	if bal.Covers(required) {
		r.log.Debug(ctx, "balance sufficient", "balance", bal.AtomicUnits, "required", required)
		return true, nil
	}

	for attempt := 1; ; attempt++ {
		topUp := TopUp(required, bal.AtomicUnits, r.buffer)
		r.log.Info(ctx, "funding bundler balance", "attempt", attempt, "balance", bal.AtomicUnits,
			"required", required, "top_up", topUp)

		ft, err := r.ledger.Fund(ctx, identity, topUp)
		switch {
		case errors.Is(err, common.ErrUserRejected):
			return false, err
		case errors.Is(err, common.ErrAmbiguousOutcome):
			after, qerr := r.ledger.GetBalance(ctx, identity)
			if qerr == nil && after.Covers(required) {
				r.log.Info(ctx, "ambiguous funding resolved by balance", "signature", ft.Signature, "balance", after.AtomicUnits)
				return true, nil
			}
			r.log.Warn(ctx, "funding outcome uncertain", "signature", ft.Signature, "error", err)
			return false, fmt.Errorf("%w: %w", common.ErrFundingUncertain, err)
		case err != nil:
			return false, fmt.Errorf("fund: %w", err)
		}

		bal, err = r.ledger.GetBalance(ctx, identity)
		if err != nil {
			return false, fmt.Errorf("balance after funding: %w", err)
		}
		if bal.Covers(required) {
			return true, nil
		}
		if attempt >= maxFundCalls {
			return false, fmt.Errorf("%w: balance %d, required %d after %d fundings",
				common.ErrPersistentUnderfunding, bal.AtomicUnits, required, attempt)
		}
	}
}

// TopUp returns ceil((required - balance) * (1 + buffer)), or 0 when the
// balance already covers required.
func TopUp(required, balance uint64, buffer decimal.Decimal) uint64 {
	if balance >= required {
		return 0
	}
	short := decimal.NewFromBigInt(new(big.Int).SetUint64(required-balance), 0)
	v := short.Mul(decimal.NewFromInt(1).Add(buffer)).Ceil().BigInt()
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}
