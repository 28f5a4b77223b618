// Package ledger reads and tops up the prepaid balance the bundler keeps
// for a payer.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/jpillora/backoff"
)

// Bundler is the part of the bundler API the ledger needs.
type Bundler interface {
	Balance(ctx context.Context, address string) (uint64, error)
	ReceivingAddress(ctx context.Context) (string, error)
	RegisterFunding(ctx context.Context, txID string) error
}

// Transport moves value on chain. See package payment.
type Transport interface {
	Identity() string
	Transfer(ctx context.Context, destination string, lamports uint64) (models.FundingTransaction, error)
}

// Config tunes how long Fund waits for the bundler to credit a deposit.
type Config struct {
	CreditTimeout time.Duration
	PollMin       time.Duration
	PollMax       time.Duration
}

func DefaultConfig() Config {
	return Config{
		CreditTimeout: 90 * time.Second,
		PollMin:       time.Second,
		PollMax:       8 * time.Second,
	}
}

// Client is the Balance Ledger Client. Balances are always read fresh.
type Client struct {
	bundler   Bundler
	transport Transport
	cfg       Config
	log       logging.Logger
}

func NewClient(b Bundler, t Transport, cfg Config, log logging.Logger) *Client {
	return &Client{bundler: b, transport: t, cfg: cfg, log: log.With("module", "ledger")}
}

// GetBalance queries the bundler for identity's prepaid balance.
func (c *Client) GetBalance(ctx context.Context, identity string) (models.PrepaidBalance, error) {
	v, err := c.bundler.Balance(ctx, identity)
	if err != nil {
		return models.PrepaidBalance{}, err
	}
	return models.PrepaidBalance{Address: identity, AtomicUnits: v}, nil
}

// Fund transfers amount to the bundler and waits until the bundler has
// credited it. A confirmed transfer that is not credited within
// CreditTimeout is reported as common.ErrAmbiguousOutcome: the money moved
// but the caller cannot yet spend it, and funding again would pay twice.
func (c *Client) Fund(ctx context.Context, identity string, amount uint64) (models.FundingTransaction, error) {
	if identity != c.transport.Identity() {
		return models.FundingTransaction{}, fmt.Errorf("%w: signer %s cannot fund %s",
			common.ErrValidation, c.transport.Identity(), identity)
	}

	before, err := c.GetBalance(ctx, identity)
	if err != nil {
		return models.FundingTransaction{}, fmt.Errorf("balance before funding: %w", err)
	}

	dest, err := c.bundler.ReceivingAddress(ctx)
	if err != nil {
		return models.FundingTransaction{}, fmt.Errorf("receiving address: %w", err)
	}

	ft, err := c.transport.Transfer(ctx, dest, amount)
	if err != nil {
		return ft, err
	}

	if err := c.bundler.RegisterFunding(ctx, ft.Signature); err != nil {
		// The bundler also scans the chain; the credit wait below covers it.
		c.log.Warn(ctx, "register funding failed", "signature", ft.Signature, "error", err)
	}

	if err := c.waitCredit(ctx, identity, before.AtomicUnits); err != nil {
		return ft, fmt.Errorf("%w: deposit %s confirmed but not credited: %w", common.ErrAmbiguousOutcome, ft.Signature, err)
	}
	return ft, nil
}

func (c *Client) waitCredit(ctx context.Context, identity string, before uint64) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CreditTimeout)
	defer cancel()

	b := &backoff.Backoff{Min: c.cfg.PollMin, Max: c.cfg.PollMax, Factor: 2}
	for {
		bal, err := c.GetBalance(ctx, identity)
		if err == nil && bal.AtomicUnits > before {
			c.log.Info(ctx, "deposit credited", "before", before, "after", bal.AtomicUnits)
			return nil
		}
		if err != nil && !errors.Is(err, common.ErrNetwork) {
			return err
		}

		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
