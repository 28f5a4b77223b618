// Package devbundler is a local stand-in for the bundling network. It
// prices data by size, keeps prepaid balances per owner, verifies and
// stores signed data items, and serves them back as a gateway.
package devbundler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/helix/internal/bundler/dataitem"
	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/storage"
	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Pricing is linear in the data length.
type Pricing struct {
	BaseFee      uint64
	PricePerByte uint64
}

func (p Pricing) Cost(n int64) uint64 {
	return p.BaseFee + p.PricePerByte*uint64(n)
}

type Options struct {
	Address          string
	Token            string
	ReceivingAddress string
	Pricing          Pricing
	MaxItemSize      string
}

type Server struct {
	opts     Options
	echo     *echo.Echo
	accounts *Accounts
	blobs    BlobStore
	deposits DepositVerifier
	logger   logging.Logger

	// uploads serializes the check-charge-store sequence so a re-sent item
	// is never charged twice.
	uploads sync.Mutex
}

// NewServer wires the routes. deposits may be nil, in which case deposit
// registration answers 501 and balances only move through /dev/credit.
func NewServer(opts Options, accounts *Accounts, blobs BlobStore, deposits DepositVerifier, l logging.Logger) *Server {
	if opts.MaxItemSize == "" {
		opts.MaxItemSize = "100M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		opts:     opts,
		echo:     e,
		accounts: accounts,
		blobs:    blobs,
		deposits: deposits,
		logger:   l.With("module", "devbundler"),
	}
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/info", s.info)
	e.GET("/price/:token/:bytes", s.price, s.tokenOnly)
	e.GET("/account/balance/:token", s.balance, s.tokenOnly)
	e.POST("/account/balance/:token", s.registerDeposit, s.tokenOnly)
	e.POST("/tx/:token", s.upload, s.tokenOnly, middleware.BodyLimit(opts.MaxItemSize))
	e.POST("/dev/credit", s.credit)
	e.GET("/:id", s.download)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping dev bundler...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting dev bundler", "address", s.opts.Address, "receiving_address", s.opts.ReceivingAddress)
	if err := s.echo.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) tokenOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Param("token") != s.opts.Token {
			return fmt.Errorf("%w: unsupported token %q", common.ErrValidation, c.Param("token"))
		}
		return next(c)
	}
}

// GET /info
func (s *Server) info(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"version":   "dev",
		"addresses": map[string]string{s.opts.Token: s.opts.ReceivingAddress},
		"pricing":   map[string]uint64{"baseFee": s.opts.Pricing.BaseFee, "pricePerByte": s.opts.Pricing.PricePerByte},
	})
}

// GET /price/:token/:bytes
func (s *Server) price(c echo.Context) error {
	n, err := strconv.ParseInt(c.Param("bytes"), 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("%w: byte count must be a non-negative integer", common.ErrValidation)
	}
	return c.String(http.StatusOK, strconv.FormatUint(s.opts.Pricing.Cost(n), 10))
}

// GET /account/balance/:token?address=
func (s *Server) balance(c echo.Context) error {
	addr := c.QueryParam("address")
	if _, err := solana.PublicKeyFromBase58(addr); err != nil {
		return fmt.Errorf("%w: address: %w", common.ErrValidation, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"balance": strconv.FormatUint(s.accounts.Balance(addr), 10),
	})
}

// POST /account/balance/:token {tx_id}
func (s *Server) registerDeposit(c echo.Context) error {
	if s.deposits == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "deposit verification is not configured")
	}

	var req struct {
		TxID string `json:"tx_id"`
	}
	if err := c.Bind(&req); err != nil || req.TxID == "" {
		return fmt.Errorf("%w: tx_id is required", common.ErrValidation)
	}

	ctx := c.Request().Context()
	d, err := s.deposits.Verify(ctx, req.TxID)
	if err != nil {
		return err
	}
	if s.accounts.CreditDeposit(d.Signature, d.From, d.Lamports) {
		s.logger.Info(ctx, "deposit credited", "address", d.From, "lamports", d.Lamports, "signature", d.Signature)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"address": d.From,
		"balance": strconv.FormatUint(s.accounts.Balance(d.From), 10),
	})
}

// POST /dev/credit {address, amount}
func (s *Server) credit(c echo.Context) error {
	var req struct {
		Address string `json:"address"`
		Amount  uint64 `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	if _, err := solana.PublicKeyFromBase58(req.Address); err != nil {
		return fmt.Errorf("%w: address: %w", common.ErrValidation, err)
	}
	bal := s.accounts.Credit(req.Address, req.Amount)
	return c.JSON(http.StatusOK, map[string]string{"balance": strconv.FormatUint(bal, 10)})
}

// POST /tx/:token
func (s *Server) upload(c echo.Context) error {
	ctx := c.Request().Context()
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	item, err := dataitem.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if err := item.Verify(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	id, err := item.ID()
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	owner := solana.PublicKeyFromBytes(item.Owner).String()

	s.uploads.Lock()
	defer s.uploads.Unlock()

	known, err := s.blobs.Has(ctx, id)
	if err != nil {
		return err
	}
	if known {
		return c.JSON(http.StatusAccepted, map[string]string{"id": id, "owner": owner})
	}

	cost := s.opts.Pricing.Cost(int64(len(item.Data)))
	if err := s.accounts.Charge(owner, cost); err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, id, raw); err != nil {
		s.accounts.Credit(owner, cost)
		return err
	}

	s.logger.Info(ctx, "item stored", "id", id, "owner", owner, "bytes", len(item.Data), "cost", cost)
	return c.JSON(http.StatusOK, map[string]any{
		"id":        id,
		"owner":     owner,
		"timestamp": time.Now().UnixMilli(),
	})
}

// GET /:id serves the data of a stored item with its Content-Type tag.
func (s *Server) download(c echo.Context) error {
	raw, err := s.blobs.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	item, err := dataitem.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: stored item: %w", common.ErrIntegrity, err)
	}

	ct := echo.MIMEOctetStream
	for _, t := range item.Tags {
		if t.Name == storage.TagContentType && t.Value != "" {
			ct = t.Value
			break
		}
	}
	return c.Blob(http.StatusOK, ct, item.Data)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrQuota):
		return http.StatusPaymentRequired
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.String(he.Code, msg)
		return
	}

	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	}
	_ = c.String(code, err.Error())
}
