// Package payment moves value from the payer to the bundler's receiving
// address on Solana.
//
// A transfer is built with a human-readable memo, simulated before it is
// shown to the signer, signed, sent and then polled until it is confirmed,
// fails on chain, expires, or the confirmation timeout elapses. The error
// returned tells the caller whether funds may have moved:
//
//	before signing               -> ErrNetwork / ErrValidation, nothing moved
//	signer declined              -> ErrUserRejected, nothing moved
//	confirmed with on-chain error -> ErrNetwork, nothing moved
//	send failed or timed out     -> ErrAmbiguousOutcome, re-check the balance
//	blockhash expired, not seen  -> ErrAmbiguousOutcome, re-check the balance
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jpillora/backoff"
)

// MemoProgramID is the SPL memo program.
var MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// DefaultMemo is attached to every funding transfer so wallets can show
// what the payment is for.
const DefaultMemo = "Helix: Fund Irys for permanent storage"

// RPC is the subset of the Solana JSON-RPC API the transport uses.
// *rpc.Client implements it.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error)
	SendRawTransactionWithOpts(ctx context.Context, raw []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Journal records funding transactions once they are signed so an
// ambiguous outcome can be investigated later.
type Journal interface {
	RecordFunding(ctx context.Context, tx models.FundingTransaction) error
}

// Config tunes the transport.
//
// Fields:
//   - Memo: text of the memo instruction.
//   - ConfirmTimeout: upper bound on waiting for confirmation.
//   - PollMin / PollMax: backoff bounds between status polls.
//   - MaxRetries: forwarded to the RPC node's own rebroadcast logic.
type Config struct {
	Memo           string
	ConfirmTimeout time.Duration
	PollMin        time.Duration
	PollMax        time.Duration
	MaxRetries     uint
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Memo:           DefaultMemo,
		ConfirmTimeout: 60 * time.Second,
		PollMin:        500 * time.Millisecond,
		PollMax:        4 * time.Second,
		MaxRetries:     3,
	}
}

// Transport is the Payment Transport.
type Transport struct {
	rpc     RPC
	signer  wallet.Signer
	journal Journal
	cfg     Config
	log     logging.Logger
	now     func() time.Time
}

func NewTransport(client RPC, signer wallet.Signer, cfg Config, log logging.Logger) *Transport {
	return &Transport{
		rpc:    client,
		signer: signer,
		cfg:    cfg,
		log:    log.With("module", "payment"),
		now:    time.Now,
	}
}

// WithJournal makes the transport record every signed transfer.
func (t *Transport) WithJournal(j Journal) *Transport {
	t.journal = j
	return t
}

// Identity is the payer address.
func (t *Transport) Identity() string {
	return t.signer.PublicKey().String()
}

// Transfer sends lamports from the signer to destination and waits for
// confirmation. The returned FundingTransaction reflects how far the
// transfer got, including on error.
func (t *Transport) Transfer(ctx context.Context, destination string, lamports uint64) (models.FundingTransaction, error) {
	from := t.signer.PublicKey()
	ft := models.FundingTransaction{
		Source:       from.String(),
		Destination:  destination,
		AmountAtomic: lamports,
		Memo:         t.cfg.Memo,
		Status:       models.FundingConstructed,
		CreatedAt:    t.now(),
	}

	if lamports == 0 {
		return ft, fmt.Errorf("%w: transfer amount is zero", common.ErrValidation)
	}
	to, err := solana.PublicKeyFromBase58(destination)
	if err != nil {
		return ft, fmt.Errorf("%w: bad destination %q: %w", common.ErrValidation, destination, err)
	}

	bh, err := t.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return ft, fmt.Errorf("%w: latest blockhash: %w", common.ErrNetwork, err)
	}
	ft.RecentBlockhash = bh.Value.Blockhash.String()

	tx, err := t.build(from, to, lamports, bh.Value.Blockhash)
	if err != nil {
		return ft, err
	}

	if err := t.preflight(ctx, tx); err != nil {
		return ft, err
	}

	tx.Signatures = nil
	intent := wallet.Intent{From: from, To: to, Lamports: lamports, Memo: t.cfg.Memo}
	if err := t.signer.SignTransaction(ctx, tx, intent); err != nil {
		if errors.Is(err, common.ErrUserRejected) {
			t.log.Info(ctx, "funding declined by signer", "lamports", lamports)
			return ft, err
		}
		return ft, fmt.Errorf("%w: sign transfer: %w", common.ErrNetwork, err)
	}
	if len(tx.Signatures) == 0 {
		return ft, fmt.Errorf("%w: sign transfer: signer returned no signature", common.ErrNetwork)
	}

	sig := tx.Signatures[0]
	ft.Signature = sig.String()
	ft.Status = models.FundingSigned
	t.record(ctx, ft)

	// Once signed the transfer may land whether or not we keep watching,
	// so the caller's cancellation no longer applies.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.ConfirmTimeout)
	defer cancel()

	raw, err := tx.MarshalBinary()
	if err != nil {
		ft.Status = models.FundingAmbiguous
		t.record(ctx, ft)
		return ft, fmt.Errorf("%w: encode signed transfer: %w", common.ErrAmbiguousOutcome, err)
	}

	maxRetries := t.cfg.MaxRetries
	_, err = t.rpc.SendRawTransactionWithOpts(sendCtx, raw, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		ft.Status = models.FundingAmbiguous
		t.record(ctx, ft)
		t.log.Warn(ctx, "funding send failed after signing", "signature", ft.Signature, "error", err)
		return ft, fmt.Errorf("%w: send %s: %w", common.ErrAmbiguousOutcome, ft.Signature, err)
	}
	ft.Status = models.FundingSubmitted
	t.log.Info(ctx, "funding submitted", "signature", ft.Signature, "lamports", lamports, "to", destination)

	ft.Status, err = t.confirm(sendCtx, sig, bh.Value.LastValidBlockHeight)
	t.record(ctx, ft)
	return ft, err
}

func (t *Transport) build(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	instructions := []solana.Instruction{}
	if t.cfg.Memo != "" {
		instructions = append(instructions, solana.NewInstruction(MemoProgramID, solana.AccountMetaSlice{}, []byte(t.cfg.Memo)))
	}
	instructions = append(instructions, system.NewTransferInstruction(lamports, from, to).Build())

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(from))
	if err != nil {
		return nil, fmt.Errorf("%w: build transfer: %w", common.ErrValidation, err)
	}
	return tx, nil
}

// preflight simulates the unsigned transfer with zeroed signatures so an
// insufficient wallet balance is caught before the user is asked to sign.
func (t *Transport) preflight(ctx context.Context, tx *solana.Transaction) error {
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	res, err := t.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return fmt.Errorf("%w: simulate transfer: %w", common.ErrNetwork, err)
	}
	if res.Value != nil && res.Value.Err != nil {
		t.log.Warn(ctx, "funding preflight failed", "error", res.Value.Err, "logs", res.Value.Logs)
		return fmt.Errorf("%w: transfer would fail: %v", common.ErrValidation, res.Value.Err)
	}
	return nil
}

func (t *Transport) confirm(ctx context.Context, sig solana.Signature, lastValid uint64) (models.FundingStatus, error) {
	b := &backoff.Backoff{Min: t.cfg.PollMin, Max: t.cfg.PollMax, Factor: 2}

	for {
		status, err := t.status(ctx, sig)
		switch {
		case err != nil:
			t.log.Debug(ctx, "signature status unavailable", "signature", sig.String(), "error", err)
		case status != nil && status.Err != nil:
			t.log.Warn(ctx, "funding failed on chain", "signature", sig.String(), "error", status.Err)
			return models.FundingFailed, fmt.Errorf("%w: transfer %s failed on chain: %v", common.ErrNetwork, sig, status.Err)
		case status != nil && landed(status.ConfirmationStatus):
			t.log.Info(ctx, "funding confirmed", "signature", sig.String())
			return models.FundingConfirmed, nil
		case status == nil && t.expired(ctx, lastValid):
			// One last look: the status may have appeared after the height check.
			// Expiry without a status does not prove that nothing moved.
			if s, err := t.status(ctx, sig); err == nil && s == nil {
				t.log.Warn(ctx, "funding blockhash expired without a status", "signature", sig.String())
				return models.FundingAmbiguous, fmt.Errorf("%w: transfer %s expired before landing", common.ErrAmbiguousOutcome, sig)
			}
		}

		d := b.Duration()
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.log.Warn(ctx, "funding confirmation timed out", "signature", sig.String())
			return models.FundingAmbiguous, fmt.Errorf("%w: no confirmation for %s: %w", common.ErrAmbiguousOutcome, sig, ctx.Err())
		case <-timer.C:
		}
	}
}

func (t *Transport) status(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	res, err := t.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}

func (t *Transport) expired(ctx context.Context, lastValid uint64) bool {
	if lastValid == 0 {
		return false
	}
	height, err := t.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	return err == nil && height > lastValid
}

func (t *Transport) record(ctx context.Context, ft models.FundingTransaction) {
	if t.journal == nil {
		return
	}
	if err := t.journal.RecordFunding(ctx, ft); err != nil {
		t.log.Warn(ctx, "journal funding failed", "signature", ft.Signature, "error", err)
	}
}

func landed(s rpc.ConfirmationStatusType) bool {
	return s == rpc.ConfirmationStatusConfirmed || s == rpc.ConfirmationStatusFinalized
}
