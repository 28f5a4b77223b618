package cli

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/helix/internal/bundler"
	"github.com/dmitrijs2005/helix/internal/index/client"
	"github.com/dmitrijs2005/helix/internal/journal"
	"github.com/dmitrijs2005/helix/internal/ledger"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/orchestrator"
	"github.com/dmitrijs2005/helix/internal/payment"
	"github.com/dmitrijs2005/helix/internal/pricing"
	"github.com/dmitrijs2005/helix/internal/reconcile"
	"github.com/dmitrijs2005/helix/internal/recorder"
	"github.com/dmitrijs2005/helix/internal/storage"
	"github.com/dmitrijs2005/helix/internal/wallet"
	"github.com/gagliardetto/solana-go/rpc"
)

func (a *App) loadSigner(autoApprove bool) (*wallet.KeypairSigner, error) {
	var approver wallet.Approver = wallet.NewTerminalApprover(a.in, a.errOut)
	if autoApprove {
		approver = wallet.AutoApprover{}
	}
	return wallet.LoadKeypair(a.cfg.KeypairPath, approver)
}

func (a *App) bundlerClient() *bundler.Client {
	return bundler.NewClient(a.cfg.BundlerURL, bundler.WithGateway(a.cfg.GatewayURL))
}

func (a *App) indexClient(signer client.Signer) *client.Client {
	return client.New(a.cfg.IndexURL, signer, nil)
}

func (a *App) openJournal(ctx context.Context) (*journal.Journal, error) {
	return journal.Open(ctx, a.cfg.JournalPath)
}

// spendTracker sums what the ledger funded during one command.
type spendTracker struct {
	reconcile.Ledger

	mu       sync.Mutex
	lamports uint64
}

func (s *spendTracker) Fund(ctx context.Context, identity string, amount uint64) (models.FundingTransaction, error) {
	tx, err := s.Ledger.Fund(ctx, identity, amount)
	if tx.Status == models.FundingConfirmed {
		s.mu.Lock()
		s.lamports += tx.AmountAtomic
		s.mu.Unlock()
	}
	return tx, err
}

func (s *spendTracker) Funded() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lamports
}

// pipeline is the fully wired upload stack of one command.
type pipeline struct {
	orch    *orchestrator.Orchestrator
	oracle  *pricing.Oracle
	spend   *spendTracker
	journal *journal.Journal
	owner   string
}

func (a *App) newPipeline(ctx context.Context, signer *wallet.KeypairSigner) (*pipeline, error) {
	j, err := a.openJournal(ctx)
	if err != nil {
		return nil, err
	}

	bc := a.bundlerClient()

	pcfg := payment.DefaultConfig()
	pcfg.ConfirmTimeout = a.cfg.ConfirmTimeout
	transport := payment.NewTransport(rpc.New(a.cfg.SolanaRPC), signer, pcfg, a.log).WithJournal(j)

	lcfg := ledger.DefaultConfig()
	lcfg.CreditTimeout = a.cfg.CreditTimeout
	spend := &spendTracker{Ledger: ledger.NewClient(bc, transport, lcfg, a.log)}

	oracle := pricing.NewOracle(bc, a.log)
	ocfg := orchestrator.DefaultConfig()
	ocfg.NetworkRetries = a.cfg.NetworkRetries

	orch := orchestrator.New(
		oracle,
		reconcile.New(spend, a.cfg.FundingBuffer, a.log),
		storage.NewSubmitter(bc, signer, a.cfg.AppName, a.log),
		recorder.New(a.indexClient(signer), a.log),
		ocfg,
		a.log,
	).WithJournal(j)

	return &pipeline{orch: orch, oracle: oracle, spend: spend, journal: j, owner: signer.PublicKey().String()}, nil
}

func (p *pipeline) Close() error {
	return p.journal.Close()
}
