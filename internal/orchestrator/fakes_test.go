package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/reconcile"
	"github.com/dmitrijs2005/helix/internal/storage"
)

// callLog records the order in which collaborators were used.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) count(name string) int {
	n := 0
	for _, s := range c.list() {
		if s == name {
			n++
		}
	}
	return n
}

type fakePricer struct {
	mu      sync.Mutex
	log     *callLog
	perByte uint64
	errs    []error
	sizes   []int64
}

func (f *fakePricer) GetCost(_ context.Context, n int64) (models.StorageCost, error) {
	f.log.add("price")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, n)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return models.StorageCost{}, err
		}
	}
	return models.StorageCost{Bytes: n, RequiredAtomicUnits: uint64(n) * f.perByte}, nil
}

// fakeLedger backs a real reconcile.Reconciler.
type fakeLedger struct {
	log      *callLog
	mu       sync.Mutex
	balance  uint64
	fundErr  error
	credit   bool
	amounts  []uint64
	balCalls int
}

func (f *fakeLedger) GetBalance(_ context.Context, id string) (models.PrepaidBalance, error) {
	f.log.add("balance")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balCalls++
	return models.PrepaidBalance{Address: id, AtomicUnits: f.balance}, nil
}

func (f *fakeLedger) Fund(_ context.Context, _ string, amount uint64) (models.FundingTransaction, error) {
	f.log.add("fund")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amounts = append(f.amounts, amount)
	if f.fundErr != nil {
		return models.FundingTransaction{}, f.fundErr
	}
	if f.credit {
		f.balance += amount
	}
	return models.FundingTransaction{AmountAtomic: amount, Signature: "sig", Status: models.FundingConfirmed}, nil
}

func (f *fakeLedger) spend(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > f.balance {
		f.balance = 0
		return
	}
	f.balance -= n
}

// fakeSubmitter is a content-addressed store: the receipt is a hash of
// bytes and tags.
type fakeSubmitter struct {
	mu     sync.Mutex
	log    *callLog
	ledger *fakeLedger
	price  uint64
	errs   []error
	stored map[string][]byte
	tags   [][]models.Tag
}

func (f *fakeSubmitter) Submit(_ context.Context, data []byte, meta storage.Meta, extra []models.Tag) (models.StorageReceipt, error) {
	f.log.add("submit")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return models.StorageReceipt{}, err
		}
	}
	if f.ledger != nil {
		f.ledger.spend(uint64(len(data)) * f.price)
	}
	tags := append([]models.Tag{{Name: "Encrypted", Value: fmt.Sprint(meta.Encrypted)}}, extra...)
	f.tags = append(f.tags, tags)
	id := fmt.Sprintf("rcpt-%x-%d", data, len(tags))
	if f.stored == nil {
		f.stored = map[string][]byte{}
	}
	f.stored[id] = data
	return models.StorageReceipt{ID: id, ConfirmedAtSubmission: true}, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	log  *callLog
	errs []error
	rows []models.UploadRecord
	ins  []models.NewUpload
}

func (f *fakeRecorder) Record(_ context.Context, owner string, in models.NewUpload) (models.UploadRecord, error) {
	f.log.add("record")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ins = append(f.ins, in)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return models.UploadRecord{}, err
		}
	}
	rec := models.UploadRecord{
		ID:               fmt.Sprintf("row-%d", len(f.rows)+1),
		Name:             in.Name,
		Size:             in.Size,
		MimeType:         in.MimeType,
		StorageReceiptID: in.StorageReceiptID,
		Encrypted:        in.Encrypted,
		EncryptionKey:    in.EncryptionKey,
		EncryptionNonce:  in.EncryptionNonce,
		OwnerIdentity:    owner,
		CreatedAt:        time.Now(),
	}
	f.rows = append(f.rows, rec)
	return rec, nil
}

type fakeJournal struct {
	mu      sync.Mutex
	saved   []models.PendingRecord
	indexed map[string]string
	errors  map[string]string
}

func (j *fakeJournal) SaveReceipt(_ context.Context, rec models.PendingRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.saved = append(j.saved, rec)
	return nil
}

func (j *fakeJournal) MarkIndexed(_ context.Context, receiptID, recordID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.indexed == nil {
		j.indexed = map[string]string{}
	}
	j.indexed[receiptID] = recordID
	return nil
}

func (j *fakeJournal) MarkError(_ context.Context, receiptID, msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.errors == nil {
		j.errors = map[string]string{}
	}
	j.errors[receiptID] = msg
	return nil
}

type harness struct {
	log       *callLog
	pricer    *fakePricer
	ledger    *fakeLedger
	submitter *fakeSubmitter
	recorder  *fakeRecorder
	journal   *fakeJournal
	orch      *Orchestrator
}

func newHarness(balance, perByte uint64) *harness {
	log := &callLog{}
	h := &harness{
		log:      log,
		pricer:   &fakePricer{log: log, perByte: perByte},
		ledger:   &fakeLedger{log: log, balance: balance, credit: true},
		recorder: &fakeRecorder{log: log},
		journal:  &fakeJournal{},
	}
	h.submitter = &fakeSubmitter{log: log, ledger: h.ledger}

	cfg := Config{NetworkRetries: 2, RetryMin: time.Millisecond, RetryMax: 2 * time.Millisecond, UpdatesBuffer: 32}
	rc := reconcile.New(h.ledger, reconcile.DefaultBuffer, logging.Nop())
	h.orch = New(h.pricer, rc, h.submitter, h.recorder, cfg, logging.Nop()).WithJournal(h.journal)
	return h
}

func drain(r *Run) []models.UploadProgress {
	var out []models.UploadProgress
	for p := range r.Updates() {
		out = append(out, p)
	}
	return out
}

var errNet = fmt.Errorf("dial: %w", common.ErrNetwork)
