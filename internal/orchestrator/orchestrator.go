package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/cryptox"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/recorder"
	"github.com/dmitrijs2005/helix/internal/storage"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
)

// Pricer quotes storage costs. See package pricing.
type Pricer interface {
	GetCost(ctx context.Context, n int64) (models.StorageCost, error)
}

// Reconciler makes sure the prepaid balance covers a cost. See package reconcile.
type Reconciler interface {
	EnsureFunded(ctx context.Context, identity string, required uint64) (bool, error)
}

// Submitter stores payloads. See package storage.
type Submitter interface {
	Submit(ctx context.Context, data []byte, meta storage.Meta, extra []models.Tag) (models.StorageReceipt, error)
}

// Recorder indexes stored payloads. See package recorder.
type Recorder interface {
	Record(ctx context.Context, owner string, in models.NewUpload) (models.UploadRecord, error)
}

// Journal keeps stored-but-unindexed uploads across process restarts.
// See package journal.
type Journal interface {
	SaveReceipt(ctx context.Context, rec models.PendingRecord) error
	MarkIndexed(ctx context.Context, receiptID, recordID string) error
	MarkError(ctx context.Context, receiptID, msg string) error
}

// Encrypter seals a plaintext with fresh key material.
type Encrypter func(plaintext []byte) (*cryptox.Sealed, error)

// Config tunes retries and the progress channel.
type Config struct {
	NetworkRetries int
	RetryMin       time.Duration
	RetryMax       time.Duration
	UpdatesBuffer  int
}

func DefaultConfig() Config {
	return Config{
		NetworkRetries: 3,
		RetryMin:       500 * time.Millisecond,
		RetryMax:       5 * time.Second,
		UpdatesBuffer:  32,
	}
}

// Options describe one upload.
type Options struct {
	Name     string
	MimeType string
	Encrypt  bool
	// Tags are appended after the required tags; they cannot replace them.
	Tags []models.Tag
}

// Orchestrator wires the stages together. It holds no per-upload state and
// may start any number of concurrent runs.
type Orchestrator struct {
	pricer     Pricer
	reconciler Reconciler
	submitter  Submitter
	recorder   Recorder
	journal    Journal
	encrypt    Encrypter
	cfg        Config
	log        logging.Logger
}

func New(p Pricer, rc Reconciler, s Submitter, rec Recorder, cfg Config, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		pricer:     p,
		reconciler: rc,
		submitter:  s,
		recorder:   rec,
		encrypt:    cryptox.Encrypt,
		cfg:        cfg,
		log:        log.With("module", "orchestrator"),
	}
}

// WithJournal makes runs persist receipts before indexing.
func (o *Orchestrator) WithJournal(j Journal) *Orchestrator {
	o.journal = j
	return o
}

// WithEncrypter replaces cryptox.Encrypt.
func (o *Orchestrator) WithEncrypter(e Encrypter) *Orchestrator {
	o.encrypt = e
	return o
}

// Start begins uploading data for owner and returns immediately.
func (o *Orchestrator) Start(ctx context.Context, data []byte, opts Options, owner string) *Run {
	r := o.newRun()
	go r.finish(r.upload(ctx, data, opts, owner))
	return r
}

// Upload is Start followed by Wait.
func (o *Orchestrator) Upload(ctx context.Context, data []byte, opts Options, owner string) (models.UploadRecord, error) {
	return o.Start(ctx, data, opts, owner).Wait()
}

// RetryRecording finishes a StoredButUnindexed upload. It goes straight from
// Idle to Recording and never touches pricing, funding or storage.
func (o *Orchestrator) RetryRecording(ctx context.Context, owner string, in models.NewUpload) *Run {
	r := o.newRun()
	go r.finish(r.retryRecording(ctx, owner, in))
	return r
}

func (o *Orchestrator) newRun() *Run {
	id := uuid.NewString()
	buf := o.cfg.UpdatesBuffer
	if buf <= 0 {
		buf = 1
	}
	r := &Run{
		id:      id,
		o:       o,
		log:     o.log.With("run_id", id),
		updates: make(chan models.UploadProgress, buf),
		done:    make(chan struct{}),
		stage:   models.StageIdle,
	}
	r.history = []models.Stage{models.StageIdle}
	r.last = models.UploadProgress{Stage: models.StageIdle, Message: "waiting"}
	return r
}

func (r *Run) upload(ctx context.Context, data []byte, opts Options, owner string) (models.UploadRecord, error) {
	o := r.o
	// Stages finish what they started even if the caller walks away; the
	// caller's context is checked at every boundary instead.
	sctx := context.WithoutCancel(ctx)

	if err := recorder.ValidateInput(owner, opts.Name, opts.MimeType); err != nil {
		return r.fail(err)
	}

	payload := data
	var keyMaterial, nonceMaterial *string

	if opts.Encrypt {
		if err := r.enter(ctx, models.StageEncrypting, "encrypting file"); err != nil {
			return r.fail(err)
		}
		sealed, err := o.encrypt(data)
		if err != nil {
			if !errors.Is(err, common.ErrEncryptionFailed) {
				err = fmt.Errorf("%w: %w", common.ErrEncryptionFailed, err)
			}
			return r.fail(err)
		}
		k, n := sealed.Material()
		sealed.Wipe()
		keyMaterial, nonceMaterial = &k, &n
		payload = sealed.Ciphertext
		r.setMaterial(models.EncryptionMaterial{Key: k, Nonce: n})
	}

	if err := r.enter(ctx, models.StagePricingQuery, "checking storage price"); err != nil {
		return r.fail(err)
	}
	cost, err := withRetry(ctx, r, func() (models.StorageCost, error) {
		return o.pricer.GetCost(sctx, int64(len(payload)))
	})
	if err != nil {
		return r.fail(err)
	}

	if err := r.enter(ctx, models.StageReconciling, "checking prepaid balance"); err != nil {
		return r.fail(err)
	}
	if err := r.reconcile(sctx, owner, cost); err != nil {
		return r.fail(err)
	}

	meta := storage.Meta{ContentType: opts.MimeType, Encrypted: opts.Encrypt}
	extra := make([]models.Tag, 0, len(opts.Tags)+1)
	if opts.Name != "" {
		extra = append(extra, models.Tag{Name: storage.TagFileName, Value: opts.Name})
	}
	extra = append(extra, opts.Tags...)

	var receipt models.StorageReceipt
	for requoted := false; ; requoted = true {
		if err := r.enter(ctx, models.StageSubmitting, "uploading to permanent storage"); err != nil {
			return r.fail(err)
		}
		receipt, err = withRetry(ctx, r, func() (models.StorageReceipt, error) {
			return o.submitter.Submit(sctx, payload, meta, extra)
		})
		if err == nil {
			break
		}
		if !errors.Is(err, common.ErrQuota) || requoted {
			return r.fail(err)
		}

		r.log.Warn(ctx, "bundler reported insufficient balance, reconciling again", "error", err)
		if err := r.enter(ctx, models.StageReconciling, "balance changed, re-checking"); err != nil {
			return r.fail(err)
		}
		cost, err = withRetry(ctx, r, func() (models.StorageCost, error) {
			return o.pricer.GetCost(sctx, int64(len(payload)))
		})
		if err != nil {
			return r.fail(err)
		}
		if err := r.reconcile(sctx, owner, cost); err != nil {
			return r.fail(err)
		}
	}
	r.setReceipt(receipt.ID)

	in := models.NewUpload{
		Name:             opts.Name,
		Size:             int64(len(data)),
		MimeType:         opts.MimeType,
		StorageReceiptID: receipt.ID,
		Encrypted:        opts.Encrypt,
		EncryptionKey:    keyMaterial,
		EncryptionNonce:  nonceMaterial,
	}
	r.journalReceipt(sctx, owner, in)

	return r.record(ctx, sctx, owner, in)
}

func (r *Run) retryRecording(ctx context.Context, owner string, in models.NewUpload) (models.UploadRecord, error) {
	if in.StorageReceiptID == "" {
		return r.fail(fmt.Errorf("%w: receipt id is required", common.ErrValidation))
	}
	r.setReceipt(in.StorageReceiptID)
	return r.record(ctx, context.WithoutCancel(ctx), owner, in)
}

// record runs the Recording stage. The payload is already stored, so every
// failure from here on is StoredButUnindexed.
func (r *Run) record(ctx, sctx context.Context, owner string, in models.NewUpload) (models.UploadRecord, error) {
	o := r.o
	if err := r.enter(ctx, models.StageRecording, "saving file metadata"); err != nil {
		return r.fail(r.unindexed(sctx, in.StorageReceiptID, err))
	}

	rec, err := withRetry(ctx, r, func() (models.UploadRecord, error) {
		return o.recorder.Record(sctx, owner, in)
	})
	if err != nil {
		return r.fail(r.unindexed(sctx, in.StorageReceiptID, err))
	}

	if o.journal != nil {
		if err := o.journal.MarkIndexed(sctx, in.StorageReceiptID, rec.ID); err != nil {
			r.log.Warn(ctx, "journal mark indexed failed", "receipt", in.StorageReceiptID, "error", err)
		}
	}

	// The record exists now; abandoning the run can no longer change that.
	if err := r.enter(sctx, models.StageComplete, "upload complete"); err != nil {
		return r.fail(err)
	}
	return rec, nil
}

func (r *Run) reconcile(ctx context.Context, owner string, cost models.StorageCost) error {
	ok, err := r.o.reconciler.EnsureFunded(ctx, owner, cost.RequiredAtomicUnits)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: balance does not cover %d", common.ErrPersistentUnderfunding, cost.RequiredAtomicUnits)
	}
	return nil
}

func (r *Run) unindexed(ctx context.Context, receiptID string, err error) error {
	if r.o.journal != nil {
		if jerr := r.o.journal.MarkError(ctx, receiptID, err.Error()); jerr != nil {
			r.log.Warn(ctx, "journal mark error failed", "receipt", receiptID, "error", jerr)
		}
	}
	return fmt.Errorf("%w: receipt %s: %w", common.ErrStoredButUnindexed, receiptID, err)
}

func (r *Run) journalReceipt(ctx context.Context, owner string, in models.NewUpload) {
	if r.o.journal == nil {
		return
	}
	err := r.o.journal.SaveReceipt(ctx, models.PendingRecord{Upload: in, Owner: owner, CreatedAt: time.Now()})
	if err != nil {
		r.log.Warn(ctx, "journal save receipt failed", "receipt", in.StorageReceiptID, "error", err)
	}
}

// withRetry repeats fn while it fails with common.ErrNetwork, up to
// NetworkRetries extra attempts. Waiting between attempts is a stage
// boundary, so a cancelled caller stops the retries.
func withRetry[T any](ctx context.Context, r *Run, fn func() (T, error)) (T, error) {
	b := &backoff.Backoff{Min: r.o.cfg.RetryMin, Max: r.o.cfg.RetryMax, Factor: 2, Jitter: true}
	for {
		v, err := fn()
		if err == nil || !errors.Is(err, common.ErrNetwork) || int(b.Attempt()) >= r.o.cfg.NetworkRetries {
			return v, err
		}

		d := b.Duration()
		r.log.Warn(ctx, "network error, retrying", "stage", r.Stage().String(), "attempt", b.Attempt(), "wait", d, "error", err)

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, err
		case <-timer.C:
		}
	}
}
