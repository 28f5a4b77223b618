package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
)

// Run is one orchestration in progress.
type Run struct {
	id  string
	o   *Orchestrator
	log logging.Logger

	updates chan models.UploadProgress
	done    chan struct{}

	mu       sync.Mutex
	stage    models.Stage
	history  []models.Stage
	last     models.UploadProgress
	receipt  string
	material *models.EncryptionMaterial
	result   models.UploadRecord
	err      error
}

// ID identifies the run in logs.
func (r *Run) ID() string { return r.id }

// Updates streams progress. Sends never block the run, so a slow reader may
// miss intermediate values; Last always has the newest one. The channel is
// closed when the run ends.
func (r *Run) Updates() <-chan models.UploadProgress { return r.updates }

// Done is closed when the run reaches Complete or Error.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends and returns its outcome.
func (r *Run) Wait() (models.UploadRecord, error) {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Last returns the newest progress value.
func (r *Run) Last() models.UploadProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Stage returns the current stage.
func (r *Run) Stage() models.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// History lists every stage the run entered, in order.
func (r *Run) History() []models.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Stage(nil), r.history...)
}

// Material returns the exported key and nonce of an encrypted upload once
// encryption has run.
func (r *Run) Material() (models.EncryptionMaterial, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.material == nil {
		return models.EncryptionMaterial{}, false
	}
	return *r.material, true
}

// enter moves the run to next after checking that the caller is still
// waiting. An illegal transition is a bug in this package and panics.
func (r *Run) enter(ctx context.Context, next models.Stage, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if !models.CanTransition(r.stage, next) {
		from := r.stage
		r.mu.Unlock()
		panic(fmt.Sprintf("orchestrator: illegal transition %s -> %s", from, next))
	}
	r.stage = next
	r.history = append(r.history, next)
	p := models.UploadProgress{
		Stage:     next,
		Percent:   max(r.last.Percent, next.Percent()),
		Message:   msg,
		ReceiptID: r.receipt,
	}
	r.last = p
	r.mu.Unlock()

	r.log.Debug(ctx, "stage", "stage", next.String(), "percent", p.Percent)
	r.publish(p)
	return nil
}

// fail moves the run to Error. The error is wrapped with the stage it
// happened in unless it already carries one.
func (r *Run) fail(err error) (models.UploadRecord, error) {
	r.mu.Lock()
	from := r.stage
	var se *StageError
	if !errors.As(err, &se) {
		err = &StageError{Stage: from, Err: err}
	}
	kind := common.KindOf(err)
	r.stage = models.StageError
	r.history = append(r.history, models.StageError)
	p := models.UploadProgress{
		Stage:     models.StageError,
		Percent:   r.last.Percent,
		Message:   NextAction(kind),
		ReceiptID: r.receipt,
		ErrorKind: kind,
	}
	r.last = p
	r.mu.Unlock()

	r.log.Error(context.Background(), "upload failed", "stage", from.String(), "kind", string(kind), "error", err)
	r.publish(p)
	return models.UploadRecord{}, err
}

func (r *Run) finish(rec models.UploadRecord, err error) {
	r.mu.Lock()
	r.result, r.err = rec, err
	r.mu.Unlock()
	close(r.updates)
	close(r.done)
}

func (r *Run) publish(p models.UploadProgress) {
	select {
	case r.updates <- p:
	default:
	}
}

func (r *Run) setReceipt(id string) {
	r.mu.Lock()
	r.receipt = id
	r.mu.Unlock()
}

func (r *Run) setMaterial(m models.EncryptionMaterial) {
	r.mu.Lock()
	r.material = &m
	r.mu.Unlock()
}
