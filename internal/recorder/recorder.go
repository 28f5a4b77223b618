// Package recorder writes upload metadata to the remote index once the
// payload is stored.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/cryptox"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
)

// Index is the remote metadata store. It is expected, but not required, to
// keep storageReceiptId unique per owner; the recorder does not deduplicate.
type Index interface {
	InsertFile(ctx context.Context, owner string, in models.NewUpload) (models.UploadRecord, error)
}

// Recorder is the Metadata Recorder.
type Recorder struct {
	index Index
	log   logging.Logger
}

func New(index Index, log logging.Logger) *Recorder {
	return &Recorder{index: index, log: log.With("module", "recorder")}
}

// Record validates in and inserts it for owner. Validation failures are
// common.ErrValidation; index errors are passed through so that
// common.ErrNetwork stays retryable.
func (r *Recorder) Record(ctx context.Context, owner string, in models.NewUpload) (models.UploadRecord, error) {
	if err := Validate(owner, in); err != nil {
		return models.UploadRecord{}, err
	}

	rec, err := r.index.InsertFile(ctx, owner, in)
	if err != nil {
		return models.UploadRecord{}, err
	}
	if rec.StorageReceiptID != in.StorageReceiptID {
		return models.UploadRecord{}, fmt.Errorf("%w: index returned record for %q", common.ErrValidation, rec.StorageReceiptID)
	}

	r.log.Info(ctx, "upload indexed", "record", rec.ID, "receipt", rec.StorageReceiptID)
	return rec, nil
}

// Validate checks the fields the index requires. Encrypted uploads must
// carry a well-formed key and nonce; plain uploads must carry neither.
func Validate(owner string, in models.NewUpload) error {
	errs := inputErrors(owner, in.Name, in.MimeType)
	if in.Size < 0 {
		errs = append(errs, errors.New("size must not be negative"))
	}
	if strings.TrimSpace(in.StorageReceiptID) == "" {
		errs = append(errs, errors.New("storage receipt id is required"))
	}

	if in.Encrypted {
		if in.EncryptionKey == nil || in.EncryptionNonce == nil {
			errs = append(errs, errors.New("encrypted upload needs key and nonce"))
		} else {
			if _, err := cryptox.ImportKey(*in.EncryptionKey); err != nil {
				errs = append(errs, err)
			}
			if _, err := cryptox.DecodeNonce(*in.EncryptionNonce); err != nil {
				errs = append(errs, err)
			}
		}
	} else if in.EncryptionKey != nil || in.EncryptionNonce != nil {
		errs = append(errs, errors.New("plain upload must not carry key material"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrValidation, errors.Join(errs...))
	}
	return nil
}

// ValidateInput checks the caller-supplied fields the index will require,
// so an upload that could never be recorded is refused before it is paid for.
func ValidateInput(owner, name, mimeType string) error {
	if errs := inputErrors(owner, name, mimeType); len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrValidation, errors.Join(errs...))
	}
	return nil
}

func inputErrors(owner, name, mimeType string) []error {
	var errs []error
	if strings.TrimSpace(owner) == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	if strings.TrimSpace(name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(mimeType) == "" {
		errs = append(errs, errors.New("mime type is required"))
	}
	return errs
}
