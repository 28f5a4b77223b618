// Package storage packages payloads as signed data items and submits them
// to the bundler.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/helix/internal/bundler/dataitem"
	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/gagliardetto/solana-go"
)

const (
	TagContentType = "Content-Type"
	TagAppName     = "App-Name"
	TagEncrypted   = "Encrypted"
	TagFileName    = "File-Name"

	// EncryptedContentType replaces the real type of encrypted payloads.
	EncryptedContentType = "application/octet-stream"
)

// Uploader posts a serialized data item. See bundler.Client.
type Uploader interface {
	Upload(ctx context.Context, item []byte) (string, error)
}

// Signer owns the data items.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Meta drives the required tags.
type Meta struct {
	ContentType string
	Encrypted   bool
}

// Submitter is the Storage Submitter. It does not check funding; the
// orchestrator only calls it after the reconciler succeeded.
type Submitter struct {
	up      Uploader
	signer  Signer
	appName string
	log     logging.Logger
}

func NewSubmitter(up Uploader, signer Signer, appName string, log logging.Logger) *Submitter {
	if appName == "" {
		appName = common.DefaultAppName
	}
	return &Submitter{up: up, signer: signer, appName: appName, log: log.With("module", "storage")}
}

// Submit signs data with the tag set from BuildTags and uploads it. A
// common.ErrQuota from the bundler is returned unchanged so the caller can
// reconcile again; common.ErrNetwork is safe to retry because the same bytes
// and tags produce the same receipt.
func (s *Submitter) Submit(ctx context.Context, data []byte, meta Meta, extra []models.Tag) (models.StorageReceipt, error) {
	owner := s.signer.PublicKey()
	item, err := dataitem.New(owner[:], s.BuildTags(meta, extra), data)
	if err != nil {
		return models.StorageReceipt{}, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	if err := item.Sign(ctx, s.signer); err != nil {
		if errors.Is(err, common.ErrUserRejected) {
			return models.StorageReceipt{}, err
		}
		return models.StorageReceipt{}, fmt.Errorf("sign data item: %w", err)
	}

	id, err := item.ID()
	if err != nil {
		return models.StorageReceipt{}, err
	}
	raw, err := item.Bytes()
	if err != nil {
		return models.StorageReceipt{}, err
	}

	got, err := s.up.Upload(ctx, raw)
	if err != nil {
		return models.StorageReceipt{}, err
	}
	if got != "" && got != id {
		s.log.Error(ctx, "bundler reported a different id", "local", id, "bundler", got)
		return models.StorageReceipt{}, fmt.Errorf("%w: bundler stored %s, expected %s", common.ErrValidation, got, id)
	}

	s.log.Info(ctx, "payload stored", "receipt", id, "bytes", len(data))
	return models.StorageReceipt{ID: id, ConfirmedAtSubmission: true}, nil
}

// BuildTags returns the required tags followed by extra. Extra tags whose
// names collide with a required tag (ignoring case) are dropped.
func (s *Submitter) BuildTags(meta Meta, extra []models.Tag) []models.Tag {
	contentType := meta.ContentType
	if meta.Encrypted || contentType == "" {
		contentType = EncryptedContentType
	}

	tags := []models.Tag{
		{Name: TagContentType, Value: contentType},
		{Name: TagAppName, Value: s.appName},
		{Name: TagEncrypted, Value: strconv.FormatBool(meta.Encrypted)},
	}
	for _, t := range extra {
		if t.Name == "" || reserved(t.Name) {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

func reserved(name string) bool {
	return strings.EqualFold(name, TagContentType) ||
		strings.EqualFold(name, TagAppName) ||
		strings.EqualFold(name, TagEncrypted)
}
