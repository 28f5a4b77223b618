package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/cryptox"
	"github.com/dmitrijs2005/helix/internal/dbx"
	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/dmitrijs2005/helix/internal/index/repositories/repomanager"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/google/uuid"
)

// ResolvedShare is what an anonymous holder of a share key gets.
type ResolvedShare struct {
	Share models.ShareLink    `json:"share"`
	File  models.UploadRecord `json:"file"`
}

type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time
	// password hashing; replaced in tests
	hash   func(string) string
	verify func(password, encoded string) (bool, error)
}

func NewShareService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *ShareService {
	return &ShareService{
		db:          db,
		repomanager: m,
		log:         log.With("module", "share_service"),
		now:         time.Now,
		hash:        cryptox.HashPassword,
		verify:      cryptox.VerifyPassword,
	}
}

// Create makes a share link for one of the caller's files.
func (s *ShareService) Create(ctx context.Context, id auth.Identity, in models.NewShareLink) (*models.ShareLink, error) {
	if in.MaxDownloads != nil && *in.MaxDownloads <= 0 {
		return nil, fmt.Errorf("%w: maxDownloads must be positive", common.ErrValidation)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expiresAt is in the past", common.ErrValidation)
	}

	if _, err := s.repomanager.Files(s.db).Get(ctx, id.UserID, in.FileID); err != nil {
		return nil, err
	}

	key, err := common.MakeRandHexString(24)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	link := &models.ShareLink{
		ID:           uuid.NewString(),
		FileID:       in.FileID,
		OwnerID:      id.UserID,
		Key:          key,
		ExpiresAt:    in.ExpiresAt,
		MaxDownloads: in.MaxDownloads,
	}
	if in.Password != nil && *in.Password != "" {
		h := s.hash(*in.Password)
		link.PasswordHash = &h
	}

	link, err = s.repomanager.Shares(s.db).Create(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("error creating share: %w", err)
	}

	s.log.Info(ctx, "share created", "user", id.UserID, "file", in.FileID, "share", link.ID)
	return link, nil
}

// ListForFile returns the links of one of the caller's files.
func (s *ShareService) ListForFile(ctx context.Context, id auth.Identity, fileID string) ([]models.ShareLink, error) {
	if _, err := s.repomanager.Files(s.db).Get(ctx, id.UserID, fileID); err != nil {
		return nil, err
	}
	return s.repomanager.Shares(s.db).ListByFile(ctx, id.UserID, fileID)
}

func (s *ShareService) Delete(ctx context.Context, id auth.Identity, shareID string) error {
	return s.repomanager.Shares(s.db).Delete(ctx, id.UserID, shareID)
}

// Resolve returns the file behind key and counts one download. Expired or
// exhausted links give common.ErrShareExpired; a missing or wrong password
// gives common.ErrUnauthorized.
func (s *ShareService) Resolve(ctx context.Context, key, password string) (*ResolvedShare, error) {
	var out *ResolvedShare

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		shares := s.repomanager.Shares(tx)

		link, err := shares.GetByKeyForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if link.ExpiresAt != nil && !s.now().Before(*link.ExpiresAt) {
			return common.ErrShareExpired
		}
		if link.MaxDownloads != nil && link.DownloadCount >= *link.MaxDownloads {
			return common.ErrShareExpired
		}
		if link.PasswordHash != nil {
			ok, err := s.verify(password, *link.PasswordHash)
			if err != nil {
				return fmt.Errorf("%w: %w", common.ErrInternal, err)
			}
			if !ok {
				return common.ErrUnauthorized
			}
		}

		file, err := s.repomanager.Files(tx).GetByID(ctx, link.FileID)
		if err != nil {
			return err
		}

		if err := shares.IncrementDownloads(ctx, link.ID); err != nil {
			return err
		}
		link.DownloadCount++

		out = &ResolvedShare{Share: *link, File: *file}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
