package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/dmitrijs2005/helix/internal/index/repositories/repomanager"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/dmitrijs2005/helix/internal/recorder"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	recentUploads    = 5
)

type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *FileService {
	return &FileService{db: db, repomanager: m, log: log.With("module", "file_service")}
}

// Insert indexes an upload for the caller. Inserting a receipt that is
// already indexed returns the existing record.
func (s *FileService) Insert(ctx context.Context, id auth.Identity, in models.NewUpload) (*models.UploadRecord, error) {
	if err := recorder.Validate(id.Wallet, in); err != nil {
		return nil, err
	}

	rec, err := s.repomanager.Files(s.db).Insert(ctx, id.UserID, in)
	if err != nil {
		return nil, fmt.Errorf("error inserting file: %w", err)
	}

	s.log.Info(ctx, "file indexed", "user", id.UserID, "file", rec.ID, "receipt", rec.StorageReceiptID)
	return rec, nil
}

func (s *FileService) List(ctx context.Context, id auth.Identity, limit, offset int) ([]models.UploadRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(offset, 0)
	return s.repomanager.Files(s.db).List(ctx, id.UserID, limit, offset)
}

func (s *FileService) Get(ctx context.Context, id auth.Identity, fileID string) (*models.UploadRecord, error) {
	return s.repomanager.Files(s.db).Get(ctx, id.UserID, fileID)
}

// Delete hides a file from the index. The stored bytes are permanent and
// stay where they are.
func (s *FileService) Delete(ctx context.Context, id auth.Identity, fileID string) error {
	if err := s.repomanager.Files(s.db).SoftDelete(ctx, id.UserID, fileID); err != nil {
		return err
	}
	s.log.Info(ctx, "file removed from index", "user", id.UserID, "file", fileID)
	return nil
}

func (s *FileService) Stats(ctx context.Context, id auth.Identity) (*models.Stats, error) {
	repo := s.repomanager.Files(s.db)

	totals, err := repo.Totals(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	recent, err := repo.List(ctx, id.UserID, recentUploads, 0)
	if err != nil {
		return nil, err
	}

	return &models.Stats{
		TotalFiles:     totals.Files,
		TotalSize:      totals.Size,
		EncryptedFiles: totals.Encrypted,
		RecentUploads:  recent,
	}, nil
}
