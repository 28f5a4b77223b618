package files

import (
	"context"

	"github.com/dmitrijs2005/helix/internal/models"
)

// Totals are aggregate counts over an owner's live files.
type Totals struct {
	Files     int64
	Size      int64
	Encrypted int64
}

type Repository interface {
	Insert(ctx context.Context, userID string, in models.NewUpload) (*models.UploadRecord, error)
	GetByReceipt(ctx context.Context, userID, receiptID string) (*models.UploadRecord, error)
	Get(ctx context.Context, userID, id string) (*models.UploadRecord, error)
	GetByID(ctx context.Context, id string) (*models.UploadRecord, error)
	List(ctx context.Context, userID string, limit, offset int) ([]models.UploadRecord, error)
	SoftDelete(ctx context.Context, userID, id string) error
	Totals(ctx context.Context, userID string) (Totals, error)
}
