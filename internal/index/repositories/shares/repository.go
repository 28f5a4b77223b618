package shares

import (
	"context"

	"github.com/dmitrijs2005/helix/internal/models"
)

type Repository interface {
	Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error)
	ListByFile(ctx context.Context, userID, fileID string) ([]models.ShareLink, error)
	Delete(ctx context.Context, userID, id string) error
	GetByKeyForUpdate(ctx context.Context, key string) (*models.ShareLink, error)
	IncrementDownloads(ctx context.Context, id string) error
}
