package users

import (
	"context"

	"github.com/dmitrijs2005/helix/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, wallet string) (*models.User, error)
	GetByWallet(ctx context.Context, wallet string) (*models.User, error)
}
