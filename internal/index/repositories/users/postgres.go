package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/dbx"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert returns the user owning wallet, creating it on first login.
func (r *PostgresRepository) Upsert(ctx context.Context, wallet string) (*models.User, error) {

	query :=
		`INSERT INTO users (id, wallet)
		 VALUES ($1, $2)
		 ON CONFLICT (wallet) DO UPDATE SET wallet = excluded.wallet
		 RETURNING id, wallet, created_at
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), wallet).Scan(&user.ID, &user.Wallet, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByWallet(ctx context.Context, wallet string) (*models.User, error) {
	query :=
		`SELECT id, wallet, created_at FROM users
		 WHERE wallet = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, wallet).Scan(&user.ID, &user.Wallet, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
