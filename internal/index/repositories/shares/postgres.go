package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/dbx"
	"github.com/dmitrijs2005/helix/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, file_id, user_id, key, expires_at, max_downloads, download_count, password_hash, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*models.ShareLink, error) {
	var (
		l         models.ShareLink
		expiresAt sql.NullTime
		maxDl     sql.NullInt64
		hash      sql.NullString
	)
	err := s.Scan(&l.ID, &l.FileID, &l.OwnerID, &l.Key, &expiresAt, &maxDl, &l.DownloadCount, &hash, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		l.ExpiresAt = &t
	}
	if maxDl.Valid {
		n := int(maxDl.Int64)
		l.MaxDownloads = &n
	}
	if hash.Valid {
		l.PasswordHash = &hash.String
		l.HasPassword = true
	}
	return &l, nil
}

// Create stores link; ID, FileID, OwnerID and Key must be set.
func (r *PostgresRepository) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {

	query :=
		`INSERT INTO share_links (id, file_id, user_id, key, expires_at, max_downloads, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	var maxDl any
	if link.MaxDownloads != nil {
		maxDl = int64(*link.MaxDownloads)
	}

	err := r.db.QueryRowContext(ctx, query, link.ID, link.FileID, link.OwnerID, link.Key,
		link.ExpiresAt, maxDl, link.PasswordHash).Scan(&link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	link.HasPassword = link.PasswordHash != nil

	return link, nil
}

func (r *PostgresRepository) ListByFile(ctx context.Context, userID, fileID string) ([]models.ShareLink, error) {
	query := `SELECT ` + selectColumns + ` FROM share_links
		 WHERE user_id = $1 AND file_id = $2
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, fileID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.ShareLink{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {

	query := `DELETE FROM share_links WHERE user_id = $1 AND id = $2`
	return dbx.ExecOne(ctx, r.db, query, userID, id)
}

// GetByKeyForUpdate locks the link row; call it inside a transaction.
func (r *PostgresRepository) GetByKeyForUpdate(ctx context.Context, key string) (*models.ShareLink, error) {
	query := `SELECT ` + selectColumns + ` FROM share_links WHERE key = $1 FOR UPDATE`

	l, err := scanLink(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id string) error {
	query := `UPDATE share_links SET download_count = download_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
