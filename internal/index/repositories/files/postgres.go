package files

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

const selectColumns = `f.id, f.name, f.size, f.mime_type, f.storage_receipt_id, f.encrypted,
		f.encryption_key, f.encryption_nonce, u.wallet, f.created_at, f.deleted_at
		FROM files f JOIN users u ON u.id = f.user_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.UploadRecord, error) {
	var (
		rec        models.UploadRecord
		key, nonce sql.NullString
		deletedAt  sql.NullTime
	)
	err := s.Scan(&rec.ID, &rec.Name, &rec.Size, &rec.MimeType, &rec.StorageReceiptID, &rec.Encrypted,
		&key, &nonce, &rec.OwnerIdentity, &rec.CreatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if key.Valid {
		rec.EncryptionKey = &key.String
	}
	if nonce.Valid {
		rec.EncryptionNonce = &nonce.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		rec.DeletedAt = &t
	}
	return &rec, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.UploadRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Insert adds a file for userID. A live row with the same receipt is left
// untouched and returned instead.
func (r *PostgresRepository) Insert(ctx context.Context, userID string, in models.NewUpload) (*models.UploadRecord, error) {

	query :=
		`INSERT INTO files (id, user_id, name, size, mime_type, storage_receipt_id, encrypted, encryption_key, encryption_nonce)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, storage_receipt_id) WHERE deleted_at IS NULL DO NOTHING
		 RETURNING id
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), userID, in.Name, in.Size, in.MimeType,
		in.StorageReceiptID, in.Encrypted, in.EncryptionKey, in.EncryptionNonce).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return r.GetByReceipt(ctx, userID, in.StorageReceiptID)
	case err != nil:
		return nil, fmt.Errorf("db error: %w", err)
	}

	return r.Get(ctx, userID, id)
}

func (r *PostgresRepository) GetByReceipt(ctx context.Context, userID, receiptID string) (*models.UploadRecord, error) {
	query := `SELECT ` + selectColumns + `
		 WHERE f.user_id = $1 AND f.storage_receipt_id = $2 AND f.deleted_at IS NULL`
	return r.one(ctx, query, userID, receiptID)
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.UploadRecord, error) {
	query := `SELECT ` + selectColumns + `
		 WHERE f.user_id = $1 AND f.id = $2 AND f.deleted_at IS NULL`
	return r.one(ctx, query, userID, id)
}

// GetByID ignores ownership; share links use it.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.UploadRecord, error) {
	query := `SELECT ` + selectColumns + `
		 WHERE f.id = $1 AND f.deleted_at IS NULL`
	return r.one(ctx, query, id)
}

// List returns live files, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string, limit, offset int) ([]models.UploadRecord, error) {
	query := `SELECT ` + selectColumns + `
		 WHERE f.user_id = $1 AND f.deleted_at IS NULL
		 ORDER BY f.created_at DESC
		 LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.UploadRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, userID, id string) error {

	query := `UPDATE files SET deleted_at = now() WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL`
	return dbx.ExecOne(ctx, r.db, query, userID, id)
}

func (r *PostgresRepository) Totals(ctx context.Context, userID string) (Totals, error) {
	query :=
		`SELECT COUNT(*), COALESCE(SUM(size), 0), COUNT(*) FILTER (WHERE encrypted)
		 FROM files WHERE user_id = $1 AND deleted_at IS NULL`

	var t Totals
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&t.Files, &t.Size, &t.Encrypted); err != nil {
		return Totals{}, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}
