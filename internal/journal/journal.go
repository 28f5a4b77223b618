package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/dbx"
	"github.com/dmitrijs2005/helix/internal/journal/migrations"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Journal is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// RunMigrations applies the embedded schema. It is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the journal at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal migrations: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// SaveReceipt stores a freshly stored upload. Saving the same receipt again
// keeps the original row.
func (j *Journal) SaveReceipt(ctx context.Context, rec models.PendingRecord) error {
	if rec.Upload.StorageReceiptID == "" {
		return fmt.Errorf("%w: receipt id is required", common.ErrValidation)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = j.now()
	}
	u := rec.Upload

	query := `INSERT INTO pending_uploads
			(receipt_id, owner, name, size, mime_type, encrypted, encryption_key, encryption_nonce, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(receipt_id) DO NOTHING`
	_, err := j.db.ExecContext(ctx, query, u.StorageReceiptID, rec.Owner, u.Name, u.Size, u.MimeType,
		u.Encrypted, u.EncryptionKey, u.EncryptionNonce, created.UTC())
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

// MarkIndexed records the index row created for receiptID.
func (j *Journal) MarkIndexed(ctx context.Context, receiptID, recordID string) error {
	query := `UPDATE pending_uploads SET indexed_at=?, record_id=?, last_error='' WHERE receipt_id=?`
	return dbx.ExecOne(ctx, j.db, query, j.now().UTC(), recordID, receiptID)
}

// MarkError remembers why the last index write for receiptID failed.
func (j *Journal) MarkError(ctx context.Context, receiptID, msg string) error {
	query := `UPDATE pending_uploads SET last_error=? WHERE receipt_id=?`
	return dbx.ExecOne(ctx, j.db, query, msg, receiptID)
}

const pendingColumns = `receipt_id, owner, name, size, mime_type, encrypted, encryption_key, encryption_nonce,
	created_at, indexed_at, record_id, last_error`

// Pending lists uploads that still need an index write, oldest first.
func (j *Journal) Pending(ctx context.Context) ([]models.PendingRecord, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_uploads WHERE indexed_at IS NULL ORDER BY created_at`
	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error selecting pending uploads: %w", err)
	}
	defer rows.Close()

	var result []models.PendingRecord
	for rows.Next() {
		rec, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the journaled upload for receiptID.
func (j *Journal) Get(ctx context.Context, receiptID string) (models.PendingRecord, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_uploads WHERE receipt_id=?`
	rec, err := scanPending(j.db.QueryRowContext(ctx, query, receiptID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingRecord{}, common.ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPending(s scanner) (models.PendingRecord, error) {
	var (
		rec       models.PendingRecord
		key, non  sql.NullString
		indexedAt sql.NullTime
	)
	u := &rec.Upload
	err := s.Scan(&u.StorageReceiptID, &rec.Owner, &u.Name, &u.Size, &u.MimeType, &u.Encrypted, &key, &non,
		&rec.CreatedAt, &indexedAt, &rec.RecordID, &rec.LastError)
	if err != nil {
		return models.PendingRecord{}, err
	}
	if key.Valid {
		u.EncryptionKey = &key.String
	}
	if non.Valid {
		u.EncryptionNonce = &non.String
	}
	if indexedAt.Valid {
		t := indexedAt.Time
		rec.IndexedAt = &t
	}
	return rec, nil
}

// RecordFunding upserts a signed transfer by signature. Unsigned transfers
// never left the process and are not kept.
func (j *Journal) RecordFunding(ctx context.Context, tx models.FundingTransaction) error {
	if !tx.Signed() {
		return nil
	}
	created := tx.CreatedAt
	if created.IsZero() {
		created = j.now()
	}

	return dbx.WithTx(ctx, j.db, nil, func(ctx context.Context, db dbx.DBTX) error {
		query := `INSERT INTO fundings
				(signature, source, destination, amount, recent_blockhash, memo, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(signature) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`
		_, err := db.ExecContext(ctx, query, tx.Signature, tx.Source, tx.Destination, int64(tx.AmountAtomic),
			tx.RecentBlockhash, tx.Memo, string(tx.Status), created.UTC(), j.now().UTC())
		if err != nil {
			return fmt.Errorf("failed to record funding: %w", err)
		}
		return nil
	})
}

// Fundings lists recorded transfers, newest first. A non-empty status
// filters by it.
func (j *Journal) Fundings(ctx context.Context, status models.FundingStatus) ([]models.FundingTransaction, error) {
	query := `SELECT signature, source, destination, amount, recent_blockhash, memo, status, created_at
			FROM fundings WHERE (? = '' OR status = ?) ORDER BY created_at DESC, signature`
	rows, err := j.db.QueryContext(ctx, query, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("error selecting fundings: %w", err)
	}
	defer rows.Close()

	var result []models.FundingTransaction
	for rows.Next() {
		var (
			ft     models.FundingTransaction
			amount int64
			st     string
		)
		if err := rows.Scan(&ft.Signature, &ft.Source, &ft.Destination, &amount, &ft.RecentBlockhash,
			&ft.Memo, &st, &ft.CreatedAt); err != nil {
			return nil, err
		}
		ft.AmountAtomic = uint64(amount)
		ft.Status = models.FundingStatus(st)
		result = append(result, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
