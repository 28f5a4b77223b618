package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/dbx"
	"github.com/dmitrijs2005/helix/internal/index/repositories/files"
	"github.com/dmitrijs2005/helix/internal/index/repositories/shares"
	"github.com/dmitrijs2005/helix/internal/index/repositories/users"
	"github.com/dmitrijs2005/helix/internal/models"
)

// memStore backs every fake repository; the DBTX handed to the manager is
// ignored.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	files  map[string]*models.UploadRecord
	owners map[string]string
	shares map[string]*models.ShareLink
	seq    int
	err    error
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*models.User{},
		files:  map[string]*models.UploadRecord{},
		owners: map[string]string{},
		shares: map[string]*models.ShareLink{},
	}
}

func (m *memStore) next(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

type fakeManager struct{ s *memStore }

func (f fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f fakeManager) Users(dbx.DBTX) users.Repository { return fakeUsers{f.s} }
func (f fakeManager) Files(dbx.DBTX) files.Repository { return fakeFiles{f.s} }
func (f fakeManager) Shares(dbx.DBTX) shares.Repository { return fakeShares{f.s} }

type fakeUsers struct{ s *memStore }

func (f fakeUsers) Upsert(_ context.Context, wallet string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	if u, ok := f.s.users[wallet]; ok {
		return u, nil
	}
	u := &models.User{ID: f.s.next("u"), Wallet: wallet, CreatedAt: time.Now()}
	f.s.users[wallet] = u
	return u, nil
}

func (f fakeUsers) GetByWallet(_ context.Context, wallet string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[wallet]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

type fakeFiles struct{ s *memStore }

func (f fakeFiles) Insert(_ context.Context, userID string, in models.NewUpload) (*models.UploadRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, r := range f.s.files {
		if f.s.owners[id] == userID && r.StorageReceiptID == in.StorageReceiptID && r.DeletedAt == nil {
			return r, nil
		}
	}
	rec := &models.UploadRecord{
		ID: f.s.next("f"), Name: in.Name, Size: in.Size, MimeType: in.MimeType,
		StorageReceiptID: in.StorageReceiptID, Encrypted: in.Encrypted,
		EncryptionKey: in.EncryptionKey, EncryptionNonce: in.EncryptionNonce,
		CreatedAt: time.Now().Add(time.Duration(f.s.seq) * time.Millisecond),
	}
	f.s.files[rec.ID] = rec
	f.s.owners[rec.ID] = userID
	return rec, nil
}

func (f fakeFiles) GetByReceipt(_ context.Context, userID, receiptID string) (*models.UploadRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, r := range f.s.files {
		if f.s.owners[id] == userID && r.StorageReceiptID == receiptID && r.DeletedAt == nil {
			return r, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f fakeFiles) Get(_ context.Context, userID, id string) (*models.UploadRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.files[id]
	if !ok || f.s.owners[id] != userID || r.DeletedAt != nil {
		return nil, common.ErrNotFound
	}
	return r, nil
}

func (f fakeFiles) GetByID(_ context.Context, id string) (*models.UploadRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.files[id]
	if !ok || r.DeletedAt != nil {
		return nil, common.ErrNotFound
	}
	return r, nil
}

func (f fakeFiles) live(userID string) []models.UploadRecord {
	out := []models.UploadRecord{}
	for id, r := range f.s.files {
		if f.s.owners[id] == userID && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f fakeFiles) List(_ context.Context, userID string, limit, offset int) ([]models.UploadRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	all := f.live(userID)
	if offset >= len(all) {
		return []models.UploadRecord{}, nil
	}
	all = all[offset:]
	return all[:min(limit, len(all))], nil
}

func (f fakeFiles) SoftDelete(_ context.Context, userID, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.files[id]
	if !ok || f.s.owners[id] != userID || r.DeletedAt != nil {
		return common.ErrNotFound
	}
	now := time.Now()
	r.DeletedAt = &now
	return nil
}

func (f fakeFiles) Totals(_ context.Context, userID string) (files.Totals, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var t files.Totals
	for _, r := range f.live(userID) {
		t.Files++
		t.Size += r.Size
		if r.Encrypted {
			t.Encrypted++
		}
	}
	return t, nil
}

type fakeShares struct{ s *memStore }

func (f fakeShares) Create(_ context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	link.CreatedAt = time.Now()
	link.HasPassword = link.PasswordHash != nil
	cp := *link
	f.s.shares[link.ID] = &cp
	return link, nil
}

func (f fakeShares) ListByFile(_ context.Context, userID, fileID string) ([]models.ShareLink, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.ShareLink{}
	for _, l := range f.s.shares {
		if l.OwnerID == userID && l.FileID == fileID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f fakeShares) Delete(_ context.Context, userID, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	l, ok := f.s.shares[id]
	if !ok || l.OwnerID != userID {
		return common.ErrNotFound
	}
	delete(f.s.shares, id)
	return nil
}

func (f fakeShares) GetByKeyForUpdate(_ context.Context, key string) (*models.ShareLink, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, l := range f.s.shares {
		if l.Key == key {
			cp := *l
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f fakeShares) IncrementDownloads(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	l, ok := f.s.shares[id]
	if !ok {
		return common.ErrNotFound
	}
	l.DownloadCount++
	return nil
}
