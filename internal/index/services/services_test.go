package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/cryptox"
	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func plainUpload(receipt string) models.NewUpload {
	return models.NewUpload{Name: "a.txt", Size: 5, MimeType: "text/plain", StorageReceiptID: receipt}
}

func TestAuth_ChallengeLoginRoundTrip(t *testing.T) {
	store := newMemStore()
	db, _ := newSQLMock(t)
	svc := NewAuthService(db, fakeManager{store}, auth.NewMemoryChallenges(8, time.Minute),
		"secret", time.Hour, time.Minute, logging.Nop())

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	wallet := key.PublicKey().String()

	ch, err := svc.Challenge(context.Background(), wallet)
	require.NoError(t, err)
	assert.Contains(t, ch.Message, wallet)
	assert.True(t, ch.ExpiresAt.After(time.Now()))

	sig, err := key.Sign([]byte(ch.Message))
	require.NoError(t, err)

	token, user, err := svc.Login(context.Background(), wallet, sig.String())
	require.NoError(t, err)
	assert.Equal(t, wallet, user.Wallet)

	id, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: user.ID, Wallet: wallet}, id)

	_, _, err = svc.Login(context.Background(), wallet, sig.String())
	assert.ErrorIs(t, err, common.ErrUnauthorized, "challenge is single use")
}

func TestAuth_LoginRejectsWrongSigner(t *testing.T) {
	store := newMemStore()
	db, _ := newSQLMock(t)
	svc := NewAuthService(db, fakeManager{store}, auth.NewMemoryChallenges(8, time.Minute),
		"secret", time.Hour, time.Minute, logging.Nop())

	victim, _ := solana.NewRandomPrivateKey()
	attacker, _ := solana.NewRandomPrivateKey()

	ch, err := svc.Challenge(context.Background(), victim.PublicKey().String())
	require.NoError(t, err)
	sig, err := attacker.Sign([]byte(ch.Message))
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), victim.PublicKey().String(), sig.String())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Empty(t, store.users)
}

func TestAuth_ChallengeValidatesWallet(t *testing.T) {
	db, _ := newSQLMock(t)
	svc := NewAuthService(db, fakeManager{newMemStore()}, auth.NewMemoryChallenges(8, time.Minute),
		"secret", time.Hour, time.Minute, logging.Nop())

	_, err := svc.Challenge(context.Background(), "definitely not a key")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestFiles_InsertListStatsDelete(t *testing.T) {
	store := newMemStore()
	db, _ := newSQLMock(t)
	svc := NewFileService(db, fakeManager{store}, logging.Nop())
	ctx := context.Background()
	me := auth.Identity{UserID: "u-1", Wallet: "W1"}
	other := auth.Identity{UserID: "u-2", Wallet: "W2"}

	sealed, err := cryptox.Encrypt([]byte("secret"))
	require.NoError(t, err)
	k, n := sealed.Material()
	enc := models.NewUpload{Name: "s.bin", Size: 6, MimeType: "application/octet-stream",
		StorageReceiptID: "r2", Encrypted: true, EncryptionKey: &k, EncryptionNonce: &n}

	a, err := svc.Insert(ctx, me, plainUpload("r1"))
	require.NoError(t, err)
	b, err := svc.Insert(ctx, me, enc)
	require.NoError(t, err)
	again, err := svc.Insert(ctx, me, plainUpload("r1"))
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID, "same receipt returns the existing record")

	list, err := svc.List(ctx, me, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "newest first")

	stats, err := svc.Stats(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalFiles)
	assert.Equal(t, int64(11), stats.TotalSize)
	assert.Equal(t, int64(1), stats.EncryptedFiles)
	assert.Len(t, stats.RecentUploads, 2)

	_, err = svc.Get(ctx, other, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, other, a.ID), common.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, me, a.ID))
	_, err = svc.Get(ctx, me, a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	stats, err = svc.Stats(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFiles)
}

func TestFiles_InsertValidates(t *testing.T) {
	db, _ := newSQLMock(t)
	svc := NewFileService(db, fakeManager{newMemStore()}, logging.Nop())

	bad := plainUpload("")
	_, err := svc.Insert(context.Background(), auth.Identity{UserID: "u", Wallet: "W"}, bad)
	assert.ErrorIs(t, err, common.ErrValidation)

	key := "not-a-key"
	bad = plainUpload("r")
	bad.Encrypted = true
	bad.EncryptionKey = &key
	bad.EncryptionNonce = &key
	_, err = svc.Insert(context.Background(), auth.Identity{UserID: "u", Wallet: "W"}, bad)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func newShareFixture(t *testing.T) (*ShareService, *FileService, *memStore, sqlmock.Sqlmock, auth.Identity, *models.UploadRecord) {
	t.Helper()
	store := newMemStore()
	db, mock := newSQLMock(t)
	shares := NewShareService(db, fakeManager{store}, logging.Nop())
	shares.hash = func(p string) string { return "hash:" + p }
	shares.verify = func(p, encoded string) (bool, error) { return encoded == "hash:"+p, nil }
	fs := NewFileService(db, fakeManager{store}, logging.Nop())

	me := auth.Identity{UserID: "u-1", Wallet: "W1"}
	rec, err := fs.Insert(context.Background(), me, plainUpload("r1"))
	require.NoError(t, err)
	return shares, fs, store, mock, me, rec
}

func TestShares_CreateAndResolve(t *testing.T) {
	svc, _, _, mock, me, rec := newShareFixture(t)
	ctx := context.Background()

	maxDl := 1
	link, err := svc.Create(ctx, me, models.NewShareLink{FileID: rec.ID, MaxDownloads: &maxDl})
	require.NoError(t, err)
	assert.Len(t, link.Key, 48)
	assert.False(t, link.HasPassword)

	mock.ExpectBegin()
	mock.ExpectCommit()
	got, err := svc.Resolve(ctx, link.Key, "")
	require.NoError(t, err)
	assert.Equal(t, rec.StorageReceiptID, got.File.StorageReceiptID)
	assert.Equal(t, 1, got.Share.DownloadCount)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Resolve(ctx, link.Key, "")
	assert.ErrorIs(t, err, common.ErrShareExpired, "download limit reached")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShares_Password(t *testing.T) {
	svc, _, _, mock, me, rec := newShareFixture(t)
	ctx := context.Background()

	pw := "hunter2"
	link, err := svc.Create(ctx, me, models.NewShareLink{FileID: rec.ID, Password: &pw})
	require.NoError(t, err)
	assert.True(t, link.HasPassword)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Resolve(ctx, link.Key, "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.Resolve(ctx, link.Key, pw)
	assert.NoError(t, err)
}

func TestShares_Expired(t *testing.T) {
	svc, _, store, mock, me, rec := newShareFixture(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour)
	link, err := svc.Create(ctx, me, models.NewShareLink{FileID: rec.ID, ExpiresAt: &exp})
	require.NoError(t, err)

	svc.now = func() time.Time { return exp.Add(time.Second) }

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Resolve(ctx, link.Key, "")
	assert.ErrorIs(t, err, common.ErrShareExpired)
	assert.Equal(t, 0, store.shares[link.ID].DownloadCount)
}

func TestShares_DeletedFileAndUnknownKey(t *testing.T) {
	svc, fs, _, mock, me, rec := newShareFixture(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, me, models.NewShareLink{FileID: rec.ID})
	require.NoError(t, err)
	require.NoError(t, fs.Delete(ctx, me, rec.ID))

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Resolve(ctx, link.Key, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Resolve(ctx, strings.Repeat("0", 48), "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestShares_CreateValidation(t *testing.T) {
	svc, _, _, _, me, rec := newShareFixture(t)
	ctx := context.Background()

	zero := 0
	_, err := svc.Create(ctx, me, models.NewShareLink{FileID: rec.ID, MaxDownloads: &zero})
	assert.ErrorIs(t, err, common.ErrValidation)

	past := time.Now().Add(-time.Minute)
	_, err = svc.Create(ctx, me, models.NewShareLink{FileID: rec.ID, ExpiresAt: &past})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Create(ctx, auth.Identity{UserID: "u-2"}, models.NewShareLink{FileID: rec.ID})
	assert.ErrorIs(t, err, common.ErrNotFound, "cannot share someone else's file")
}

func TestShares_ListAndDelete(t *testing.T) {
	svc, _, _, _, me, rec := newShareFixture(t)
	ctx := context.Background()

	link, err := svc.Create(ctx, me, models.NewShareLink{FileID: rec.ID})
	require.NoError(t, err)

	list, err := svc.ListForFile(ctx, me, rec.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, svc.Delete(ctx, auth.Identity{UserID: "u-2"}, link.ID), common.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, me, link.ID))

	list, err = svc.ListForFile(ctx, me, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestShares_RealPasswordHash(t *testing.T) {
	store := newMemStore()
	db, mock := newSQLMock(t)
	svc := NewShareService(db, fakeManager{store}, logging.Nop())
	fs := NewFileService(db, fakeManager{store}, logging.Nop())
	me := auth.Identity{UserID: "u-1", Wallet: "W1"}
	rec, err := fs.Insert(context.Background(), me, plainUpload("r1"))
	require.NoError(t, err)

	pw := "pw"
	link, err := svc.Create(context.Background(), me, models.NewShareLink{FileID: rec.ID, Password: &pw})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(*store.shares[link.ID].PasswordHash, "$argon2id$"))

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.Resolve(context.Background(), link.Key, pw)
	require.NoError(t, err)
}

func TestAuth_UpsertFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("db down")
	db, _ := newSQLMock(t)
	svc := NewAuthService(db, fakeManager{store}, auth.NewMemoryChallenges(8, time.Minute),
		"secret", time.Hour, time.Minute, logging.Nop())

	key, _ := solana.NewRandomPrivateKey()
	ch, err := svc.Challenge(context.Background(), key.PublicKey().String())
	require.NoError(t, err)
	sig, _ := key.Sign([]byte(ch.Message))

	_, _, err = svc.Login(context.Background(), key.PublicKey().String(), sig.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
