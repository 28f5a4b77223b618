package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/cryptox"
	"github.com/dmitrijs2005/helix/internal/logging"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	err   error
	calls int
	rows  []models.UploadRecord
}

func (f *fakeIndex) InsertFile(_ context.Context, owner string, in models.NewUpload) (models.UploadRecord, error) {
	f.calls++
	if f.err != nil {
		return models.UploadRecord{}, f.err
	}
	rec := models.UploadRecord{
		ID:               "row-" + in.StorageReceiptID,
		Name:             in.Name,
		Size:             in.Size,
		MimeType:         in.MimeType,
		StorageReceiptID: in.StorageReceiptID,
		Encrypted:        in.Encrypted,
		EncryptionKey:    in.EncryptionKey,
		EncryptionNonce:  in.EncryptionNonce,
		OwnerIdentity:    owner,
		CreatedAt:        time.Now(),
	}
	f.rows = append(f.rows, rec)
	return rec, nil
}

func plain() models.NewUpload {
	return models.NewUpload{Name: "a.txt", Size: 11, MimeType: "text/plain", StorageReceiptID: "rcpt"}
}

func encrypted(t *testing.T) models.NewUpload {
	t.Helper()
	s, err := cryptox.Encrypt([]byte("x"))
	require.NoError(t, err)
	k, n := s.Material()
	in := plain()
	in.Encrypted = true
	in.EncryptionKey = &k
	in.EncryptionNonce = &n
	return in
}

func TestRecord(t *testing.T) {
	idx := &fakeIndex{}
	r := New(idx, logging.Nop())

	rec, err := r.Record(context.Background(), "Owner111", encrypted(t))
	require.NoError(t, err)
	assert.Equal(t, "row-rcpt", rec.ID)
	assert.Equal(t, "Owner111", rec.OwnerIdentity)
	assert.True(t, rec.Encrypted)
	assert.NotNil(t, rec.EncryptionKey)
}

func TestRecord_DoesNotDeduplicate(t *testing.T) {
	idx := &fakeIndex{}
	r := New(idx, logging.Nop())

	_, err := r.Record(context.Background(), "Owner111", plain())
	require.NoError(t, err)
	_, err = r.Record(context.Background(), "Owner111", plain())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.calls)
}

func TestRecord_IndexErrorPassesThrough(t *testing.T) {
	r := New(&fakeIndex{err: common.ErrNetwork}, logging.Nop())
	_, err := r.Record(context.Background(), "Owner111", plain())
	assert.ErrorIs(t, err, common.ErrNetwork)
}

func TestValidate(t *testing.T) {
	bad := "not-a-key"
	tests := []struct {
		name  string
		owner string
		edit  func(*models.NewUpload)
	}{
		{"no owner", "", func(*models.NewUpload) {}},
		{"no name", "o", func(u *models.NewUpload) { u.Name = " " }},
		{"negative size", "o", func(u *models.NewUpload) { u.Size = -1 }},
		{"no mime", "o", func(u *models.NewUpload) { u.MimeType = "" }},
		{"no receipt", "o", func(u *models.NewUpload) { u.StorageReceiptID = "" }},
		{"encrypted without key", "o", func(u *models.NewUpload) { u.Encrypted = true }},
		{"plain with key", "o", func(u *models.NewUpload) { u.EncryptionKey = &bad }},
		{"encrypted with bad key", "o", func(u *models.NewUpload) {
			u.Encrypted = true
			u.EncryptionKey = &bad
			u.EncryptionNonce = &bad
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := plain()
			tt.edit(&in)

			idx := &fakeIndex{}
			_, err := New(idx, logging.Nop()).Record(context.Background(), tt.owner, in)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Zero(t, idx.calls)
		})
	}
}

func TestValidateInput(t *testing.T) {
	require.NoError(t, ValidateInput("o", "a.txt", "text/plain"))

	err := ValidateInput("o", "", " ")
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "mime type is required")

	assert.ErrorIs(t, ValidateInput("", "a.txt", "text/plain"), common.ErrValidation)
}
