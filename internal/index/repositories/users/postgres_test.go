package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestUpsert_ReturnsRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*wallet\).*ON\s+CONFLICT\s*\(wallet\).*RETURNING\s+id,\s*wallet,\s*created_at`
	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "Wallet1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet", "created_at"}).AddRow("u-1", "Wallet1", now))

	u, err := repo.Upsert(context.Background(), "Wallet1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "Wallet1", u.Wallet)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Upsert(context.Background(), "Wallet1")
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetByWallet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+id,\s*wallet,\s*created_at\s+FROM\s+users\s+WHERE\s+wallet\s*=\s*\$1`
	mock.ExpectQuery(q).WithArgs("Wallet1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet", "created_at"}).AddRow("u-1", "Wallet1", time.Now()))
	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByWallet(context.Background(), "Wallet1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	_, err = repo.GetByWallet(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
