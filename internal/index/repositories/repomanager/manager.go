// Package repomanager vends repositories bound to a database handle, so that
// services can run several of them inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/helix/internal/dbx"
	"github.com/dmitrijs2005/helix/internal/index/repositories/files"
	"github.com/dmitrijs2005/helix/internal/index/repositories/shares"
	"github.com/dmitrijs2005/helix/internal/index/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Shares(db dbx.DBTX) shares.Repository
}
