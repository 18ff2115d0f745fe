// Package repomanager hands out per-entity repositories bound to either the
// connection pool or a transaction handle, and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/repositories/builds"
	"github.com/edithub/keeper/internal/server/repositories/editions"
	"github.com/edithub/keeper/internal/server/repositories/products"
	"github.com/edithub/keeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Products(db dbx.DBTX) products.Repository
	Builds(db dbx.DBTX) builds.Repository
	Editions(db dbx.DBTX) editions.Repository
}
