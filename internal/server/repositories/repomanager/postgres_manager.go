package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/migrations"
	"github.com/edithub/keeper/internal/server/repositories/builds"
	"github.com/edithub/keeper/internal/server/repositories/editions"
	"github.com/edithub/keeper/internal/server/repositories/products"
	"github.com/edithub/keeper/internal/server/repositories/users"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Products(db dbx.DBTX) products.Repository {
	return products.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Builds(db dbx.DBTX) builds.Repository {
	return builds.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Editions(db dbx.DBTX) editions.Repository {
	return editions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
