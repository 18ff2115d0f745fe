// Command sweeper runs a single garbage-collection pass over deprecated
// builds and editions, then exits. Useful as a cron job or manual cleanup
// alongside the server's built-in sweep loop.
package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"

	"github.com/edithub/keeper/internal/logging"
	"github.com/edithub/keeper/internal/server/config"
	"github.com/edithub/keeper/internal/server/repositories/repomanager"
	"github.com/edithub/keeper/internal/server/services"
	"github.com/edithub/keeper/internal/server/storage"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Printf("db init error: %v", err)
		return
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Printf("migration error: %v", err)
		return
	}

	objects, err := storage.NewS3ObjectStore(ctx, cfg)
	if err != nil {
		log.Printf("object store init error: %v", err)
		return
	}

	sweeper := services.NewSweeper(db, rm, objects, logger, cfg)
	deleted := sweeper.RunOnce(ctx)
	logger.Info(ctx, "sweep finished", "deleted", deleted)
}
