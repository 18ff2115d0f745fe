// Package server initializes and runs the edition keeper server.
// It opens the database, applies migrations, creates the bootstrap admin,
// starts the HTTP API and the background sweep loop, and handles graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edithub/keeper/internal/logging"
	"github.com/edithub/keeper/internal/server/config"
	"github.com/edithub/keeper/internal/server/httpapi"
	"github.com/edithub/keeper/internal/server/repositories/repomanager"
	"github.com/edithub/keeper/internal/server/services"
	"github.com/edithub/keeper/internal/server/storage"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	server  *http.Server
	sweeper *services.Sweeper
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us := services.NewUserService(db, rm, cfg)
	if err := us.Bootstrap(ctx, cfg.BootstrapUser, cfg.BootstrapPassword); err != nil {
		return nil, fmt.Errorf("bootstrap error: %w", err)
	}

	ps := services.NewProductService(db, rm)
	bs := services.NewBuildService(db, rm)
	es := services.NewEditionService(db, rm)

	objects, err := storage.NewS3ObjectStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}
	sweeper := services.NewSweeper(db, rm, objects, logger, cfg)

	urls := httpapi.NewURLBuilder(cfg.BaseURL)
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Auth:     httpapi.NewAuthMiddleware(us),
		Products: httpapi.NewProductHandler(ps, urls),
		Builds:   httpapi.NewBuildHandler(bs, ps, urls),
		Editions: httpapi.NewEditionHandler(es, urls),
		Token:    httpapi.NewTokenHandler(us),
	})

	srv := &http.Server{
		Addr:    cfg.EndpointAddr,
		Handler: router,
	}

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		server:  srv,
		sweeper: sweeper,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddr)
	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
