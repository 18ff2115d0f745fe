package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/edithub/keeper/internal/logging"
	"github.com/edithub/keeper/internal/server/config"
	"github.com/edithub/keeper/internal/server/repositories/repomanager"
	"github.com/edithub/keeper/internal/server/storage"
)

// Sweeper performs the deferred garbage collection of deprecated entities.
// Deprecation only stamps date_ended; nothing is deleted on a request
// path. The sweep runs out-of-band, deletes what is safely past the
// retention threshold, and treats every entity independently: a failure
// logs, skips, and leaves the entity for the next pass.
type Sweeper struct {
	db        *sql.DB
	rm        repomanager.RepositoryManager
	objects   storage.ObjectStore
	logger    logging.Logger
	retention time.Duration
	interval  time.Duration
}

// NewSweeper constructs a Sweeper over the shared pool and object store.
func NewSweeper(db *sql.DB, rm repomanager.RepositoryManager, objects storage.ObjectStore, logger logging.Logger, cfg *config.Config) *Sweeper {
	return &Sweeper{
		db:        db,
		rm:        rm,
		objects:   objects,
		logger:    logger.With("component", "sweeper"),
		retention: cfg.RetentionThreshold,
		interval:  cfg.SweepInterval,
	}
}

// Run executes sweep passes on the configured interval until ctx is
// cancelled. Pass failures never propagate: the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep pass: editions first (they have no
// dependents), then builds. Returns the number of deleted entities.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted := 0
	deleted += s.sweepEditions(ctx, cutoff)
	deleted += s.sweepBuilds(ctx, cutoff)
	s.logger.Info(ctx, "sweep pass finished", "deleted", deleted)
	return deleted
}

func (s *Sweeper) sweepEditions(ctx context.Context, cutoff time.Time) int {
	repo := s.rm.Editions(s.db)

	candidates, err := repo.ListSweepable(ctx, cutoff)
	if err != nil {
		s.logger.Error(ctx, "listing sweepable editions failed", "error", err)
		return 0
	}

	deleted := 0
	for _, edition := range candidates {
		ok, err := repo.Delete(ctx, edition.ID, cutoff)
		if err != nil {
			s.logger.Error(ctx, "edition sweep failed", "edition_id", edition.ID, "error", err)
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted
}

func (s *Sweeper) sweepBuilds(ctx context.Context, cutoff time.Time) int {
	buildRepo := s.rm.Builds(s.db)
	productRepo := s.rm.Products(s.db)

	candidates, err := buildRepo.ListSweepable(ctx, cutoff)
	if err != nil {
		s.logger.Error(ctx, "listing sweepable builds failed", "error", err)
		return 0
	}

	deleted := 0
	for _, build := range candidates {
		product, err := productRepo.GetByID(ctx, build.ProductID)
		if err != nil {
			s.logger.Error(ctx, "build sweep failed to resolve product", "build_id", build.ID, "error", err)
			continue
		}

		// The object store is cleared before the row goes away, and
		// outside any transaction: a failure here leaves the record in
		// place so the next pass retries the whole deletion.
		if err := s.objects.DeletePrefix(ctx, product.BucketName, build.BucketRootDir); err != nil {
			s.logger.Error(ctx, "build sweep failed to clear bucket prefix",
				"build_id", build.ID, "bucket", product.BucketName, "prefix", build.BucketRootDir, "error", err)
			continue
		}

		// Delete re-checks eligibility in the statement, so an edition
		// created or re-pointed at this build since the listing makes
		// this a no-op instead of a foreign-key violation.
		ok, err := buildRepo.Delete(ctx, build.ID, cutoff)
		if err != nil {
			s.logger.Error(ctx, "build sweep failed", "build_id", build.ID, "error", err)
			continue
		}
		if ok {
			deleted++
		} else {
			s.logger.Info(ctx, "build sweep skipped: no longer eligible", "build_id", build.ID)
		}
	}
	return deleted
}
