package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/models"
	"github.com/edithub/keeper/internal/server/repositories/repomanager"
)

// Auto-slug assignment attempts per create. Each attempt re-derives the
// candidate inside a fresh transaction, so losing a race simply means the
// next attempt sees the winner's slug.
const maxAutoSlugAttempts = 5

// BuildService implements build lifecycle operations.
type BuildService struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

// NewBuildService constructs a BuildService over the shared pool.
func NewBuildService(db *sql.DB, rm repomanager.RepositoryManager) *BuildService {
	return &BuildService{db: db, rm: rm}
}

// CreateBuild registers metadata for a new build of the product identified
// by productSlug. Requires the UploadBuild capability. No artifact bytes
// move through this service: the record describes where the client must
// upload, and RegisterBuildUpload later confirms it did.
func (s *BuildService) CreateBuild(ctx context.Context, principal *models.User, productSlug string, in CreateBuildInput) (*models.Build, error) {
	if !principal.Can(models.UploadBuild) {
		return nil, fmt.Errorf("%w: build upload capability required", common.ErrUnauthorized)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if in.Slug != "" {
		return s.createWithSlug(ctx, productSlug, in, in.Slug, false)
	}

	// Auto-assigned slug: insert with the derived next candidate and rely
	// on the uniqueness constraint, retrying on conflict, rather than
	// trusting a read-then-write.
	var lastErr error
	for attempt := 0; attempt < maxAutoSlugAttempts; attempt++ {
		build, err := s.createWithSlug(ctx, productSlug, in, "", true)
		if err == nil {
			return build, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("auto slug assignment exhausted retries: %w", lastErr)
}

func (s *BuildService) createWithSlug(ctx context.Context, productSlug string, in CreateBuildInput, slug string, auto bool) (*models.Build, error) {
	var build *models.Build
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		product, err := s.rm.Products(tx).GetBySlug(ctx, productSlug)
		if err != nil {
			return err
		}

		buildSlug := slug
		if auto {
			next, err := s.rm.Builds(tx).NextSlugCandidate(ctx, product.ID)
			if err != nil {
				return err
			}
			buildSlug = formatAutoSlug(next)
		}

		build = &models.Build{
			ProductID:       product.ID,
			Slug:            buildSlug,
			GitRefs:         in.GitRefs,
			GithubRequester: in.GithubRequester,
			BucketRootDir:   models.BucketRootDirFor(product.Slug, buildSlug),
			DateCreated:     time.Now().UTC(),
			Uploaded:        false,
		}
		_, err = s.rm.Builds(tx).Create(ctx, build)
		return err
	}); err != nil {
		return nil, err
	}
	return build, nil
}

// RegisterBuildUpload marks the build's artifact as uploaded. Requires the
// UploadBuild capability. The transition happens once; repeated calls are
// accepted no-ops so client retries are harmless.
func (s *BuildService) RegisterBuildUpload(ctx context.Context, principal *models.User, buildID int64) (*models.Build, error) {
	if !principal.Can(models.UploadBuild) {
		return nil, fmt.Errorf("%w: build upload capability required", common.ErrUnauthorized)
	}

	var build *models.Build
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Builds(tx)

		var err error
		build, err = repo.GetByID(ctx, buildID)
		if err != nil {
			return err
		}
		if build.Uploaded {
			return nil
		}
		build.Uploaded = true
		return repo.Update(ctx, build)
	}); err != nil {
		return nil, err
	}

	return build, nil
}

// DeprecateBuild stamps the build's date_ended, making it a candidate for
// the deferred sweep. Requires the DeprecateBuild capability. Deprecating
// an already-deprecated build is a no-op; the original timestamp stands.
func (s *BuildService) DeprecateBuild(ctx context.Context, principal *models.User, buildID int64) (*models.Build, error) {
	if !principal.Can(models.DeprecateBuild) {
		return nil, fmt.Errorf("%w: build deprecation capability required", common.ErrUnauthorized)
	}

	var build *models.Build
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Builds(tx)

		var err error
		build, err = repo.GetByID(ctx, buildID)
		if err != nil {
			return err
		}
		if build.DateEnded != nil {
			return nil
		}
		now := time.Now().UTC()
		build.DateEnded = &now
		return repo.Update(ctx, build)
	}); err != nil {
		return nil, err
	}

	return build, nil
}

// GetBuild returns a single build by ID.
func (s *BuildService) GetBuild(ctx context.Context, buildID int64) (*models.Build, error) {
	return s.rm.Builds(s.db).GetByID(ctx, buildID)
}

// ListBuilds returns all builds of the product identified by productSlug.
func (s *BuildService) ListBuilds(ctx context.Context, productSlug string) ([]*models.Build, error) {
	product, err := s.rm.Products(s.db).GetBySlug(ctx, productSlug)
	if err != nil {
		return nil, err
	}
	return s.rm.Builds(s.db).ListByProduct(ctx, product.ID)
}

func formatAutoSlug(n int64) string {
	return strconv.FormatInt(n, 10)
}
