package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/models"
	"github.com/edithub/keeper/internal/server/repositories/repomanager"
)

// EditionService implements edition lifecycle operations.
type EditionService struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

// NewEditionService constructs an EditionService over the shared pool.
func NewEditionService(db *sql.DB, rm repomanager.RepositoryManager) *EditionService {
	return &EditionService{db: db, rm: rm}
}

// resolveBuild loads the referenced build and verifies it belongs to the
// product. A dangling or cross-product reference is a validation failure:
// the client named a build that cannot serve this edition.
func (s *EditionService) resolveBuild(ctx context.Context, tx dbx.DBTX, productID, buildID int64) (*models.Build, error) {
	build, err := s.rm.Builds(tx).GetByID(ctx, buildID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: build %d does not exist", common.ErrValidation, buildID)
		}
		return nil, err
	}
	if build.ProductID != productID {
		return nil, fmt.Errorf("%w: build %d belongs to a different product", common.ErrValidation, buildID)
	}
	return build, nil
}

// CreateEdition publishes a named pointer to an existing build of the
// product. Requires the AdminEdition capability.
func (s *EditionService) CreateEdition(ctx context.Context, principal *models.User, productID int64, in CreateEditionInput) (*models.Edition, error) {
	if !principal.Can(models.AdminEdition) {
		return nil, fmt.Errorf("%w: edition administration required", common.ErrUnauthorized)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var edition *models.Edition
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		product, err := s.rm.Products(tx).GetByID(ctx, productID)
		if err != nil {
			return err
		}

		if _, err := s.resolveBuild(ctx, tx, product.ID, in.BuildID); err != nil {
			return err
		}

		now := time.Now().UTC()
		edition = &models.Edition{
			ProductID:    product.ID,
			Slug:         in.Slug,
			Title:        in.Title,
			PublishedURL: in.PublishedURL,
			TrackedRefs:  in.TrackedRefs,
			BuildID:      in.BuildID,
			DateCreated:  now,
			RebuiltDate:  now,
		}
		_, err = s.rm.Editions(tx).Create(ctx, edition)
		return err
	}); err != nil {
		return nil, err
	}

	return edition, nil
}

// UpdateEdition applies any subset of the mutable fields. Re-pointing the
// edition at a different build bumps rebuilt_date; pointing it at the
// build it already serves leaves rebuilt_date untouched.
func (s *EditionService) UpdateEdition(ctx context.Context, principal *models.User, editionID int64, in UpdateEditionInput) (*models.Edition, error) {
	if !principal.Can(models.AdminEdition) {
		return nil, fmt.Errorf("%w: edition administration required", common.ErrUnauthorized)
	}

	var edition *models.Edition
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Editions(tx)

		var err error
		edition, err = repo.GetByID(ctx, editionID)
		if err != nil {
			return err
		}

		if in.Slug != nil && *in.Slug != edition.Slug {
			return fmt.Errorf("%w: slug is immutable", common.ErrValidation)
		}

		if in.Title != nil {
			if *in.Title == "" {
				return fmt.Errorf("%w: title must not be empty", common.ErrValidation)
			}
			edition.Title = *in.Title
		}
		if in.PublishedURL != nil {
			if *in.PublishedURL == "" {
				return fmt.Errorf("%w: published_url must not be empty", common.ErrValidation)
			}
			edition.PublishedURL = *in.PublishedURL
		}
		if in.TrackedRefs != nil {
			edition.TrackedRefs = *in.TrackedRefs
		}

		if in.BuildID != nil && *in.BuildID != edition.BuildID {
			if _, err := s.resolveBuild(ctx, tx, edition.ProductID, *in.BuildID); err != nil {
				return err
			}
			edition.BuildID = *in.BuildID
			edition.RebuiltDate = time.Now().UTC()
		}

		return repo.Update(ctx, edition)
	}); err != nil {
		return nil, err
	}

	return edition, nil
}

// DeprecateEdition stamps the edition's date_ended, making it a candidate
// for the deferred sweep. Requires the AdminEdition capability. Idempotent.
func (s *EditionService) DeprecateEdition(ctx context.Context, principal *models.User, editionID int64) (*models.Edition, error) {
	if !principal.Can(models.AdminEdition) {
		return nil, fmt.Errorf("%w: edition administration required", common.ErrUnauthorized)
	}

	var edition *models.Edition
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Editions(tx)

		var err error
		edition, err = repo.GetByID(ctx, editionID)
		if err != nil {
			return err
		}
		if edition.DateEnded != nil {
			return nil
		}
		now := time.Now().UTC()
		edition.DateEnded = &now
		return repo.Update(ctx, edition)
	}); err != nil {
		return nil, err
	}

	return edition, nil
}

// GetEdition returns a single edition by ID.
func (s *EditionService) GetEdition(ctx context.Context, editionID int64) (*models.Edition, error) {
	return s.rm.Editions(s.db).GetByID(ctx, editionID)
}

// ListEditions returns all editions of the given product.
func (s *EditionService) ListEditions(ctx context.Context, productID int64) ([]*models.Edition, error) {
	if _, err := s.rm.Products(s.db).GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.rm.Editions(s.db).ListByProduct(ctx, productID)
}
