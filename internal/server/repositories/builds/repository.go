package builds

import (
	"context"
	"time"

	"github.com/edithub/keeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, build *models.Build) (*models.Build, error)
	GetByID(ctx context.Context, id int64) (*models.Build, error)
	GetBySlug(ctx context.Context, productID int64, slug string) (*models.Build, error)
	ListByProduct(ctx context.Context, productID int64) ([]*models.Build, error)
	Update(ctx context.Context, build *models.Build) error

	// NextSlugCandidate returns the next integer token not yet used as an
	// auto-assigned slug for the product. The value is only a candidate:
	// Create may still fail with a conflict under concurrency, in which
	// case the caller retries with a fresh candidate.
	NextSlugCandidate(ctx context.Context, productID int64) (int64, error)

	// ListSweepable returns deprecated builds whose date_ended is older
	// than cutoff and that no edition row references. Deprecated editions
	// count as references until they are swept themselves: the foreign
	// key from editions would reject the delete.
	ListSweepable(ctx context.Context, cutoff time.Time) ([]*models.Build, error)

	// Delete removes a deprecated build, re-checking inside the statement
	// that the build is still past cutoff and unreferenced by any
	// edition. It reports whether a row was actually deleted.
	Delete(ctx context.Context, id int64, cutoff time.Time) (bool, error)
}
