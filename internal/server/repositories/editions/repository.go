package editions

import (
	"context"
	"time"

	"github.com/edithub/keeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, edition *models.Edition) (*models.Edition, error)
	GetByID(ctx context.Context, id int64) (*models.Edition, error)
	GetBySlug(ctx context.Context, productID int64, slug string) (*models.Edition, error)
	ListByProduct(ctx context.Context, productID int64) ([]*models.Edition, error)
	Update(ctx context.Context, edition *models.Edition) error

	// ListSweepable returns deprecated editions whose date_ended is older
	// than cutoff.
	ListSweepable(ctx context.Context, cutoff time.Time) ([]*models.Edition, error)

	// Delete removes a deprecated edition past cutoff. It reports whether
	// a row was actually deleted.
	Delete(ctx context.Context, id int64, cutoff time.Time) (bool, error)
}
