// Package services contains the lifecycle engine: one method per
// externally visible operation. Every mutating method checks the caller's
// capability before touching state and then runs all of its reads and
// writes inside a single transaction, so a violated invariant aborts the
// whole operation with no partial effect.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/models"
	"github.com/edithub/keeper/internal/server/repositories/repomanager"
)

// ProductService implements product lifecycle operations.
type ProductService struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

// NewProductService constructs a ProductService over the shared pool.
func NewProductService(db *sql.DB, rm repomanager.RepositoryManager) *ProductService {
	return &ProductService{db: db, rm: rm}
}

// CreateProduct registers a new documentation product. Requires the
// AdminProduct capability. Slug uniqueness is backstopped by the storage
// constraint, so concurrent creators racing for the same slug yield one
// success and one conflict.
func (s *ProductService) CreateProduct(ctx context.Context, principal *models.User, in CreateProductInput) (*models.Product, error) {
	if !principal.Can(models.AdminProduct) {
		return nil, fmt.Errorf("%w: product administration required", common.ErrUnauthorized)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		Slug:       in.Slug,
		Title:      in.Title,
		DocRepo:    in.DocRepo,
		Domain:     in.Domain,
		BucketName: in.BucketName,
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.rm.Products(tx).Create(ctx, product)
		return err
	}); err != nil {
		return nil, err
	}

	return product, nil
}

// UpdateProduct applies the allowed mutable fields. Attempts to change the
// slug or serving domain fail with a validation error.
func (s *ProductService) UpdateProduct(ctx context.Context, principal *models.User, productID int64, in UpdateProductInput) (*models.Product, error) {
	if !principal.Can(models.AdminProduct) {
		return nil, fmt.Errorf("%w: product administration required", common.ErrUnauthorized)
	}

	var product *models.Product
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Products(tx)

		var err error
		product, err = repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}

		if in.Slug != nil && *in.Slug != product.Slug {
			return fmt.Errorf("%w: slug is immutable", common.ErrValidation)
		}
		if in.Domain != nil && *in.Domain != product.Domain {
			return fmt.Errorf("%w: domain is immutable", common.ErrValidation)
		}

		if in.Title != nil {
			if *in.Title == "" {
				return fmt.Errorf("%w: title must not be empty", common.ErrValidation)
			}
			product.Title = *in.Title
		}
		if in.DocRepo != nil {
			if *in.DocRepo == "" {
				return fmt.Errorf("%w: doc_repo must not be empty", common.ErrValidation)
			}
			product.DocRepo = *in.DocRepo
		}
		if in.BucketName != nil {
			if *in.BucketName == "" {
				return fmt.Errorf("%w: bucket_name must not be empty", common.ErrValidation)
			}
			product.BucketName = *in.BucketName
		}

		return repo.Update(ctx, product)
	}); err != nil {
		return nil, err
	}

	return product, nil
}

// GetProduct returns a single product by ID.
func (s *ProductService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	return s.rm.Products(s.db).GetByID(ctx, productID)
}

// GetProductBySlug returns a single product by slug.
func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.rm.Products(s.db).GetBySlug(ctx, slug)
}

// ListProducts returns all products ordered by ID.
func (s *ProductService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.rm.Products(s.db).List(ctx)
}
