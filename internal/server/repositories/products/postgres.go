// Package products provides the PostgreSQL-backed repository for products.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/models"
)

// PostgresRepository implements product storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {

	query :=
		`INSERT INTO products (slug, title, doc_repo, domain, bucket_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		product.Slug, product.Title, product.DocRepo, product.Domain, product.BucketName).Scan(&product.ID)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product slug %q", common.ErrConflict, product.Slug)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return product, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	query :=
		`SELECT id, slug, title, doc_repo, domain, bucket_name FROM products
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	query :=
		`SELECT id, slug, title, doc_repo, domain, bucket_name FROM products
		 WHERE slug = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, slug))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Product, error) {
	query :=
		`SELECT id, slug, title, doc_repo, domain, bucket_name FROM products
		 ORDER BY id
		 `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select products: %w", err)
	}
	defer rows.Close()

	var result []*models.Product
	for rows.Next() {
		var item models.Product
		if err := rows.Scan(
			&item.ID, &item.Slug, &item.Title, &item.DocRepo, &item.Domain, &item.BucketName,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update writes the mutable fields. Identity fields (slug, domain) are
// deliberately absent from the statement.
func (r *PostgresRepository) Update(ctx context.Context, product *models.Product) error {
	query :=
		`UPDATE products SET title = $2, doc_repo = $3, bucket_name = $4
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query,
		product.ID, product.Title, product.DocRepo, product.BucketName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID, &product.Slug, &product.Title, &product.DocRepo, &product.Domain, &product.BucketName)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return product, nil
}
