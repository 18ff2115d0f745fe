// Package editions provides the PostgreSQL-backed repository for editions.
package editions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/models"
)

// PostgresRepository implements edition storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const editionColumns = `id, product_id, slug, title, published_url, tracked_refs, build_id, date_created, rebuilt_date, date_ended`

func (r *PostgresRepository) Create(ctx context.Context, edition *models.Edition) (*models.Edition, error) {

	refs, err := json.Marshal(edition.TrackedRefs)
	if err != nil {
		return nil, fmt.Errorf("tracked refs encode error: %w", err)
	}

	query :=
		`INSERT INTO editions (product_id, slug, title, published_url, tracked_refs, build_id, date_created, rebuilt_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id
		 `

	err = r.db.QueryRowContext(ctx, query,
		edition.ProductID, edition.Slug, edition.Title, edition.PublishedURL,
		refs, edition.BuildID, edition.DateCreated, edition.RebuiltDate).Scan(&edition.ID)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: edition slug %q", common.ErrConflict, edition.Slug)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return edition, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Edition, error) {
	query := `SELECT ` + editionColumns + ` FROM editions WHERE id = $1`
	return scanEdition(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, productID int64, slug string) (*models.Edition, error) {
	query := `SELECT ` + editionColumns + ` FROM editions WHERE product_id = $1 AND slug = $2`
	return scanEdition(r.db.QueryRowContext(ctx, query, productID, slug))
}

func (r *PostgresRepository) ListByProduct(ctx context.Context, productID int64) ([]*models.Edition, error) {
	query := `SELECT ` + editionColumns + ` FROM editions WHERE product_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to select editions: %w", err)
	}
	defer rows.Close()
	return collectEditions(rows)
}

// Update writes the mutable fields. Slug and date_created are immutable
// and deliberately absent from the statement.
func (r *PostgresRepository) Update(ctx context.Context, edition *models.Edition) error {

	refs, err := json.Marshal(edition.TrackedRefs)
	if err != nil {
		return fmt.Errorf("tracked refs encode error: %w", err)
	}

	query :=
		`UPDATE editions SET title = $2, published_url = $3, tracked_refs = $4,
		        build_id = $5, rebuilt_date = $6, date_ended = $7
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query,
		edition.ID, edition.Title, edition.PublishedURL, refs,
		edition.BuildID, edition.RebuiltDate, edition.DateEnded)
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

func (r *PostgresRepository) ListSweepable(ctx context.Context, cutoff time.Time) ([]*models.Edition, error) {
	query :=
		`SELECT ` + editionColumns + ` FROM editions
		 WHERE date_ended IS NOT NULL AND date_ended < $1
		 ORDER BY id
		 `
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select sweepable editions: %w", err)
	}
	defer rows.Close()
	return collectEditions(rows)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	query :=
		`DELETE FROM editions
		 WHERE id = $1 AND date_ended IS NOT NULL AND date_ended < $2
		 `
	res, err := r.db.ExecContext(ctx, query, id, cutoff)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func scanEdition(row *sql.Row) (*models.Edition, error) {
	edition := &models.Edition{}
	var refs []byte

	err := row.Scan(
		&edition.ID, &edition.ProductID, &edition.Slug, &edition.Title, &edition.PublishedURL,
		&refs, &edition.BuildID, &edition.DateCreated, &edition.RebuiltDate, &edition.DateEnded)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(refs, &edition.TrackedRefs); err != nil {
		return nil, fmt.Errorf("tracked refs decode error: %w", err)
	}

	return edition, nil
}

func collectEditions(rows *sql.Rows) ([]*models.Edition, error) {
	var result []*models.Edition
	for rows.Next() {
		var item models.Edition
		var refs []byte
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.Slug, &item.Title, &item.PublishedURL,
			&refs, &item.BuildID, &item.DateCreated, &item.RebuiltDate, &item.DateEnded,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(refs, &item.TrackedRefs); err != nil {
			return nil, fmt.Errorf("tracked refs decode error: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
