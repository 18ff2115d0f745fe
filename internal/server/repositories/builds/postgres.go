// Package builds provides the PostgreSQL-backed repository for build
// records, including the queries the garbage-collection sweep relies on.
package builds

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

// PostgresRepository implements build storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const buildColumns = `id, product_id, slug, git_refs, github_requester, bucket_root_dir, date_created, uploaded, date_ended`

func (r *PostgresRepository) Create(ctx context.Context, build *models.Build) (*models.Build, error) {

	refs, err := json.Marshal(build.GitRefs)
	if err != nil {
		return nil, fmt.Errorf("git refs encode error: %w", err)
	}

	query :=
		`INSERT INTO builds (product_id, slug, git_refs, github_requester, bucket_root_dir, date_created, uploaded)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id
		 `

	err = r.db.QueryRowContext(ctx, query,
		build.ProductID, build.Slug, refs, nullString(build.GithubRequester),
		build.BucketRootDir, build.DateCreated, build.Uploaded).Scan(&build.ID)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: build slug %q", common.ErrConflict, build.Slug)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return build, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE id = $1`
	return scanBuild(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, productID int64, slug string) (*models.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE product_id = $1 AND slug = $2`
	return scanBuild(r.db.QueryRowContext(ctx, query, productID, slug))
}

func (r *PostgresRepository) ListByProduct(ctx context.Context, productID int64) ([]*models.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE product_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to select builds: %w", err)
	}
	defer rows.Close()
	return collectBuilds(rows)
}

// Update writes the mutable fields. Slug, refs, and creation metadata are
// immutable and deliberately absent from the statement.
func (r *PostgresRepository) Update(ctx context.Context, build *models.Build) error {
	query :=
		`UPDATE builds SET uploaded = $2, date_ended = $3
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, build.ID, build.Uploaded, build.DateEnded)
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

func (r *PostgresRepository) NextSlugCandidate(ctx context.Context, productID int64) (int64, error) {
	query :=
		`SELECT COALESCE(MAX(slug::BIGINT), 0) + 1 FROM builds
		 WHERE product_id = $1 AND slug ~ '^[0-9]+$'
		 `
	var next int64
	if err := r.db.QueryRowContext(ctx, query, productID).Scan(&next); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return next, nil
}

func (r *PostgresRepository) ListSweepable(ctx context.Context, cutoff time.Time) ([]*models.Build, error) {
	// Any remaining edition row blocks the sweep, deprecated or not:
	// editions.build_id is a plain foreign key, so deleting a referenced
	// build would fail. The build becomes eligible on the pass after its
	// last referencing edition is swept.
	query :=
		`SELECT ` + buildColumns + ` FROM builds b
		 WHERE b.date_ended IS NOT NULL AND b.date_ended < $1
		   AND NOT EXISTS (
		       SELECT 1 FROM editions e
		       WHERE e.build_id = b.id
		   )
		 ORDER BY b.id
		 `
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select sweepable builds: %w", err)
	}
	defer rows.Close()
	return collectBuilds(rows)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	// The eligibility conditions are re-stated here so an edition created
	// or re-pointed at this build between selection and deletion turns the
	// delete into a no-op instead of a foreign-key violation.
	query :=
		`DELETE FROM builds b
		 WHERE b.id = $1 AND b.date_ended IS NOT NULL AND b.date_ended < $2
		   AND NOT EXISTS (
		       SELECT 1 FROM editions e
		       WHERE e.build_id = b.id
		   )
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

func scanBuild(row *sql.Row) (*models.Build, error) {
	build := &models.Build{}
	var refs []byte
	var requester sql.NullString

	err := row.Scan(
		&build.ID, &build.ProductID, &build.Slug, &refs, &requester,
		&build.BucketRootDir, &build.DateCreated, &build.Uploaded, &build.DateEnded)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(refs, &build.GitRefs); err != nil {
		return nil, fmt.Errorf("git refs decode error: %w", err)
	}
	build.GithubRequester = requester.String

	return build, nil
}

func collectBuilds(rows *sql.Rows) ([]*models.Build, error) {
	var result []*models.Build
	for rows.Next() {
		var item models.Build
		var refs []byte
		var requester sql.NullString
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.Slug, &refs, &requester,
			&item.BucketRootDir, &item.DateCreated, &item.Uploaded, &item.DateEnded,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(refs, &item.GitRefs); err != nil {
			return nil, fmt.Errorf("git refs decode error: %w", err)
		}
		item.GithubRequester = requester.String
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
