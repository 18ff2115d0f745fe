package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/dbx"
	"github.com/edithub/keeper/internal/server/models"
	buildsrepo "github.com/edithub/keeper/internal/server/repositories/builds"
	editionsrepo "github.com/edithub/keeper/internal/server/repositories/editions"
	productsrepo "github.com/edithub/keeper/internal/server/repositories/products"
	usersrepo "github.com/edithub/keeper/internal/server/repositories/users"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func adminUser() *models.User {
	return &models.User{ID: 1, UserName: "admin", Permissions: models.FullPermissions()}
}

func powerlessUser() *models.User {
	return &models.User{ID: 2, UserName: "reader"}
}

// In-memory fakes backing the lifecycle tests. State survives across calls
// within a test so multi-step flows (create then update then deprecate) can
// assert on the stored rows.

type fakeProductsRepo struct {
	nextID   int64
	bySlug   map[string]*models.Product
	updates  int
	createEr error
}

func newFakeProductsRepo() *fakeProductsRepo {
	return &fakeProductsRepo{bySlug: map[string]*models.Product{}}
}

func (f *fakeProductsRepo) add(p *models.Product) *models.Product {
	f.nextID++
	p.ID = f.nextID
	f.bySlug[p.Slug] = p
	return p
}

func (f *fakeProductsRepo) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if f.createEr != nil {
		return nil, f.createEr
	}
	if _, ok := f.bySlug[p.Slug]; ok {
		return nil, fmt.Errorf("%w: product slug %q", common.ErrConflict, p.Slug)
	}
	return f.add(p), nil
}

func (f *fakeProductsRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	for _, p := range f.bySlug {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeProductsRepo) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if p, ok := f.bySlug[slug]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeProductsRepo) List(ctx context.Context) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range f.bySlug {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductsRepo) Update(ctx context.Context, p *models.Product) error {
	if _, err := f.GetByID(ctx, p.ID); err != nil {
		return err
	}
	f.updates++
	return nil
}

type fakeBuildsRepo struct {
	nextID   int64
	byID     map[int64]*models.Build
	createEr error

	// editions mirrors the foreign key from editions.build_id: any
	// remaining edition row blocks ListSweepable and Delete, exactly as
	// the constraint would in Postgres.
	editions *fakeEditionsRepo

	// conflictsLeft makes the next N Create calls fail with ErrConflict,
	// mimicking concurrent auto-slug races.
	conflictsLeft int
}

func newFakeBuildsRepo(editions *fakeEditionsRepo) *fakeBuildsRepo {
	return &fakeBuildsRepo{byID: map[int64]*models.Build{}, editions: editions}
}

func (f *fakeBuildsRepo) referenced(buildID int64) bool {
	for _, e := range f.editions.byID {
		if e.BuildID == buildID {
			return true
		}
	}
	return false
}

func (f *fakeBuildsRepo) add(b *models.Build) *models.Build {
	f.nextID++
	b.ID = f.nextID
	f.byID[b.ID] = b
	return b
}

func (f *fakeBuildsRepo) Create(ctx context.Context, b *models.Build) (*models.Build, error) {
	if f.createEr != nil {
		return nil, f.createEr
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return nil, fmt.Errorf("%w: build slug %q", common.ErrConflict, b.Slug)
	}
	for _, other := range f.byID {
		if other.ProductID == b.ProductID && other.Slug == b.Slug {
			return nil, fmt.Errorf("%w: build slug %q", common.ErrConflict, b.Slug)
		}
	}
	return f.add(b), nil
}

func (f *fakeBuildsRepo) GetByID(ctx context.Context, id int64) (*models.Build, error) {
	if b, ok := f.byID[id]; ok {
		return b, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeBuildsRepo) GetBySlug(ctx context.Context, productID int64, slug string) (*models.Build, error) {
	for _, b := range f.byID {
		if b.ProductID == productID && b.Slug == slug {
			return b, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeBuildsRepo) ListByProduct(ctx context.Context, productID int64) ([]*models.Build, error) {
	var out []*models.Build
	for _, b := range f.byID {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBuildsRepo) Update(ctx context.Context, b *models.Build) error {
	if _, ok := f.byID[b.ID]; !ok {
		return common.ErrNotFound
	}
	f.byID[b.ID] = b
	return nil
}

func (f *fakeBuildsRepo) NextSlugCandidate(ctx context.Context, productID int64) (int64, error) {
	var max int64
	for _, b := range f.byID {
		if b.ProductID != productID {
			continue
		}
		var n int64
		if _, err := fmt.Sscanf(b.Slug, "%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (f *fakeBuildsRepo) ListSweepable(ctx context.Context, cutoff time.Time) ([]*models.Build, error) {
	var out []*models.Build
	for _, b := range f.byID {
		if b.DateEnded != nil && b.DateEnded.Before(cutoff) && !f.referenced(b.ID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBuildsRepo) Delete(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	b, ok := f.byID[id]
	if !ok || b.DateEnded == nil || !b.DateEnded.Before(cutoff) || f.referenced(b.ID) {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

type fakeEditionsRepo struct {
	nextID   int64
	byID     map[int64]*models.Edition
	createEr error
	deleteEr error
}

func newFakeEditionsRepo() *fakeEditionsRepo {
	return &fakeEditionsRepo{byID: map[int64]*models.Edition{}}
}

func (f *fakeEditionsRepo) add(e *models.Edition) *models.Edition {
	f.nextID++
	e.ID = f.nextID
	f.byID[e.ID] = e
	return e
}

func (f *fakeEditionsRepo) Create(ctx context.Context, e *models.Edition) (*models.Edition, error) {
	if f.createEr != nil {
		return nil, f.createEr
	}
	for _, other := range f.byID {
		if other.ProductID == e.ProductID && other.Slug == e.Slug {
			return nil, fmt.Errorf("%w: edition slug %q", common.ErrConflict, e.Slug)
		}
	}
	return f.add(e), nil
}

func (f *fakeEditionsRepo) GetByID(ctx context.Context, id int64) (*models.Edition, error) {
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeEditionsRepo) GetBySlug(ctx context.Context, productID int64, slug string) (*models.Edition, error) {
	for _, e := range f.byID {
		if e.ProductID == productID && e.Slug == slug {
			return e, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeEditionsRepo) ListByProduct(ctx context.Context, productID int64) ([]*models.Edition, error) {
	var out []*models.Edition
	for _, e := range f.byID {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEditionsRepo) Update(ctx context.Context, e *models.Edition) error {
	if _, ok := f.byID[e.ID]; !ok {
		return common.ErrNotFound
	}
	f.byID[e.ID] = e
	return nil
}

func (f *fakeEditionsRepo) ListSweepable(ctx context.Context, cutoff time.Time) ([]*models.Edition, error) {
	var out []*models.Edition
	for _, e := range f.byID {
		if e.DateEnded != nil && e.DateEnded.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEditionsRepo) Delete(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	if f.deleteEr != nil {
		return false, f.deleteEr
	}
	e, ok := f.byID[id]
	if !ok || e.DateEnded == nil || !e.DateEnded.Before(cutoff) {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

type fakeUsersRepo struct {
	nextID int64
	byName map[string]*models.User

	countErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byName: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if _, ok := f.byName[u.UserName]; ok {
		return nil, fmt.Errorf("%w: username %q", common.ErrConflict, u.UserName)
	}
	f.nextID++
	u.ID = f.nextID
	f.byName[u.UserName] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	if u, ok := f.byName[userName]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) Count(ctx context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.byName)), nil
}

type fakeRepoManager struct {
	products *fakeProductsRepo
	builds   *fakeBuildsRepo
	editions *fakeEditionsRepo
	users    *fakeUsersRepo
}

func newFakeRepoManager() *fakeRepoManager {
	editions := newFakeEditionsRepo()
	return &fakeRepoManager{
		products: newFakeProductsRepo(),
		builds:   newFakeBuildsRepo(editions),
		editions: editions,
		users:    newFakeUsersRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.users }
func (m *fakeRepoManager) Products(db dbx.DBTX) productsrepo.Repository { return m.products }
func (m *fakeRepoManager) Builds(db dbx.DBTX) buildsrepo.Repository     { return m.builds }
func (m *fakeRepoManager) Editions(db dbx.DBTX) editionsrepo.Repository { return m.editions }
