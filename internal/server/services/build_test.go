package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/server/models"
)

func seedProduct(rm *fakeRepoManager) *models.Product {
	return rm.products.add(&models.Product{
		Slug:       "pipelines",
		Title:      "LSST Pipelines",
		Domain:     "pipelines.example.org",
		BucketName: "example-docs",
	})
}

func TestCreateBuild_ExplicitSlug(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	seedProduct(rm)
	s := NewBuildService(db, rm)

	b, err := s.CreateBuild(context.Background(), adminUser(), "pipelines", CreateBuildInput{
		Slug:    "b42",
		GitRefs: []string{"main"},
	})
	if err != nil {
		t.Fatalf("CreateBuild error: %v", err)
	}
	if b.Slug != "b42" || b.Uploaded {
		t.Fatalf("unexpected build: %+v", b)
	}
	if b.BucketRootDir != "pipelines/builds/b42" {
		t.Fatalf("unexpected bucket root dir: %q", b.BucketRootDir)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCreateBuild_AutoSlugSequence(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	seedProduct(rm)
	s := NewBuildService(db, rm)

	first, err := s.CreateBuild(context.Background(), adminUser(), "pipelines", CreateBuildInput{GitRefs: []string{"main"}})
	if err != nil {
		t.Fatalf("first CreateBuild: %v", err)
	}
	second, err := s.CreateBuild(context.Background(), adminUser(), "pipelines", CreateBuildInput{GitRefs: []string{"main"}})
	if err != nil {
		t.Fatalf("second CreateBuild: %v", err)
	}
	if first.Slug != "1" || second.Slug != "2" {
		t.Fatalf("unexpected auto slugs: %q, %q", first.Slug, second.Slug)
	}
}

func TestCreateBuild_AutoSlugRetriesOnConflict(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	// Two losing attempts roll back, the third commits.
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	seedProduct(rm)
	rm.builds.conflictsLeft = 2
	s := NewBuildService(db, rm)

	b, err := s.CreateBuild(context.Background(), adminUser(), "pipelines", CreateBuildInput{GitRefs: []string{"main"}})
	if err != nil {
		t.Fatalf("CreateBuild error: %v", err)
	}
	if b.ID == 0 {
		t.Fatalf("unexpected build: %+v", b)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCreateBuild_AutoSlugExhaustsRetries(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	for i := 0; i < maxAutoSlugAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	rm := newFakeRepoManager()
	seedProduct(rm)
	rm.builds.conflictsLeft = maxAutoSlugAttempts + 1
	s := NewBuildService(db, rm)

	_, err := s.CreateBuild(context.Background(), adminUser(), "pipelines", CreateBuildInput{GitRefs: []string{"main"}})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict after retries, got %v", err)
	}
}

func TestCreateBuild_Unauthorized(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	seedProduct(rm)
	s := NewBuildService(db, rm)

	_, err := s.CreateBuild(context.Background(), powerlessUser(), "pipelines", CreateBuildInput{GitRefs: []string{"main"}})
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("want common.ErrUnauthorized, got %v", err)
	}
	if len(rm.builds.byID) != 0 {
		t.Fatalf("unauthorized create touched the store")
	}
}

func TestCreateBuild_EmptyGitRefs(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	seedProduct(rm)
	s := NewBuildService(db, rm)

	_, err := s.CreateBuild(context.Background(), adminUser(), "pipelines", CreateBuildInput{})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want common.ErrValidation, got %v", err)
	}
}

func TestCreateBuild_UnknownProduct(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	s := NewBuildService(db, newFakeRepoManager())

	_, err := s.CreateBuild(context.Background(), adminUser(), "ghost", CreateBuildInput{Slug: "b1", GitRefs: []string{"main"}})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestRegisterBuildUpload_SetsFlagOnce(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	product := seedProduct(rm)
	build := rm.builds.add(&models.Build{ProductID: product.ID, Slug: "b1", GitRefs: []string{"main"}})
	s := NewBuildService(db, rm)

	got, err := s.RegisterBuildUpload(context.Background(), adminUser(), build.ID)
	if err != nil || !got.Uploaded {
		t.Fatalf("RegisterBuildUpload: got (%+v, %v)", got, err)
	}

	// Retrying the confirmation is a harmless no-op.
	again, err := s.RegisterBuildUpload(context.Background(), adminUser(), build.ID)
	if err != nil || !again.Uploaded {
		t.Fatalf("repeat RegisterBuildUpload: got (%+v, %v)", again, err)
	}
}

func TestRegisterBuildUpload_NotFound(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	s := NewBuildService(db, newFakeRepoManager())

	_, err := s.RegisterBuildUpload(context.Background(), adminUser(), 99)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestDeprecateBuild_IdempotentTimestamp(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	product := seedProduct(rm)
	build := rm.builds.add(&models.Build{ProductID: product.ID, Slug: "b1", GitRefs: []string{"main"}})
	s := NewBuildService(db, rm)

	first, err := s.DeprecateBuild(context.Background(), adminUser(), build.ID)
	if err != nil || first.DateEnded == nil {
		t.Fatalf("DeprecateBuild: got (%+v, %v)", first, err)
	}
	stamp := *first.DateEnded

	time.Sleep(time.Millisecond)
	second, err := s.DeprecateBuild(context.Background(), adminUser(), build.ID)
	if err != nil {
		t.Fatalf("repeat DeprecateBuild: %v", err)
	}
	if !second.DateEnded.Equal(stamp) {
		t.Fatalf("repeat deprecation moved the timestamp: %v vs %v", second.DateEnded, stamp)
	}
}

func TestDeprecateBuild_Unauthorized(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	product := seedProduct(rm)
	build := rm.builds.add(&models.Build{ProductID: product.ID, Slug: "b1"})
	s := NewBuildService(db, rm)

	_, err := s.DeprecateBuild(context.Background(), powerlessUser(), build.ID)
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("want common.ErrUnauthorized, got %v", err)
	}
	if build.DateEnded != nil {
		t.Fatalf("unauthorized deprecation stamped the build")
	}
}

func TestListBuilds_UnknownProduct(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := NewBuildService(db, newFakeRepoManager())

	_, err := s.ListBuilds(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}
