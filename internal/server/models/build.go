package models

import (
	"fmt"
	"time"
)

// Build is one immutable documentation snapshot for a product. The record
// is metadata only; the artifact bytes live in the product's bucket under
// BucketRootDir and never pass through this service.
type Build struct {
	ID              int64
	ProductID       int64
	Slug            string
	GitRefs         []string
	GithubRequester string
	BucketRootDir   string
	DateCreated     time.Time
	Uploaded        bool
	// DateEnded is nil while the build is active and set exactly once
	// when the build is deprecated.
	DateEnded *time.Time
}

// Deprecated reports whether the build has been marked for eventual
// garbage collection.
func (b *Build) Deprecated() bool {
	return b.DateEnded != nil
}

// BucketRootDirFor derives the object-storage prefix for a build of the
// given product. The layout matches what upload clients expect:
// <product slug>/builds/<build slug>.
func BucketRootDirFor(productSlug, buildSlug string) string {
	return fmt.Sprintf("%s/builds/%s", productSlug, buildSlug)
}
