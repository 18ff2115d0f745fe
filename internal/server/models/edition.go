package models

import "time"

// Edition is a named, mutable pointer from a product to one of its builds,
// published at a stable URL. Re-pointing the edition at a different build
// bumps RebuiltDate; other edits leave it untouched.
type Edition struct {
	ID           int64
	ProductID    int64
	Slug         string
	Title        string
	PublishedURL string
	TrackedRefs  []string
	BuildID      int64
	DateCreated  time.Time
	RebuiltDate  time.Time
	DateEnded    *time.Time
}

// Deprecated reports whether the edition has been marked for eventual
// garbage collection.
func (e *Edition) Deprecated() bool {
	return e.DateEnded != nil
}
