package models

// Product is a documentation-producing project. Its slug and serving domain
// are identity fields: immutable once the product is created.
type Product struct {
	ID         int64
	Slug       string
	Title      string
	DocRepo    string
	Domain     string
	BucketName string
}
