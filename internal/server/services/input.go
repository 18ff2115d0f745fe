package services

import (
	"fmt"
	"regexp"

	"github.com/edithub/keeper/internal/common"
)

// Slugs are URL/path-safe identifiers: they end up in bucket prefixes and
// published URLs, so the charset is restricted up front.
var slugRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// CreateProductInput is the fully-populated, typed input for CreateProduct.
// The transport layer is responsible for decoding a request body into this
// struct before the lifecycle engine sees it.
type CreateProductInput struct {
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	DocRepo    string `json:"doc_repo"`
	Domain     string `json:"domain"`
	BucketName string `json:"bucket_name"`
}

func (in *CreateProductInput) Validate() error {
	for field, value := range map[string]string{
		"slug":        in.Slug,
		"title":       in.Title,
		"doc_repo":    in.DocRepo,
		"domain":      in.Domain,
		"bucket_name": in.BucketName,
	} {
		if value == "" {
			return fmt.Errorf("%w: %s is required", common.ErrValidation, field)
		}
	}
	if !slugRE.MatchString(in.Slug) {
		return fmt.Errorf("%w: slug %q is not URL-safe", common.ErrValidation, in.Slug)
	}
	return nil
}

// UpdateProductInput carries the fields of an update request. Pointer
// fields distinguish "absent" from "set to empty". Slug and Domain are
// identity fields: supplying either is rejected rather than silently
// ignored.
type UpdateProductInput struct {
	Slug       *string `json:"slug"`
	Title      *string `json:"title"`
	DocRepo    *string `json:"doc_repo"`
	Domain     *string `json:"domain"`
	BucketName *string `json:"bucket_name"`
}

// CreateBuildInput registers build metadata. Slug is optional: when empty,
// the next free integer token for the product is assigned.
type CreateBuildInput struct {
	Slug            string   `json:"slug"`
	GitRefs         []string `json:"git_refs"`
	GithubRequester string   `json:"github_requester"`
}

func (in *CreateBuildInput) Validate() error {
	if len(in.GitRefs) == 0 {
		return fmt.Errorf("%w: git_refs must be a non-empty list", common.ErrValidation)
	}
	for _, ref := range in.GitRefs {
		if ref == "" {
			return fmt.Errorf("%w: git_refs must not contain empty refs", common.ErrValidation)
		}
	}
	if in.Slug != "" && !slugRE.MatchString(in.Slug) {
		return fmt.Errorf("%w: slug %q is not URL-safe", common.ErrValidation, in.Slug)
	}
	return nil
}

// CreateEditionInput creates a named pointer to an existing build of the
// same product.
type CreateEditionInput struct {
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	PublishedURL string   `json:"published_url"`
	TrackedRefs  []string `json:"tracked_refs"`
	BuildID      int64    `json:"-"`
}

func (in *CreateEditionInput) Validate() error {
	for field, value := range map[string]string{
		"slug":          in.Slug,
		"title":         in.Title,
		"published_url": in.PublishedURL,
	} {
		if value == "" {
			return fmt.Errorf("%w: %s is required", common.ErrValidation, field)
		}
	}
	if !slugRE.MatchString(in.Slug) {
		return fmt.Errorf("%w: slug %q is not URL-safe", common.ErrValidation, in.Slug)
	}
	if in.BuildID == 0 {
		return fmt.Errorf("%w: build reference is required", common.ErrValidation)
	}
	return nil
}

// UpdateEditionInput carries the fields of an edition update. Any subset
// may be supplied; the slug is immutable and rejected when a change is
// attempted.
type UpdateEditionInput struct {
	Slug         *string   `json:"slug"`
	Title        *string   `json:"title"`
	PublishedURL *string   `json:"published_url"`
	TrackedRefs  *[]string `json:"tracked_refs"`
	BuildID      *int64    `json:"-"`
}
