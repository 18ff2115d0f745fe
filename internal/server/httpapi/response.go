package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/server/models"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// respondError translates a lifecycle-engine error into its wire form.
// The engine's errors arrive untyped beyond the sentinel they wrap; the
// adapter alone decides status codes.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, common.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, common.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "unauthorized"
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	if status == http.StatusInternalServerError {
		// Internal detail stays out of responses.
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

// decodeJSON decodes a request body into dst, rejecting unknown fields so
// a typo'd or forbidden key is an explicit validation failure instead of a
// silent no-op.
func decodeJSON(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

type productView struct {
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	DocRepo    string `json:"doc_repo"`
	Domain     string `json:"domain"`
	BucketName string `json:"bucket_name"`
	SelfURL    string `json:"self_url"`
}

func newProductView(p *models.Product, urls *URLBuilder) productView {
	return productView{
		Slug:       p.Slug,
		Title:      p.Title,
		DocRepo:    p.DocRepo,
		Domain:     p.Domain,
		BucketName: p.BucketName,
		SelfURL:    urls.Product(p.ID),
	}
}

type buildView struct {
	Slug            string     `json:"slug"`
	GitRefs         []string   `json:"git_refs"`
	GithubRequester *string    `json:"github_requester"`
	BucketName      string     `json:"bucket_name"`
	BucketRootDir   string     `json:"bucket_root_dir"`
	DateCreated     time.Time  `json:"date_created"`
	DateEnded       *time.Time `json:"date_ended"`
	Uploaded        bool       `json:"uploaded"`
	ProductURL      string     `json:"product_url"`
	SelfURL         string     `json:"self_url"`
}

func newBuildView(b *models.Build, product *models.Product, urls *URLBuilder) buildView {
	var requester *string
	if b.GithubRequester != "" {
		requester = &b.GithubRequester
	}
	return buildView{
		Slug:            b.Slug,
		GitRefs:         b.GitRefs,
		GithubRequester: requester,
		BucketName:      product.BucketName,
		BucketRootDir:   b.BucketRootDir,
		DateCreated:     b.DateCreated,
		DateEnded:       b.DateEnded,
		Uploaded:        b.Uploaded,
		ProductURL:      urls.Product(product.ID),
		SelfURL:         urls.Build(b.ID),
	}
}

type editionView struct {
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	BuildURL     string     `json:"build_url"`
	PublishedURL string     `json:"published_url"`
	TrackedRefs  []string   `json:"tracked_refs"`
	DateCreated  time.Time  `json:"date_created"`
	DateEnded    *time.Time `json:"date_ended"`
	RebuiltDate  time.Time  `json:"rebuilt_date"`
	ProductURL   string     `json:"product_url"`
	SelfURL      string     `json:"self_url"`
}

func newEditionView(e *models.Edition, urls *URLBuilder) editionView {
	return editionView{
		Slug:         e.Slug,
		Title:        e.Title,
		BuildURL:     urls.Build(e.BuildID),
		PublishedURL: e.PublishedURL,
		TrackedRefs:  e.TrackedRefs,
		DateCreated:  e.DateCreated,
		DateEnded:    e.DateEnded,
		RebuiltDate:  e.RebuiltDate,
		ProductURL:   urls.Product(e.ProductID),
		SelfURL:      urls.Edition(e.ID),
	}
}
