// Package httpapi is the HTTP transport adapter: it maps routes onto
// lifecycle operations one-to-one, resolves the calling principal before
// an operation runs, and owns the wire representation of entities and
// errors. No business rules live here.
package httpapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edithub/keeper/internal/common"
)

// URLBuilder renders canonical resource URLs from the configured public
// base URL. List endpoints return these URLs instead of embedded entities.
type URLBuilder struct {
	base string
}

func NewURLBuilder(baseURL string) *URLBuilder {
	return &URLBuilder{base: strings.TrimRight(baseURL, "/")}
}

func (b *URLBuilder) Product(id int64) string {
	return fmt.Sprintf("%s/v1/products/%d", b.base, id)
}

func (b *URLBuilder) Build(id int64) string {
	return fmt.Sprintf("%s/v1/builds/%d", b.base, id)
}

func (b *URLBuilder) Edition(id int64) string {
	return fmt.Sprintf("%s/v1/editions/%d", b.base, id)
}

// pathID parses a numeric path parameter. A non-numeric value means the
// URL names no existing resource, so it maps to not-found, matching how
// typed route converters behave.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", common.ErrNotFound, name, c.Param(name))
	}
	return id, nil
}

// ParseResourceID extracts the numeric ID from a canonical resource URL
// (or accepts a bare numeric ID, which some clients send).
func ParseResourceID(raw string) (int64, error) {
	trimmed := strings.TrimRight(raw, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed resource URL %q", common.ErrValidation, raw)
	}
	return id, nil
}
