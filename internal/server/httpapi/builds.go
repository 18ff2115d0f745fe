package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edithub/keeper/internal/server/services"
)

// BuildHandler serves the build routes. Build collections hang off the
// product slug; individual builds are addressed by ID.
type BuildHandler struct {
	builds   *services.BuildService
	products *services.ProductService
	urls     *URLBuilder
}

func NewBuildHandler(builds *services.BuildService, products *services.ProductService, urls *URLBuilder) *BuildHandler {
	return &BuildHandler{builds: builds, products: products, urls: urls}
}

// Create handles POST /v1/products/:product/builds/ (token required).
// Only the metadata record is created; the client uploads the artifact
// itself and then confirms with RegisterUpload.
func (h *BuildHandler) Create(c *gin.Context) {
	productSlug := c.Param("product")

	var in services.CreateBuildInput
	if err := decodeJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	build, err := h.builds.CreateBuild(c.Request.Context(), principal(c), productSlug, in)
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), build.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", h.urls.Build(build.ID))
	c.JSON(http.StatusCreated, newBuildView(build, product, h.urls))
}

// List handles GET /v1/products/:product/builds/ (anonymous access allowed).
func (h *BuildHandler) List(c *gin.Context) {
	items, err := h.builds.ListBuilds(c.Request.Context(), c.Param("product"))
	if err != nil {
		respondError(c, err)
		return
	}

	urls := make([]string, 0, len(items))
	for _, b := range items {
		urls = append(urls, h.urls.Build(b.ID))
	}
	c.JSON(http.StatusOK, gin.H{"builds": urls})
}

// Get handles GET /v1/builds/:id (anonymous access allowed).
func (h *BuildHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	build, err := h.builds.GetBuild(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), build.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBuildView(build, product, h.urls))
}

// RegisterUpload handles POST /v1/builds/:id/uploaded (token required).
func (h *BuildHandler) RegisterUpload(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	build, err := h.builds.RegisterBuildUpload(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", h.urls.Build(build.ID))
	c.JSON(http.StatusOK, gin.H{})
}

// Deprecate handles DELETE /v1/builds/:id (token required). The build is
// only stamped; physical removal is the sweeper's job.
func (h *BuildHandler) Deprecate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.builds.DeprecateBuild(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
