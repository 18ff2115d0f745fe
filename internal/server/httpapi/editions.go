package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edithub/keeper/internal/server/services"
)

// EditionHandler serves the edition routes.
type EditionHandler struct {
	editions *services.EditionService
	urls     *URLBuilder
}

func NewEditionHandler(editions *services.EditionService, urls *URLBuilder) *EditionHandler {
	return &EditionHandler{editions: editions, urls: urls}
}

type createEditionRequest struct {
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	PublishedURL string   `json:"published_url"`
	TrackedRefs  []string `json:"tracked_refs"`
	BuildURL     string   `json:"build_url"`
}

type updateEditionRequest struct {
	Slug         *string   `json:"slug"`
	Title        *string   `json:"title"`
	PublishedURL *string   `json:"published_url"`
	TrackedRefs  *[]string `json:"tracked_refs"`
	BuildURL     *string   `json:"build_url"`
}

// Create handles POST /v1/products/:product/editions/ (token required).
func (h *EditionHandler) Create(c *gin.Context) {
	productID, err := pathID(c, "product")
	if err != nil {
		respondError(c, err)
		return
	}

	var req createEditionRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	in := services.CreateEditionInput{
		Slug:         req.Slug,
		Title:        req.Title,
		PublishedURL: req.PublishedURL,
		TrackedRefs:  req.TrackedRefs,
	}
	if req.BuildURL != "" {
		if in.BuildID, err = ParseResourceID(req.BuildURL); err != nil {
			respondError(c, err)
			return
		}
	}

	edition, err := h.editions.CreateEdition(c.Request.Context(), principal(c), productID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", h.urls.Edition(edition.ID))
	c.JSON(http.StatusCreated, newEditionView(edition, h.urls))
}

// List handles GET /v1/products/:product/editions/ (anonymous access allowed).
func (h *EditionHandler) List(c *gin.Context) {
	productID, err := pathID(c, "product")
	if err != nil {
		respondError(c, err)
		return
	}

	items, err := h.editions.ListEditions(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	urls := make([]string, 0, len(items))
	for _, e := range items {
		urls = append(urls, h.urls.Edition(e.ID))
	}
	c.JSON(http.StatusOK, gin.H{"editions": urls})
}

// Get handles GET /v1/editions/:id (anonymous access allowed).
func (h *EditionHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	edition, err := h.editions.GetEdition(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEditionView(edition, h.urls))
}

// Update handles PUT /v1/editions/:id (token required).
func (h *EditionHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateEditionRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	in := services.UpdateEditionInput{
		Slug:         req.Slug,
		Title:        req.Title,
		PublishedURL: req.PublishedURL,
		TrackedRefs:  req.TrackedRefs,
	}
	if req.BuildURL != nil {
		buildID, err := ParseResourceID(*req.BuildURL)
		if err != nil {
			respondError(c, err)
			return
		}
		in.BuildID = &buildID
	}

	edition, err := h.editions.UpdateEdition(c.Request.Context(), principal(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEditionView(edition, h.urls))
}

// Deprecate handles DELETE /v1/editions/:id (token required). Answers 202:
// the edition is stamped now and garbage-collected later.
func (h *EditionHandler) Deprecate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.editions.DeprecateEdition(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{})
}
