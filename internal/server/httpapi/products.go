package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edithub/keeper/internal/server/services"
)

// ProductHandler serves the product routes.
type ProductHandler struct {
	products *services.ProductService
	urls     *URLBuilder
}

func NewProductHandler(products *services.ProductService, urls *URLBuilder) *ProductHandler {
	return &ProductHandler{products: products, urls: urls}
}

// List handles GET /v1/products/ (anonymous access allowed). The response
// is a list of canonical product URLs, not embedded entities.
func (h *ProductHandler) List(c *gin.Context) {
	items, err := h.products.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	urls := make([]string, 0, len(items))
	for _, p := range items {
		urls = append(urls, h.urls.Product(p.ID))
	}
	c.JSON(http.StatusOK, gin.H{"products": urls})
}

// Get handles GET /v1/products/:product (anonymous access allowed).
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := pathID(c, "product")
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductView(product, h.urls))
}

// Create handles POST /v1/products/ (token required).
func (h *ProductHandler) Create(c *gin.Context) {
	var in services.CreateProductInput
	if err := decodeJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), principal(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", h.urls.Product(product.ID))
	c.JSON(http.StatusCreated, newProductView(product, h.urls))
}

// Update handles PUT /v1/products/:product (token required).
func (h *ProductHandler) Update(c *gin.Context) {
	id, err := pathID(c, "product")
	if err != nil {
		respondError(c, err)
		return
	}

	var in services.UpdateProductInput
	if err := decodeJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), principal(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductView(product, h.urls))
}
