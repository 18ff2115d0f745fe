package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDeps collects the handlers and middleware the router wires together.
type RouterDeps struct {
	Auth     *AuthMiddleware
	Products *ProductHandler
	Builds   *BuildHandler
	Editions *EditionHandler
	Token    *TokenHandler
}

// NewRouter assembles the gin engine. Reads are anonymous; every mutating
// route requires a token. Build routes address the product by slug while
// edition routes address it by numeric ID, so both trees share the :product
// parameter name.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	}))

	router.GET("/healthcheck", Healthcheck)

	v1 := router.Group("/v1")
	{
		v1.GET("/token", deps.Token.Issue)

		v1.GET("/products/", deps.Products.List)
		v1.GET("/products/:product", deps.Products.Get)
		v1.GET("/products/:product/builds/", deps.Builds.List)
		v1.GET("/products/:product/editions/", deps.Editions.List)
		v1.GET("/builds/:id", deps.Builds.Get)
		v1.GET("/editions/:id", deps.Editions.Get)

		protected := v1.Group("")
		protected.Use(deps.Auth.RequireToken())
		{
			protected.POST("/products/", deps.Products.Create)
			protected.PUT("/products/:product", deps.Products.Update)

			protected.POST("/products/:product/builds/", deps.Builds.Create)
			protected.POST("/builds/:id/uploaded", deps.Builds.RegisterUpload)
			protected.DELETE("/builds/:id", deps.Builds.Deprecate)

			protected.POST("/products/:product/editions/", deps.Editions.Create)
			protected.PUT("/editions/:id", deps.Editions.Update)
			protected.DELETE("/editions/:id", deps.Editions.Deprecate)
		}
	}

	return router
}
