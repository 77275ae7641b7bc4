package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/modules/content/page"
	"github.com/pagecraft/core/internal/modules/content/reader"
	"github.com/pagecraft/core/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "pagecraft-core",
		"version": "1.0.0",
	}

	// Public read surface
	root := r.Group("")
	reader.NewHandler(a.provider).RegisterRoutes(root)

	// Versioned admin API
	api := r.Group("/api/v1")
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	pageSvc := page.NewService(a.provider, a.logger)
	page.NewHandler(pageSvc).RegisterRoutes(api)
}
