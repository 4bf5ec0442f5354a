package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/api/handlers"
	"github.com/meghashyamc/corescout/db/searchdb"
)

func (s *server) setupRoutes(router *gin.Engine) {
	router.GET("/health", health(s.searchdb))

	handlers.SetupIndex(router, s.logger, s.tracker, s.search, s.registry, s.validator)
	handlers.SetupSearch(router, s.logger, s.search, s.validator)
	handlers.SetupExport(router, s.logger, s.export, s.validator)
}

func health(db searchdb.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "store unavailable")
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

func newRouter(allowedOrigins []string, maxBodyBytes int64) *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(corsMiddleware(allowedOrigins))
	router.Use(gin.Recovery())
	router.Use(maxBodySizeMiddleware(maxBodyBytes))

	return router
}
