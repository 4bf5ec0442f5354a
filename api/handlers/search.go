package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/search"
	"github.com/meghashyamc/corescout/validation"
)

type SearchRequest struct {
	IndexName string `uri:"name" json:"index_name" validate:"valid_index_name"`
	Query     string `form:"query" json:"query" validate:"valid_query"`
	Limit     int    `form:"limit" json:"limit" validate:"min=0"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator) {
	router.GET("/search/:name", handleSearch(service, logger, validator))
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract query parameters"})
			return
		}
		request.IndexName = c.Param("name")
		if request.Limit == 0 {
			request.Limit = service.DefaultLimit()
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		results, err := service.Search(c.Request.Context(), request.IndexName, request.Query, request.Limit)
		if err != nil {
			logger.Warn("search failed", "index", request.IndexName, "err", err.Error())
			writeError(c, err)
			return
		}

		c.Header(HeaderPaginationTotalCount, strconv.Itoa(results.Total))
		writeResponse(c, results, http.StatusOK, nil)
	}
}
