package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/export"
	"github.com/meghashyamc/corescout/validation"
)

const HeaderExportMetadata = "X-Export-Metadata"

type ExportRequest struct {
	IndexName       string `uri:"name" json:"index_name" validate:"valid_index_name"`
	Query           string `form:"query" json:"query" validate:"valid_query"`
	CoordinateField string `form:"coordinate_field" json:"coordinate_field" validate:"valid_coordinate_field"`
	Limit           int    `form:"limit" json:"limit" validate:"min=0"`
}

func SetupExport(router *gin.Engine, logger logger.Logger, service *export.Service, validator *validation.Validator) {
	router.GET("/export/kml/:name", handleExportKML(service, logger, validator))
}

func handleExportKML(service *export.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ExportRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from export request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract query parameters"})
			return
		}
		request.IndexName = c.Param("name")

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate export request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		var buf bytes.Buffer
		metadata, err := service.Export(c.Request.Context(), &buf, export.Request{
			IndexName:       request.IndexName,
			Query:           request.Query,
			CoordinateField: request.CoordinateField,
			Limit:           request.Limit,
		})
		if err != nil {
			logger.Warn("export failed", "index", request.IndexName, "err", err.Error())
			writeError(c, err)
			return
		}

		if encoded, err := json.Marshal(metadata); err == nil {
			c.Header(HeaderExportMetadata, string(encoded))
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.kml"`, request.IndexName))
		c.Data(http.StatusOK, export.MIMEType, buf.Bytes())
	}
}
