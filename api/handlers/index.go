package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/extract"
	"github.com/meghashyamc/corescout/services/index"
	"github.com/meghashyamc/corescout/services/search"
	"github.com/meghashyamc/corescout/validation"
)

type IndexRequest struct {
	IndexName string        `json:"index_name" validate:"required,valid_index_name"`
	Overwrite bool          `json:"overwrite"`
	Options   *IndexOptions `json:"options"`
	Files     []FileUpload  `json:"files" validate:"dive"`
}

// IndexOptions leaves unset flags at their defaults: text and coordinates are
// extracted, and every file type is processed.
type IndexOptions struct {
	ExtractText        *bool    `json:"extract_text"`
	ExtractCoordinates *bool    `json:"extract_coordinates"`
	FileTypes          []string `json:"file_types"`
}

// FileUpload carries one file; Content is base64 encoded in JSON.
type FileUpload struct {
	Path       string     `json:"path" validate:"valid_rel_path"`
	Content    []byte     `json:"content"`
	ModifiedAt *time.Time `json:"modified_at"`
}

func (r IndexRequest) toIngestRequest() index.Request {
	options := index.DefaultOptions()
	if r.Options != nil {
		if r.Options.ExtractText != nil {
			options.ExtractText = *r.Options.ExtractText
		}
		if r.Options.ExtractCoordinates != nil {
			options.ExtractCoordinates = *r.Options.ExtractCoordinates
		}
		options.FileTypes = r.Options.FileTypes
	}

	files := make([]index.SourceFile, len(r.Files))
	for i, file := range r.Files {
		files[i] = index.SourceFile{Path: file.Path, Content: file.Content}
		if file.ModifiedAt != nil {
			files[i].ModifiedAt = *file.ModifiedAt
		}
	}
	return index.Request{IndexName: r.IndexName, Overwrite: r.Overwrite, Options: options, Files: files}
}

type IndexNameParams struct {
	Name string `uri:"name" json:"name" validate:"valid_index_name"`
}

type RecordParams struct {
	Name string `uri:"name" json:"name" validate:"valid_index_name"`
	ID   int64  `uri:"id" json:"id" validate:"min=1"`
}

func SetupIndex(router *gin.Engine, logger logger.Logger, tracker *index.Tracker, searchService *search.Service, registry *extract.Registry, validator *validation.Validator) {
	router.POST("/indexes", handleCreateIndex(tracker, logger, validator))
	router.GET("/indexes", handleListIndexes(searchService, logger))
	router.GET("/indexes/:name", handleGetIndex(searchService, logger, validator))
	router.GET("/indexes/:name/records/:id", handleGetRecord(searchService, logger, validator))

	router.GET("/runs", handleListRuns(tracker, logger))
	router.GET("/runs/:id", handleGetRun(tracker, logger))
	router.DELETE("/runs/:id", handleCancelRun(tracker, logger))

	router.GET("/supported-formats", handleSupportedFormats(registry))
}

func handleCreateIndex(tracker *index.Tracker, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected parameters from index request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate index request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		status, err := tracker.Start(request.toIngestRequest())
		if err != nil {
			logger.Warn("could not start ingestion run", "index", request.IndexName, "err", err.Error())
			writeError(c, err)
			return
		}

		writeResponse(c, status, http.StatusAccepted, nil)
	}
}

func handleListIndexes(service *search.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		indexes, err := service.ListIndexes(c.Request.Context())
		if err != nil {
			logger.Error("could not list indexes", "err", err.Error())
			writeError(c, err)
			return
		}
		writeResponse(c, indexes, http.StatusOK, nil)
	}
}

func handleGetIndex(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := IndexNameParams{Name: c.Param("name")}
		if err := validator.Validate(params); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		info, err := service.GetIndex(c.Request.Context(), params.Name)
		if err != nil {
			logger.Warn("could not get index", "index", params.Name, "err", err.Error())
			writeError(c, err)
			return
		}
		writeResponse(c, info, http.StatusOK, nil)
	}
}

func handleGetRecord(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"record id must be an integer"})
			return
		}
		params := RecordParams{Name: c.Param("name"), ID: id}
		if err := validator.Validate(params); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		record, err := service.GetRecord(c.Request.Context(), params.Name, params.ID)
		if err != nil {
			logger.Warn("could not get record", "index", params.Name, "id", params.ID, "err", err.Error())
			writeError(c, err)
			return
		}
		writeResponse(c, record, http.StatusOK, nil)
	}
}

func handleListRuns(tracker *index.Tracker, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := tracker.List()
		if err != nil {
			logger.Error("could not list ingestion runs", "err", err.Error())
			writeError(c, err)
			return
		}
		writeResponse(c, runs, http.StatusOK, nil)
	}
}

func handleGetRun(tracker *index.Tracker, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := tracker.Status(c.Param("id"))
		if err != nil {
			logger.Warn("could not get ingestion run", "run_id", c.Param("id"), "err", err.Error())
			writeError(c, err)
			return
		}
		writeResponse(c, status, http.StatusOK, nil)
	}
}

func handleCancelRun(tracker *index.Tracker, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := tracker.Cancel(c.Param("id")); err != nil {
			logger.Warn("could not cancel ingestion run", "run_id", c.Param("id"), "err", err.Error())
			writeError(c, err)
			return
		}
		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleSupportedFormats(registry *extract.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeResponse(c, registry.SupportedFormats(), http.StatusOK, nil)
	}
}
