package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/services/index"
)

const HeaderPaginationTotalCount = "X-Pagination-Total-Count"

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data interface{}, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	response := response{
		Data:   data,
		Errors: errors,
	}

	c.JSON(statusCode, response)
}

// writeError answers with the status that matches err: 4xx when the caller's
// input was at fault, 500 otherwise.
func writeError(c *gin.Context, err error) {
	c.Abort()
	writeResponse(c, nil, statusFor(err), []string{err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrIndexNotFound),
		errors.Is(err, errs.ErrRecordNotFound),
		errors.Is(err, index.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrIndexBusy),
		errors.Is(err, errs.ErrIndexAlreadyExists),
		errors.Is(err, index.ErrRunNotActive):
		return http.StatusConflict
	case errs.IsInvalidInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
