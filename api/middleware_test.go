package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/api/handlers"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(allowedOrigins []string, maxBodyBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := newRouter(allowedOrigins, maxBodyBytes)
	router.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		c.String(http.StatusOK, string(body))
	})
	router.GET("/search/:name", func(c *gin.Context) {
		c.Header(handlers.HeaderPaginationTotalCount, "1")
		c.Status(http.StatusOK)
	})
	return router
}

func TestMaxBodySize(t *testing.T) {
	type testCase struct {
		name           string
		body           string
		expectedStatus int
	}

	testCases := []testCase{
		{name: "body within limit", body: "0123456789", expectedStatus: http.StatusOK},
		{name: "body over limit", body: strings.Repeat("x", 11), expectedStatus: http.StatusRequestEntityTooLarge},
	}

	router := setupTestRouter([]string{"*"}, 10)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(tc.expectedStatus, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	type testCase struct {
		name           string
		allowedOrigins []string
		origin         string
		expectedOrigin string
		expectedStatus int
	}

	testCases := []testCase{
		{name: "any origin allowed", allowedOrigins: []string{"*"}, origin: "http://maps.example", expectedOrigin: "*", expectedStatus: http.StatusOK},
		{name: "listed origin allowed", allowedOrigins: []string{"http://maps.example"}, origin: "http://maps.example", expectedOrigin: "http://maps.example", expectedStatus: http.StatusOK},
		{name: "unlisted origin rejected", allowedOrigins: []string{"http://maps.example"}, origin: "http://other.example", expectedStatus: http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			router := setupTestRouter(tc.allowedOrigins, 0)
			req := httptest.NewRequest(http.MethodGet, "/search/field_reports", nil)
			req.Header.Set("Origin", tc.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(tc.expectedStatus, w.Code)
			if tc.expectedStatus != http.StatusOK {
				return
			}
			assert.Equal(tc.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(w.Header().Get("Access-Control-Expose-Headers"), handlers.HeaderPaginationTotalCount)
		})
	}
}
