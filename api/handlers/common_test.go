// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/corescout/config"
	"github.com/meghashyamc/corescout/db/kvdb"
	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/export"
	"github.com/meghashyamc/corescout/services/extract"
	"github.com/meghashyamc/corescout/services/index"
	"github.com/meghashyamc/corescout/services/search"
	"github.com/meghashyamc/corescout/validation"
	"github.com/stretchr/testify/require"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

var testFiles = map[string]string{
	"report.txt":             "Observation post at 38SMB4484, patrol saw the river.",
	"image.png":              "\x89PNG\r\n\x1a\n",
	"subdir/notes.md":        "# Notes\n\nNothing about the river here.",
	"subdir/nested/page.htm": "<html><body><p>Grid 4QFJ1234567890</p></body></html>",
}

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedSources  []string
}

type testServer struct {
	router  *gin.Engine
	tracker *index.Tracker
	store   *searchdb.SQLiteDB
}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	cfg, err := config.Load("test")
	assert.NoError(err, "could not load config")
	tempDir := t.TempDir()
	cfg.Set("storage.staging_path", filepath.Join(tempDir, "staging"))

	testLogger := logger.Discard()

	store, err := searchdb.Open(testLogger, filepath.Join(tempDir, "corescout.db"))
	assert.NoError(err, "could not create search database")

	kvDB, err := kvdb.New(testLogger, filepath.Join(tempDir, "runs.bolt"))
	assert.NoError(err, "could not create kv database")

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	searchService, err := search.New(testLogger, cfg, store)
	assert.NoError(err, "could not create search service")

	registry := extract.Default()
	tracker := index.NewTracker(context.Background(), testLogger, index.New(testLogger, cfg, index.NewBuilder(testLogger, store), registry), kvDB)
	exportService := export.New(testLogger, cfg, searchService.WithMaxLimit(cfg.GetMaxExportLimit()))

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupIndex(router, testLogger, tracker, searchService, registry, validator)
	SetupSearch(router, testLogger, searchService, validator)
	SetupExport(router, testLogger, exportService, validator)

	t.Cleanup(func() {
		tracker.Wait()
		assert.NoError(store.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{router: router, tracker: tracker, store: store}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		values := url.Values{}
		for key, value := range queryParams {
			values.Set(key, value)
		}
		endpoint = endpoint + "?" + values.Encode()
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

// uploadedFiles turns testFiles into the JSON shape of an index request.
func uploadedFiles() []map[string]any {
	files := make([]map[string]any, 0, len(testFiles))
	for path, content := range testFiles {
		files = append(files, map[string]any{"path": path, "content": []byte(content)})
	}
	return files
}

// createTestIndex ingests testFiles into name and waits for the run to finish.
func createTestIndex(server *testServer, assert *require.Assertions, name string) index.RunStatus {
	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/indexes", defaultTestRequestHeaders,
		map[string]any{"index_name": name, "files": uploadedFiles()}, nil)
	assert.Equal(http.StatusAccepted, w.Code, w.Body.String())

	started := decodeData[index.RunStatus](assert, w.Body.Bytes())
	return waitForRun(server, assert, started.RunID)
}

func waitForRun(server *testServer, assert *require.Assertions, runID string) index.RunStatus {
	var status index.RunStatus
	assert.Eventually(func() bool {
		w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/runs/"+runID, nil, nil, nil)
		if w.Code != http.StatusOK {
			return false
		}
		status = decodeData[index.RunStatus](assert, w.Body.Bytes())
		return status.State != index.RunStateRunning
	}, 10*time.Second, 20*time.Millisecond, "timed out waiting for run %s", runID)
	return status
}

func decodeData[T any](assert *require.Assertions, body []byte) T {
	var decoded struct {
		Data   T        `json:"data"`
		Errors []string `json:"errors"`
	}
	assert.NoError(json.Unmarshal(body, &decoded), "could not unmarshal response %s", string(body))
	return decoded.Data
}
