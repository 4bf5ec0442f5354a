package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/services/extract"
	"github.com/meghashyamc/corescout/services/index"
	"github.com/stretchr/testify/require"
)

var createIndexHandlerTestCases = []testCase{
	{
		name:           "NoRequestBody",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    nil,
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "MissingIndexName",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"files": []map[string]any{}},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "InvalidIndexName",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"index_name": "Field Reports"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "BlankFilePath",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"index_name": "reports", "files": []map[string]any{{"path": " ", "content": []byte("x")}}},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "Success",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"index_name": "reports", "files": uploadedFiles()},
		expectedStatus: http.StatusAccepted,
	},
	{
		name:           "EmptyFileSet",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"index_name": "empty"},
		expectedStatus: http.StatusAccepted,
	},
}

func TestHandleCreateIndex(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	for _, testCase := range createIndexHandlerTestCases {

		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/indexes", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			responseBytes := w.Body.Bytes()
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", string(responseBytes)))

			if testCase.expectedStatus == http.StatusAccepted {
				started := decodeData[index.RunStatus](assert, responseBytes)
				assert.NotEmpty(started.RunID)
				final := waitForRun(server, assert, started.RunID)
				assert.Equal(index.RunStateCompleted, final.State, final.Error)
			}
		})
	}

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/indexes/reports", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code)
	info := decodeData[searchdb.IndexInfo](assert, w.Body.Bytes())
	assert.Equal(len(testFiles), info.RecordCount)
	assert.Equal(2, info.GeoCount)
	assert.Equal(1, info.WarningCount)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/indexes", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code)
	assert.Len(decodeData[[]searchdb.IndexInfo](assert, w.Body.Bytes()), 2)
}

func TestHandleCreateIndexConflicts(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	final := createTestIndex(server, assert, "reports")
	assert.Equal(index.RunStateCompleted, final.State)
	assert.Equal(len(testFiles), final.Summary.RecordCount)
	assert.Equal(errs.WarningUnsupportedFileType, final.Summary.Warnings[0].Kind)

	body := map[string]any{"index_name": "reports", "files": uploadedFiles()}
	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/indexes", defaultTestRequestHeaders, body, nil)
	assert.Equal(http.StatusConflict, w.Code, w.Body.String())

	body["overwrite"] = true
	body["options"] = map[string]any{"extract_coordinates": false, "file_types": []string{"txt"}}
	w = makeTestHTTPRequest(server.router, assert, http.MethodPost, "/indexes", defaultTestRequestHeaders, body, nil)
	assert.Equal(http.StatusAccepted, w.Code, w.Body.String())
	final = waitForRun(server, assert, decodeData[index.RunStatus](assert, w.Body.Bytes()).RunID)
	assert.Equal(1, final.Summary.RecordCount)
	assert.Equal(0, final.Summary.GeoCount)
}

func TestHandleRuns(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	final := createTestIndex(server, assert, "reports")

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/runs", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code)
	runs := decodeData[[]index.RunStatus](assert, w.Body.Bytes())
	assert.Len(runs, 1)
	assert.Equal(final.RunID, runs[0].RunID)
	assert.Equal(len(testFiles), runs[0].Progress.Processed)

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/runs/"+final.RunID, nil, nil, nil)
	assert.Equal(http.StatusConflict, w.Code, "a finished run cannot be cancelled")

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/runs/unknown", nil, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code)

	w = makeTestHTTPRequest(server.router, assert, http.MethodDelete, "/runs/unknown", nil, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code)
}

var getRecordHandlerTestCases = []struct {
	name           string
	endpoint       string
	expectedStatus int
	expectedSource string
}{
	{name: "FirstRecord", endpoint: "/indexes/reports/records/1", expectedStatus: http.StatusOK, expectedSource: "image.png"},
	{name: "LastRecord", endpoint: "/indexes/reports/records/4", expectedStatus: http.StatusOK, expectedSource: "subdir/notes.md"},
	{name: "UnknownRecord", endpoint: "/indexes/reports/records/99", expectedStatus: http.StatusNotFound},
	{name: "NonNumericID", endpoint: "/indexes/reports/records/abc", expectedStatus: http.StatusUnprocessableEntity},
	{name: "ZeroID", endpoint: "/indexes/reports/records/0", expectedStatus: http.StatusNotAcceptable},
	{name: "UnknownIndex", endpoint: "/indexes/missing/records/1", expectedStatus: http.StatusNotFound},
	{name: "InvalidIndexName", endpoint: "/indexes/Bad-Name/records/1", expectedStatus: http.StatusNotAcceptable},
}

func TestHandleGetRecord(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	createTestIndex(server, assert, "reports")

	for _, testCase := range getRecordHandlerTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, testCase.endpoint, nil, nil, nil)
			assert.Equal(testCase.expectedStatus, w.Code, w.Body.String())
			if testCase.expectedSource != "" {
				record := decodeData[searchdb.Record](assert, w.Body.Bytes())
				assert.Equal(testCase.expectedSource, record.SourcePath)
			}
		})
	}
}

func TestHandleSupportedFormats(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/supported-formats", nil, nil, nil)
	assert.Equal(http.StatusOK, w.Code)

	formats := decodeData[[]extract.Format](assert, w.Body.Bytes())
	assert.Equal(extract.Default().SupportedFormats(), formats)
}
