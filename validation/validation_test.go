package validation

import (
	"strings"
	"testing"

	"github.com/meghashyamc/corescout/logger"
	"github.com/stretchr/testify/require"
)

type testFile struct {
	Path string `json:"path" validate:"valid_rel_path"`
}

type testRequest struct {
	IndexName       string     `json:"index_name" validate:"required,valid_index_name"`
	Query           string     `form:"query" validate:"valid_query"`
	CoordinateField string     `json:"coordinate_field" validate:"valid_coordinate_field"`
	Limit           int        `json:"limit" validate:"min=0,max=100"`
	Files           []testFile `json:"files" validate:"dive"`
}

var validateTestCases = []struct {
	name          string
	request       testRequest
	expectedError string
}{
	{
		name:    "Valid",
		request: testRequest{IndexName: "reports", Query: "river", CoordinateField: "mgrs", Files: []testFile{{Path: "a/b.txt"}}},
	},
	{
		name:    "Empty query and field",
		request: testRequest{IndexName: "reports"},
	},
	{
		name:          "Missing index name",
		request:       testRequest{},
		expectedError: "missing required field 'index_name'",
	},
	{
		name:          "Bad index name",
		request:       testRequest{IndexName: "Reports-2024"},
		expectedError: "field 'index_name': invalid index name",
	},
	{
		name:          "Query too long",
		request:       testRequest{IndexName: "reports", Query: strings.Repeat("a", maxQueryLength+1)},
		expectedError: "field 'query': invalid query",
	},
	{
		name:          "Unknown coordinate field",
		request:       testRequest{IndexName: "reports", CoordinateField: "latlon"},
		expectedError: "field 'coordinate_field': invalid coordinate field",
	},
	{
		name:          "Limit out of range",
		request:       testRequest{IndexName: "reports", Limit: 101},
		expectedError: "value or length of field 'limit' is not in the expected range",
	},
	{
		name:          "Blank file path",
		request:       testRequest{IndexName: "reports", Files: []testFile{{Path: "ok.txt"}, {Path: "  "}}},
		expectedError: "field 'path': invalid file path",
	},
	{
		name:    "Escaping file path is left to ingestion",
		request: testRequest{IndexName: "reports", Files: []testFile{{Path: "../outside.txt"}}},
	},
}

func TestValidate(t *testing.T) {
	validator, err := New(logger.Discard())
	require.NoError(t, err)

	for _, testCase := range validateTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			err := validator.Validate(testCase.request)
			if testCase.expectedError == "" {
				assert.NoError(err)
				return
			}
			assert.EqualError(err, testCase.expectedError)
		})
	}
}
