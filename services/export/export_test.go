package export

import (
	"bytes"
	"context"
	"encoding/xml"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/meghashyamc/corescout/config"
	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/search"
	"github.com/stretchr/testify/require"
)

type kmlDocument struct {
	XMLName  xml.Name `xml:"kml"`
	Document struct {
		Name       string `xml:"name"`
		Placemarks []struct {
			Name        string `xml:"name"`
			Description string `xml:"description"`
			Coordinates string `xml:"Point>coordinates"`
		} `xml:"Placemark"`
	} `xml:"Document"`
}

func decode(t *testing.T, data []byte) kmlDocument {
	t.Helper()
	var doc kmlDocument
	require.NoError(t, xml.Unmarshal(data, &doc))
	return doc
}

func lonLat(t *testing.T, coordinates string) (float64, float64) {
	t.Helper()
	parts := strings.Split(strings.TrimSpace(coordinates), ",")
	require.GreaterOrEqual(t, len(parts), 2)
	lon, err := strconv.ParseFloat(parts[0], 64)
	require.NoError(t, err)
	lat, err := strconv.ParseFloat(parts[1], 64)
	require.NoError(t, err)
	return lon, lat
}

func ptr[T any](v T) *T {
	return &v
}

func TestEncode(t *testing.T) {
	assert := require.New(t)
	results := []search.Result{
		{
			SourcePath:        "field/report.txt",
			Snippet:           "post at <mark>38SMB4484</mark> & river",
			Latitude:          ptr(33.286),
			Longitude:         ptr(44.40),
			RawCoordinateText: ptr("38SMB4484"),
		},
		{SourcePath: "notes.txt", Snippet: "no position"},
	}

	var buf bytes.Buffer
	stats, err := Encode(&buf, "reports", results, FieldCoordinates)
	assert.NoError(err)
	assert.Equal(Stats{Placemarks: 1, Skipped: 1}, stats)

	doc := decode(t, buf.Bytes())
	assert.Equal("reports", doc.Document.Name)
	assert.Len(doc.Document.Placemarks, 1)

	placemark := doc.Document.Placemarks[0]
	assert.Equal("report.txt", placemark.Name)
	assert.Equal("post at &lt;mark&gt;38SMB4484&lt;/mark&gt; &amp; river", placemark.Description)
	lon, lat := lonLat(t, placemark.Coordinates)
	assert.InDelta(44.40, lon, 1e-9, "longitude comes first")
	assert.InDelta(33.286, lat, 1e-9)
}

func TestEncodeFromRawCoordinateText(t *testing.T) {
	assert := require.New(t)
	results := []search.Result{
		{SourcePath: "a.txt", RawCoordinateText: ptr("4QFJ1234567890")},
		{SourcePath: "b.txt", RawCoordinateText: ptr("not a grid")},
		{SourcePath: "c.txt", Latitude: ptr(1.0), Longitude: ptr(2.0)},
	}

	for _, field := range []CoordinateField{FieldMGRS, FieldRawCoordinateText} {
		var buf bytes.Buffer
		stats, err := Encode(&buf, "reports", results, field)
		assert.NoError(err)
		assert.Equal(Stats{Placemarks: 1, Skipped: 2}, stats)

		doc := decode(t, buf.Bytes())
		lon, lat := lonLat(t, doc.Document.Placemarks[0].Coordinates)
		assert.InDelta(21.4097, lat, 0.001)
		assert.InDelta(-157.9161, lon, 0.001)
	}
}

func TestEncodeEmptyIsValidDocument(t *testing.T) {
	assert := require.New(t)

	var buf bytes.Buffer
	stats, err := Encode(&buf, "empty", nil, FieldCoordinates)
	assert.NoError(err)
	assert.Zero(stats.Placemarks)
	assert.NotEmpty(buf.Bytes())

	doc := decode(t, buf.Bytes())
	assert.Equal("empty", doc.Document.Name)
	assert.Empty(doc.Document.Placemarks)
}

var coordinateFieldTestCases = []struct {
	name          string
	input         string
	expectedField CoordinateField
	expectErr     bool
}{
	{name: "Default", input: "", expectedField: FieldCoordinates},
	{name: "Coordinates", input: "coordinates", expectedField: FieldCoordinates},
	{name: "MGRS", input: "mgrs", expectedField: FieldMGRS},
	{name: "Raw coordinate text", input: "raw_coordinate_text", expectedField: FieldRawCoordinateText},
	{name: "Unknown", input: "MGRS_FIELD", expectErr: true},
}

func TestParseCoordinateField(t *testing.T) {
	for _, testCase := range coordinateFieldTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			field, err := ParseCoordinateField(testCase.input)
			if testCase.expectErr {
				assert.ErrorIs(err, errs.ErrInvalidArgument)
				return
			}
			assert.NoError(err)
			assert.Equal(testCase.expectedField, field)
		})
	}
}

func TestExportReportScenario(t *testing.T) {
	assert := require.New(t)
	cfg, err := config.Load("test")
	assert.NoError(err)

	store, err := searchdb.Open(logger.Discard(), filepath.Join(t.TempDir(), "corescout.db"))
	assert.NoError(err)
	defer store.Close()

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.ReplaceIndex(context.Background(), "reports", false, []searchdb.Record{
		{SourcePath: "image.png", FileType: "png", ModifiedAt: now, ProcessedAt: now},
		{
			SourcePath: "report.txt", FileType: "txt", ExtractedText: "Observation post at 38SMB4484",
			Latitude: ptr(33.286), Longitude: ptr(44.40), RawCoordinateText: ptr("38SMB4484"),
			ModifiedAt: now, ProcessedAt: now,
		},
	}, 1)
	assert.NoError(err)

	searcher, err := search.New(logger.Discard(), cfg, store)
	assert.NoError(err)
	service := New(logger.Discard(), cfg, searcher.WithMaxLimit(cfg.GetMaxExportLimit()))

	var buf bytes.Buffer
	metadata, err := service.Export(context.Background(), &buf, Request{IndexName: "reports", Query: `"report"`})
	assert.NoError(err)
	assert.Equal(1, metadata.Exported)
	assert.Equal(1, metadata.TotalMatches)
	assert.Len(decode(t, buf.Bytes()).Document.Placemarks, 1)

	buf.Reset()
	metadata, err = service.Export(context.Background(), &buf, Request{IndexName: "reports", Query: "*"})
	assert.NoError(err)
	assert.Equal(Metadata{IndexName: "reports", Query: "*", CoordinateField: FieldCoordinates, TotalMatches: 2, Exported: 1, Skipped: 1}, metadata)

	buf.Reset()
	_, err = service.Export(context.Background(), &buf, Request{IndexName: "reports", CoordinateField: "lat"})
	assert.ErrorIs(err, errs.ErrInvalidArgument)
	assert.Zero(buf.Len())

	_, err = service.Export(context.Background(), &buf, Request{IndexName: "missing"})
	assert.ErrorIs(err, errs.ErrIndexNotFound)
	assert.Zero(buf.Len())
}
