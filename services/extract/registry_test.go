package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

var classifyTestCases = []struct {
	name             string
	filename         string
	expectedFileType FileType
	expectSupported  bool
}{
	{name: "Text file", filename: "notes/report.txt", expectedFileType: "txt", expectSupported: true},
	{name: "Upper case extension", filename: "REPORT.PDF", expectedFileType: "pdf", expectSupported: true},
	{name: "Markdown alias", filename: "README.md", expectedFileType: "markdown", expectSupported: true},
	{name: "YAML alias", filename: "config.yml", expectedFileType: "yaml", expectSupported: true},
	{name: "Html variant", filename: "index.htm", expectedFileType: "html", expectSupported: true},
	{name: "Zipped KML", filename: "track.kmz", expectedFileType: "kmz", expectSupported: true},
	{name: "Image is unsupported", filename: "image.png", expectedFileType: "png", expectSupported: false},
	{name: "No extension", filename: "Makefile", expectedFileType: FileTypeUnknown, expectSupported: false},
}

func TestClassify(t *testing.T) {
	registry := Default()
	for _, testCase := range classifyTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			fileType, err := registry.Classify(testCase.filename)
			assert.Equal(testCase.expectedFileType, fileType)
			if testCase.expectSupported {
				assert.NoError(err)
				return
			}
			assert.ErrorIs(err, ErrUnsupported)
		})
	}
}

func TestRegisterAddsStrategy(t *testing.T) {
	assert := require.New(t)
	registry := NewRegistry()

	_, err := registry.Classify("data.geo")
	assert.ErrorIs(err, ErrUnsupported)

	registry.Register(".GEO", "geo", ExtractorFunc(func(_ context.Context, content []byte) (string, error) {
		return "geo:" + string(content), nil
	}), "custom geo text")

	fileType, err := registry.Classify("data.geo")
	assert.NoError(err)
	assert.Equal(FileType("geo"), fileType)

	text, err := registry.Extract(context.Background(), fileType, []byte("abc"))
	assert.NoError(err)
	assert.Equal("geo:abc", text)

	formats := registry.SupportedFormats()
	assert.Equal([]Format{{Extension: "geo", FileType: "geo", Description: "custom geo text"}}, formats)
}

func TestExtractUnknownFileType(t *testing.T) {
	assert := require.New(t)
	_, err := Default().Extract(context.Background(), "png", []byte{0x89})
	assert.ErrorIs(err, ErrUnsupported)
}

func TestExtractHonoursCancelledContext(t *testing.T) {
	assert := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Default().Extract(ctx, "txt", []byte("hello"))
	assert.ErrorIs(err, context.Canceled)
}

func TestSupportedFormatsSorted(t *testing.T) {
	assert := require.New(t)
	formats := Default().SupportedFormats()
	assert.NotEmpty(formats)
	for i := 1; i < len(formats); i++ {
		assert.Less(formats[i-1].Extension, formats[i].Extension)
	}
}
