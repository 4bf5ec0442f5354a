// Package extract maps file extensions to text extraction strategies.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var ErrUnsupported = errors.New("unsupported file type")

// FileType is the classified extension tag stored with every record.
type FileType string

const FileTypeUnknown FileType = "unknown"

// Extractor turns the raw bytes of one file into plain text.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (string, error)
}

type ExtractorFunc func(ctx context.Context, content []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, content []byte) (string, error) {
	return f(ctx, content)
}

type UnsupportedError struct {
	Filename string
	FileType FileType
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("file %q has unsupported type %q", e.Filename, e.FileType)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Format describes one registered extension.
type Format struct {
	Extension   string   `json:"extension"`
	FileType    FileType `json:"file_type"`
	Description string   `json:"description"`
}

type registration struct {
	fileType    FileType
	extractor   Extractor
	description string
}

// Registry is safe for concurrent use. New strategies are added with Register;
// the ingestion pipeline only ever calls Classify and Extract.
type Registry struct {
	mu          sync.RWMutex
	byExtension map[string]registration
	byFileType  map[FileType]Extractor
}

func NewRegistry() *Registry {
	return &Registry{
		byExtension: make(map[string]registration),
		byFileType:  make(map[FileType]Extractor),
	}
}

// Default returns a registry with every built-in strategy registered.
func Default() *Registry {
	r := NewRegistry()

	plain := ExtractorFunc(extractPlainText)
	for _, ext := range []string{"txt", "csv", "log", "json", "xml"} {
		r.Register(ext, FileType(ext), plain, "plain text")
	}
	r.Register("md", "markdown", plain, "markdown text")
	r.Register("yaml", "yaml", plain, "YAML text")
	r.Register("yml", "yaml", plain, "YAML text")

	htmlExtractor := ExtractorFunc(extractHTML)
	r.Register("html", "html", htmlExtractor, "HTML document")
	r.Register("htm", "html", htmlExtractor, "HTML document")

	r.Register("docx", "docx", ExtractorFunc(extractDOCX), "Word document")
	r.Register("xlsx", "xlsx", ExtractorFunc(extractXLSX), "Excel workbook")
	r.Register("pptx", "pptx", ExtractorFunc(extractPPTX), "PowerPoint presentation")
	r.Register("pdf", "pdf", ExtractorFunc(extractPDF), "PDF document")
	r.Register("kml", "kml", ExtractorFunc(extractKML), "KML overlay")
	r.Register("kmz", "kmz", ExtractorFunc(extractKMZ), "zipped KML overlay")

	legacy := ExtractorFunc(extractLegacyBinary)
	r.Register("doc", "doc", legacy, "legacy Word document")
	r.Register("xls", "xls", legacy, "legacy Excel workbook")
	r.Register("ppt", "ppt", legacy, "legacy PowerPoint presentation")

	return r
}

// Register binds ext (with or without the leading dot, case-insensitive) to a
// file type and its extractor, replacing any earlier registration.
func (r *Registry) Register(ext string, fileType FileType, extractor Extractor, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext = normalizeExtension(ext)
	r.byExtension[ext] = registration{fileType: fileType, extractor: extractor, description: description}
	r.byFileType[fileType] = extractor
}

// Classify returns the file type registered for filename's extension. For
// unregistered extensions it returns the raw extension tag together with an
// *UnsupportedError, so callers can still record the file.
func (r *Registry) Classify(filename string) (FileType, error) {
	tag := TagOf(filename)

	r.mu.RLock()
	reg, ok := r.byExtension[string(tag)]
	r.mu.RUnlock()

	if !ok {
		return tag, &UnsupportedError{Filename: filename, FileType: tag}
	}
	return reg.fileType, nil
}

func (r *Registry) Extract(ctx context.Context, fileType FileType, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.RLock()
	extractor, ok := r.byFileType[fileType]
	r.mu.RUnlock()

	if !ok {
		return "", &UnsupportedError{FileType: fileType}
	}
	return extractor.Extract(ctx, content)
}

// SupportedFormats lists registered extensions sorted by extension.
func (r *Registry) SupportedFormats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]Format, 0, len(r.byExtension))
	for ext, reg := range r.byExtension {
		formats = append(formats, Format{Extension: ext, FileType: reg.fileType, Description: reg.description})
	}
	sort.Slice(formats, func(i, j int) bool {
		return formats[i].Extension < formats[j].Extension
	})
	return formats
}

// TagOf returns the lowercased extension of filename without the dot, or
// FileTypeUnknown when there is none.
func TagOf(filename string) FileType {
	ext := normalizeExtension(filepath.Ext(filename))
	if ext == "" {
		return FileTypeUnknown
	}
	return FileType(ext)
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
