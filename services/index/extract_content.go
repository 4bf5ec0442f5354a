package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/services/coords"
	"github.com/meghashyamc/corescout/services/sanitize"
)

// SourceFile is one uploaded or discovered file, addressed by its path
// relative to the ingestion root.
type SourceFile struct {
	Path       string
	Content    []byte
	ModifiedAt time.Time
}

type Options struct {
	ExtractText        bool     `json:"extract_text"`
	ExtractCoordinates bool     `json:"extract_coordinates"`
	FileTypes          []string `json:"file_types"`
}

func DefaultOptions() Options {
	return Options{ExtractText: true, ExtractCoordinates: true}
}

// processed is the outcome of one file: a document to add, or a path-escape
// warning when the file had to be skipped.
type processed struct {
	doc      Document
	warning  *errs.Warning
	skipped  bool
	position int
}

// processFile stages one file under its own slot of stagingDir and extracts
// its text and coordinates. Slots are keyed by upload position, so files that
// clean to the same path never share a staged copy. Per-file problems become warnings; only context cancellation
// is returned as an error.
func (s *Service) processFile(ctx context.Context, stagingDir string, mapping sanitize.Mapping, file SourceFile, opts Options) (processed, error) {
	if err := ctx.Err(); err != nil {
		return processed{}, err
	}

	result := processed{position: mapping.Position}

	slot := filepath.Join(stagingDir, strconv.Itoa(mapping.Position))
	_, stagedPath, err := sanitize.Stage(slot, mapping.Path, file.Content)
	if err != nil {
		if errors.Is(err, errs.ErrPathEscape) {
			warning := errs.PathEscapeWarning(file.Path, err)
			return processed{warning: &warning, skipped: true, position: mapping.Position}, nil
		}
		warning := errs.ExtractionFailureWarning(mapping.Path, err)
		result.warning = &warning
	}

	hash := sha256.Sum256(file.Content)
	// Without a client timestamp modified_at stays the zero time, so repeated
	// ingests of the same upload store identical records.
	modifiedAt := file.ModifiedAt.UTC()

	fileType, classifyErr := s.registry.Classify(mapping.Path)
	result.doc = Document{
		SourcePath: mapping.Path,
		FileType:   string(fileType),
		SizeBytes:  int64(len(file.Content)),
		ModifiedAt: modifiedAt,
		FileHash:   hex.EncodeToString(hash[:]),
		Sequence:   mapping.Position + 1,
	}

	if classifyErr != nil {
		s.logger.Debug("unsupported file type", "path", mapping.Path, "file_type", fileType)
		warning := errs.UnsupportedFileTypeWarning(mapping.Path, string(fileType))
		result.warning = &warning
		return result, nil
	}
	if result.warning != nil {
		return result, nil
	}

	if !opts.ExtractText && !opts.ExtractCoordinates {
		return result, nil
	}

	content, err := os.ReadFile(stagedPath)
	if err != nil {
		warning := errs.ExtractionFailureWarning(mapping.Path, err)
		result.warning = &warning
		return result, nil
	}

	text, err := s.registry.Extract(ctx, fileType, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return processed{}, ctxErr
		}
		s.logger.Warn("could not extract text", "path", mapping.Path, "file_type", fileType, "err", err.Error())
		warning := errs.ExtractionFailureWarning(mapping.Path, err)
		result.warning = &warning
		return result, nil
	}

	if opts.ExtractCoordinates {
		if coordinate, ok := coords.Extract(text); ok {
			result.doc.Coordinate = &coordinate
		}
	}
	if opts.ExtractText {
		result.doc.Text = text
	}

	return result, nil
}
