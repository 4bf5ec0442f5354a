package errs

import "fmt"

type WarningKind string

const (
	WarningUnsupportedFileType WarningKind = "unsupported_file_type"
	WarningExtractionFailure   WarningKind = "extraction_failure"
	WarningPathEscape          WarningKind = "path_escape"
)

// Warning is a non-fatal, per-file problem accumulated during an ingestion run.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Path    string      `json:"path"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Message)
}

func UnsupportedFileTypeWarning(path string, fileType string) Warning {
	return Warning{
		Kind:    WarningUnsupportedFileType,
		Path:    path,
		Message: fmt.Sprintf("file type %q is not supported, text was not extracted", fileType),
	}
}

func ExtractionFailureWarning(path string, err error) Warning {
	return Warning{
		Kind:    WarningExtractionFailure,
		Path:    path,
		Message: fmt.Sprintf("could not extract text: %v", err),
	}
}

func PathEscapeWarning(path string, err error) Warning {
	return Warning{
		Kind:    WarningPathEscape,
		Path:    path,
		Message: fmt.Sprintf("file skipped: %v", err),
	}
}
