// Package errs holds the typed errors and warnings shared by the ingestion,
// search and export services. Every error type matches a sentinel through Is,
// so callers can use errors.Is without caring about the concrete type.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrPathEscape         = errors.New("path escapes ingestion root")
	ErrIndexAlreadyExists = errors.New("index already exists")
	ErrIndexBusy          = errors.New("index is busy")
	ErrIndexNotFound      = errors.New("index not found")
	ErrRecordNotFound     = errors.New("record not found")
	ErrQuerySyntax        = errors.New("query syntax error")
	ErrInvalidIndexName   = errors.New("invalid index name")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrStorage            = errors.New("storage failure")
)

type PathEscapeError struct {
	Root string
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %q escapes ingestion root %q", e.Path, e.Root)
}

func (e *PathEscapeError) Is(target error) bool {
	return target == ErrPathEscape
}

type IndexAlreadyExistsError struct {
	Name string
}

func (e *IndexAlreadyExistsError) Error() string {
	return fmt.Sprintf("index %q already exists", e.Name)
}

func (e *IndexAlreadyExistsError) Is(target error) bool {
	return target == ErrIndexAlreadyExists
}

type IndexBusyError struct {
	Name string
}

func (e *IndexBusyError) Error() string {
	return fmt.Sprintf("index %q has an ingestion run in progress", e.Name)
}

func (e *IndexBusyError) Is(target error) bool {
	return target == ErrIndexBusy
}

type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}

func (e *IndexNotFoundError) Is(target error) bool {
	return target == ErrIndexNotFound
}

type RecordNotFoundError struct {
	Index string
	ID    int64
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %d not found in index %q", e.ID, e.Index)
}

func (e *RecordNotFoundError) Is(target error) bool {
	return target == ErrRecordNotFound
}

// QuerySyntaxError reports a malformed search query. Position is the byte
// offset in the query where the problem was detected, or -1 when unknown.
type QuerySyntaxError struct {
	Query    string
	Position int
	Reason   string
}

func (e *QuerySyntaxError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("invalid query %q at position %d: %s", e.Query, e.Position, e.Reason)
	}
	return fmt.Sprintf("invalid query %q: %s", e.Query, e.Reason)
}

func (e *QuerySyntaxError) Is(target error) bool {
	return target == ErrQuerySyntax
}

type InvalidIndexNameError struct {
	Name string
}

func (e *InvalidIndexNameError) Error() string {
	return fmt.Sprintf("invalid index name %q: must start with a lowercase letter and contain only lowercase letters, digits and underscores (max 63 characters)", e.Name)
}

func (e *InvalidIndexNameError) Is(target error) bool {
	return target == ErrInvalidIndexName
}

type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Argument, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// StorageError wraps low-level store failures so that callers never see a raw
// driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// IsInvalidInput reports whether err was caused by the caller's input rather
// than by the system failing to complete the operation.
func IsInvalidInput(err error) bool {
	switch {
	case errors.Is(err, ErrPathEscape),
		errors.Is(err, ErrQuerySyntax),
		errors.Is(err, ErrInvalidIndexName),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrIndexAlreadyExists),
		errors.Is(err, ErrIndexNotFound),
		errors.Is(err, ErrRecordNotFound):
		return true
	}
	return false
}
