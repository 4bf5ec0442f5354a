package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsMatchSentinels(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		sentinel error
		invalid  bool
	}{
		{name: "PathEscape", err: &PathEscapeError{Root: "/r", Path: "../x"}, sentinel: ErrPathEscape, invalid: true},
		{name: "AlreadyExists", err: &IndexAlreadyExistsError{Name: "a"}, sentinel: ErrIndexAlreadyExists, invalid: true},
		{name: "Busy", err: &IndexBusyError{Name: "a"}, sentinel: ErrIndexBusy, invalid: false},
		{name: "NotFound", err: &IndexNotFoundError{Name: "a"}, sentinel: ErrIndexNotFound, invalid: true},
		{name: "RecordNotFound", err: &RecordNotFoundError{Index: "a", ID: 3}, sentinel: ErrRecordNotFound, invalid: true},
		{name: "QuerySyntax", err: &QuerySyntaxError{Query: `"a`, Position: 0, Reason: "unbalanced quote"}, sentinel: ErrQuerySyntax, invalid: true},
		{name: "InvalidName", err: &InvalidIndexNameError{Name: "A"}, sentinel: ErrInvalidIndexName, invalid: true},
		{name: "InvalidArgument", err: &InvalidArgumentError{Argument: "limit", Reason: "must be positive"}, sentinel: ErrInvalidArgument, invalid: true},
		{name: "Storage", err: &StorageError{Op: "commit", Err: errors.New("disk full")}, sentinel: ErrStorage, invalid: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			wrapped := fmt.Errorf("outer: %w", testCase.err)
			assert.ErrorIs(wrapped, testCase.sentinel)
			assert.Equal(testCase.invalid, IsInvalidInput(wrapped))
		})
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	assert := require.New(t)
	cause := errors.New("database is locked")
	err := &StorageError{Op: "commit", Err: cause}
	assert.ErrorIs(err, cause)
	assert.Contains(err.Error(), "commit")
}
